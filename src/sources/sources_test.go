package sources

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/capitolwatch/backend/src/config"
	"github.com/username/capitolwatch/backend/src/models"
)

func boolPtr(b bool) *bool { return &b }

var cfgs = []config.SourceConfig{
	{Name: "watcher", Kind: models.SourceFeed, URL: "https://feed.example/data"},
	{Name: "propublica", Kind: models.SourceAPI, URL: "https://api.example/v1/118"},
	{Name: "clerk", Kind: models.SourceDocument, URL: "https://clerk.example/", Enabled: boolPtr(false)},
}

func TestBuildSkipsDisabledSources(t *testing.T) {
	srcs, err := Build(cfgs, nil, Deps{})
	require.NoError(t, err)
	require.Len(t, srcs, 2)
	assert.Equal(t, "watcher", srcs[0].Name())
	assert.Equal(t, models.SourceFeed, srcs[0].Kind())
	assert.Equal(t, models.SourceAPI, srcs[1].Kind())
}

func TestBuildSelectsNamedSources(t *testing.T) {
	srcs, err := Build(cfgs, []string{"clerk"}, Deps{})
	require.NoError(t, err)
	require.Len(t, srcs, 1)
	assert.Equal(t, models.SourceDocument, srcs[0].Kind())

	_, err = Build(cfgs, []string{"nope"}, Deps{})
	assert.ErrorContains(t, err, `unknown source "nope"`)
}

func TestNewRejectsUnknownKind(t *testing.T) {
	_, err := New(config.SourceConfig{Name: "x", Kind: "ftp"}, Deps{})
	assert.Error(t, err)
}
