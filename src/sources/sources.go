// Package sources wires configured source definitions to their adapters.
package sources

import (
	"context"
	"errors"
	"fmt"

	"github.com/username/capitolwatch/backend/src/config"
	"github.com/username/capitolwatch/backend/src/models"
	"github.com/username/capitolwatch/backend/src/sources/api"
	"github.com/username/capitolwatch/backend/src/sources/document"
	"github.com/username/capitolwatch/backend/src/sources/feed"
	"github.com/username/capitolwatch/backend/src/sources/fetch"
)

var ErrUnknownSource = errors.New("unknown source")

// Source is an origin of raw records. Fetch yields records lazily, stops
// when yield returns false and always returns a terminal Outcome.
type Source interface {
	Name() string
	Kind() models.SourceKind
	Fetch(ctx context.Context, yield func(models.RawRecord) bool) fetch.Outcome
}

// Committer is implemented by sources that need to know which of their
// records reached the store.
type Committer interface {
	Commit(ctx context.Context, rec models.RawRecord) error
}

// Deps are the collaborators adapters may need beyond their config.
type Deps struct {
	SeenKeys feed.SeenKeys
}

// New builds the adapter for a source definition.
func New(cfg config.SourceConfig, deps Deps) (Source, error) {
	switch cfg.Kind {
	case models.SourceFeed:
		return feed.New(cfg, deps.SeenKeys), nil
	case models.SourceAPI:
		return api.New(cfg), nil
	case models.SourceDocument:
		return document.New(cfg)
	default:
		return nil, fmt.Errorf("no adapter available for source kind: %s", cfg.Kind)
	}
}

// Build creates adapters for every enabled source, optionally restricted to
// the given names. Unknown names are an error.
func Build(cfgs []config.SourceConfig, only []string, deps Deps) ([]Source, error) {
	wanted := make(map[string]bool, len(only))
	for _, name := range only {
		wanted[name] = true
	}
	var out []Source
	for _, cfg := range cfgs {
		if len(wanted) > 0 {
			if !wanted[cfg.Name] {
				continue
			}
			delete(wanted, cfg.Name)
		} else if !cfg.IsEnabled() {
			continue
		}
		src, err := New(cfg, deps)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", cfg.Name, err)
		}
		out = append(out, src)
	}
	for name := range wanted {
		return nil, fmt.Errorf("%w %q", ErrUnknownSource, name)
	}
	return out, nil
}
