package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/capitolwatch/backend/src/model"
	"github.com/username/capitolwatch/backend/src/security"
	"github.com/username/capitolwatch/backend/src/services"
	"github.com/username/capitolwatch/backend/src/sources"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type fakeService struct {
	mu       sync.Mutex
	startErr error
	started  []services.RunConfig
	pingErr  error
	runs     []model.CollectionRun
	latest   *services.RunSummary
}

func (f *fakeService) RunCollection(ctx context.Context, cfg services.RunConfig) (services.RunSummary, error) {
	return services.RunSummary{}, errors.New("not used")
}

func (f *fakeService) StartCollection(ctx context.Context, cfg services.RunConfig) (string, <-chan services.RunResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return "", nil, f.startErr
	}
	f.started = append(f.started, cfg)
	done := make(chan services.RunResult, 1)
	done <- services.RunResult{Summary: services.RunSummary{RunID: "run-1"}}
	close(done)
	return "run-1", done, nil
}

func (f *fakeService) LatestSummary(ctx context.Context) (*services.RunSummary, error) {
	return f.latest, nil
}

func (f *fakeService) ListRuns(ctx context.Context, limit int) ([]model.CollectionRun, error) {
	if limit > 0 && limit < len(f.runs) {
		return f.runs[:limit], nil
	}
	return f.runs, nil
}

func (f *fakeService) Ping(ctx context.Context) error { return f.pingErr }

func newTestServer(t *testing.T, svc *fakeService, admins ...string) (*httptest.Server, *security.AuthService) {
	t.Helper()
	auth := security.NewAuthService(testSecret)
	srv := httptest.NewServer(NewRouter(NewCollectionHandler(context.Background(), svc), auth, admins))
	t.Cleanup(srv.Close)
	return srv, auth
}

func bearer(t *testing.T, auth *security.AuthService, subject, role string) string {
	t.Helper()
	token, err := auth.GenerateToken(subject, role, time.Minute)
	require.NoError(t, err)
	return "Bearer " + token
}

func do(t *testing.T, method, url, authz, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHealth(t *testing.T) {
	svc := &fakeService{}
	srv, _ := newTestServer(t, svc)

	resp := do(t, http.MethodGet, srv.URL+"/api/health", "", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	svc.pingErr = services.ErrStoreUnavailable
	resp = do(t, http.MethodGet, srv.URL+"/api/health", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestTriggerCollection(t *testing.T) {
	svc := &fakeService{}
	srv, auth := newTestServer(t, svc)

	resp := do(t, http.MethodPost, srv.URL+"/api/collect", bearer(t, auth, "ops", security.RoleAdmin), `{"sources": ["senate-watcher"]}`)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var body triggerResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "run-1", body.RunID)
	assert.Equal(t, "Running", body.Status)

	require.Len(t, svc.started, 1)
	assert.Equal(t, "api", svc.started[0].Trigger)
	assert.Equal(t, []string{"senate-watcher"}, svc.started[0].Sources)
}

func TestTriggerCollection_EmptyBodyRunsAllSources(t *testing.T) {
	svc := &fakeService{}
	srv, auth := newTestServer(t, svc)

	resp := do(t, http.MethodPost, srv.URL+"/api/collect", bearer(t, auth, "ops", security.RoleAdmin), "")
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.Len(t, svc.started, 1)
	assert.Empty(t, svc.started[0].Sources)
}

func TestTriggerCollection_Errors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"in progress", services.ErrRunInProgress, http.StatusConflict},
		{"unknown source", fmt.Errorf("build sources: %w %q", sources.ErrUnknownSource, "nope"), http.StatusBadRequest},
		{"store down", fmt.Errorf("%w: closed", services.ErrStoreUnavailable), http.StatusServiceUnavailable},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv, auth := newTestServer(t, &fakeService{startErr: tc.err})
			resp := do(t, http.MethodPost, srv.URL+"/api/collect", bearer(t, auth, "ops", security.RoleAdmin), "")
			assert.Equal(t, tc.want, resp.StatusCode)
		})
	}
}

func TestTriggerCollection_Auth(t *testing.T) {
	svc := &fakeService{}
	srv, auth := newTestServer(t, svc, "release-bot")

	assert.Equal(t, http.StatusUnauthorized, do(t, http.MethodPost, srv.URL+"/api/collect", "", "").StatusCode)
	assert.Equal(t, http.StatusUnauthorized, do(t, http.MethodPost, srv.URL+"/api/collect", "Bearer garbage", "").StatusCode)
	assert.Equal(t, http.StatusForbidden, do(t, http.MethodPost, srv.URL+"/api/collect", bearer(t, auth, "someone", "viewer"), "").StatusCode)
	assert.Equal(t, http.StatusAccepted, do(t, http.MethodPost, srv.URL+"/api/collect", bearer(t, auth, "release-bot", ""), "").StatusCode)
	assert.Empty(t, svc.started[0].Sources)
}

func TestTriggerCollection_BadBody(t *testing.T) {
	srv, auth := newTestServer(t, &fakeService{})
	resp := do(t, http.MethodPost, srv.URL+"/api/collect", bearer(t, auth, "ops", security.RoleAdmin), `{"sources":`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestListRuns(t *testing.T) {
	svc := &fakeService{runs: []model.CollectionRun{{ID: "b", Status: "Completed"}, {ID: "a", Status: "PartiallyFailed"}}}
	srv, auth := newTestServer(t, svc)
	authz := bearer(t, auth, "ops", security.RoleAdmin)

	resp := do(t, http.MethodGet, srv.URL+"/api/collect/runs?limit=1", authz, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var runs []model.CollectionRun
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&runs))
	require.Len(t, runs, 1)
	assert.Equal(t, "b", runs[0].ID)

	assert.Equal(t, http.StatusBadRequest, do(t, http.MethodGet, srv.URL+"/api/collect/runs?limit=x", authz, "").StatusCode)
}

func TestLatestRun(t *testing.T) {
	svc := &fakeService{}
	srv, auth := newTestServer(t, svc)
	authz := bearer(t, auth, "ops", security.RoleAdmin)

	assert.Equal(t, http.StatusNotFound, do(t, http.MethodGet, srv.URL+"/api/collect/runs/latest", authz, "").StatusCode)

	svc.latest = &services.RunSummary{RunID: "r9", Status: services.RunCompleted}
	resp := do(t, http.MethodGet, srv.URL+"/api/collect/runs/latest", authz, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var summary services.RunSummary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&summary))
	assert.Equal(t, "r9", summary.RunID)
}
