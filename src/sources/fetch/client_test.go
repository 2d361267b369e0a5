package fetch

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/username/capitolwatch/backend/src/config"
	"golang.org/x/oauth2"
)

func testConfig(retries int) config.SourceConfig {
	return config.SourceConfig{
		Name:        "test",
		MaxRetries:  retries,
		BackoffBase: time.Millisecond,
		BackoffMax:  5 * time.Millisecond,
		Timeout:     5 * time.Second,
	}
}

func TestGetRetriesTransientStatus(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	resp, err := NewClient(testConfig(3)).Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(resp.Body))
	assert.Equal(t, "application/json", resp.MediaType())
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestGetDoesNotRetryPermanentStatus(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := NewClient(testConfig(3)).Get(context.Background(), srv.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPermanent)
	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusUnauthorized, httpErr.StatusCode)
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))
}

func TestGetGivesUpAfterMaxRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(testConfig(2)).Get(context.Background(), srv.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransient)
	assert.Contains(t, err.Error(), "giving up after 3 attempts")
	assert.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestConnectionRefusedIsTransient(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	_, err = NewClient(testConfig(1)).Get(context.Background(), "http://"+addr+"/data.json")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransient)
}

func TestMalformedURLIsPermanent(t *testing.T) {
	_, err := NewClient(testConfig(3)).Get(context.Background(), "http://[::1")
	assert.ErrorIs(t, err, ErrPermanent)
}

func TestCancelledContextStopsBackoff(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := testConfig(5)
	cfg.BackoffBase, cfg.BackoffMax = time.Hour, time.Hour
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := NewClient(cfg).Get(ctx, srv.URL)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestDelayDoublesAndHonoursRetryAfter(t *testing.T) {
	c := NewClient(config.SourceConfig{BackoffBase: 100 * time.Millisecond, BackoffMax: time.Second})
	assert.Equal(t, 100*time.Millisecond, c.delay(0, ErrTransient))
	assert.Equal(t, 400*time.Millisecond, c.delay(2, ErrTransient))
	assert.Equal(t, time.Second, c.delay(6, ErrTransient))

	tooMany := &HTTPError{StatusCode: http.StatusTooManyRequests, RetryAfter: 700 * time.Millisecond}
	assert.Equal(t, 700*time.Millisecond, c.delay(0, tooMany))
	assert.True(t, tooMany.Transient())
}

func TestHeadersAndTokenAreSent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("X-API-Key"))
		assert.Equal(t, "Bearer gh-token", r.Header.Get("Authorization"))
		assert.Equal(t, "cw-test", r.Header.Get("User-Agent"))
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := NewClient(testConfig(0),
		WithHeader("X-API-Key", "secret"),
		WithUserAgent("cw-test"),
		WithTokenSource(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "gh-token"})))
	_, err := c.Get(context.Background(), srv.URL)
	require.NoError(t, err)
}

func TestOversizedBodyIsRejectedNotTruncated(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(`[{"senator": "Tommy Tuberville"}]`))
	}))
	defer srv.Close()

	_, err := NewClient(testConfig(3), WithMaxBodyBytes(16)).Get(context.Background(), srv.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrBodyTooLarge)
	assert.ErrorIs(t, err, ErrPermanent)
	assert.Contains(t, err.Error(), "exceeds limit")
	assert.EqualValues(t, 1, atomic.LoadInt32(&calls))

	resp, err := NewClient(testConfig(0), WithMaxBodyBytes(64)).Get(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Len(t, resp.Body, len(`[{"senator": "Tommy Tuberville"}]`))
}
