// Package fetch holds what every source adapter shares: the rate limited,
// retrying HTTP client and the Outcome each fetch ends with.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/username/capitolwatch/backend/src/config"
	"github.com/username/capitolwatch/backend/src/logger"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const defaultMaxBodyBytes = 64 << 20

// Response is a fully read 2xx response.
type Response struct {
	URL    string
	Header http.Header
	Body   []byte
}

// MediaType returns the response media type without parameters.
func (r *Response) MediaType() string {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return ""
	}
	return mt
}

// Client fetches source URLs with a per-source minimum request interval and
// a bounded exponential backoff on transient failures.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
	backoff    time.Duration
	backoffMax time.Duration
	userAgent  string
	header     http.Header
	maxBody    int64
}

// Option customizes a Client.
type Option func(*Client)

// WithHeader sets a header on every request.
func WithHeader(key, value string) Option {
	return func(c *Client) { c.header.Set(key, value) }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithMaxBodyBytes caps how much of a response body is read.
func WithMaxBodyBytes(n int64) Option {
	return func(c *Client) { c.maxBody = n }
}

// WithTokenSource authenticates every request with the given OAuth2 token.
func WithTokenSource(ts oauth2.TokenSource) Option {
	return func(c *Client) {
		base := c.httpClient.Transport
		if base == nil {
			base = http.DefaultTransport
		}
		c.httpClient.Transport = &oauth2.Transport{Source: ts, Base: base}
	}
}

// NewClient builds a client from a source's retry and rate settings.
func NewClient(cfg config.SourceConfig, opts ...Option) *Client {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		logger.L.Error("Failed to create cookie jar", "error", err)
	}

	limit := rate.Inf
	if cfg.RateInterval > 0 {
		limit = rate.Every(cfg.RateInterval)
	}
	c := &Client{
		httpClient: &http.Client{Jar: jar, Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(limit, 1),
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.BackoffBase,
		backoffMax: cfg.BackoffMax,
		userAgent:  "capitolwatch/1.0",
		header:     make(http.Header),
		maxBody:    defaultMaxBodyBytes,
	}
	if config.Cfg != nil && config.Cfg.UserAgent != "" {
		c.userAgent = config.Cfg.UserAgent
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get fetches url, retrying transient failures up to the configured number
// of times. The returned error wraps ErrTransient, ErrPermanent or the
// context error.
func (c *Client) Get(ctx context.Context, url string) (*Response, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		resp, err := c.do(ctx, url)
		if err == nil {
			return resp, nil
		}
		lastErr = err
		if !IsTransient(err) || attempt == c.maxRetries {
			break
		}

		delay := c.delay(attempt, err)
		logger.FromContext(ctx).Warn("Transient fetch error, retrying",
			"url", url, "attempt", attempt+1, "delay", delay.String(), "error", err)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
	if IsTransient(lastErr) {
		return nil, fmt.Errorf("giving up after %d attempts: %w", c.maxRetries+1, lastErr)
	}
	return nil, lastErr
}

// delay is base * 2^attempt capped at the configured maximum, or the
// server's Retry-After when it asked for one.
func (c *Client) delay(attempt int, err error) time.Duration {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) && httpErr.RetryAfter > 0 {
		return min(httpErr.RetryAfter, c.backoffMax)
	}
	d := c.backoff
	for i := 0; i < attempt && d < c.backoffMax; i++ {
		d *= 2
	}
	return min(d, c.backoffMax)
}

func (c *Client) do(ctx context.Context, url string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPermanent, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	for k, vs := range c.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classify(ctx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
		return nil, newHTTPError(url, resp)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, classify(ctx, fmt.Errorf("read %s: %w", url, err))
	}
	if int64(len(body)) > c.maxBody {
		return nil, fmt.Errorf("%w: %w: GET %s: more than %d bytes", ErrPermanent, ErrBodyTooLarge, url, c.maxBody)
	}
	return &Response{URL: resp.Request.URL.String(), Header: resp.Header, Body: body}, nil
}
