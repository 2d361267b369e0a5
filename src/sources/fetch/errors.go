package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"syscall"
	"time"
)

var (
	// ErrTransient marks failures worth retrying.
	ErrTransient = errors.New("transient fetch error")
	// ErrPermanent marks failures that retrying cannot fix.
	ErrPermanent = errors.New("permanent fetch error")
	// ErrBodyTooLarge is returned instead of a truncated body.
	ErrBodyTooLarge = errors.New("response body exceeds limit")
)

// HTTPError is a non-2xx response.
type HTTPError struct {
	URL        string
	StatusCode int
	RetryAfter time.Duration
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// Unwrap lets callers test the class with errors.Is.
func (e *HTTPError) Unwrap() error {
	if e.Transient() {
		return ErrTransient
	}
	return ErrPermanent
}

// Transient is true for 5xx and 429 responses.
func (e *HTTPError) Transient() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

func newHTTPError(url string, resp *http.Response) *HTTPError {
	e := &HTTPError{URL: url, StatusCode: resp.StatusCode}
	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusServiceUnavailable {
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
			e.RetryAfter = time.Duration(secs) * time.Second
		}
	}
	return e
}

// classify wraps a transport error with its class. Context errors pass
// through untouched so cancellation is never retried.
func classify(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var netErr net.Error
	switch {
	case errors.Is(err, ErrTransient), errors.Is(err, ErrPermanent):
		return err
	case errors.As(err, &netErr) && netErr.Timeout():
		return fmt.Errorf("%w: %w", ErrTransient, err)
	case errors.Is(err, syscall.ECONNRESET), errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, io.EOF):
		return fmt.Errorf("%w: %w", ErrTransient, err)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return fmt.Errorf("%w: %w", ErrTransient, err)
	}
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}

// IsTransient reports whether err is worth another attempt.
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}
