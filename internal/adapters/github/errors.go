package github

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Sentinel kinds for GitHub errors.
var (
	ErrNotFound     = errors.New("github: not found")
	ErrUnauthorized = errors.New("github: unauthorized")
	ErrRateLimited  = errors.New("github: rate limit exhausted")
	ErrEmptyUser    = errors.New("github: username is required")
)

// StatusError is a non-2xx response that is not a rate-limit signal.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("github: %s returned %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// Unwrap maps well-known status codes onto the package sentinels.
func (e *StatusError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusUnauthorized:
		return ErrUnauthorized
	}
	return nil
}

// Temporary reports whether the same request may succeed later.
func (e *StatusError) Temporary() bool {
	return e.StatusCode >= http.StatusInternalServerError || e.StatusCode == http.StatusTooManyRequests
}

// RateLimitError means the primary rate limit is spent until Reset.
type RateLimitError struct {
	Reset time.Time
}

func (e *RateLimitError) Error() string {
	if e.Reset.IsZero() {
		return ErrRateLimited.Error()
	}
	return fmt.Sprintf("%s until %s", ErrRateLimited, e.Reset.UTC().Format(time.RFC3339))
}

func (e *RateLimitError) Unwrap() error { return ErrRateLimited }

func isNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
