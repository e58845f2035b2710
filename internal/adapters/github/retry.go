package github

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/benbjohnson/clock"
)

const (
	defaultMaxAttempts = 3
	defaultRetryDelay  = time.Second
	defaultTimeout     = 30 * time.Second
)

// RetryPolicy bounds how a single GitHub call is retried. Delay is fixed.
type RetryPolicy struct {
	MaxAttempts int
	Delay       time.Duration
	// Timeout bounds each attempt, not the whole call.
	Timeout time.Duration
	Clock   clock.Clock
	// OnRetry, when set, runs before each wait.
	OnRetry func(attempt int, err error)
}

// DefaultRetryPolicy is three attempts, one second apart, thirty seconds each.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: defaultMaxAttempts,
		Delay:       defaultRetryDelay,
		Timeout:     defaultTimeout,
		Clock:       clock.New(),
	}
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.Clock == nil {
		p.Clock = clock.New()
	}
	return p
}

// Do runs fn until it succeeds, returns a permanent error, the attempts run
// out or ctx is done. The last error is returned wrapped with the attempt count.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	p = p.normalized()

	var err error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		err = p.attempt(ctx, fn)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return fmt.Errorf("github: giving up: %w", ctx.Err())
		}
		if !Retryable(err) || attempt == p.MaxAttempts {
			break
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt, err)
		}
		if p.Delay > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("github: giving up: %w", ctx.Err())
			case <-p.Clock.After(p.Delay):
			}
		}
	}
	return err
}

func (p RetryPolicy) attempt(ctx context.Context, fn func(ctx context.Context) error) error {
	if p.Timeout <= 0 {
		return fn(ctx)
	}
	actx, cancel := p.Clock.WithTimeout(ctx, p.Timeout)
	defer cancel()
	return fn(actx)
}

// Retryable reports whether err is worth another attempt: transport
// failures, per-attempt timeouts, 5xx and 429. Exhausted rate limits,
// 404 and other 4xx responses are permanent.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	var rl *RateLimitError
	if errors.As(err, &rl) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	// *url.Error and *net.OpError both satisfy net.Error.
	var ne net.Error
	return errors.As(err, &ne)
}
