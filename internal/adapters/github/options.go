package github

import (
	"net/http"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/okian/devrank/pkg/logger"
)

// ClientOption applies a configuration option to the Client.
type ClientOption func(*Client)

// WithBaseURL points the client at another API root (GitHub Enterprise, tests).
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithToken sets the personal access token.
func WithToken(token string) ClientOption {
	return func(c *Client) {
		c.token = token
	}
}

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithRetryPolicy sets the per-request retry policy.
func WithRetryPolicy(p RetryPolicy) ClientOption {
	return func(c *Client) {
		c.retry = p.normalized()
	}
}

// WithRateLimit caps requests per second. perSecond <= 0 disables limiting.
func WithRateLimit(perSecond int, clk clock.Clock) ClientOption {
	return func(c *Client) {
		if perSecond > 0 {
			c.limiter = NewRateLimiter(perSecond, time.Second, clk)
		}
	}
}

// WithPagination sets the page size and the page cap for list calls.
func WithPagination(perPage, maxPages int) ClientOption {
	return func(c *Client) {
		if perPage > 0 {
			c.perPage = perPage
		}
		if maxPages > 0 {
			c.maxPages = maxPages
		}
	}
}

// WithClientLogger sets the client logger.
func WithClientLogger(l logger.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// CollectorOption applies a configuration option to the Collector.
type CollectorOption func(*Collector)

// WithConcurrency bounds how many repositories are fetched at once.
func WithConcurrency(n int) CollectorOption {
	return func(c *Collector) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// WithCache sets the profile cache size and TTL. size <= 0 disables caching.
func WithCache(size int, ttl time.Duration) CollectorOption {
	return func(c *Collector) {
		c.cacheSize = size
		if ttl > 0 {
			c.cacheTTL = ttl
		}
	}
}

// WithCollectorLogger sets the collector logger.
func WithCollectorLogger(l logger.Logger) CollectorOption {
	return func(c *Collector) {
		if l != nil {
			c.log = l
		}
	}
}

// WithNow sets the time source used for FetchedAt.
func WithNow(now func() time.Time) CollectorOption {
	return func(c *Collector) {
		if now != nil {
			c.now = now
		}
	}
}
