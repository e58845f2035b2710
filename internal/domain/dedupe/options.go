package dedupe

type config struct {
	maxSize int
}

// Option applies a configuration option to NewInMemoryDeduper.
type Option func(*config)

// WithMaxSize sets the maximum number of IDs to keep in memory.
// If maxSize > 0: bounded, least recently recorded ids are evicted first.
// If maxSize <= 0: unbounded.
func WithMaxSize(maxSize int) Option {
	return func(c *config) {
		c.maxSize = maxSize
	}
}
