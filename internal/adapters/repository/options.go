package repository

import "time"

// Option applies a configuration option to a store.
type Option func(*options)

type options struct {
	now          func() time.Time
	maxOpenConns int
	maxIdleConns int
	connMaxLife  time.Duration
	autoMigrate  bool
}

func defaultOptions() options {
	return options{
		now:          time.Now,
		maxOpenConns: 10,
		maxIdleConns: 5,
		connMaxLife:  time.Hour,
		autoMigrate:  true,
	}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithNow sets the clock used to stamp records saved without UpdatedAt.
func WithNow(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithPool sets connection pool limits for SQL-backed stores.
func WithPool(maxOpen, maxIdle int, maxLifetime time.Duration) Option {
	return func(o *options) {
		if maxOpen > 0 {
			o.maxOpenConns = maxOpen
		}
		if maxIdle > 0 {
			o.maxIdleConns = maxIdle
		}
		if maxLifetime > 0 {
			o.connMaxLife = maxLifetime
		}
	}
}

// WithAutoMigrate toggles schema migration on open.
func WithAutoMigrate(enabled bool) Option {
	return func(o *options) {
		o.autoMigrate = enabled
	}
}
