package service

import (
	"time"

	"github.com/okian/devrank/internal/adapters/mq/worker"
	"github.com/okian/devrank/internal/adapters/notify"
	"github.com/okian/devrank/internal/adapters/repository"
	"github.com/okian/devrank/internal/domain/scoring"
	"github.com/okian/devrank/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of worker goroutines.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum size of the evaluation queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the deduplication cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithShutdownTimeout bounds Stop.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.shutdownTimeout = d
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithWeightConfig injects the scoring tables. They are validated by Start.
func WithWeightConfig(cfg scoring.WeightConfig) Option {
	return func(s *Service) {
		s.weights = cfg
	}
}

// WithStore sets the record store. The service closes it on Stop.
// Defaults to an in-memory treap store.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithCollector sets the activity collector used by evaluations.
// Defaults to an unauthenticated GitHub collector.
func WithCollector(c worker.Collector) Option {
	return func(s *Service) {
		if c != nil {
			s.collector = c
		}
	}
}

// WithPublisher sets where stored scores are announced. The service closes it on Stop.
func WithPublisher(p notify.Publisher) Option {
	return func(s *Service) {
		if p != nil {
			s.publisher = p
		}
	}
}
