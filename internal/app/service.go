// Package service provides the core business service that implements
// the dependencies required by the HTTP API.
package service

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/okian/devrank/internal/adapters/github"
	"github.com/okian/devrank/internal/adapters/mq/queue"
	"github.com/okian/devrank/internal/adapters/mq/worker"
	"github.com/okian/devrank/internal/adapters/notify"
	"github.com/okian/devrank/internal/adapters/repository"
	"github.com/okian/devrank/internal/domain/dedupe"
	"github.com/okian/devrank/internal/domain/model"
	"github.com/okian/devrank/internal/domain/scoring"
	"github.com/okian/devrank/internal/domain/types"
	"github.com/okian/devrank/pkg/logger"
	"github.com/okian/devrank/pkg/metrics"
)

const (
	defaultQueueSize       = 10_000
	defaultDedupeSize      = 50_000
	defaultShutdownTimeout = 15 * time.Second
)

// Service implements the API dependencies for devrank.
type Service struct {
	mu sync.RWMutex

	// Core components
	store     repository.Store
	collector worker.Collector
	publisher notify.Publisher
	engine    *scoring.Engine
	deduper   dedupe.Deduper
	queue     *queue.InMemoryQueue
	pipeline  *worker.Pipeline
	pool      *worker.Pool

	// Configuration
	weights         scoring.WeightConfig
	workerCount     int
	queueSize       int
	dedupeSize      int
	shutdownTimeout time.Duration

	// State
	started   bool
	startedAt time.Time
	cancel    context.CancelFunc

	logger logger.Logger
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		weights:         scoring.DefaultWeightConfig(),
		workerCount:     runtime.NumCPU(),
		queueSize:       defaultQueueSize,
		dedupeSize:      defaultDedupeSize,
		shutdownTimeout: defaultShutdownTimeout,
		publisher:       notify.NopPublisher{},
		logger:          logger.GetOrNop().Named("service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start validates the scoring tables and starts the worker pool. A
// *scoring.ConfigurationError aborts start-up.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.logger.Info(ctx, "starting devrank service...")

	engine, err := scoring.NewEngine(s.weights, scoring.WithLogger(s.logger.Named("scoring")))
	if err != nil {
		return fmt.Errorf("scoring engine: %w", err)
	}
	s.engine = engine

	if s.store == nil {
		s.store = repository.NewTreapStore()
		s.logger.Info(ctx, "using in-memory treap store")
	}
	if s.collector == nil {
		s.collector = github.NewCollector(github.NewClient())
	}
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = queue.NewInMemoryQueue(
		queue.WithCapacity(s.queueSize),
		queue.WithBufferSize(s.queueSize),
	)
	s.pipeline = worker.NewPipeline(s.collector, s.engine, s.store, s.publisher)

	// Workers outlive the caller's ctx; Stop cancels them.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.pool = worker.NewPool(s.workerCount, s.queue, s.pipeline)
	s.pool.Start(runCtx)

	s.started = true
	s.startedAt = time.Now()
	metrics.UpdateStoreRecords(s.store.Count(ctx))
	s.logger.Info(ctx, "devrank service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.String("defaultMode", string(s.engine.DefaultMode())),
	)
	return nil
}

// Stop drains the queue, then closes the publisher and the store.
func (s *Service) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	s.logger.Info(ctx, "stopping devrank service...")

	var err error
	if s.pool != nil {
		err = multierr.Append(err, s.pool.Shutdown(ctx))
	}
	s.cancel()
	if s.publisher != nil {
		err = multierr.Append(err, s.publisher.Close())
	}
	if s.store != nil {
		err = multierr.Append(err, s.store.Close())
	}

	s.started = false
	if err != nil {
		s.logger.Warn(ctx, "devrank service stopped with errors", logger.Error(err))
		return err
	}
	s.logger.Info(ctx, "devrank service stopped")
	return nil
}

// SeenAndRecord atomically checks if a request id was seen and records it if not.
func (s *Service) SeenAndRecord(ctx context.Context, id string) bool {
	d := s.dedupe()
	if d == nil {
		return false
	}
	seen := d.SeenAndRecord(ctx, id)
	if seen {
		metrics.RecordEvaluationDuplicate()
	}
	return seen
}

// Unrecord removes a request id from the seen list, allowing it to be retried.
func (s *Service) Unrecord(ctx context.Context, id string) {
	if d := s.dedupe(); d != nil {
		d.Unrecord(ctx, id)
	}
}

// Size returns the current number of entries in the deduper.
func (s *Service) Size() int64 {
	if d := s.dedupe(); d != nil {
		return d.Size()
	}
	return 0
}

func (s *Service) dedupe() dedupe.Deduper {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.deduper
}

// Enqueue submits a job for asynchronous evaluation. It fails with
// queue.ErrFull on backpressure and queue.ErrClosed once stopped.
func (s *Service) Enqueue(ctx context.Context, job model.Job) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return queue.ErrClosed
	}
	s.logger.Debug(ctx, "enqueueing evaluation",
		logger.String("job_id", job.JobID),
		logger.String("username", job.Username),
		logger.String("mode", string(job.Mode)),
	)
	return s.queue.Enqueue(ctx, job)
}

// Evaluate fetches and scores username synchronously, bypassing the queue.
func (s *Service) Evaluate(ctx context.Context, username string, mode scoring.Mode) (repository.Record, error) {
	s.mu.RLock()
	p := s.pipeline
	s.mu.RUnlock()
	if p == nil {
		return repository.Record{}, ErrNotStarted
	}
	job := model.Job{
		JobID:       "sync-" + repository.NormalizeID(username),
		Username:    username,
		Mode:        mode,
		RequestedAt: time.Now(),
	}
	return p.Process(ctx, job)
}

// Score runs the engine on supplied counts. With save set the result is
// stored under in.Username and announced; in weighted mode a missing
// previous score is read from the store first.
func (s *Service) Score(ctx context.Context, mode scoring.Mode, in scoring.MetricsInput, repos []scoring.RepoSignal, save bool) (scoring.ScoreResult, error) {
	s.mu.RLock()
	engine, store, pub := s.engine, s.store, s.publisher
	s.mu.RUnlock()
	if engine == nil {
		return scoring.ScoreResult{}, ErrNotStarted
	}

	if save && mode == scoring.ModeWeightedPercentile && in.PreviousScore == nil {
		prev, err := repository.PreviousScore(ctx, store, in.Username)
		if err != nil {
			return scoring.ScoreResult{}, fmt.Errorf("previous score of %s: %w", in.Username, err)
		}
		in.PreviousScore = prev
	}

	res, err := engine.Evaluate(mode, in, repos)
	if err != nil {
		return scoring.ScoreResult{}, err
	}
	if !save {
		return res, nil
	}

	rec := repository.Record{
		DeveloperID: repository.NormalizeID(in.Username),
		Result:      res,
		Metrics:     in,
	}
	if _, err := store.Save(ctx, rec); err != nil {
		return scoring.ScoreResult{}, fmt.Errorf("save %s: %w", rec.DeveloperID, err)
	}
	if err := pub.Publish(ctx, rec); err != nil {
		s.logger.Warn(ctx, "notification failed", logger.String("developer_id", rec.DeveloperID), logger.Error(err))
	}
	return res, nil
}

// DefaultMode is the mode used when a request does not name one.
func (s *Service) DefaultMode() scoring.Mode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.engine != nil {
		return s.engine.DefaultMode()
	}
	return s.weights.DefaultMode
}

// Developer returns the stored record of id.
func (s *Service) Developer(ctx context.Context, id string) (repository.Record, error) {
	store, err := s.readStore()
	if err != nil {
		return repository.Record{}, err
	}
	return store.Get(ctx, id)
}

// TopN returns the top n leaderboard entries of mode.
func (s *Service) TopN(ctx context.Context, mode scoring.Mode, n int) ([]types.Entry, error) {
	store, err := s.readStore()
	if err != nil {
		return nil, err
	}
	return store.TopN(ctx, mode, n)
}

// Rank returns the leaderboard entry for id.
func (s *Service) Rank(ctx context.Context, id string) (types.Entry, error) {
	store, err := s.readStore()
	if err != nil {
		return types.Entry{}, err
	}
	return store.Rank(ctx, id)
}

func (s *Service) readStore() (repository.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return nil, ErrNotStarted
	}
	return s.store, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]any{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
		"defaultMode": string(s.weights.DefaultMode),
	}

	if s.started {
		developers := s.store.Count(ctx)
		stats["queueLength"] = s.queue.Len(ctx)
		stats["developers"] = developers
		stats["processed"] = s.pool.Processed()
		stats["failed"] = s.pool.Failed()
		stats["dedupeEntries"] = s.deduper.Size()
		stats["uptimeSeconds"] = int64(time.Since(s.startedAt).Seconds())

		metrics.UpdateStoreRecords(developers)
		metrics.UpdateWorkerCount(s.workerCount)
	}

	return stats
}
