// Package loadtest drives a running devrank API with synthetic developers
// and checks that ranks and leaderboards agree with each other.
package loadtest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/okian/devrank/internal/domain/scoring"
	"github.com/okian/devrank/internal/domain/types"
	"github.com/okian/devrank/pkg/logger"
)

// ErrInconsistent is returned when ranks and leaderboards disagree.
var ErrInconsistent = errors.New("inconsistent ranking")

// Config holds the load test parameters.
type Config struct {
	BaseURL    string
	Developers int
	TopN       int
	Workers    int
	Timeout    time.Duration
	// Modes are assigned round robin; empty means weighted only.
	Modes []scoring.Mode
	// Seed makes the generated activity reproducible.
	Seed uint64
	// Client overrides the HTTP client, mainly for tests.
	Client *http.Client
}

// Stats summarizes one run.
type Stats struct {
	Generated          int
	Submitted          int
	Failed             int
	RanksRetrieved     int
	LeaderboardEntries int
	Duration           time.Duration
}

// Run checks the service health, submits every generated developer, reads
// back ranks and leaderboards, and verifies them.
func Run(ctx context.Context, cfg Config) (Stats, error) {
	cfg = withDefaults(cfg)
	log := logger.GetOrNop().Named("loadtest")
	start := time.Now()
	var stats Stats

	log.Info(ctx, "starting devrank load test",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("developers", cfg.Developers),
		logger.Int("workers", cfg.Workers),
		logger.Int("topN", cfg.TopN),
	)

	c := newClient(cfg)
	if err := c.health(ctx); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	devs := generate(cfg)
	stats.Generated = len(devs)

	ok, failed := c.submitAll(ctx, devs, cfg.Workers)
	stats.Submitted, stats.Failed = ok, failed
	if ok == 0 {
		return stats, fmt.Errorf("no developer was scored (%d failed)", failed)
	}

	ranks, err := c.ranks(ctx, devs, cfg.Workers)
	if err != nil {
		return stats, err
	}
	stats.RanksRetrieved = len(ranks)

	boards := make(map[scoring.Mode][]types.Entry, len(cfg.Modes))
	for _, m := range cfg.Modes {
		board, err := c.leaderboard(ctx, m, cfg.TopN)
		if err != nil {
			return stats, fmt.Errorf("leaderboard %s: %w", m, err)
		}
		boards[m] = board
		stats.LeaderboardEntries += len(board)
	}

	stats.Duration = time.Since(start)
	if err := verify(ranks, boards); err != nil {
		return stats, err
	}

	log.Info(ctx, "load test completed",
		logger.Int("submitted", stats.Submitted),
		logger.Int("failed", stats.Failed),
		logger.Int("ranks", stats.RanksRetrieved),
		logger.Int("leaderboardEntries", stats.LeaderboardEntries),
		logger.Duration("duration", stats.Duration),
		logger.Float64("developersPerSecond", float64(stats.Submitted)/stats.Duration.Seconds()),
	)
	return stats, nil
}

func withDefaults(cfg Config) Config {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:9080"
	}
	if cfg.Developers < 1 {
		cfg.Developers = 1000
	}
	if cfg.TopN < 1 {
		cfg.TopN = 50
	}
	if cfg.Workers < 1 {
		cfg.Workers = 8
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if len(cfg.Modes) == 0 {
		cfg.Modes = []scoring.Mode{scoring.ModeWeightedPercentile}
	}
	return cfg
}
