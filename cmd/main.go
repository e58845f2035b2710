// Package main provides the devrank CLI: the HTTP service and one-shot
// scoring commands.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/benbjohnson/clock"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/okian/devrank/internal/adapters/github"
	"github.com/okian/devrank/internal/adapters/notify"
	"github.com/okian/devrank/internal/adapters/repository"
	"github.com/okian/devrank/internal/config"
	"github.com/okian/devrank/pkg/logger"
)

var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "devrank",
		Short: "Score GitHub developers and keep per-mode leaderboards",
		Long: `devrank turns public GitHub activity into a score, a grade and a
leaderboard rank. Configuration comes from an optional YAML file named by
DEVRANK_CONFIG and DEVRANK_* environment variables.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newServeCmd(),
		newScoreCmd(),
		newEvaluateCmd(),
		newLoadTestCmd(),
	)
	return root
}

// setup loads configuration and initializes the global logger from it.
func setup(ctx context.Context) (*config.Config, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, err
	}
	if err := logger.InitWith(logger.Format(cfg.LogFormat), os.Stderr); err != nil {
		return nil, fmt.Errorf("init logging: %w", err)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	return cfg, nil
}

func openStore(ctx context.Context, s config.StorageConfig) (repository.Store, error) {
	opts := []repository.Option{
		repository.WithPool(s.MaxOpenConns, s.MaxIdleConns, s.ConnMaxLife),
		repository.WithAutoMigrate(s.AutoMigrate),
	}
	switch s.Driver {
	case config.DriverSQLite:
		return repository.OpenSQLite(ctx, s.SQLitePath, opts...)
	case config.DriverMySQL:
		return repository.OpenMySQL(ctx, s.MySQLConn(), opts...)
	default:
		return repository.NewTreapStore(), nil
	}
}

func newCollector(g config.GitHubConfig) *github.Collector {
	log := logger.Get().Named("github")
	client := github.NewClient(
		github.WithBaseURL(g.BaseURL),
		github.WithToken(g.Token),
		github.WithRetryPolicy(github.RetryPolicy{
			MaxAttempts: g.RetryAttempts,
			Delay:       g.RetryDelay,
			Timeout:     g.Timeout,
		}),
		github.WithRateLimit(g.RateLimit, clock.New()),
		github.WithPagination(g.PerPage, g.MaxPages),
		github.WithClientLogger(log),
	)
	return github.NewCollector(client,
		github.WithConcurrency(g.Concurrency),
		github.WithCache(g.CacheSize, g.CacheTTL),
		github.WithCollectorLogger(log),
	)
}

func newPublisher(k config.KafkaConfig) (notify.Publisher, error) {
	if len(k.Brokers) == 0 {
		return notify.NopPublisher{}, nil
	}
	return notify.NewKafkaPublisher(k.Brokers,
		notify.WithTopic(k.Topic),
		notify.WithLogger(logger.Get().Named("notify")),
	)
}

func writeOutput(w io.Writer, format string, v any) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q (want json or yaml)", format)
	}
}
