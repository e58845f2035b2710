package main

import (
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/devrank/internal/domain/scoring"
	"github.com/okian/devrank/internal/loadtest"
)

func newLoadTestCmd() *cobra.Command {
	var (
		cfg   loadtest.Config
		modes []string
	)
	cmd := &cobra.Command{
		Use:   "loadtest",
		Short: "Score synthetic developers against a running server and verify the rankings",
		Example: `  devrank loadtest --developers 50000 --workers 16 --url http://localhost:8080
  devrank loadtest --mode weighted_percentile --mode point_threshold`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if _, err := setup(cmd.Context()); err != nil {
				return err
			}
			for _, s := range modes {
				m, err := scoring.ParseMode(s)
				if err != nil {
					return err
				}
				cfg.Modes = append(cfg.Modes, m)
			}
			stats, err := loadtest.Run(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), "yaml", stats)
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.BaseURL, "url", "http://localhost:9080", "Base URL of the service")
	f.IntVar(&cfg.Developers, "developers", 10000, "Number of synthetic developers to score")
	f.IntVar(&cfg.TopN, "top", 50, "Leaderboard entries to fetch per mode")
	f.IntVar(&cfg.Workers, "workers", runtime.NumCPU()*2, "Concurrent requests")
	f.DurationVar(&cfg.Timeout, "timeout", 30*time.Second, "HTTP request timeout")
	f.Uint64Var(&cfg.Seed, "seed", uint64(time.Now().UnixNano()), "Seed for the generated activity")
	f.StringArrayVar(&modes, "mode", nil, "Scoring mode to exercise; repeatable (default weighted_percentile)")
	return cmd
}
