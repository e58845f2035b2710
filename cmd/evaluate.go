package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/okian/devrank/internal/adapters/repository"
	"github.com/okian/devrank/internal/config"
	"github.com/okian/devrank/internal/domain/scoring"
)

func newEvaluateCmd() *cobra.Command {
	var (
		mode   string
		output string
	)
	cmd := &cobra.Command{
		Use:   "evaluate <username>",
		Short: "Fetch a developer's GitHub activity and score it",
		Long: `Fetches the public activity of one GitHub user, scores it and stores
the record in the configured storage driver. With the memory driver the
record is only printed.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			rec, err := runEvaluate(cmd.Context(), cfg, args[0], mode)
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), output, rec)
		},
	}
	cmd.Flags().StringVar(&mode, "mode", "", "weighted_percentile or point_threshold (default from config)")
	cmd.Flags().StringVarP(&output, "output", "o", "json", "Output format: json or yaml")
	return cmd
}

func runEvaluate(ctx context.Context, cfg *config.Config, username, mode string) (rec repository.Record, err error) {
	if username == "" {
		return rec, errors.New("username must not be empty")
	}
	// Evaluate runs inline; the pool stays idle.
	cfg.WorkerCount = 1
	svc, err := buildService(ctx, cfg)
	if err != nil {
		return rec, err
	}
	if err := svc.Start(ctx); err != nil {
		return rec, err
	}
	defer func() { err = multierr.Append(err, svc.Stop()) }()

	m := svc.DefaultMode()
	if mode != "" {
		if m, err = scoring.ParseMode(mode); err != nil {
			return rec, err
		}
	}
	return svc.Evaluate(ctx, username, m)
}
