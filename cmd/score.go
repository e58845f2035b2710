package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/okian/devrank/internal/config"
	"github.com/okian/devrank/internal/domain/scoring"
)

type scoreOpts struct {
	in       scoring.MetricsInput
	mode     string
	previous float64
	repos    []string
	output   string
}

func newScoreCmd() *cobra.Command {
	var opts scoreOpts
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score supplied activity counts without contacting GitHub",
		Example: `  devrank score --commits 1200 --pulls 40 --stars 300
  devrank score --mode point_threshold --repo DevRank:3:true:12 --repo tools:1:false:4`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("previous") {
				p := opts.previous
				opts.in.PreviousScore = &p
			}
			res, err := runScore(cfg, opts)
			if err != nil {
				return err
			}
			return writeOutput(cmd.OutOrStdout(), opts.output, res)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.in.Username, "username", "", "Username echoed in the result")
	f.Int64Var(&opts.in.Commits, "commits", 0, "Commit count")
	f.Int64Var(&opts.in.Pulls, "pulls", 0, "Pull request count")
	f.Int64Var(&opts.in.Issues, "issues", 0, "Issue count")
	f.Int64Var(&opts.in.Reviews, "reviews", 0, "Review count")
	f.Int64Var(&opts.in.Stars, "stars", 0, "Stargazer count")
	f.Int64Var(&opts.in.Followers, "followers", 0, "Follower count")
	f.Float64Var(&opts.previous, "previous", 0, "Previous smoothed score in [0,10]")
	f.StringVar(&opts.mode, "mode", "", "weighted_percentile or point_threshold (default from config)")
	f.StringArrayVar(&opts.repos, "repo", nil, "Repository signal name:contributors:readme:commits (point mode)")
	f.StringVarP(&opts.output, "output", "o", "json", "Output format: json or yaml")
	return cmd
}

func runScore(cfg *config.Config, opts scoreOpts) (scoring.ScoreResult, error) {
	weights, err := cfg.WeightConfig()
	if err != nil {
		return scoring.ScoreResult{}, err
	}
	engine, err := scoring.NewEngine(weights)
	if err != nil {
		return scoring.ScoreResult{}, err
	}

	mode := engine.DefaultMode()
	if opts.mode != "" {
		if mode, err = scoring.ParseMode(opts.mode); err != nil {
			return scoring.ScoreResult{}, err
		}
	}

	repos := make([]scoring.RepoSignal, 0, len(opts.repos))
	for _, s := range opts.repos {
		r, err := parseRepoSignal(s)
		if err != nil {
			return scoring.ScoreResult{}, err
		}
		repos = append(repos, r)
	}
	return engine.Evaluate(mode, opts.in, repos)
}

// parseRepoSignal reads name[:contributors[:readme[:commits]]].
func parseRepoSignal(s string) (scoring.RepoSignal, error) {
	parts := strings.Split(s, ":")
	r := scoring.RepoSignal{Name: parts[0]}
	if r.Name == "" {
		return r, fmt.Errorf("repo %q: empty name", s)
	}
	var err error
	if len(parts) > 1 {
		if r.Contributors, err = strconv.ParseInt(parts[1], 10, 64); err != nil {
			return r, fmt.Errorf("repo %q: contributors: %w", s, err)
		}
	}
	if len(parts) > 2 {
		if r.HasReadme, err = strconv.ParseBool(parts[2]); err != nil {
			return r, fmt.Errorf("repo %q: readme: %w", s, err)
		}
	}
	if len(parts) > 3 {
		if r.Commits, err = strconv.ParseInt(parts[3], 10, 64); err != nil {
			return r, fmt.Errorf("repo %q: commits: %w", s, err)
		}
	}
	if len(parts) > 4 {
		return r, fmt.Errorf("repo %q: too many fields", s)
	}
	return r, nil
}
