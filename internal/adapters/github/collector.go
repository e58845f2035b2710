package github

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/okian/devrank/internal/domain/scoring"
	"github.com/okian/devrank/internal/domain/techstack"
	"github.com/okian/devrank/pkg/logger"
	"github.com/okian/devrank/pkg/metrics"
)

// API is the part of Client the collector depends on.
type API interface {
	GetUser(ctx context.Context, username string) (*User, error)
	ListRepos(ctx context.Context, username string) ([]Repo, error)
	CountCommits(ctx context.Context, owner, repo, author string) (int64, error)
	ListPulls(ctx context.Context, owner, repo string) ([]Pull, error)
	CountIssues(ctx context.Context, owner, repo string) (int64, error)
	CountReviews(ctx context.Context, owner, repo string, number int) (int64, error)
	CountContributors(ctx context.Context, owner, repo string) (int64, error)
	HasReadme(ctx context.Context, owner, repo string) (bool, error)
	Languages(ctx context.Context, owner, repo string) (map[string]int64, error)
}

// Profile is everything collected for one developer.
type Profile struct {
	Username  string                    `json:"username"`
	Metrics   scoring.MetricsInput      `json:"metrics"`
	Repos     []scoring.RepoSignal      `json:"repos"`
	Languages []techstack.LanguageShare `json:"languages"`
	// ContributionDegree is the developer's commits per kilobyte of owned code, times ten.
	ContributionDegree float64   `json:"contribution_degree"`
	FetchedAt          time.Time `json:"fetched_at"`
}

const (
	defaultConcurrency = 5
	defaultCacheSize   = 256
	defaultCacheTTL    = 10 * time.Minute
	contributionScale  = 10
)

// Collector aggregates a developer's GitHub activity into a Profile.
type Collector struct {
	api         API
	concurrency int
	cacheSize   int
	cacheTTL    time.Duration
	cache       *expirable.LRU[string, *Profile]
	now         func() time.Time
	log         logger.Logger
}

// NewCollector creates a collector with configuration options.
func NewCollector(api API, opts ...CollectorOption) *Collector {
	c := &Collector{
		api:         api,
		concurrency: defaultConcurrency,
		cacheSize:   defaultCacheSize,
		cacheTTL:    defaultCacheTTL,
		now:         time.Now,
		log:         logger.GetOrNop().Named("collector"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.cacheSize > 0 {
		c.cache = expirable.NewLRU[string, *Profile](c.cacheSize, nil, c.cacheTTL)
	}
	return c
}

type repoStats struct {
	signal    scoring.RepoSignal
	pulls     int64
	issues    int64
	reviews   int64
	languages map[string]int64
	// langErr does not fail the profile.
	langErr error
}

// Collect fetches and aggregates username's activity. Cached profiles are
// returned until they expire.
func (c *Collector) Collect(ctx context.Context, username string) (*Profile, error) {
	if username == "" {
		return nil, ErrEmptyUser
	}
	key := strings.ToLower(username)
	if c.cache != nil {
		if p, ok := c.cache.Get(key); ok {
			metrics.RecordCollectorCache("hit")
			return p, nil
		}
		metrics.RecordCollectorCache("miss")
	}

	user, err := c.api.GetUser(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("fetch user %s: %w", username, err)
	}
	repos, err := c.api.ListRepos(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("list repos of %s: %w", username, err)
	}

	stats := make([]repoStats, len(repos))
	var (
		langMu   sync.Mutex
		langErrs error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, r := range repos {
		g.Go(func() error {
			s, err := c.collectRepo(gctx, username, r)
			if err != nil {
				return fmt.Errorf("repo %s: %w", r.Name, err)
			}
			if s.langErr != nil {
				langMu.Lock()
				langErrs = multierr.Append(langErrs, fmt.Errorf("languages of %s: %w", r.Name, s.langErr))
				langMu.Unlock()
			}
			stats[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if langErrs != nil {
		c.log.Warn(ctx, "language breakdown incomplete",
			logger.String("username", username),
			logger.Int("failures", len(multierr.Errors(langErrs))),
			logger.Error(langErrs))
	}

	p := aggregate(username, user, repos, stats)
	p.FetchedAt = c.now()
	if c.cache != nil {
		c.cache.Add(key, p)
	}
	c.log.Debug(ctx, "profile collected",
		logger.String("username", username),
		logger.Int("repos", len(repos)),
		logger.Int64("commits", p.Metrics.Commits))
	return p, nil
}

// Invalidate drops a cached profile.
func (c *Collector) Invalidate(username string) {
	if c.cache != nil {
		c.cache.Remove(strings.ToLower(username))
	}
}

// collectRepo gathers one repository. A language failure is kept in
// langErr since it does not affect the score.
func (c *Collector) collectRepo(ctx context.Context, username string, r Repo) (repoStats, error) {
	owner := r.Owner.Login
	if owner == "" {
		owner = username
	}
	s := repoStats{signal: scoring.RepoSignal{Name: r.Name}}

	var err error
	if s.signal.Commits, err = c.api.CountCommits(ctx, owner, r.Name, username); err != nil {
		return s, err
	}
	pulls, err := c.api.ListPulls(ctx, owner, r.Name)
	if err != nil {
		return s, err
	}
	s.pulls = int64(len(pulls))
	for _, pr := range pulls {
		n, err := c.api.CountReviews(ctx, owner, r.Name, pr.Number)
		if err != nil {
			return s, err
		}
		s.reviews += n
	}
	if s.issues, err = c.api.CountIssues(ctx, owner, r.Name); err != nil {
		return s, err
	}
	if s.signal.Contributors, err = c.api.CountContributors(ctx, owner, r.Name); err != nil {
		return s, err
	}
	if s.signal.HasReadme, err = c.api.HasReadme(ctx, owner, r.Name); err != nil {
		return s, err
	}

	langs, langErr := c.api.Languages(ctx, owner, r.Name)
	if langErr != nil && ctx.Err() != nil {
		return s, langErr
	}
	s.languages, s.langErr = langs, langErr
	return s, nil
}

func aggregate(username string, user *User, repos []Repo, stats []repoStats) *Profile {
	p := &Profile{
		Username: username,
		Metrics:  scoring.MetricsInput{Username: username, Followers: user.Followers},
		Repos:    make([]scoring.RepoSignal, 0, len(stats)),
	}

	var size int64
	langs := make([]map[string]int64, 0, len(stats))
	for i, s := range stats {
		p.Metrics.Commits += s.signal.Commits
		p.Metrics.Pulls += s.pulls
		p.Metrics.Issues += s.issues
		p.Metrics.Reviews += s.reviews
		p.Metrics.Stars += repos[i].StargazersCount
		p.Metrics.Forks += repos[i].ForksCount
		size += repos[i].Size
		p.Repos = append(p.Repos, s.signal)
		if len(s.languages) > 0 {
			langs = append(langs, s.languages)
		}
	}
	if size > 0 {
		p.ContributionDegree = float64(p.Metrics.Commits) / float64(size) * contributionScale
	}
	p.Languages = techstack.Breakdown(langs)
	return p
}
