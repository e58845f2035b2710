// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers a YAML file and environment variables on top of New().
// - Errors returned to callers wrap ErrInvalidConfig or ErrLoadConfig.
package config

import (
	"fmt"
	"runtime"
	"sort"
	"strings"
	"time"

	"github.com/okian/devrank/internal/adapters/repository"
	"github.com/okian/devrank/internal/domain/scoring"
)

// Storage drivers.
const (
	DriverMemory = "memory"
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the in-memory evaluation queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of evaluation workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets the size of the request-id deduplication cache.
	DedupeSize int `koanf:"dedupe_size"`

	// MaxLeaderboardLimit caps GET /leaderboard?limit.
	MaxLeaderboardLimit int `koanf:"max_leaderboard_limit"`

	// ShutdownTimeout bounds graceful shutdown of the HTTP server and workers.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	Scoring ScoringConfig `koanf:"scoring"`
	GitHub  GitHubConfig  `koanf:"github"`
	Storage StorageConfig `koanf:"storage"`
	Kafka   KafkaConfig   `koanf:"kafka"`
}

// ScoringConfig overrides the built-in scoring tables. Zero values keep the defaults.
type ScoringConfig struct {
	DefaultMode     string  `koanf:"default_mode"`
	SmoothingFactor float64 `koanf:"smoothing_factor"`
	ScoreDivisor    float64 `koanf:"score_divisor"`

	// Weights is keyed by metric name. A missing weight or median keeps its default.
	Weights map[string]WeightOverride `koanf:"weights"`

	// Grades and PointGrades replace the default tables when non-empty.
	Grades      []GradeEntry      `koanf:"grades"`
	PointGrades []PointGradeEntry `koanf:"point_grades"`
	PointFloor  string            `koanf:"point_floor"`
}

// WeightOverride sets the weight and/or median of one metric.
type WeightOverride struct {
	Weight *float64 `koanf:"weight"`
	Median *float64 `koanf:"median"`
}

// GradeEntry is one row of the percentile grade table.
type GradeEntry struct {
	Threshold float64 `koanf:"threshold"`
	Label     string  `koanf:"label"`
}

// PointGradeEntry is one row of the point grade table.
type PointGradeEntry struct {
	Min   int64  `koanf:"min"`
	Label string `koanf:"label"`
}

// GitHubConfig controls the upstream activity fetch.
type GitHubConfig struct {
	BaseURL       string        `koanf:"base_url"`
	Token         string        `koanf:"token"`
	Timeout       time.Duration `koanf:"timeout"`
	RetryAttempts int           `koanf:"retry_attempts"`
	RetryDelay    time.Duration `koanf:"retry_delay"`
	// RateLimit is requests per second; 0 disables client-side limiting.
	RateLimit   int           `koanf:"rate_limit"`
	PerPage     int           `koanf:"per_page"`
	MaxPages    int           `koanf:"max_pages"`
	Concurrency int           `koanf:"concurrency"`
	CacheSize   int           `koanf:"cache_size"`
	CacheTTL    time.Duration `koanf:"cache_ttl"`
}

// StorageConfig selects and tunes the record store.
type StorageConfig struct {
	Driver       string        `koanf:"driver"`
	SQLitePath   string        `koanf:"sqlite_path"`
	MySQL        MySQLConfig   `koanf:"mysql"`
	MaxOpenConns int           `koanf:"max_open_conns"`
	MaxIdleConns int           `koanf:"max_idle_conns"`
	ConnMaxLife  time.Duration `koanf:"conn_max_life"`
	AutoMigrate  bool          `koanf:"auto_migrate"`
}

// MySQLConfig holds the MySQL connection fields.
type MySQLConfig struct {
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	Database string `koanf:"database"`
}

// KafkaConfig enables score notifications when Brokers is non-empty.
type KafkaConfig struct {
	Brokers []string `koanf:"brokers"`
	Topic   string   `koanf:"topic"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		LogFormat:           "text",
		Addr:                ":9080",
		QueueSize:           10_000,
		WorkerCount:         runtime.NumCPU(),
		DedupeSize:          50_000,
		MaxLeaderboardLimit: 100,
		ShutdownTimeout:     15 * time.Second,
		Scoring: ScoringConfig{
			DefaultMode: string(scoring.ModeWeightedPercentile),
			Weights:     map[string]WeightOverride{},
		},
		GitHub: GitHubConfig{
			BaseURL:       "https://api.github.com",
			Timeout:       30 * time.Second,
			RetryAttempts: 3,
			RetryDelay:    time.Second,
			RateLimit:     10,
			PerPage:       100,
			MaxPages:      10,
			Concurrency:   5,
			CacheSize:     256,
			CacheTTL:      10 * time.Minute,
		},
		Storage: StorageConfig{
			Driver:       DriverMemory,
			SQLitePath:   "devrank.db",
			MySQL:        MySQLConfig{Host: "127.0.0.1", Port: 3306, User: "devrank", Database: "devrank"},
			MaxOpenConns: 10,
			MaxIdleConns: 5,
			ConnMaxLife:  time.Hour,
			AutoMigrate:  true,
		},
		Kafka: KafkaConfig{Topic: "devrank.scores"},
	}
}

// WeightConfig merges the scoring overrides into the default tables and
// validates the result.
func (c *Config) WeightConfig() (scoring.WeightConfig, error) {
	wc := scoring.DefaultWeightConfig()
	s := c.Scoring

	if s.DefaultMode != "" {
		m, err := scoring.ParseMode(s.DefaultMode)
		if err != nil {
			return wc, fmt.Errorf("%w: scoring.default_mode: %w", ErrInvalidConfig, err)
		}
		wc.DefaultMode = m
	}
	if s.SmoothingFactor != 0 {
		wc.SmoothingFactor = s.SmoothingFactor
	}
	if s.ScoreDivisor != 0 {
		wc.ScoreDivisor = s.ScoreDivisor
	}

	// Sorted so that an unknown-metric error is deterministic.
	names := make([]string, 0, len(s.Weights))
	for name := range s.Weights {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		o := s.Weights[name]
		m := scoring.Metric(strings.ToLower(name))
		w, ok := wc.Weights[m]
		if !ok {
			return wc, fmt.Errorf("%w: scoring.weights: unknown metric %q", ErrInvalidConfig, name)
		}
		if o.Weight != nil {
			w.Weight = *o.Weight
		}
		if o.Median != nil {
			w.Median = *o.Median
		}
		wc.Weights[m] = w
	}

	if len(s.Grades) > 0 {
		wc.Grades = make([]scoring.GradeThreshold, len(s.Grades))
		for i, g := range s.Grades {
			wc.Grades[i] = scoring.GradeThreshold{Threshold: g.Threshold, Label: g.Label}
		}
	}
	if len(s.PointGrades) > 0 {
		wc.PointGrades = make([]scoring.PointGrade, len(s.PointGrades))
		for i, g := range s.PointGrades {
			wc.PointGrades[i] = scoring.PointGrade{Min: g.Min, Label: g.Label}
		}
	}
	if s.PointFloor != "" {
		wc.PointFloor = s.PointFloor
	}

	if err := wc.Validate(); err != nil {
		return wc, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return wc, nil
}

// MySQLConn converts the mysql section to the repository's connection config.
func (s StorageConfig) MySQLConn() repository.MySQLConfig {
	return repository.MySQLConfig{
		Host:     s.MySQL.Host,
		Port:     s.MySQL.Port,
		User:     s.MySQL.User,
		Password: s.MySQL.Password,
		Database: s.MySQL.Database,
	}
}

// Validate checks invariants Load cannot express through defaults.
func (c *Config) Validate() error {
	switch {
	case strings.TrimSpace(c.Addr) == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.QueueSize < 1:
		return fmt.Errorf("%w: queue_size must be positive", ErrInvalidConfig)
	case c.MaxLeaderboardLimit < 1:
		return fmt.Errorf("%w: max_leaderboard_limit must be positive", ErrInvalidConfig)
	}
	switch c.Storage.Driver {
	case DriverMemory, DriverSQLite, DriverMySQL:
	default:
		return fmt.Errorf("%w: unknown storage.driver %q", ErrInvalidConfig, c.Storage.Driver)
	}
	if c.Storage.Driver == DriverSQLite && c.Storage.SQLitePath == "" {
		return fmt.Errorf("%w: storage.sqlite_path must not be empty", ErrInvalidConfig)
	}
	_, err := c.WeightConfig()
	return err
}
