// Package repository persists score records keyed by developer id and
// answers leaderboard queries.
package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/okian/devrank/internal/domain/scoring"
	"github.com/okian/devrank/internal/domain/techstack"
	"github.com/okian/devrank/internal/domain/types"
)

// Record is what the store keeps per developer. Saving replaces it.
type Record struct {
	DeveloperID        string                    `json:"developer_id" yaml:"developer_id"`
	Result             scoring.ScoreResult       `json:"result" yaml:"result"`
	Metrics            scoring.MetricsInput      `json:"metrics" yaml:"metrics"`
	Languages          []techstack.LanguageShare `json:"languages,omitempty" yaml:"languages,omitempty"`
	Stacks             []techstack.Stack         `json:"stacks,omitempty" yaml:"stacks,omitempty"`
	ContributionDegree float64                   `json:"contribution_degree" yaml:"contribution_degree"`
	UpdatedAt          time.Time                 `json:"updated_at" yaml:"updated_at"`
}

// Store provides read/write access to score records and their ranking.
// Rankings are per mode; a developer appears only under the mode of its
// latest record.
type Store interface {
	// Save upserts rec by developer id (last write wins). Returns true when stored.
	Save(ctx context.Context, rec Record) (bool, error)
	// Get returns the record for id or ErrNotFound.
	Get(ctx context.Context, id string) (Record, error)
	// Rank returns the leaderboard entry of id within its own mode.
	Rank(ctx context.Context, id string) (types.Entry, error)
	// TopN returns the n best entries of mode, best first.
	TopN(ctx context.Context, mode scoring.Mode, n int) ([]types.Entry, error)
	// Count returns the number of developers stored.
	Count(ctx context.Context) int
	Close() error
}

// NormalizeID maps GitHub logins, which are case-insensitive, to one key.
func NormalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// Getter reads one record.
type Getter interface {
	Get(ctx context.Context, id string) (Record, error)
}

// PreviousScore returns the smoothed score stored for id in weighted
// percentile mode, or nil when there is none. Lookup errors other than
// ErrNotFound are returned.
func PreviousScore(ctx context.Context, g Getter, id string) (*float64, error) {
	rec, err := g.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if rec.Result.Mode != scoring.ModeWeightedPercentile {
		return nil, nil
	}
	prev := rec.Result.SmoothedScore
	return &prev, nil
}

func prepare(rec Record, now func() time.Time) (Record, error) {
	rec.DeveloperID = NormalizeID(rec.DeveloperID)
	if rec.DeveloperID == "" {
		return rec, ErrInvalidRecord
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = now().UTC()
	}
	return rec, nil
}

func entryOf(rec Record) types.Entry {
	return types.Entry{
		DeveloperID:   rec.DeveloperID,
		Score:         rec.Result.RankValue(),
		Grade:         rec.Result.Grade,
		SmoothedScore: rec.Result.SmoothedScore,
		Mode:          string(rec.Result.Mode),
	}
}

// assignCompetitionRanks ranks entries already sorted best first, starting
// at position 1. Equal scores share a rank and the next rank skips (1,1,3).
func assignCompetitionRanks(entries []types.Entry) {
	for i := range entries {
		if i > 0 && entries[i].Score == entries[i-1].Score {
			entries[i].Rank = entries[i-1].Rank
			continue
		}
		entries[i].Rank = i + 1
	}
}
