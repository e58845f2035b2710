package repository

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/okian/devrank/internal/domain/scoring"
	"github.com/okian/devrank/internal/domain/types"
)

// developerRow is the flattened relational form of a Record, shared by the
// SQL and gorm stores. Nested values are stored as JSON text.
type developerRow struct {
	DeveloperID        string    `db:"developer_id" gorm:"column:developer_id;primaryKey;size:64"`
	Username           string    `db:"username" gorm:"column:username;size:64;not null"`
	Mode               string    `db:"mode" gorm:"column:mode;size:32;not null;index:idx_developers_board,priority:1"`
	RankValue          float64   `db:"rank_value" gorm:"column:rank_value;not null;index:idx_developers_board,priority:2,sort:desc"`
	RawRatio           float64   `db:"raw_ratio" gorm:"column:raw_ratio"`
	RawPercentile      float64   `db:"raw_percentile" gorm:"column:raw_percentile"`
	SmoothedScore      float64   `db:"smoothed_score" gorm:"column:smoothed_score"`
	Grade              string    `db:"grade" gorm:"column:grade;size:8;not null"`
	Points             int64     `db:"points" gorm:"column:points"`
	Metrics            string    `db:"metrics" gorm:"column:metrics;type:text"`
	Languages          string    `db:"languages" gorm:"column:languages;type:text"`
	Stacks             string    `db:"stacks" gorm:"column:stacks;type:text"`
	ContributionDegree float64   `db:"contribution_degree" gorm:"column:contribution_degree"`
	UpdatedAt          time.Time `db:"updated_at" gorm:"column:updated_at;not null"`
}

// TableName pins the gorm table name.
func (developerRow) TableName() string { return "developers" }

func toRow(rec Record) (developerRow, error) {
	m, err := json.Marshal(rec.Metrics)
	if err != nil {
		return developerRow{}, fmt.Errorf("encode metrics: %w", err)
	}
	langs, err := json.Marshal(nonNil(rec.Languages))
	if err != nil {
		return developerRow{}, fmt.Errorf("encode languages: %w", err)
	}
	stacks, err := json.Marshal(nonNil(rec.Stacks))
	if err != nil {
		return developerRow{}, fmt.Errorf("encode stacks: %w", err)
	}
	return developerRow{
		DeveloperID:        rec.DeveloperID,
		Username:           rec.Result.Username,
		Mode:               string(rec.Result.Mode),
		RankValue:          rec.Result.RankValue(),
		RawRatio:           rec.Result.RawRatio,
		RawPercentile:      rec.Result.RawPercentile,
		SmoothedScore:      rec.Result.SmoothedScore,
		Grade:              rec.Result.Grade,
		Points:             rec.Result.Points,
		Metrics:            string(m),
		Languages:          string(langs),
		Stacks:             string(stacks),
		ContributionDegree: rec.ContributionDegree,
		UpdatedAt:          rec.UpdatedAt.UTC(),
	}, nil
}

func (r developerRow) record() (Record, error) {
	rec := Record{
		DeveloperID: r.DeveloperID,
		Result: scoring.ScoreResult{
			Username:      r.Username,
			Mode:          scoring.Mode(r.Mode),
			RawRatio:      r.RawRatio,
			RawPercentile: r.RawPercentile,
			SmoothedScore: r.SmoothedScore,
			Grade:         r.Grade,
			Points:        r.Points,
		},
		ContributionDegree: r.ContributionDegree,
		UpdatedAt:          r.UpdatedAt.UTC(),
	}
	if err := decodeJSON(r.Metrics, &rec.Metrics); err != nil {
		return Record{}, fmt.Errorf("decode metrics of %s: %w", r.DeveloperID, err)
	}
	if err := decodeJSON(r.Languages, &rec.Languages); err != nil {
		return Record{}, fmt.Errorf("decode languages of %s: %w", r.DeveloperID, err)
	}
	if err := decodeJSON(r.Stacks, &rec.Stacks); err != nil {
		return Record{}, fmt.Errorf("decode stacks of %s: %w", r.DeveloperID, err)
	}
	return rec, nil
}

func (r developerRow) entry() types.Entry {
	return types.Entry{
		DeveloperID:   r.DeveloperID,
		Score:         r.RankValue,
		Grade:         r.Grade,
		SmoothedScore: r.SmoothedScore,
		Mode:          r.Mode,
	}
}

func decodeJSON(s string, v any) error {
	if s == "" {
		return nil
	}
	return json.Unmarshal([]byte(s), v)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
