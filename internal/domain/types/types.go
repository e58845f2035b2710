// Package types contains common types used across the application
package types

// Entry represents a leaderboard row. Score is the value the board is
// ordered by: raw percentile in weighted mode, points in point mode.
type Entry struct {
	Rank          int     `json:"rank" yaml:"rank"`
	DeveloperID   string  `json:"developer_id" yaml:"developer_id"`
	Score         float64 `json:"score" yaml:"score"`
	Grade         string  `json:"grade" yaml:"grade"`
	SmoothedScore float64 `json:"smoothed_score,omitempty" yaml:"smoothed_score,omitempty"`
	Mode          string  `json:"mode" yaml:"mode"`
}
