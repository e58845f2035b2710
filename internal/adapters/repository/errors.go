package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound      = errors.New("developer not found")
	ErrInvalidLimit  = errors.New("invalid leaderboard limit")
	ErrInvalidRecord = errors.New("record has no developer id")
)
