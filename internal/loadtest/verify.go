package loadtest

import (
	"fmt"

	"github.com/okian/devrank/internal/domain/scoring"
	"github.com/okian/devrank/internal/domain/types"
)

// verify checks each leaderboard is ordered with competition ranks, that
// its top score bounds every retrieved rank of the same mode, and that rank
// lookups agree with the board for developers on it.
func verify(ranks []types.Entry, boards map[scoring.Mode][]types.Entry) error {
	byID := make(map[string]types.Entry, len(ranks))
	best := map[string]float64{}
	for _, e := range ranks {
		byID[e.DeveloperID] = e
		if s, ok := best[e.Mode]; !ok || e.Score > s {
			best[e.Mode] = e.Score
		}
	}

	for mode, board := range boards {
		if err := checkOrder(board); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInconsistent, mode, err)
		}
		if s, ok := best[string(mode)]; ok {
			if len(board) == 0 {
				return fmt.Errorf("%w: %s: empty leaderboard with ranked developers", ErrInconsistent, mode)
			}
			if board[0].Score < s {
				return fmt.Errorf("%w: %s: top score %.3f below ranked score %.3f", ErrInconsistent, mode, board[0].Score, s)
			}
		}
		for _, e := range board {
			r, ok := byID[e.DeveloperID]
			if !ok {
				continue
			}
			if r.Rank != e.Rank || r.Score != e.Score {
				return fmt.Errorf("%w: %s: %s is #%d (%.3f) on the board but #%d (%.3f) by lookup",
					ErrInconsistent, mode, e.DeveloperID, e.Rank, e.Score, r.Rank, r.Score)
			}
		}
	}
	return nil
}

func checkOrder(board []types.Entry) error {
	for i, e := range board {
		want := i + 1
		if i > 0 {
			prev := board[i-1]
			if e.Score > prev.Score {
				return fmt.Errorf("entry %d scores above entry %d", i, i-1)
			}
			if e.Score == prev.Score {
				want = prev.Rank
			}
		}
		if e.Rank != want {
			return fmt.Errorf("entry %d (%s) has rank %d, want %d", i, e.DeveloperID, e.Rank, want)
		}
	}
	return nil
}
