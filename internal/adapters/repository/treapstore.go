package repository

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/okian/devrank/internal/domain/scoring"
	"github.com/okian/devrank/internal/domain/types"
	"github.com/okian/devrank/pkg/metrics"
)

// Treap-based, in-memory Store implementation.
//
// Ordering: score DESC, then developer id ASC (deterministic).
// "less" means ranks earlier, so in-order traversal yields the
// leaderboard from best to worst. Each node keeps its subtree size,
// which makes rank lookups O(log n).

type node struct {
	id    string
	score float64
	prio  uint64
	left  *node
	right *node
	size  int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less returns true if (aScore, aID) should appear before (bScore, bID).
func less(aScore float64, aID string, bScore float64, bID string) bool {
	if aScore != bScore {
		return aScore > bScore
	}
	return aID < bID
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	fix(x)
	fix(y)
	return y
}

func insert(n *node, id string, score float64, prio uint64) *node {
	if n == nil {
		return &node{id: id, score: score, prio: prio, size: 1}
	}
	if less(score, id, n.score, n.id) {
		n.left = insert(n.left, id, score, prio)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, id, score, prio)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, id string, score float64) *node {
	if n == nil {
		return nil
	}
	switch {
	case score == n.score && id == n.id:
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, id, score)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, id, score)
		}
	case less(score, id, n.score, n.id):
		n.left = deleteNode(n.left, id, score)
	default:
		n.right = deleteNode(n.right, id, score)
	}
	fix(n)
	return n
}

// countAbove returns how many nodes have a strictly higher score.
func countAbove(n *node, score float64) int {
	count := 0
	for n != nil {
		if n.score > score {
			count += nsize(n.left) + 1
			n = n.right
		} else {
			n = n.left
		}
	}
	return count
}

// collectTopN appends up to limit nodes in rank order.
func collectTopN(n *node, limit int, byID map[string]Record, out *[]types.Entry) {
	if n == nil || len(*out) >= limit {
		return
	}
	collectTopN(n.left, limit, byID, out)
	if len(*out) < limit {
		if rec, ok := byID[n.id]; ok {
			*out = append(*out, entryOf(rec))
		}
	}
	if len(*out) < limit {
		collectTopN(n.right, limit, byID, out)
	}
}

// TreapStore keeps one treap per scoring mode plus the records by id.
type TreapStore struct {
	mu    sync.RWMutex
	roots map[scoring.Mode]*node
	byID  map[string]Record
	now   func() time.Time
}

// NewTreapStore constructs a treap store with configuration options.
func NewTreapStore(opts ...Option) *TreapStore {
	o := applyOptions(opts)
	return &TreapStore{
		roots: make(map[scoring.Mode]*node),
		byID:  make(map[string]Record),
		now:   o.now,
	}
}

// Save implements Store.Save in O(log n) expected time.
func (s *TreapStore) Save(_ context.Context, rec Record) (bool, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreUpdateLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	rec, err := prepare(rec, s.now)
	if err != nil {
		metrics.RecordStoreError()
		return false, err
	}
	score := rec.Result.RankValue()
	mode := rec.Result.Mode

	s.mu.Lock()
	if old, ok := s.byID[rec.DeveloperID]; ok {
		oldMode := old.Result.Mode
		s.roots[oldMode] = deleteNode(s.roots[oldMode], old.DeveloperID, old.Result.RankValue())
	}
	s.byID[rec.DeveloperID] = rec
	s.roots[mode] = insert(s.roots[mode], rec.DeveloperID, score, rand.Uint64()) //nolint:gosec // treap priority, not security sensitive
	count := len(s.byID)
	s.mu.Unlock()

	metrics.RecordStoreSave()
	metrics.UpdateStoreRecords(count)
	return true, nil
}

// Get implements Store.Get.
func (s *TreapStore) Get(_ context.Context, id string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byID[NormalizeID(id)]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

// Rank returns the current rank and score for a developer in O(log n).
func (s *TreapStore) Rank(_ context.Context, id string) (types.Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreQueryLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.byID[NormalizeID(id)]
	if !ok {
		metrics.RecordErrorByComponent("repository", "not_found")
		return types.Entry{}, ErrNotFound
	}
	e := entryOf(rec)
	e.Rank = countAbove(s.roots[rec.Result.Mode], e.Score) + 1
	return e, nil
}

// TopN returns the top n entries of mode ordered by score desc.
func (s *TreapStore) TopN(_ context.Context, mode scoring.Mode, n int) ([]types.Entry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreQueryLatency(float64(time.Since(start).Microseconds()) / 1000)
	}()

	if n < 1 {
		metrics.RecordErrorByComponent("repository", "invalid_limit")
		return nil, ErrInvalidLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	root := s.roots[mode]
	out := make([]types.Entry, 0, min(n, nsize(root)))
	collectTopN(root, n, s.byID, &out)
	assignCompetitionRanks(out)
	return out, nil
}

// Count returns the total number of developers.
func (s *TreapStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// Close releases nothing; the store lives in memory.
func (s *TreapStore) Close() error {
	return nil
}

var _ Store = (*TreapStore)(nil)
