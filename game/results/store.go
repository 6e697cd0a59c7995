// Package results records summaries of finished games for the leaderboard.
package results

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

var ErrInvalidResult = errors.New("invalid result")

// Result summarises one finished game
type Result struct {
	ID         int64     `json:"id"`
	GameID     string    `json:"game_id"`
	SessionID  string    `json:"session_id"`
	ConfigName string    `json:"config_name"`
	Score      int       `json:"score"`
	MaxTile    int       `json:"max_tile"`
	Moves      int       `json:"moves"`
	FinishedAt time.Time `json:"finished_at"`
}

// Validate checks the fields a store relies on
func (r Result) Validate() error {
	if r.GameID == "" {
		return errors.Join(ErrInvalidResult, errors.New("game_id is required"))
	}
	if r.Score < 0 || r.MaxTile < 0 || r.Moves < 0 {
		return errors.Join(ErrInvalidResult, errors.New("score, max_tile and moves must not be negative"))
	}
	return nil
}

// Store keeps finished-game summaries for the leaderboard
type Store interface {
	Record(ctx context.Context, r Result) error
	Top(ctx context.Context, limit int) ([]Result, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

// DefaultTopLimit applies when Top is called with a non-positive limit
const DefaultTopLimit = 10

// MemoryStore is an in-process Store
type MemoryStore struct {
	mu      sync.RWMutex
	results []Result
	nextID  int64
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Record stores a result. Recording the same game twice is a no-op.
func (s *MemoryStore) Record(ctx context.Context, r Result) error {
	if err := r.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.results {
		if existing.GameID == r.GameID {
			return nil
		}
	}
	s.nextID++
	r.ID = s.nextID
	s.results = append(s.results, r)
	return nil
}

// Top returns the best results by score, ties broken by earlier finish
func (s *MemoryStore) Top(ctx context.Context, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = DefaultTopLimit
	}

	s.mu.RLock()
	sorted := make([]Result, len(s.results))
	copy(sorted, s.results)
	s.mu.RUnlock()

	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Score != sorted[j].Score {
			return sorted[i].Score > sorted[j].Score
		}
		return sorted[i].FinishedAt.Before(sorted[j].FinishedAt)
	})
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted, nil
}

// Count returns the number of stored results
func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.results), nil
}

// Close is a no-op
func (s *MemoryStore) Close() error {
	return nil
}
