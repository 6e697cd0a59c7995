package results

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newResult(gameID string, score int, finished time.Time) Result {
	return Result{
		GameID:     gameID,
		SessionID:  "ab12",
		ConfigName: "classic",
		Score:      score,
		MaxTile:    256,
		Moves:      120,
		FinishedAt: finished,
	}
}

// storeFactories runs every behaviour test against each Store implementation
func storeFactories() map[string]func(t *testing.T) Store {
	return map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store { return NewMemoryStore() },
		"sqlite": func(t *testing.T) Store {
			s, err := OpenSQLite(filepath.Join(t.TempDir(), "data", "results.db"))
			require.NoError(t, err)
			t.Cleanup(func() { s.Close() })
			return s
		},
	}
}

func TestStore_RecordAndTop(t *testing.T) {
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := factory(t)

			require.NoError(t, s.Record(ctx, newResult("g1", 1200, base)))
			require.NoError(t, s.Record(ctx, newResult("g2", 3400, base.Add(time.Minute))))
			require.NoError(t, s.Record(ctx, newResult("g3", 1200, base.Add(-time.Minute))))
			require.NoError(t, s.Record(ctx, newResult("g4", 80, base)))

			top, err := s.Top(ctx, 3)
			require.NoError(t, err)
			require.Len(t, top, 3)

			assert.Equal(t, "g2", top[0].GameID)
			assert.Equal(t, "g3", top[1].GameID) // equal score, finished earlier
			assert.Equal(t, "g1", top[2].GameID)
			assert.Equal(t, 256, top[0].MaxTile)
			assert.Equal(t, 120, top[0].Moves)
			assert.Equal(t, "classic", top[0].ConfigName)
			assert.True(t, top[0].FinishedAt.Equal(base.Add(time.Minute)))
			assert.NotZero(t, top[0].ID)

			n, err := s.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, 4, n)
		})
	}
}

func TestStore_DuplicateGameIgnored(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := factory(t)

			require.NoError(t, s.Record(ctx, newResult("same", 100, time.Now())))
			require.NoError(t, s.Record(ctx, newResult("same", 999, time.Now())))

			n, err := s.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, n)

			top, err := s.Top(ctx, 0)
			require.NoError(t, err)
			require.Len(t, top, 1)
			assert.Equal(t, 100, top[0].Score)
		})
	}
}

func TestStore_RejectsInvalidResults(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := factory(t)

			assert.ErrorIs(t, s.Record(ctx, newResult("", 10, time.Now())), ErrInvalidResult)
			assert.ErrorIs(t, s.Record(ctx, newResult("neg", -1, time.Now())), ErrInvalidResult)

			n, err := s.Count(ctx)
			require.NoError(t, err)
			assert.Zero(t, n)
		})
	}
}

func TestStore_TopDefaultLimit(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := factory(t)

			for i := 0; i < DefaultTopLimit+5; i++ {
				require.NoError(t, s.Record(ctx, newResult(fmt.Sprintf("g%d", i), i*4, time.Now())))
			}

			top, err := s.Top(ctx, -1)
			require.NoError(t, err)
			assert.Len(t, top, DefaultTopLimit)
			assert.Equal(t, (DefaultTopLimit+4)*4, top[0].Score)
		})
	}
}

func TestStore_ConcurrentRecord(t *testing.T) {
	for name, factory := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := factory(t)

			var wg sync.WaitGroup
			for i := 0; i < 25; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					assert.NoError(t, s.Record(ctx, newResult(fmt.Sprintf("c%d", i), i, time.Now())))
				}(i)
			}
			wg.Wait()

			n, err := s.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, 25, n)
		})
	}
}

func TestOpenSQLite_Reopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "results.db")

	s, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, s.Record(ctx, newResult("persisted", 512, time.Now())))
	require.NoError(t, s.Close())

	reopened, err := OpenSQLite(path)
	require.NoError(t, err)
	defer reopened.Close()

	top, err := reopened.Top(ctx, 5)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "persisted", top[0].GameID)
}

func TestOpenSQLite_Memory(t *testing.T) {
	s, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Record(context.Background(), newResult("m", 4, time.Now())))
	n, err := s.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
