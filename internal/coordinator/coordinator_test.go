package coordinator

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thrr87/hoard/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "hoard.db"), 5000, 4)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func runCoordinator(t *testing.T, c *Coordinator) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go c.Run(ctx)
	return cancel
}

func TestSubmit_RunsAndCommits(t *testing.T) {
	s := newTestStore(t)
	c := New(s)
	cancel := runCoordinator(t, c)
	defer cancel()

	result, err := c.Submit(context.Background(), func(ctx context.Context, tx *sql.Tx) (any, error) {
		require.NoError(t, store.PutMemory(ctx, tx, store.Memory{ID: "mem-1", Scope: "s", Slot: "slot", OwnerAgent: "a", Content: "v1"}))
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", result)

	got, err := store.GetMemory(context.Background(), s.Reader(), "mem-1")
	require.NoError(t, err)
	assert.Equal(t, "v1", got.Content)
}

func TestSubmit_RollsBackOnError(t *testing.T) {
	s := newTestStore(t)
	c := New(s)
	cancel := runCoordinator(t, c)
	defer cancel()

	boom := errors.New("boom")
	_, err := c.Submit(context.Background(), func(ctx context.Context, tx *sql.Tx) (any, error) {
		require.NoError(t, store.PutMemory(ctx, tx, store.Memory{ID: "mem-1", Scope: "s", Slot: "slot", OwnerAgent: "a", Content: "v1"}))
		return nil, boom
	})
	require.ErrorIs(t, err, boom)

	_, err = store.GetMemory(context.Background(), s.Reader(), "mem-1")
	require.Error(t, err, "rolled-back write must not be visible")
}

func TestSubmit_ReentrantFastPath(t *testing.T) {
	s := newTestStore(t)
	c := New(s)
	cancel := runCoordinator(t, c)
	defer cancel()

	inner := func(ctx context.Context, tx *sql.Tx) (any, error) {
		return "inner", nil
	}

	result, err := c.Submit(context.Background(), func(ctx context.Context, tx *sql.Tx) (any, error) {
		// A handler calling another handler's Submit from inside its own
		// TxFunc must not deadlock against the single Run goroutine.
		return c.Submit(ctx, inner)
	})
	require.NoError(t, err)
	assert.Equal(t, "inner", result)
}

// TestSubmit_SerializesWriters exercises the single-writer invariant: many
// concurrent submitters never see an in-flight overlap on the write path.
func TestSubmit_SerializesWriters(t *testing.T) {
	s := newTestStore(t)
	c := New(s)
	cancel := runCoordinator(t, c)
	defer cancel()

	var active int32
	var sawOverlap int32
	var wg sync.WaitGroup

	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := c.Submit(context.Background(), func(ctx context.Context, tx *sql.Tx) (any, error) {
				if atomic.AddInt32(&active, 1) > 1 {
					atomic.StoreInt32(&sawOverlap, 1)
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&active, -1)
				return nil, nil
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Zero(t, sawOverlap, "observed overlapping writer executions")
}

func TestSubmit_ContextCancellationUnblocksCaller(t *testing.T) {
	s := newTestStore(t)
	c := New(s)
	// Deliberately don't start Run: Submit must still respect ctx.Done()
	// rather than hang forever waiting on a result that will never come.

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Submit(ctx, func(ctx context.Context, tx *sql.Tx) (any, error) {
		return nil, nil
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestStop_DrainsThenReturns(t *testing.T) {
	s := newTestStore(t)
	c := New(s)

	ctx := context.Background()
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	_, err := c.Submit(ctx, func(ctx context.Context, tx *sql.Tx) (any, error) {
		return nil, nil
	})
	require.NoError(t, err)

	c.Stop()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after Stop")
	}
}
