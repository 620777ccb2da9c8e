package worker

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/thrr87/hoard/internal/coordinator"
	"github.com/thrr87/hoard/internal/store"
)

func newHarness(t *testing.T) (*store.Store, *coordinator.Coordinator) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "hoard.db"), 5000, 4)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	c := coordinator.New(s)
	ctx, cancel := context.WithCancel(context.Background())
	go c.Run(ctx)
	t.Cleanup(cancel)
	return s, c
}

func TestLease_SingleHolderAtATime(t *testing.T) {
	_, c := newHarness(t)
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	leaseA := NewLease(c, "detector", "holder-a", 80*time.Millisecond)
	leaseB := NewLease(c, "detector", "holder-b", 80*time.Millisecond)

	doneA := make(chan error, 1)
	go func() { doneA <- leaseA.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	require.True(t, leaseA.Held())

	doneB := make(chan error, 1)
	go func() { doneB <- leaseB.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	require.False(t, leaseB.Held(), "second holder must not acquire an active lease")

	<-doneA
	<-doneB
}

func TestPool_DrainsPruneJob(t *testing.T) {
	s, c := newHarness(t)
	ctx := context.Background()

	past := time.Now().Add(-time.Hour)
	_, err := c.Submit(ctx, func(ctx context.Context, tx *sql.Tx) (any, error) {
		return nil, store.PutMemory(ctx, tx, store.Memory{ID: "m1", Scope: "s", Slot: "slot", OwnerAgent: "a", Content: "x", ExpiresAt: &past})
	})
	require.NoError(t, err)
	_, err = c.Submit(ctx, func(ctx context.Context, tx *sql.Tx) (any, error) {
		return store.EnqueueJob(ctx, tx, store.JobKindPruneExpired, marshalJobPayload())
	})
	require.NoError(t, err)

	pool := NewPool(s.Reader(), c, 2, 0.85)
	runCtx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	pool.Run(runCtx)

	_, err = store.GetLiveBySlot(context.Background(), s.Reader(), "s", "slot")
	require.Error(t, err, "expired memory should have been pruned")
}
