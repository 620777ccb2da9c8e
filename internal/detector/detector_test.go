package detector

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/thrr87/hoard/internal/coordinator"
	"github.com/thrr87/hoard/internal/store"
)

func newTestStoreAndCoordinator(t *testing.T) (*store.Store, *coordinator.Coordinator) {
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

func TestDetectDuplicates_FindsSimilarPair(t *testing.T) {
	s, c := newTestStoreAndCoordinator(t)
	ctx := context.Background()

	_, err := c.Submit(ctx, func(ctx context.Context, tx *sql.Tx) (any, error) {
		return nil, store.PutMemory(ctx, tx, store.Memory{ID: "a", Scope: "s", Slot: "slot-a", OwnerAgent: "agent-1", Content: "x", Embedding: []float32{1, 0, 0}})
	})
	require.NoError(t, err)
	_, err = c.Submit(ctx, func(ctx context.Context, tx *sql.Tx) (any, error) {
		return nil, store.PutMemory(ctx, tx, store.Memory{ID: "b", Scope: "s", Slot: "slot-b", OwnerAgent: "agent-1", Content: "y", Embedding: []float32{0.99, 0.01, 0}})
	})
	require.NoError(t, err)

	found, err := DetectDuplicates(ctx, s.Reader(), c, 0.9)
	require.NoError(t, err)
	require.Equal(t, 1, found)

	dups, err := store.ListOpenDuplicates(ctx, s.Reader())
	require.NoError(t, err)
	require.Len(t, dups, 1)
}

func TestDetectDuplicates_BelowThresholdIsIgnored(t *testing.T) {
	s, c := newTestStoreAndCoordinator(t)
	ctx := context.Background()

	_, err := c.Submit(ctx, func(ctx context.Context, tx *sql.Tx) (any, error) {
		return nil, store.PutMemory(ctx, tx, store.Memory{ID: "a", Scope: "s", Slot: "slot-a", OwnerAgent: "agent-1", Content: "x", Embedding: []float32{1, 0, 0}})
	})
	require.NoError(t, err)
	_, err = c.Submit(ctx, func(ctx context.Context, tx *sql.Tx) (any, error) {
		return nil, store.PutMemory(ctx, tx, store.Memory{ID: "b", Scope: "s", Slot: "slot-b", OwnerAgent: "agent-1", Content: "y", Embedding: []float32{0, 1, 0}})
	})
	require.NoError(t, err)

	found, err := DetectDuplicates(ctx, s.Reader(), c, 0.9)
	require.NoError(t, err)
	require.Equal(t, 0, found)
}

func TestDetectConflicts_OpensConflictForCompetingOwners(t *testing.T) {
	s, c := newTestStoreAndCoordinator(t)
	ctx := context.Background()

	_, err := c.Submit(ctx, func(ctx context.Context, tx *sql.Tx) (any, error) {
		return nil, store.PutMemory(ctx, tx, store.Memory{ID: "a", Scope: "shared", Slot: "owner", OwnerAgent: "agent-1", Content: "alice"})
	})
	require.NoError(t, err)
	_, err = c.Submit(ctx, func(ctx context.Context, tx *sql.Tx) (any, error) {
		return nil, store.PutMemory(ctx, tx, store.Memory{ID: "b", Scope: "shared", Slot: "owner", OwnerAgent: "agent-2", Content: "bob"})
	})
	require.NoError(t, err)

	opened, err := DetectConflicts(ctx, s.Reader(), c)
	require.NoError(t, err)
	require.Equal(t, 1, opened)

	conflicts, err := store.ListOpenConflicts(ctx, s.Reader(), "shared")
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	require.ElementsMatch(t, []string{"a", "b"}, conflicts[0].MemberIDs)

	// Re-running must not open a second conflict for the same slot.
	opened, err = DetectConflicts(ctx, s.Reader(), c)
	require.NoError(t, err)
	require.Equal(t, 0, opened)
}

func TestDetectConflicts_SameOwnerIsNotAConflict(t *testing.T) {
	s, c := newTestStoreAndCoordinator(t)
	ctx := context.Background()

	_, err := c.Submit(ctx, func(ctx context.Context, tx *sql.Tx) (any, error) {
		return nil, store.PutMemory(ctx, tx, store.Memory{ID: "a", Scope: "s", Slot: "slot", OwnerAgent: "agent-1", Content: "x"})
	})
	require.NoError(t, err)

	opened, err := DetectConflicts(ctx, s.Reader(), c)
	require.NoError(t, err)
	require.Equal(t, 0, opened)
}
