package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hoard.db")
	s, err := Open(path, 5000, 4)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_AppliesWALAndForeignKeys(t *testing.T) {
	s := openTestStore(t)

	var journalMode string
	require.NoError(t, s.Writer().QueryRow("PRAGMA journal_mode").Scan(&journalMode))
	require.Equal(t, "wal", journalMode)

	var fk int
	require.NoError(t, s.Writer().QueryRow("PRAGMA foreign_keys").Scan(&fk))
	require.Equal(t, 1, fk)
}

func TestOpen_IsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hoard.db")
	s1, err := Open(path, 5000, 4)
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(path, 5000, 4)
	require.NoError(t, err)
	defer s2.Close()
}

func TestMemory_PutGetRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	m := Memory{
		ID:         "mem-1",
		Scope:      "project/hoard",
		Slot:       "preferred-editor",
		OwnerAgent: "agent-a",
		Content:    "vim",
		Embedding:  []float32{0.1, 0.2, 0.3},
	}
	require.NoError(t, PutMemory(ctx, s.Writer(), m))

	got, err := GetMemory(ctx, s.Writer(), "mem-1")
	require.NoError(t, err)
	require.Equal(t, m.Content, got.Content)
	require.Equal(t, MemoryLive, got.Status)
	require.InDeltaSlice(t, []float64{0.1, 0.2, 0.3}, toFloat64(got.Embedding), 1e-6)
}

func TestMemory_SupersedeMovesOldOutOfLiveSet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	old := Memory{ID: "mem-1", Scope: "s", Slot: "slot", OwnerAgent: "a", Content: "v1"}
	require.NoError(t, PutMemory(ctx, s.Writer(), old))

	next := Memory{ID: "mem-2", Scope: "s", Slot: "slot", OwnerAgent: "a", Content: "v2"}
	require.NoError(t, SupersedeMemory(ctx, s.Writer(), "mem-1", 1, next))

	live, err := GetLiveBySlot(ctx, s.Writer(), "s", "slot")
	require.NoError(t, err)
	require.Equal(t, "mem-2", live.ID)

	stale, err := GetMemory(ctx, s.Writer(), "mem-1")
	require.NoError(t, err)
	require.Equal(t, MemorySuperseded, stale.Status)
}

func TestMemory_SupersedeRejectsStaleVersion(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	old := Memory{ID: "mem-1", Scope: "s", Slot: "slot", OwnerAgent: "a", Content: "v1"}
	require.NoError(t, PutMemory(ctx, s.Writer(), old))

	next := Memory{ID: "mem-2", Scope: "s", Slot: "slot", OwnerAgent: "a", Content: "v2"}
	err := SupersedeMemory(ctx, s.Writer(), "mem-1", 99, next)
	require.Error(t, err)
}

func TestPruneExpired_RetractsPastDeadline(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	past := time.Now().Add(-time.Hour)
	m := Memory{ID: "mem-1", Scope: "s", Slot: "slot", OwnerAgent: "a", Content: "v1", ExpiresAt: &past}
	require.NoError(t, PutMemory(ctx, s.Writer(), m))

	n, err := PruneExpired(ctx, s.Writer(), time.Now())
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	_, err = GetLiveBySlot(ctx, s.Writer(), "s", "slot")
	require.Error(t, err)

	n2, err := PruneExpired(ctx, s.Writer(), time.Now())
	require.NoError(t, err)
	require.EqualValues(t, 0, n2, "prune must be idempotent")
}

func TestTask_ClaimTransitionsPendingToClaimed(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, CreateTask(ctx, s.Writer(), Task{ID: "t-1", Kind: "ingest", Payload: "{}"}))

	claimed, err := ClaimTask(ctx, s.Writer(), "ingest", "worker-1")
	require.NoError(t, err)
	require.Equal(t, TaskClaimed, claimed.Status)
	require.Equal(t, "worker-1", claimed.ClaimedBy)

	_, err = ClaimTask(ctx, s.Writer(), "ingest", "worker-2")
	require.Error(t, err, "no pending task left to claim")
}

func TestLease_AcquireRenewExpire(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	lease, err := AcquireLease(ctx, s.Writer(), "detector", "holder-a", 50*time.Millisecond)
	require.NoError(t, err)

	_, err = AcquireLease(ctx, s.Writer(), "detector", "holder-b", 50*time.Millisecond)
	require.Error(t, err, "lease still held by holder-a")

	renewed, err := RenewLease(ctx, s.Writer(), "detector", "holder-a", lease.Version, 50*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, lease.Version+1, renewed.Version)

	time.Sleep(60 * time.Millisecond)
	taken, err := AcquireLease(ctx, s.Writer(), "detector", "holder-b", 50*time.Millisecond)
	require.NoError(t, err, "lease must become acquirable once it expires")
	require.Equal(t, "holder-b", taken.HolderID)
}

func TestBeginWrite_CommitReleasesLockForNextWriter(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	wtx, err := s.BeginWrite(ctx)
	require.NoError(t, err)
	require.NoError(t, wtx.Commit())

	wtx2, err := s.BeginWrite(ctx)
	require.NoError(t, err)
	require.NoError(t, wtx2.Rollback())
}

func TestBeginWrite_SecondAcquisitionBlocksUntilFirstReleases(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hoard.db")
	s, err := Open(path, 5000, 4, 200)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	ctx := context.Background()
	wtx, err := s.BeginWrite(ctx)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		wtx2, err := s.BeginWrite(ctx)
		if err != nil {
			done <- err
			return
		}
		done <- wtx2.Rollback()
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, wtx.Commit())

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("second BeginWrite never completed after first released the lock")
	}
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}
