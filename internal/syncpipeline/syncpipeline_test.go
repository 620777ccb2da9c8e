package syncpipeline

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/thrr87/hoard/internal/coordinator"
	"github.com/thrr87/hoard/internal/lockfile"
	"github.com/thrr87/hoard/internal/store"
)

func newTestPipeline(t *testing.T) (*Pipeline, *store.Store) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hoard.db")
	s, err := store.Open(path, 5000, 4)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	c := coordinator.New(s)
	ctx, cancel := context.WithCancel(context.Background())
	go c.Run(ctx)
	t.Cleanup(cancel)

	return New(c, path), s
}

type fakeConnector struct {
	records []Record
}

func (f *fakeConnector) Pull(ctx context.Context) ([]Record, error) {
	return f.records, nil
}

func TestPipeline_RunWritesEachRecordThroughCoordinator(t *testing.T) {
	p, s := newTestPipeline(t)
	conn := &fakeConnector{records: []Record{
		{Scope: "ext/notion", Slot: "roadmap", OwnerAgent: "sync", Content: "Q3 plan"},
		{Scope: "ext/notion", Slot: "owner", OwnerAgent: "sync", Content: "Alice"},
	}}

	n, err := p.Run(context.Background(), conn)
	require.NoError(t, err)
	require.Equal(t, 2, n)

	live, err := store.GetLiveBySlot(context.Background(), s.Reader(), "ext/notion", "roadmap")
	require.NoError(t, err)
	require.Equal(t, "Q3 plan", live.Content)
}

func TestPipeline_RunSkipsWhenSyncLockAlreadyHeld(t *testing.T) {
	p, _ := newTestPipeline(t)

	held, err := lockfile.TryAcquire(p.lockPath)
	require.NoError(t, err)
	defer held.Unlock()

	n, err := p.Run(context.Background(), &fakeConnector{records: []Record{
		{Scope: "s", Slot: "slot", OwnerAgent: "a", Content: "should not be written"},
	}})
	require.NoError(t, err, "a concurrent sync run is a no-op, not an error")
	require.Equal(t, 0, n)
}

func TestJSONLinesConnector_PullDecodesOneRecordPerLine(t *testing.T) {
	input := strings.Join([]string{
		`{"scope":"ext/file","slot":"a","owner_agent":"sync","content":"first"}`,
		``,
		`{"scope":"ext/file","slot":"b","owner_agent":"sync","content":"second"}`,
	}, "\n")

	conn := NewJSONLinesConnector(strings.NewReader(input))
	records, err := conn.Pull(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, "first", records[0].Content)
	require.Equal(t, "second", records[1].Content)
}
