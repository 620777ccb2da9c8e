package dispatch

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/thrr87/hoard/internal/config"
	"github.com/thrr87/hoard/internal/coordinator"
	"github.com/thrr87/hoard/internal/store"
)

func newTestEnv(t *testing.T) *Env {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "hoard.db"), 5000, 4)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	c := coordinator.New(s)
	ctx, cancel := context.WithCancel(context.Background())
	go c.Run(ctx)
	t.Cleanup(cancel)

	return &Env{Reader: s.Reader(), Sub: c, Config: config.Defaults()}
}

func TestDispatch_UnknownToolReturnsNotFound(t *testing.T) {
	env := newTestEnv(t)
	_, err := Dispatch(context.Background(), env, "does_not_exist", nil)
	require.Error(t, err)
}

func TestDispatch_MemoryPutThenGet(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	result, err := Dispatch(ctx, env, "memory_put", map[string]any{
		"scope":       "project/hoard",
		"slot":        "editor",
		"owner_agent": "agent-a",
		"content":     "vim",
	})
	require.NoError(t, err)
	id := result.(map[string]any)["id"].(string)
	require.NotEmpty(t, id)

	got, err := Dispatch(ctx, env, "memory_get", map[string]any{"id": id})
	require.NoError(t, err)
	require.Equal(t, "vim", got.(*store.Memory).Content)
}

func TestDispatch_MemorySupersedeChainsVersions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	putResult, err := Dispatch(ctx, env, "memory_put", map[string]any{
		"scope": "s", "slot": "slot", "owner_agent": "a", "content": "v1",
	})
	require.NoError(t, err)
	id := putResult.(map[string]any)["id"].(string)

	supersedeResult, err := Dispatch(ctx, env, "memory_supersede", map[string]any{
		"id": id, "version": 1, "content": "v2",
	})
	require.NoError(t, err)
	newID := supersedeResult.(map[string]any)["id"].(string)
	require.NotEqual(t, id, newID)

	live, err := Dispatch(ctx, env, "memory_get_slot", map[string]any{"scope": "s", "slot": "slot"})
	require.NoError(t, err)
	require.Equal(t, "v2", live.(*store.Memory).Content)
}

func TestDispatch_TaskClaimRaceYieldsOneWinner(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := Dispatch(ctx, env, "task_create", map[string]any{"kind": "ingest"})
	require.NoError(t, err)

	first, err := Dispatch(ctx, env, "task_claim", map[string]any{"kind": "ingest", "claimant": "w1"})
	require.NoError(t, err)
	require.Equal(t, true, first.(map[string]any)["claimed"])

	second, err := Dispatch(ctx, env, "task_claim", map[string]any{"kind": "ingest", "claimant": "w2"})
	require.NoError(t, err, "a lost claim race is a normal outcome, not a dispatch error")
	require.Equal(t, false, second.(map[string]any)["claimed"])
}

// TestDispatch_TaskClaimByIDRaceYieldsOneWinner exercises scenario (e): two
// agents calling task_claim(task_id=...) on the same known task id. Exactly
// one comes back claimed; the loser gets {"claimed": false}, not an error.
func TestDispatch_TaskClaimByIDRaceYieldsOneWinner(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	created, err := Dispatch(ctx, env, "task_create", map[string]any{"kind": "ingest"})
	require.NoError(t, err)
	id := created.(map[string]any)["id"].(string)

	first, err := Dispatch(ctx, env, "task_claim", map[string]any{"task_id": id, "claimant": "agent-a"})
	require.NoError(t, err)
	require.Equal(t, true, first.(map[string]any)["claimed"])
	require.Equal(t, "agent-a", first.(map[string]any)["assignee"])

	second, err := Dispatch(ctx, env, "task_claim", map[string]any{"task_id": id, "claimant": "agent-b"})
	require.NoError(t, err)
	require.Equal(t, false, second.(map[string]any)["claimed"])

	got, err := Dispatch(ctx, env, "task_get", map[string]any{"id": id})
	require.NoError(t, err)
	require.Equal(t, "agent-a", got.(*store.Task).ClaimedBy)
}

// TestDispatch_MemoryPutTTLZeroExpiresImmediately exercises scenario (f):
// ttl_days=0 must mean "already expired", not the configured default TTL
// (which is what omitting the param entirely gives).
func TestDispatch_MemoryPutTTLZeroExpiresImmediately(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := Dispatch(ctx, env, "memory_put", map[string]any{
		"scope": "s", "slot": "ttl_immediate", "owner_agent": "a",
		"content": "expire now", "ttl_days": float64(0),
	})
	require.NoError(t, err)

	_, err = Dispatch(ctx, env, "memory_prune", nil)
	require.NoError(t, err)

	_, err = Dispatch(ctx, env, "memory_get_slot", map[string]any{"scope": "s", "slot": "ttl_immediate"})
	require.Error(t, err, "memory put with ttl_days=0 must be gone after prune")
}

func TestDispatch_TokenIssueThenRevoke(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	issued, err := Dispatch(ctx, env, "token_issue", map[string]any{"agent_id": "agent-a"})
	require.NoError(t, err)
	token := issued.(map[string]any)["token"].(string)

	_, err = Dispatch(ctx, env, "token_revoke", map[string]any{"token": token})
	require.NoError(t, err)

	hash := hashToken(token)
	_, err = store.LookupAgentToken(ctx, env.Reader, hash)
	require.Error(t, err)
}
