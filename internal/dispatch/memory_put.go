package dispatch

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/thrr87/hoard/internal/store"
)

func init() {
	register("memory_put", ToolWrite, memoryPut)
}

// memoryPut inserts a brand-new live memory. It does not touch an existing
// live row for the same scope/slot — callers that mean to replace one use
// memory_supersede, which makes the "competing write" case explicit rather
// than silently overwriting.
func memoryPut(ctx context.Context, q store.Queryer, env *Env, params map[string]any) (any, error) {
	scope, err := stringParam(params, "scope")
	if err != nil {
		return nil, err
	}
	slot, err := stringParam(params, "slot")
	if err != nil {
		return nil, err
	}
	ownerAgent, err := stringParam(params, "owner_agent")
	if err != nil {
		return nil, err
	}
	content, err := stringParam(params, "content")
	if err != nil {
		return nil, err
	}
	embedding, err := float32SliceParam(params, "embedding")
	if err != nil {
		return nil, err
	}

	m := store.Memory{
		ID:         uuid.NewString(),
		Scope:      scope,
		Slot:       slot,
		OwnerAgent: ownerAgent,
		Content:    content,
		Embedding:  embedding,
	}

	// ttl_days distinguishes "absent" (fall back to the configured default)
	// from "present and zero" (expire immediately, per scenario (f)); an
	// explicit 0 must not be mistaken for "no TTL".
	ttlDays := int64(env.Config.Memory.DefaultTTLDays)
	if v, ok := optionalInt64Param(params, "ttl_days"); ok {
		ttlDays = v
	}
	expires := time.Now().UTC().Add(time.Duration(ttlDays) * 24 * time.Hour)
	m.ExpiresAt = &expires

	if err := store.PutMemory(ctx, q, m); err != nil {
		return nil, err
	}

	if err := enqueueDetection(ctx, q, m.Embedding); err != nil {
		return nil, err
	}

	return map[string]any{"id": m.ID, "status": m.Status}, nil
}

// enqueueDetection schedules duplicate/conflict detection in the same
// transaction as the triggering write, so a job is only ever visible once
// the write it reacts to has actually committed.
func enqueueDetection(ctx context.Context, q store.Queryer, embedding []float32) error {
	if embedding != nil {
		if _, err := store.EnqueueJob(ctx, q, store.JobKindDetectDuplicate, "{}"); err != nil {
			return err
		}
	}
	_, err := store.EnqueueJob(ctx, q, store.JobKindDetectConflict, "{}")
	return err
}
