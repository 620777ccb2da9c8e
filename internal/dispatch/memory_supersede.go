package dispatch

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/thrr87/hoard/internal/hoarderr"
	"github.com/thrr87/hoard/internal/store"
)

func init() {
	register("memory_supersede", ToolWrite, memorySupersede)
}

func memorySupersede(ctx context.Context, q store.Queryer, env *Env, params map[string]any) (any, error) {
	oldID, err := stringParam(params, "id")
	if err != nil {
		return nil, err
	}
	expectVersion, err := intParam(params, "version")
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

	old, err := store.GetMemory(ctx, q, oldID)
	if err != nil {
		return nil, err
	}

	next := store.Memory{
		ID:         uuid.NewString(),
		Scope:      old.Scope,
		Slot:       old.Slot,
		OwnerAgent: optionalStringParam(params, "owner_agent"),
		Content:    content,
		Embedding:  embedding,
	}
	if next.OwnerAgent == "" {
		next.OwnerAgent = old.OwnerAgent
	}

	if err := store.SupersedeMemory(ctx, q, oldID, expectVersion, next); err != nil {
		if errors.Is(err, hoarderr.ErrPreconditionMissed) {
			return map[string]any{"superseded": false, "id": oldID}, nil
		}
		return nil, err
	}
	if err := enqueueDetection(ctx, q, next.Embedding); err != nil {
		return nil, err
	}

	return map[string]any{"superseded": true, "id": next.ID, "supersedes": oldID}, nil
}
