package dispatch

import (
	"context"
	"errors"

	"github.com/thrr87/hoard/internal/hoarderr"
	"github.com/thrr87/hoard/internal/store"
)

func init() {
	register("memory_retract", ToolWrite, memoryRetract)
}

func memoryRetract(ctx context.Context, q store.Queryer, env *Env, params map[string]any) (any, error) {
	id, err := stringParam(params, "id")
	if err != nil {
		return nil, err
	}
	expectVersion, err := intParam(params, "version")
	if err != nil {
		return nil, err
	}

	if err := store.RetractMemory(ctx, q, id, expectVersion); err != nil {
		if errors.Is(err, hoarderr.ErrPreconditionMissed) {
			return map[string]any{"id": id, "retracted": false}, nil
		}
		return nil, err
	}
	return map[string]any{"id": id, "retracted": true, "status": store.MemoryRetracted}, nil
}
