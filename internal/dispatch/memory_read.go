package dispatch

import (
	"context"

	"github.com/thrr87/hoard/internal/store"
)

func init() {
	register("memory_get", ToolRead, memoryGet)
	register("memory_get_slot", ToolRead, memoryGetSlot)
	register("memory_list_scope", ToolRead, memoryListScope)
}

func memoryGet(ctx context.Context, q store.Queryer, env *Env, params map[string]any) (any, error) {
	id, err := stringParam(params, "id")
	if err != nil {
		return nil, err
	}
	return store.GetMemory(ctx, q, id)
}

func memoryGetSlot(ctx context.Context, q store.Queryer, env *Env, params map[string]any) (any, error) {
	scope, err := stringParam(params, "scope")
	if err != nil {
		return nil, err
	}
	slot, err := stringParam(params, "slot")
	if err != nil {
		return nil, err
	}
	return store.GetLiveBySlot(ctx, q, scope, slot)
}

func memoryListScope(ctx context.Context, q store.Queryer, env *Env, params map[string]any) (any, error) {
	scope, err := stringParam(params, "scope")
	if err != nil {
		return nil, err
	}
	return store.ListLiveByScope(ctx, q, scope)
}
