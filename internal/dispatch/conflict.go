package dispatch

import (
	"context"

	"github.com/thrr87/hoard/internal/store"
)

func init() {
	register("conflict_list", ToolRead, conflictList)
	register("conflict_resolve", ToolWrite, conflictResolve)
	register("duplicate_list", ToolRead, duplicateList)
	register("duplicate_resolve", ToolWrite, duplicateResolve)
}

func conflictList(ctx context.Context, q store.Queryer, env *Env, params map[string]any) (any, error) {
	scope, err := stringParam(params, "scope")
	if err != nil {
		return nil, err
	}
	return store.ListOpenConflicts(ctx, q, scope)
}

// conflictResolve picks winnerID as the surviving memory: it retracts
// every other member and marks the conflict resolved, all in one
// transaction so a reader never observes the conflict as resolved while a
// loser is still live.
func conflictResolve(ctx context.Context, q store.Queryer, env *Env, params map[string]any) (any, error) {
	conflictID, err := stringParam(params, "conflict_id")
	if err != nil {
		return nil, err
	}
	resolvedBy, err := stringParam(params, "resolved_by")
	if err != nil {
		return nil, err
	}
	winnerID, err := stringParam(params, "winner_id")
	if err != nil {
		return nil, err
	}

	conflict, err := store.GetConflict(ctx, q, conflictID)
	if err != nil {
		return nil, err
	}

	for _, memberID := range conflict.MemberIDs {
		if memberID == winnerID {
			continue
		}
		loser, err := store.GetMemory(ctx, q, memberID)
		if err != nil {
			return nil, err
		}
		if loser.Status != store.MemoryLive {
			continue
		}
		if err := store.RetractMemory(ctx, q, memberID, loser.Version); err != nil {
			return nil, err
		}
	}

	if err := store.ResolveConflict(ctx, q, conflictID, resolvedBy, winnerID); err != nil {
		return nil, err
	}
	return map[string]any{"conflict_id": conflictID, "winner_id": winnerID}, nil
}

func duplicateList(ctx context.Context, q store.Queryer, env *Env, params map[string]any) (any, error) {
	return store.ListOpenDuplicates(ctx, q)
}

// duplicateResolve marks a duplicate pairing resolved without retracting
// either side: unlike a conflict, a duplicate is advisory (two memories
// that happen to say similar things), so resolution just acknowledges it.
func duplicateResolve(ctx context.Context, q store.Queryer, env *Env, params map[string]any) (any, error) {
	id, err := stringParam(params, "id")
	if err != nil {
		return nil, err
	}
	if err := store.ResolveDuplicate(ctx, q, id); err != nil {
		return nil, err
	}
	return map[string]any{"id": id}, nil
}
