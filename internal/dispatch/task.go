package dispatch

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/thrr87/hoard/internal/hoarderr"
	"github.com/thrr87/hoard/internal/store"
)

func init() {
	register("task_create", ToolWrite, taskCreate)
	register("task_claim", ToolWrite, taskClaim)
	register("task_finish", ToolWrite, taskFinish)
	register("task_get", ToolRead, taskGet)
}

func taskCreate(ctx context.Context, q store.Queryer, env *Env, params map[string]any) (any, error) {
	kind, err := stringParam(params, "kind")
	if err != nil {
		return nil, err
	}
	payload := optionalStringParam(params, "payload")
	if payload == "" {
		payload = "{}"
	}

	t := store.Task{ID: uuid.NewString(), Kind: kind, Payload: payload}
	if err := store.CreateTask(ctx, q, t); err != nil {
		return nil, err
	}
	return map[string]any{"id": t.ID}, nil
}

// taskClaim supports two predicates: claim a specific task by id (task_id
// present — the race scenario in §8(e), two agents racing on one known
// task), or claim the oldest pending task of a kind (task_id absent). A
// lost race is a normal outcome, not an error: it comes back as
// {"claimed": false}, per §7's rule that precondition-missed results
// surface as typed "no-op" values, not dispatch errors.
func taskClaim(ctx context.Context, q store.Queryer, env *Env, params map[string]any) (any, error) {
	claimant, err := stringParam(params, "claimant")
	if err != nil {
		return nil, err
	}

	var t *store.Task
	if taskID := optionalStringParam(params, "task_id"); taskID != "" {
		t, err = store.ClaimTaskByID(ctx, q, taskID, claimant)
	} else {
		var kind string
		kind, err = stringParam(params, "kind")
		if err != nil {
			return nil, err
		}
		t, err = store.ClaimTask(ctx, q, kind, claimant)
		if errors.Is(err, hoarderr.ErrNotFound) {
			// No pending task of this kind: the loser of a by-kind race
			// sees exactly this once the winner's claim has committed.
			return map[string]any{"claimed": false}, nil
		}
	}

	if err != nil {
		if errors.Is(err, hoarderr.ErrPreconditionMissed) {
			return map[string]any{"claimed": false}, nil
		}
		return nil, err
	}
	return map[string]any{"claimed": true, "id": t.ID, "assignee": t.ClaimedBy}, nil
}

func taskFinish(ctx context.Context, q store.Queryer, env *Env, params map[string]any) (any, error) {
	id, err := stringParam(params, "id")
	if err != nil {
		return nil, err
	}
	expectVersion, err := intParam(params, "version")
	if err != nil {
		return nil, err
	}
	failed, _ := params["failed"].(bool)

	if err := store.FinishTask(ctx, q, id, expectVersion, failed); err != nil {
		if errors.Is(err, hoarderr.ErrPreconditionMissed) {
			return map[string]any{"id": id, "finished": false}, nil
		}
		return nil, err
	}
	return map[string]any{"id": id, "finished": true}, nil
}

func taskGet(ctx context.Context, q store.Queryer, env *Env, params map[string]any) (any, error) {
	id, err := stringParam(params, "id")
	if err != nil {
		return nil, err
	}
	return store.GetTask(ctx, q, id)
}
