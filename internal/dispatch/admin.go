package dispatch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/google/uuid"

	"github.com/thrr87/hoard/internal/store"
)

func init() {
	register("memory_prune", ToolWrite, memoryPrune)
	register("token_issue", ToolWrite, tokenIssue)
	register("token_revoke", ToolWrite, tokenRevoke)
}

func memoryPrune(ctx context.Context, q store.Queryer, env *Env, params map[string]any) (any, error) {
	n, err := store.PruneExpired(ctx, q, time.Now())
	if err != nil {
		return nil, err
	}
	return map[string]any{"pruned": n}, nil
}

// tokenIssue generates a new bearer token, records only its SHA-256 hash,
// and returns the raw token exactly once — hoard never stores or logs it
// in the clear after this call returns.
func tokenIssue(ctx context.Context, q store.Queryer, env *Env, params map[string]any) (any, error) {
	agentID, err := stringParam(params, "agent_id")
	if err != nil {
		return nil, err
	}
	label := optionalStringParam(params, "label")

	raw := uuid.NewString() + uuid.NewString()
	hash := hashToken(raw)

	if err := store.PutAgentToken(ctx, q, store.AgentToken{TokenHash: hash, AgentID: agentID, Label: label}); err != nil {
		return nil, err
	}
	return map[string]any{"token": raw, "agent_id": agentID}, nil
}

func tokenRevoke(ctx context.Context, q store.Queryer, env *Env, params map[string]any) (any, error) {
	raw, err := stringParam(params, "token")
	if err != nil {
		return nil, err
	}
	if err := store.RevokeAgentToken(ctx, q, hashToken(raw)); err != nil {
		return nil, err
	}
	return map[string]any{"revoked": true}, nil
}

func hashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
