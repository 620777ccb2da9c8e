package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/thrr87/hoard/internal/hoarderr"
)

// PutAgentToken records a new hashed bearer credential. Callers hash the
// raw token before calling this; the store never sees or stores a token in
// the clear.
func PutAgentToken(ctx context.Context, q Queryer, t AgentToken) error {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO agent_token (token_hash, agent_id, label, created_at)
		VALUES (?, ?, ?, ?)
	`, t.TokenHash, t.AgentID, t.Label, t.CreatedAt.Unix())
	if err != nil {
		if isSQLiteConstraint(err) {
			return fmt.Errorf("%w: %v", hoarderr.ErrIntegrityViolation, err)
		}
		return fmt.Errorf("put agent token: %w", err)
	}
	return nil
}

// LookupAgentToken resolves a hashed token to its AgentToken record.
// Returns hoarderr.ErrNotFound for an unknown or revoked token so callers
// can't distinguish the two, which matters for a bearer-token transport.
func LookupAgentToken(ctx context.Context, q Queryer, tokenHash string) (*AgentToken, error) {
	row := q.QueryRowContext(ctx, `
		SELECT token_hash, agent_id, label, created_at, revoked_at
		FROM agent_token WHERE token_hash = ? AND revoked_at IS NULL
	`, tokenHash)

	var t AgentToken
	var createdAt int64
	var revokedAt sql.NullInt64
	err := row.Scan(&t.TokenHash, &t.AgentID, &t.Label, &createdAt, &revokedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, hoarderr.ErrNotFound
		}
		return nil, fmt.Errorf("lookup agent token: %w", err)
	}
	t.CreatedAt = time.Unix(createdAt, 0).UTC()
	if revokedAt.Valid {
		ts := time.Unix(revokedAt.Int64, 0).UTC()
		t.RevokedAt = &ts
	}
	return &t, nil
}

// RevokeAgentToken marks a token revoked.
func RevokeAgentToken(ctx context.Context, q Queryer, tokenHash string) error {
	res, err := q.ExecContext(ctx, `
		UPDATE agent_token SET revoked_at = ? WHERE token_hash = ? AND revoked_at IS NULL
	`, time.Now().UTC().Unix(), tokenHash)
	if err != nil {
		return fmt.Errorf("revoke agent token: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("revoke agent token: rows affected: %w", err)
	}
	if affected == 0 {
		return hoarderr.ErrNotFound
	}
	return nil
}
