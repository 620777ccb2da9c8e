package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/thrr87/hoard/internal/hoarderr"
)

// OpenConflict records a new conflict between two or more live memories
// competing for the same scope/slot.
func OpenConflict(ctx context.Context, q Queryer, id, scope, slot string, memberIDs []string) error {
	now := time.Now().UTC().Unix()
	_, err := q.ExecContext(ctx, `
		INSERT INTO memory_conflict (id, scope, slot, status, created_at, updated_at)
		VALUES (?, ?, ?, 'open', ?, ?)
	`, id, scope, slot, now, now)
	if err != nil {
		if isSQLiteConstraint(err) {
			return fmt.Errorf("%w: %v", hoarderr.ErrIntegrityViolation, err)
		}
		return fmt.Errorf("open conflict: %w", err)
	}

	for _, memberID := range memberIDs {
		_, err := q.ExecContext(ctx, `
			INSERT INTO memory_conflict_member (conflict_id, memory_id) VALUES (?, ?)
			ON CONFLICT DO NOTHING
		`, id, memberID)
		if err != nil {
			return fmt.Errorf("open conflict: add member %s: %w", memberID, err)
		}
	}
	return nil
}

// ResolveConflict picks winnerID as the surviving memory for a conflict,
// guarded by requiring the conflict still be open. Does not itself mutate
// the memory rows; callers apply the winner via SupersedeMemory/
// RetractMemory within the same transaction.
func ResolveConflict(ctx context.Context, q Queryer, conflictID, resolvedBy, winnerID string) error {
	res, err := q.ExecContext(ctx, `
		UPDATE memory_conflict
		SET status = 'resolved', resolved_by = ?, resolved_id = ?, updated_at = ?
		WHERE id = ? AND status = 'open'
	`, resolvedBy, winnerID, time.Now().UTC().Unix(), conflictID)
	if err != nil {
		return fmt.Errorf("resolve conflict: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("resolve conflict: rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: conflict %s is not open", hoarderr.ErrPreconditionMissed, conflictID)
	}
	return nil
}

// GetConflict fetches a conflict and its member memory ids.
func GetConflict(ctx context.Context, q Queryer, id string) (*MemoryConflict, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, scope, slot, status, COALESCE(resolved_by, ''), COALESCE(resolved_id, ''), created_at, updated_at
		FROM memory_conflict WHERE id = ?
	`, id)

	var c MemoryConflict
	var createdAt, updatedAt int64
	err := row.Scan(&c.ID, &c.Scope, &c.Slot, &c.Status, &c.ResolvedBy, &c.ResolvedID, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, hoarderr.ErrNotFound
		}
		return nil, fmt.Errorf("get conflict: %w", err)
	}
	c.CreatedAt = time.Unix(createdAt, 0).UTC()
	c.UpdatedAt = time.Unix(updatedAt, 0).UTC()

	rows, err := q.QueryContext(ctx, `SELECT memory_id FROM memory_conflict_member WHERE conflict_id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("get conflict: members: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var memberID string
		if err := rows.Scan(&memberID); err != nil {
			return nil, fmt.Errorf("get conflict: scan member: %w", err)
		}
		c.MemberIDs = append(c.MemberIDs, memberID)
	}
	return &c, rows.Err()
}

// HasOpenConflict reports whether scope/slot already has an unresolved
// conflict, so the conflict detector doesn't open a duplicate one on every
// run while the existing conflict sits unresolved.
func HasOpenConflict(ctx context.Context, q Queryer, scope, slot string) (bool, error) {
	var exists int
	err := q.QueryRowContext(ctx, `
		SELECT 1 FROM memory_conflict WHERE scope = ? AND slot = ? AND status = 'open' LIMIT 1
	`, scope, slot).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("has open conflict: %w", err)
	}
	return true, nil
}

// ListOpenConflicts returns every unresolved conflict in a scope.
func ListOpenConflicts(ctx context.Context, q Queryer, scope string) ([]MemoryConflict, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id FROM memory_conflict WHERE scope = ? AND status = 'open' ORDER BY created_at
	`, scope)
	if err != nil {
		return nil, fmt.Errorf("list open conflicts: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("list open conflicts: scan: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]MemoryConflict, 0, len(ids))
	for _, id := range ids {
		c, err := GetConflict(ctx, q, id)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, nil
}
