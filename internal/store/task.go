package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/thrr87/hoard/internal/hoarderr"
)

// CreateTask inserts a new pending task.
func CreateTask(ctx context.Context, q Queryer, t Task) error {
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = now
	}
	if t.Status == "" {
		t.Status = TaskPending
	}
	if t.Version == 0 {
		t.Version = 1
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO task (id, kind, payload, status, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.Kind, t.Payload, t.Status, t.Version, t.CreatedAt.Unix(), t.UpdatedAt.Unix())
	if err != nil {
		if isSQLiteConstraint(err) {
			return fmt.Errorf("%w: %v", hoarderr.ErrIntegrityViolation, err)
		}
		return fmt.Errorf("create task: %w", err)
	}
	return nil
}

// ClaimTask atomically transitions one pending task of the given kind to
// claimed by claimant, returning it. This is the row-level optimistic
// guard applied as a conditional UPDATE ... WHERE status = 'pending', so
// two agents racing to claim the same task never both succeed: exactly one
// UPDATE affects a row, and SQLite serializes the two UPDATEs through the
// single writer connection. Returns hoarderr.ErrNotFound when no pending
// task of that kind exists.
func ClaimTask(ctx context.Context, q Queryer, kind, claimant string) (*Task, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id FROM task WHERE kind = ? AND status = 'pending' ORDER BY created_at LIMIT 1
	`, kind)
	var id string
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, hoarderr.ErrNotFound
		}
		return nil, fmt.Errorf("claim task: select candidate: %w", err)
	}

	now := time.Now().UTC()
	res, err := q.ExecContext(ctx, `
		UPDATE task
		SET status = 'claimed', claimed_by = ?, claimed_at = ?, updated_at = ?, version = version + 1
		WHERE id = ? AND status = 'pending'
	`, claimant, now.Unix(), now.Unix(), id)
	if err != nil {
		return nil, fmt.Errorf("claim task: update: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("claim task: rows affected: %w", err)
	}
	if affected == 0 {
		// Another writer claimed it between our SELECT and UPDATE; the
		// caller should retry rather than treat this as "no work".
		return nil, fmt.Errorf("%w: task %s claimed concurrently", hoarderr.ErrPreconditionMissed, id)
	}

	return GetTask(ctx, q, id)
}

// ClaimTaskByID claims one specific pending task by id, for callers that
// already know which task they want rather than "the oldest pending task of
// a kind" (the scenario two agents racing on one known task id, e.g.
// task_claim(task_id=42), exercises this path). Same optimistic-guard shape
// as ClaimTask: a conditional UPDATE ... WHERE status = 'pending', so two
// concurrent claimants on the same id never both succeed.
func ClaimTaskByID(ctx context.Context, q Queryer, id, claimant string) (*Task, error) {
	now := time.Now().UTC()
	res, err := q.ExecContext(ctx, `
		UPDATE task
		SET status = 'claimed', claimed_by = ?, claimed_at = ?, updated_at = ?, version = version + 1
		WHERE id = ? AND status = 'pending'
	`, claimant, now.Unix(), now.Unix(), id)
	if err != nil {
		return nil, fmt.Errorf("claim task by id: update: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("claim task by id: rows affected: %w", err)
	}
	if affected == 0 {
		// Distinguish "no such task" from "lost the race": a missing row
		// means GetTask below returns hoarderr.ErrNotFound; an existing,
		// already-claimed row means the guard's predicate simply matched
		// zero rows, which is precondition-missed, not integrity failure.
		if _, getErr := GetTask(ctx, q, id); getErr != nil {
			return nil, getErr
		}
		return nil, fmt.Errorf("%w: task %s already claimed", hoarderr.ErrPreconditionMissed, id)
	}
	return GetTask(ctx, q, id)
}

// FinishTask transitions a claimed task to done or failed, guarded by an
// optimistic version check.
func FinishTask(ctx context.Context, q Queryer, id string, expectVersion int, failed bool) error {
	status := TaskDone
	if failed {
		status = TaskFailed
	}
	res, err := q.ExecContext(ctx, `
		UPDATE task SET status = ?, updated_at = ?, version = version + 1
		WHERE id = ? AND version = ? AND status = 'claimed'
	`, status, time.Now().UTC().Unix(), id, expectVersion)
	if err != nil {
		return fmt.Errorf("finish task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish task: rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: task %s is not claimed at version %d", hoarderr.ErrPreconditionMissed, id, expectVersion)
	}
	return nil
}

// GetTask fetches a task by id.
func GetTask(ctx context.Context, q Queryer, id string) (*Task, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, kind, payload, status, COALESCE(claimed_by, ''), claimed_at, version, created_at, updated_at
		FROM task WHERE id = ?
	`, id)

	var t Task
	var claimedBy sql.NullString
	var claimedAt sql.NullInt64
	var createdAt, updatedAt int64

	err := row.Scan(&t.ID, &t.Kind, &t.Payload, &t.Status, &claimedBy, &claimedAt, &t.Version, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, hoarderr.ErrNotFound
		}
		return nil, fmt.Errorf("get task: %w", err)
	}

	t.ClaimedBy = claimedBy.String
	if claimedAt.Valid {
		ts := time.Unix(claimedAt.Int64, 0).UTC()
		t.ClaimedAt = &ts
	}
	t.CreatedAt = time.Unix(createdAt, 0).UTC()
	t.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &t, nil
}
