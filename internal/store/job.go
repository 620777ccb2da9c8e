package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/thrr87/hoard/internal/hoarderr"
)

// EnqueueJob inserts a pending background job. Called from inside the same
// transaction as the memory/task mutation that triggered it, so a job is
// never visible to workers unless its triggering write actually committed.
func EnqueueJob(ctx context.Context, q Queryer, kind, payload string) (int64, error) {
	now := time.Now().UTC().Unix()
	res, err := q.ExecContext(ctx, `
		INSERT INTO job (kind, payload, status, attempts, created_at, updated_at)
		VALUES (?, ?, 'pending', 0, ?, ?)
	`, kind, payload, now, now)
	if err != nil {
		return 0, fmt.Errorf("enqueue job: %w", err)
	}
	return res.LastInsertId()
}

// ClaimNextJob atomically transitions the oldest pending job to running,
// mirroring ClaimTask's select-then-guarded-UPDATE pattern. Returns
// hoarderr.ErrNotFound when the queue is empty.
func ClaimNextJob(ctx context.Context, q Queryer) (*Job, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id FROM job WHERE status = 'pending' ORDER BY created_at LIMIT 1
	`)
	var id int64
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, hoarderr.ErrNotFound
		}
		return nil, fmt.Errorf("claim job: select candidate: %w", err)
	}

	res, err := q.ExecContext(ctx, `
		UPDATE job SET status = 'running', attempts = attempts + 1, updated_at = ?
		WHERE id = ? AND status = 'pending'
	`, time.Now().UTC().Unix(), id)
	if err != nil {
		return nil, fmt.Errorf("claim job: update: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("claim job: rows affected: %w", err)
	}
	if affected == 0 {
		return nil, fmt.Errorf("%w: job %d claimed concurrently", hoarderr.ErrPreconditionMissed, id)
	}

	return getJob(ctx, q, id)
}

// FinishJob marks a running job done or failed (recording lastErr when it
// failed).
func FinishJob(ctx context.Context, q Queryer, id int64, failed bool, lastErr string) error {
	status := JobDone
	if failed {
		status = JobFailed
	}
	_, err := q.ExecContext(ctx, `
		UPDATE job SET status = ?, last_error = ?, updated_at = ?
		WHERE id = ?
	`, status, lastErr, time.Now().UTC().Unix(), id)
	if err != nil {
		return fmt.Errorf("finish job: %w", err)
	}
	return nil
}

func getJob(ctx context.Context, q Queryer, id int64) (*Job, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, kind, payload, status, attempts, COALESCE(last_error, ''), created_at, updated_at
		FROM job WHERE id = ?
	`, id)

	var j Job
	var createdAt, updatedAt int64
	err := row.Scan(&j.ID, &j.Kind, &j.Payload, &j.Status, &j.Attempts, &j.LastError, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, hoarderr.ErrNotFound
		}
		return nil, fmt.Errorf("get job: %w", err)
	}
	j.CreatedAt = time.Unix(createdAt, 0).UTC()
	j.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &j, nil
}
