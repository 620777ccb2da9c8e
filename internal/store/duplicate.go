package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/thrr87/hoard/internal/hoarderr"
)

// RecordDuplicate inserts a duplicate pairing, idempotently: a pair already
// on file (regardless of which id was A or B) is left untouched rather
// than duplicated, since the detector re-scans on every run.
func RecordDuplicate(ctx context.Context, q Queryer, id, memoryIDA, memoryIDB string, similarity float64) error {
	a, b := memoryIDA, memoryIDB
	if a > b {
		a, b = b, a
	}
	now := time.Now().UTC().Unix()
	_, err := q.ExecContext(ctx, `
		INSERT INTO memory_duplicate (id, memory_id_a, memory_id_b, similarity, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, 'open', ?, ?)
		ON CONFLICT(memory_id_a, memory_id_b) DO NOTHING
	`, id, a, b, similarity, now, now)
	if err != nil {
		return fmt.Errorf("record duplicate: %w", err)
	}
	return nil
}

// ResolveDuplicate marks a duplicate pairing resolved.
func ResolveDuplicate(ctx context.Context, q Queryer, id string) error {
	res, err := q.ExecContext(ctx, `
		UPDATE memory_duplicate SET status = 'resolved', updated_at = ?
		WHERE id = ? AND status = 'open'
	`, time.Now().UTC().Unix(), id)
	if err != nil {
		return fmt.Errorf("resolve duplicate: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("resolve duplicate: rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: duplicate %s is not open", hoarderr.ErrPreconditionMissed, id)
	}
	return nil
}

// ListOpenDuplicates returns every unresolved duplicate pairing.
func ListOpenDuplicates(ctx context.Context, q Queryer) ([]MemoryDuplicate, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, memory_id_a, memory_id_b, similarity, status, created_at, updated_at
		FROM memory_duplicate WHERE status = 'open' ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("list open duplicates: %w", err)
	}
	defer rows.Close()

	var out []MemoryDuplicate
	for rows.Next() {
		var d MemoryDuplicate
		var createdAt, updatedAt int64
		if err := rows.Scan(&d.ID, &d.MemoryIDA, &d.MemoryIDB, &d.Similarity, &d.Status, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("list open duplicates: scan: %w", err)
		}
		d.CreatedAt = time.Unix(createdAt, 0).UTC()
		d.UpdatedAt = time.Unix(updatedAt, 0).UTC()
		out = append(out, d)
	}
	return out, rows.Err()
}

// GetDuplicate fetches a single duplicate pairing by id.
func GetDuplicate(ctx context.Context, q Queryer, id string) (*MemoryDuplicate, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, memory_id_a, memory_id_b, similarity, status, created_at, updated_at
		FROM memory_duplicate WHERE id = ?
	`, id)

	var d MemoryDuplicate
	var createdAt, updatedAt int64
	err := row.Scan(&d.ID, &d.MemoryIDA, &d.MemoryIDB, &d.Similarity, &d.Status, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, hoarderr.ErrNotFound
		}
		return nil, fmt.Errorf("get duplicate: %w", err)
	}
	d.CreatedAt = time.Unix(createdAt, 0).UTC()
	d.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &d, nil
}
