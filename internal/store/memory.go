package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/thrr87/hoard/internal/hoarderr"
)

// PutMemory inserts a new live memory row. Callers wanting put-with-
// supersede semantics should call SupersedeMemory instead; PutMemory alone
// does not touch any other row.
func PutMemory(ctx context.Context, q Queryer, m Memory) error {
	now := time.Now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = now
	}
	if m.Version == 0 {
		m.Version = 1
	}
	if m.Status == "" {
		m.Status = MemoryLive
	}

	var expiresAt any
	if m.ExpiresAt != nil {
		expiresAt = m.ExpiresAt.UTC().Unix()
	}
	var supersedes any
	if m.SupersedesID != "" {
		supersedes = m.SupersedesID
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO memory
		(id, scope, slot, owner_agent, content, embedding, status, supersedes_id, version, created_at, updated_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		m.ID, m.Scope, m.Slot, m.OwnerAgent, m.Content, encodeEmbedding(m.Embedding),
		m.Status, supersedes, m.Version, m.CreatedAt.Unix(), m.UpdatedAt.Unix(), expiresAt,
	)
	if err != nil {
		if isSQLiteConstraint(err) {
			return fmt.Errorf("%w: %v", hoarderr.ErrIntegrityViolation, err)
		}
		return fmt.Errorf("put memory: %w", err)
	}
	return nil
}

// GetMemory fetches a single memory row by id.
func GetMemory(ctx context.Context, q Queryer, id string) (*Memory, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, scope, slot, owner_agent, content, embedding, status,
		       COALESCE(supersedes_id, ''), version, created_at, updated_at, expires_at
		FROM memory WHERE id = ?
	`, id)
	return scanMemory(row)
}

// GetLiveBySlot returns the current live memory for a scope/slot pair, if
// any. Returns hoarderr.ErrNotFound when the slot has no live memory.
func GetLiveBySlot(ctx context.Context, q Queryer, scope, slot string) (*Memory, error) {
	row := q.QueryRowContext(ctx, `
		SELECT id, scope, slot, owner_agent, content, embedding, status,
		       COALESCE(supersedes_id, ''), version, created_at, updated_at, expires_at
		FROM memory WHERE scope = ? AND slot = ? AND status = 'live'
	`, scope, slot)
	return scanMemory(row)
}

// ListLiveByScope returns every live memory in a scope, ordered by slot.
func ListLiveByScope(ctx context.Context, q Queryer, scope string) ([]Memory, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, scope, slot, owner_agent, content, embedding, status,
		       COALESCE(supersedes_id, ''), version, created_at, updated_at, expires_at
		FROM memory WHERE scope = ? AND status = 'live'
		ORDER BY slot
	`, scope)
	if err != nil {
		return nil, fmt.Errorf("list live by scope: %w", err)
	}
	defer rows.Close()

	var out []Memory
	for rows.Next() {
		m, err := scanMemoryRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// ListAllWithEmbeddings returns every live memory carrying an embedding,
// for the duplicate detector's pairwise scan.
func ListAllWithEmbeddings(ctx context.Context, q Queryer) ([]Memory, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, scope, slot, owner_agent, content, embedding, status,
		       COALESCE(supersedes_id, ''), version, created_at, updated_at, expires_at
		FROM memory WHERE status = 'live' AND embedding IS NOT NULL
	`)
	if err != nil {
		return nil, fmt.Errorf("list with embeddings: %w", err)
	}
	defer rows.Close()

	var out []Memory
	for rows.Next() {
		m, err := scanMemoryRows(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

// SupersedeMemory marks oldID superseded and inserts newMemory as the new
// live row for the same scope/slot, guarded by an optimistic version check
// on oldID: if oldID's version no longer matches expectVersion (someone
// else superseded or retracted it first), returns
// hoarderr.ErrPreconditionMissed and neither row is touched.
func SupersedeMemory(ctx context.Context, q Queryer, oldID string, expectVersion int, newMemory Memory) error {
	now := time.Now().UTC()

	res, err := q.ExecContext(ctx, `
		UPDATE memory
		SET status = 'superseded', updated_at = ?, version = version + 1
		WHERE id = ? AND version = ? AND status = 'live'
	`, now.Unix(), oldID, expectVersion)
	if err != nil {
		return fmt.Errorf("supersede memory: update old: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("supersede memory: rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: memory %s is not live at version %d", hoarderr.ErrPreconditionMissed, oldID, expectVersion)
	}

	newMemory.SupersedesID = oldID
	if err := PutMemory(ctx, q, newMemory); err != nil {
		return fmt.Errorf("supersede memory: put new: %w", err)
	}
	return nil
}

// RetractMemory marks a live memory retracted, guarded by the same
// optimistic version check as SupersedeMemory.
func RetractMemory(ctx context.Context, q Queryer, id string, expectVersion int) error {
	now := time.Now().UTC()

	res, err := q.ExecContext(ctx, `
		UPDATE memory
		SET status = 'retracted', updated_at = ?, version = version + 1
		WHERE id = ? AND version = ? AND status = 'live'
	`, now.Unix(), id, expectVersion)
	if err != nil {
		return fmt.Errorf("retract memory: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("retract memory: rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: memory %s is not live at version %d", hoarderr.ErrPreconditionMissed, id, expectVersion)
	}
	return nil
}

// PruneExpired retracts every live memory whose expires_at has passed,
// returning how many rows were affected. Idempotent: re-running finds
// nothing left to prune.
func PruneExpired(ctx context.Context, q Queryer, asOf time.Time) (int64, error) {
	res, err := q.ExecContext(ctx, `
		UPDATE memory
		SET status = 'retracted', updated_at = ?, version = version + 1
		WHERE status = 'live' AND expires_at IS NOT NULL AND expires_at <= ?
	`, asOf.UTC().Unix(), asOf.UTC().Unix())
	if err != nil {
		return 0, fmt.Errorf("prune expired: %w", err)
	}
	return res.RowsAffected()
}

func scanMemory(row *sql.Row) (*Memory, error) {
	var m Memory
	var embedding []byte
	var expiresAt sql.NullInt64
	var createdAt, updatedAt int64

	err := row.Scan(&m.ID, &m.Scope, &m.Slot, &m.OwnerAgent, &m.Content, &embedding,
		&m.Status, &m.SupersedesID, &m.Version, &createdAt, &updatedAt, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, hoarderr.ErrNotFound
		}
		return nil, fmt.Errorf("scan memory: %w", err)
	}
	return finishMemoryScan(&m, embedding, createdAt, updatedAt, expiresAt)
}

func scanMemoryRows(rows *sql.Rows) (*Memory, error) {
	var m Memory
	var embedding []byte
	var expiresAt sql.NullInt64
	var createdAt, updatedAt int64

	err := rows.Scan(&m.ID, &m.Scope, &m.Slot, &m.OwnerAgent, &m.Content, &embedding,
		&m.Status, &m.SupersedesID, &m.Version, &createdAt, &updatedAt, &expiresAt)
	if err != nil {
		return nil, fmt.Errorf("scan memory: %w", err)
	}
	return finishMemoryScan(&m, embedding, createdAt, updatedAt, expiresAt)
}

func finishMemoryScan(m *Memory, embedding []byte, createdAt, updatedAt int64, expiresAt sql.NullInt64) (*Memory, error) {
	vec, err := decodeEmbedding(embedding)
	if err != nil {
		return nil, err
	}
	m.Embedding = vec
	m.CreatedAt = time.Unix(createdAt, 0).UTC()
	m.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	if expiresAt.Valid {
		t := time.Unix(expiresAt.Int64, 0).UTC()
		m.ExpiresAt = &t
	}
	return m, nil
}
