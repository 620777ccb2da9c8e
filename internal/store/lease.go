package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/thrr87/hoard/internal/hoarderr"
)

// AcquireLease tries to become the holder of the named singleton lease.
// Succeeds when no row exists yet, or the existing lease has expired.
// Grounded on the singleton-task renewal pattern: a periodic UPSERT guarded
// by an expiry check instead of a Postgres advisory lock, since SQLite has
// no session-scoped advisory lock primitive.
func AcquireLease(ctx context.Context, q Queryer, name, holderID string, ttl time.Duration) (*Lease, error) {
	now := time.Now().UTC()
	expiresAt := now.Add(ttl)

	res, err := q.ExecContext(ctx, `
		INSERT INTO worker_lease (name, holder_id, expires_at, version)
		VALUES (?, ?, ?, 1)
		ON CONFLICT(name) DO UPDATE SET
			holder_id = excluded.holder_id,
			expires_at = excluded.expires_at,
			version = worker_lease.version + 1
		WHERE worker_lease.expires_at <= ?
	`, name, holderID, expiresAt.UnixMilli(), now.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("acquire lease: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("acquire lease: rows affected: %w", err)
	}
	if affected == 0 {
		// Another holder's lease is still unexpired: the guard's predicate
		// (expires_at <= now) simply matched zero rows, the same
		// precondition-missed outcome RenewLease reports below, not the
		// Server Singleton Lock's singleton-conflict (§7 reserves that
		// sentinel for the separate flock-based startup lock).
		return nil, fmt.Errorf("%w: lease %s held by another holder", hoarderr.ErrPreconditionMissed, name)
	}

	return GetLease(ctx, q, name)
}

// RenewLease extends holderID's hold on name by ttl, guarded by an
// optimistic version check: if expectVersion is stale (another holder took
// over after this lease expired), returns hoarderr.ErrPreconditionMissed
// and the caller must stop acting as the lease holder.
func RenewLease(ctx context.Context, q Queryer, name, holderID string, expectVersion int, ttl time.Duration) (*Lease, error) {
	now := time.Now().UTC()
	res, err := q.ExecContext(ctx, `
		UPDATE worker_lease
		SET expires_at = ?, version = version + 1
		WHERE name = ? AND holder_id = ? AND version = ?
	`, now.Add(ttl).UnixMilli(), name, holderID, expectVersion)
	if err != nil {
		return nil, fmt.Errorf("renew lease: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("renew lease: rows affected: %w", err)
	}
	if affected == 0 {
		return nil, fmt.Errorf("%w: lease %s lost by %s", hoarderr.ErrPreconditionMissed, name, holderID)
	}
	return GetLease(ctx, q, name)
}

// GetLease fetches a lease row by name.
func GetLease(ctx context.Context, q Queryer, name string) (*Lease, error) {
	row := q.QueryRowContext(ctx, `SELECT name, holder_id, expires_at, version FROM worker_lease WHERE name = ?`, name)

	var l Lease
	var expiresAt int64
	if err := row.Scan(&l.Name, &l.HolderID, &expiresAt, &l.Version); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, hoarderr.ErrNotFound
		}
		return nil, fmt.Errorf("get lease: %w", err)
	}
	l.ExpiresAt = time.UnixMilli(expiresAt).UTC()
	return &l, nil
}
