// Package worker implements the Background Worker Lease (a singleton-
// holder row renewed at T/3 of its TTL) and the Pool that drains the job
// queue. The Pool does not consult the lease: it drains whether or not
// this process holds it. Grounded on marmotdata's SingletonTask:
// same periodic-renewal shape, but the lock primitive is the store's own
// optimistic-guard UPSERT (internal/store.AcquireLease/RenewLease) instead
// of a Postgres advisory lock, since SQLite has no session-scoped
// equivalent.
package worker

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/thrr87/hoard/internal/coordinator"
	"github.com/thrr87/hoard/internal/hoarderr"
	"github.com/thrr87/hoard/internal/log"
	"github.com/thrr87/hoard/internal/store"
)

// Lease holds a named singleton lease for as long as Run is active,
// renewing at one third of ttl and surrendering the role the moment a
// renewal reports zero rows affected (meaning another holder took over
// after this one's lease lapsed, most likely because this process stalled
// past ttl).
type Lease struct {
	name     string
	holderID string
	ttl      time.Duration
	sub      coordinator.Submitter

	mu      sync.Mutex
	held    bool
	version int
}

// NewLease creates a Lease for name. holderID should be stable for the
// process (e.g. a UUID generated once at startup) so a restarted process
// can tell its own prior lease apart from a still-live one held elsewhere.
func NewLease(sub coordinator.Submitter, name, holderID string, ttl time.Duration) *Lease {
	if holderID == "" {
		holderID = uuid.NewString()
	}
	return &Lease{name: name, holderID: holderID, ttl: ttl, sub: sub}
}

// Held reports whether this Lease currently believes it holds the role.
// Racy by nature (the answer can flip the instant after it's read); use it
// for logging and metrics, not for gating a write.
func (l *Lease) Held() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.held
}

// Run attempts to acquire the lease and then renews it every ttl/3 until
// ctx is cancelled or the lease is lost. Returns nil on clean shutdown,
// and also when the lease is held elsewhere or lost: neither is an error.
// Run does not retry on its own, and app.App.Run calls it once.
func (l *Lease) Run(ctx context.Context) error {
	logger := log.Component("worker-lease").With().Str("lease", l.name).Str("holder", l.holderID).Logger()

	result, err := l.sub.Submit(ctx, func(ctx context.Context, tx *sql.Tx) (any, error) {
		return store.AcquireLease(ctx, tx, l.name, l.holderID, l.ttl)
	})
	if err != nil {
		if errors.Is(err, hoarderr.ErrPreconditionMissed) {
			logger.Debug().Msg("lease held elsewhere, not acquiring")
			return nil
		}
		return err
	}
	lease := result.(*store.Lease)

	l.mu.Lock()
	l.held = true
	l.version = lease.Version
	l.mu.Unlock()
	logger.Info().Msg("lease acquired")

	ticker := time.NewTicker(l.ttl / 3)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.mu.Lock()
			l.held = false
			l.mu.Unlock()
			return nil
		case <-ticker.C:
			l.mu.Lock()
			version := l.version
			l.mu.Unlock()

			result, err := l.sub.Submit(ctx, func(ctx context.Context, tx *sql.Tx) (any, error) {
				return store.RenewLease(ctx, tx, l.name, l.holderID, version, l.ttl)
			})
			if err != nil {
				if errors.Is(err, hoarderr.ErrPreconditionMissed) {
					logger.Warn().Msg("lease lost, stepping down")
					l.mu.Lock()
					l.held = false
					l.mu.Unlock()
					return nil
				}
				logger.Error().Err(err).Msg("lease renewal failed")
				continue
			}
			renewed := result.(*store.Lease)
			l.mu.Lock()
			l.version = renewed.Version
			l.mu.Unlock()
		}
	}
}
