// Package coordinator implements the Write Coordinator: a single goroutine
// owning hoard's one writable SQLite connection, draining a FIFO queue of
// submitted work. Every mutation in the system goes through Submit instead
// of touching the store's writer connection directly, which is what makes
// the single-writer invariant hold without every caller having to reason
// about SQLITE_BUSY.
//
// Grounded on the original engine package's single-writer Run loop and its
// eventQueue, generalized from a fixed invocation/completion event shape to
// an arbitrary TxFunc so any dispatch handler can submit work.
package coordinator

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/thrr87/hoard/internal/hoarderr"
	"github.com/thrr87/hoard/internal/log"
	"github.com/thrr87/hoard/internal/store"
)

// TxFunc is a unit of work run inside a single write transaction.
type TxFunc func(ctx context.Context, tx *sql.Tx) (any, error)

// Submitter is the interface dispatch handlers depend on, so tests can
// substitute a synchronous fake that runs a TxFunc directly against a test
// database without a background goroutine.
type Submitter interface {
	Submit(ctx context.Context, fn TxFunc) (any, error)
}

type ctxKey struct{}

// Coordinator is the Write Coordinator. Build one with New and start its
// Run loop before anything calls Submit.
type Coordinator struct {
	store *store.Store
	queue *submissionQueue
}

// New creates a Coordinator over s.
func New(s *store.Store) *Coordinator {
	return &Coordinator{
		store: s,
		queue: newSubmissionQueue(),
	}
}

// Submit enqueues fn and blocks until the Write Coordinator's goroutine has
// run it in its own transaction and committed (or rolled back on error),
// returning fn's result.
//
// If ctx already carries a transaction (set by Run while executing an outer
// TxFunc), Submit takes the re-entrant fast path: it calls fn directly with
// that transaction instead of enqueuing, so a handler that calls another
// handler's helper from inside its own TxFunc doesn't deadlock waiting for
// the one goroutine that is currently blocked waiting for it.
func (c *Coordinator) Submit(ctx context.Context, fn TxFunc) (any, error) {
	if tx, ok := ctx.Value(ctxKey{}).(*sql.Tx); ok {
		return fn(ctx, tx)
	}

	resultCh := make(chan outcome, 1)
	if !c.queue.Enqueue(submission{fn: fn, result: resultCh}) {
		return nil, fmt.Errorf("%w: write coordinator is shut down", hoarderr.ErrStorageUnavailable)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case out := <-resultCh:
		return out.value, out.err
	}
}

// Run drains the submission queue on the calling goroutine until ctx is
// cancelled or Stop is called. Must be called from exactly one goroutine.
func (c *Coordinator) Run(ctx context.Context) error {
	logger := log.Component("coordinator")
	logger.Info().Msg("write coordinator starting")

	for {
		sub, ok := c.queue.TryDequeue()
		if ok {
			c.execute(ctx, sub, logger)
			continue
		}

		select {
		case <-ctx.Done():
			logger.Info().Msg("write coordinator stopping: context cancelled")
			c.queue.Close()
			return ctx.Err()
		case _, open := <-c.queue.Wait():
			if !open && c.queue.Len() == 0 {
				logger.Info().Msg("write coordinator stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop closes the submission queue, causing Run to return once it drains.
// Already-submitted work still runs; Submit calls made after Stop fail
// immediately.
func (c *Coordinator) Stop() {
	c.queue.Close()
}

// execute runs one submission in its own transaction, committing on
// success and rolling back on any error returned by fn or by Commit
// itself. Always sends exactly one outcome so Submit never blocks forever.
func (c *Coordinator) execute(ctx context.Context, sub submission, logger zerolog.Logger) {
	wtx, err := c.store.BeginWrite(ctx)
	if err != nil {
		sub.result <- outcome{err: fmt.Errorf("coordinator: begin tx: %w", err)}
		return
	}

	innerCtx := context.WithValue(ctx, ctxKey{}, wtx.Tx)
	value, err := sub.fn(innerCtx, wtx.Tx)
	if err != nil {
		if rbErr := wtx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			logger.Warn().Err(rbErr).Msg("rollback after handler error failed")
		}
		sub.result <- outcome{err: err}
		return
	}

	if err := wtx.Commit(); err != nil {
		sub.result <- outcome{err: fmt.Errorf("coordinator: commit: %w", err)}
		return
	}

	sub.result <- outcome{value: value}
}
