// Package app wires hoard's concurrency core into one process-wide object:
// the store handle, the Write Coordinator goroutine, the background worker
// pool and lease, and the JSON-RPC server. App is the Server Singleton
// Lock's holder — exactly one App runs against a given database at a time,
// enforced by internal/lockfile before New returns.
//
// Grounded on the teacher pack's internal/cli run.go, which built a
// similar (if smaller) bag of long-lived collaborators — store, engine,
// signal handling — inline inside one command function. App pulls that
// wiring out of the CLI layer so both `hoard serve` and tests can start
// the same process shape without going through cobra.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/thrr87/hoard/internal/config"
	"github.com/thrr87/hoard/internal/coordinator"
	"github.com/thrr87/hoard/internal/dispatch"
	"github.com/thrr87/hoard/internal/hoarderr"
	"github.com/thrr87/hoard/internal/lockfile"
	"github.com/thrr87/hoard/internal/log"
	"github.com/thrr87/hoard/internal/rpc"
	"github.com/thrr87/hoard/internal/store"
	"github.com/thrr87/hoard/internal/syncpipeline"
	"github.com/thrr87/hoard/internal/worker"
)

// App is the root object for a running hoard server process. The zero
// value is not usable; build one with New.
type App struct {
	cfg   *config.Config
	store *store.Store
	coord *coordinator.Coordinator
	pool  *worker.Pool
	lease *worker.Lease
	srv   *rpc.Server
	sync  *syncpipeline.Pipeline
	lock  *lockfile.Lock

	logger   zerolog.Logger
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New opens the store, acquires the Server Singleton Lock, and wires the
// coordinator, worker pool, lease, and RPC server against it. It does not
// start any goroutines; call Run for that. Callers must call Close (or let
// Run's shutdown path do it) to release the store and the singleton lock.
func New(ctx context.Context, cfg *config.Config, holderID string) (*App, error) {
	lockPath := singletonLockPath(cfg.Database.Path)
	lock, err := lockfile.TryAcquire(lockPath)
	if err != nil {
		if errors.Is(err, lockfile.ErrHeld) {
			return nil, fmt.Errorf("%w", hoarderr.ErrSingletonConflict)
		}
		return nil, fmt.Errorf("app: acquire server singleton lock: %w", err)
	}

	s, err := store.Open(cfg.Database.Path, cfg.Database.BusyTimeoutMS, cfg.Database.ReaderPoolSize, cfg.Database.LockTimeoutMS)
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("app: open store: %w", err)
	}

	coord := coordinator.New(s)
	env := &dispatch.Env{Reader: s.Reader(), Sub: coord, Config: cfg}
	srv := rpc.NewServer(env)

	leaseTTL := time.Duration(cfg.Worker.LeaseTTLMS) * time.Millisecond
	lease := worker.NewLease(coord, "background-worker", holderID, leaseTTL)
	pool := worker.NewPool(s.Reader(), coord, cfg.Worker.Concurrency, cfg.Duplicates.Threshold)
	sync := syncpipeline.New(coord, cfg.Database.Path)

	return &App{
		cfg:    cfg,
		store:  s,
		coord:  coord,
		pool:   pool,
		lease:  lease,
		srv:    srv,
		sync:   sync,
		lock:   lock,
		logger: log.Component("app"),
	}, nil
}

// singletonLockPath derives the Server Singleton Lock's path from the
// database path: <dbpath>.server, distinct from the Database Write Lock's
// <dbpath>.lock (held by internal/store.BeginWrite) per the on-disk layout
// in SPEC_FULL.md §6.
func singletonLockPath(dbPath string) string {
	return dbPath + ".server"
}

// Store exposes the opened store to in-process callers. The CLI's admin
// commands do not use it: they open their own store through oneShotEnv.
func (a *App) Store() *store.Store { return a.store }

// Submitter exposes the coordinator's Submit method for in-process callers
// that want to run a write without going through the RPC transport. The
// CLI's memory/task subcommands use their own coordinator (oneShotEnv).
func (a *App) Submitter() coordinator.Submitter { return a.coord }

// SyncPipeline exposes the Sync Singleton File Lock's holder so an
// in-process caller can drive a connector run through this App's
// coordinator. `hoard sync run` builds its own pipeline instead.
func (a *App) SyncPipeline() *syncpipeline.Pipeline { return a.sync }

// Run starts the Write Coordinator, the background worker lease and pool,
// and the JSON-RPC HTTP listener, and blocks until ctx is cancelled or the
// listener fails. On return, every started goroutine has been asked to
// stop; callers should still call Close to release the store and lock.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	listener, err := net.Listen("tcp", a.cfg.Server.ListenAddr)
	if err != nil {
		return fmt.Errorf("app: listen on %s: %w", a.cfg.Server.ListenAddr, err)
	}

	httpSrv := &http.Server{Handler: a.srv}

	errCh := make(chan error, 1)

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.coord.Run(ctx); err != nil && err != context.Canceled {
			a.logger.Error().Err(err).Msg("write coordinator exited")
		}
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.lease.Run(ctx); err != nil {
			a.logger.Error().Err(err).Msg("worker lease exited")
		}
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.pool.Run(ctx)
	}()

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.logger.Info().Str("addr", a.cfg.Server.ListenAddr).Msg("rpc server listening")
		if err := httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
			select {
			case errCh <- err:
			default:
			}
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		cancel()
		a.shutdownHTTP(httpSrv)
		a.wg.Wait()
		return err
	}

	a.shutdownHTTP(httpSrv)
	a.coord.Stop()
	a.wg.Wait()
	return nil
}

func (a *App) shutdownHTTP(httpSrv *http.Server) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn().Err(err).Msg("rpc server shutdown did not complete cleanly")
	}
}

// Close releases the store's connections and the Server Singleton Lock.
// Safe to call multiple times.
func (a *App) Close() error {
	var closeErr error
	a.stopOnce.Do(func() {
		if err := a.store.Close(); err != nil {
			closeErr = fmt.Errorf("app: close store: %w", err)
		}
		if err := a.lock.Unlock(); err != nil && closeErr == nil {
			closeErr = fmt.Errorf("app: release singleton lock: %w", err)
		}
	})
	return closeErr
}

