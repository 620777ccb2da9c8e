package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/thrr87/hoard/internal/hoarderr"
	"github.com/thrr87/hoard/internal/lockfile"
	"github.com/thrr87/hoard/internal/log"
)

//go:embed schema.sql
var schemaSQL string

// currentSchemaVersion is tracked via PRAGMA user_version. Bump it and add
// a branch to runMigrations whenever schema.sql's shape changes.
const currentSchemaVersion = 1

// Store is the Connection Factory: one dedicated writable connection
// (SetMaxOpenConns(1), the single-writer invariant the Write Coordinator
// relies on) plus a pool of read-only connections for concurrent readers.
// Both pools point at the same on-disk file; WAL mode is what lets readers
// proceed without blocking on the writer.
type Store struct {
	writer      *sql.DB
	reader      *sql.DB
	path        string
	lockPath    string
	lockTimeout time.Duration
}

// Open creates or opens the SQLite database at path, applies pragmas and
// schema migrations, and returns a Store ready for use. Idempotent: safe
// to call against an already-initialized database file.
//
// lockTimeoutMS is the Database Write Lock's acquisition bound (§4.2);
// it is variadic, defaulting to 30000ms, so existing 3-argument callers
// (mostly tests, for which a single writer connection per process already
// makes the cross-process lock a no-op) keep compiling unchanged.
func Open(path string, busyTimeoutMS, readerPoolSize int, lockTimeoutMS ...int) (*Store, error) {
	if busyTimeoutMS <= 0 {
		busyTimeoutMS = 5000
	}
	if readerPoolSize <= 0 {
		readerPoolSize = 8
	}
	lockTimeout := 30000
	if len(lockTimeoutMS) > 0 && lockTimeoutMS[0] > 0 {
		lockTimeout = lockTimeoutMS[0]
	}

	writerDSN := fmt.Sprintf(
		"file:%s?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=%d&_foreign_keys=ON&_txlock=immediate",
		path, busyTimeoutMS,
	)
	writer, err := sql.Open("sqlite3", writerDSN)
	if err != nil {
		return nil, fmt.Errorf("store: open writer: %w", err)
	}
	writer.SetMaxOpenConns(1)
	writer.SetMaxIdleConns(1)
	writer.SetConnMaxLifetime(0)

	if err := writer.Ping(); err != nil {
		writer.Close()
		return nil, fmt.Errorf("store: ping writer: %w", err)
	}

	if err := applySchema(writer); err != nil {
		writer.Close()
		return nil, fmt.Errorf("store: apply schema: %w", err)
	}

	readerDSN := fmt.Sprintf(
		"file:%s?_journal_mode=WAL&_busy_timeout=%d&_foreign_keys=ON&mode=ro&_query_only=ON",
		path, busyTimeoutMS,
	)
	reader, err := sql.Open("sqlite3", readerDSN)
	if err != nil {
		writer.Close()
		return nil, fmt.Errorf("store: open reader pool: %w", err)
	}
	reader.SetMaxOpenConns(readerPoolSize)
	reader.SetConnMaxIdleTime(5 * time.Minute)

	if err := reader.Ping(); err != nil {
		writer.Close()
		reader.Close()
		return nil, fmt.Errorf("store: ping reader pool: %w", err)
	}

	log.Component("store").Info().Str("path", path).Int("reader_pool_size", readerPoolSize).Msg("store opened")

	return &Store{
		writer:      writer,
		reader:      reader,
		path:        path,
		lockPath:    path + ".lock",
		lockTimeout: time.Duration(lockTimeout) * time.Millisecond,
	}, nil
}

// Close closes both connection pools.
func (s *Store) Close() error {
	var firstErr error
	if err := s.writer.Close(); err != nil {
		firstErr = err
	}
	if err := s.reader.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// Path returns the on-disk path of the underlying database file.
func (s *Store) Path() string {
	return s.path
}

// Writer exposes the single writable connection. Only the Write
// Coordinator's worker goroutine should use this directly; everything else
// submits work through coordinator.Submit.
func (s *Store) Writer() *sql.DB {
	return s.writer
}

// Reader exposes the read-only connection pool for concurrent, non-blocking
// reads that don't need to go through the Write Coordinator.
func (s *Store) Reader() *sql.DB {
	return s.reader
}

// WriteTx bundles the transaction returned by BeginWrite with the
// Database Write Lock held for its duration (§4.2), so commit/rollback
// always releases the lock too. Handlers never see this type directly —
// the Write Coordinator unwraps it into the plain *sql.Tx carried in
// coordinator.TxFunc.
type WriteTx struct {
	Tx   *sql.Tx
	lock *lockfile.Lock
}

// Commit commits the underlying transaction and releases the Database
// Write Lock, in that order, returning the first error encountered.
func (w *WriteTx) Commit() error {
	err := w.Tx.Commit()
	if unlockErr := w.lock.Unlock(); unlockErr != nil && err == nil {
		err = fmt.Errorf("store: release write lock: %w", unlockErr)
	}
	return err
}

// Rollback rolls back the underlying transaction and releases the
// Database Write Lock, in that order. sql.ErrTxDone from an
// already-committed transaction is not an error here.
func (w *WriteTx) Rollback() error {
	err := w.Tx.Rollback()
	if errors.Is(err, sql.ErrTxDone) {
		err = nil
	}
	if unlockErr := w.lock.Unlock(); unlockErr != nil && err == nil {
		err = fmt.Errorf("store: release write lock: %w", unlockErr)
	}
	return err
}

// BeginWrite acquires the Database Write Lock (bounded by the store's
// configured lock-timeout) and starts a transaction on the single writable
// connection. Only the Write Coordinator's worker goroutine should call
// this directly. On lock-acquisition timeout, returns
// hoarderr.ErrLockUnavailable; the writer goroutine remains healthy and
// free to serve the next submission.
func (s *Store) BeginWrite(ctx context.Context) (*WriteTx, error) {
	lock, err := lockfile.Acquire(ctx, s.lockPath, s.lockTimeout)
	if err != nil {
		if errors.Is(err, lockfile.ErrTimeout) {
			return nil, fmt.Errorf("%w: %v", hoarderr.ErrLockUnavailable, err)
		}
		return nil, fmt.Errorf("store: acquire write lock: %w", err)
	}

	tx, err := s.writer.BeginTx(ctx, nil)
	if err != nil {
		_ = lock.Unlock()
		return nil, classifyTxError(err)
	}
	return &WriteTx{Tx: tx, lock: lock}, nil
}

func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("exec base schema: %w", err)
	}
	if err := runMigrations(db); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	return nil
}

// runMigrations advances an existing database from its recorded
// PRAGMA user_version up to currentSchemaVersion. New databases already
// have the latest shape from schema.sql and skip straight to recording the
// version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}

	// No migrations beyond the base schema yet. Future schema changes add
	// a numbered step here, each wrapped in its own CREATE/ALTER guarded by
	// "IF NOT EXISTS" so it stays idempotent against partially-migrated
	// databases.
	if version < currentSchemaVersion {
		if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
			return fmt.Errorf("set user_version: %w", err)
		}
	}

	return nil
}

// classifyTxError maps a raw driver error onto hoard's sentinel taxonomy so
// callers can branch with errors.Is instead of string matching.
func classifyTxError(err error) error {
	if err == nil {
		return nil
	}
	if isSQLiteBusy(err) {
		return fmt.Errorf("%w: %v", hoarderr.ErrTransientBusy, err)
	}
	return fmt.Errorf("%w: %v", hoarderr.ErrStorageUnavailable, err)
}
