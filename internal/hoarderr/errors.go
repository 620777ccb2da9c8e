// Package hoarderr defines the sentinel error taxonomy shared across the
// concurrency core. Errors are classified by kind, not by concrete type, so
// callers at any layer can test with errors.Is against a small, stable set
// of sentinels instead of type-switching on package-private structs.
package hoarderr

import "errors"

var (
	// ErrTransientBusy means the store reported contention within its own
	// busy-retry budget. Implementations should never observe this outside
	// the store handle itself; it is recovered before reaching callers.
	ErrTransientBusy = errors.New("hoard: transient store busy")

	// ErrLockUnavailable means the Database Write Lock was not acquired
	// within the configured lock-timeout. Retryable; the writer goroutine
	// remains healthy.
	ErrLockUnavailable = errors.New("hoard: database write lock unavailable")

	// ErrPreconditionMissed means an optimistic guard's predicate matched
	// zero rows. This is a normal outcome, not a caller-visible failure;
	// handlers translate it into a typed "no-op" result rather than
	// propagating it as an error to JSON-RPC callers.
	ErrPreconditionMissed = errors.New("hoard: precondition missed")

	// ErrIntegrityViolation means a core invariant was broken (e.g. a
	// supersede target that was not live). The enclosing transaction is
	// rolled back; no partial state persists.
	ErrIntegrityViolation = errors.New("hoard: integrity violation")

	// ErrSingletonConflict means a second server process attempted to
	// start against a store already claimed by a running primary.
	ErrSingletonConflict = errors.New("hoard: another hoard server is already running on this database")

	// ErrStorageUnavailable means the store file could not be opened or is
	// corrupt. Fatal for any process that needs write access.
	ErrStorageUnavailable = errors.New("hoard: storage unavailable")

	// ErrNotFound means the requested entity does not exist (or is no
	// longer live, for memories).
	ErrNotFound = errors.New("hoard: not found")
)
