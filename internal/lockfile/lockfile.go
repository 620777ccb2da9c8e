// Package lockfile implements the cross-process advisory file locks the
// concurrency core depends on: the Database Write Lock (held for the
// duration of one write transaction), the Server Singleton Lock (held for
// the lifetime of a primary server process), and the sync pipeline's
// singleton lock.
//
// Locks are advisory and filesystem-backed: cooperating processes honor
// them by convention. On Unix, acquisition uses flock(2) via
// golang.org/x/sys/unix, which is per-open-file-description — two
// independent *os.File handles on the same path, even within one process,
// do not share a lock. That is deliberate: it is the primitive the core
// needs (§4.2), but it also means two acquisitions of the same path from
// the same process contend with each other exactly as two processes would,
// so in-process callers must serialize themselves rather than re-acquire
// (the Write Coordinator does this; see internal/coordinator).
//
// On non-Unix platforms the build falls back to a stub that always fails,
// documented in lockfile_other.go; hoard is a single-host, local-filesystem
// tool and has not been ported past flock(2).
package lockfile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"
)

// ErrTimeout is returned when lock acquisition does not complete within the
// requested timeout.
var ErrTimeout = errors.New("lockfile: timeout acquiring lock")

// ErrHeld is returned by TryAcquire when another process (or a concurrent
// acquisition attempt) already holds the lock.
var ErrHeld = errors.New("lockfile: lock is held")

// Lock represents one acquisition of an advisory file lock. The zero value
// is not usable; obtain one via Acquire or TryAcquire.
type Lock struct {
	file *os.File
	path string
}

// Path returns the lock file's path, for diagnostics.
func (l *Lock) Path() string { return l.path }

// Unlock releases the OS-level lock and closes the underlying file
// descriptor. The lock file itself is left on disk (removing it would let a
// racing process create a fresh inode under the same path and silently
// defeat per-open-file-description semantics); it is truncated and
// re-stamped with the new holder's PID on every acquisition instead.
func (l *Lock) Unlock() error {
	if l == nil || l.file == nil {
		return nil
	}
	if err := unlockFile(l.file); err != nil {
		l.file.Close()
		return fmt.Errorf("lockfile: unlock %s: %w", l.path, err)
	}
	err := l.file.Close()
	l.file = nil
	if err != nil {
		return fmt.Errorf("lockfile: close %s: %w", l.path, err)
	}
	return nil
}

// defaultRetryDelay is the initial backoff between acquisition attempts;
// it doubles up to a 100ms ceiling, matching the backoff budget other
// cooperating writers in this pack use for lock contention.
const defaultRetryDelay = 10 * time.Millisecond

const maxRetryDelay = 100 * time.Millisecond

// Acquire blocks until the exclusive lock at path is obtained, the context
// is cancelled, or timeout elapses (timeout <= 0 means "wait indefinitely,
// bounded only by ctx").
func Acquire(ctx context.Context, path string, timeout time.Duration) (*Lock, error) {
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	delay := defaultRetryDelay
	for {
		lock, err := TryAcquire(path)
		if err == nil {
			return lock, nil
		}
		if !errors.Is(err, ErrHeld) {
			return nil, err
		}

		if !deadline.IsZero() && time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: %s", ErrTimeout, path)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if delay > maxRetryDelay {
			delay = maxRetryDelay
		}
	}
}

// TryAcquire attempts to obtain the exclusive lock at path once, without
// retrying. Returns ErrHeld if another holder has it.
func TryAcquire(path string) (*Lock, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("lockfile: open %s: %w", path, err)
	}

	if err := lockFileExclusive(file); err != nil {
		file.Close()
		if errors.Is(err, errWouldBlock) {
			return nil, ErrHeld
		}
		return nil, fmt.Errorf("lockfile: flock %s: %w", path, err)
	}

	// Best-effort diagnostic stamp; correctness never depends on this
	// content per §6 of the on-disk layout contract.
	if err := file.Truncate(0); err == nil {
		_, _ = file.Seek(0, 0)
		fmt.Fprintf(file, "pid=%d acquired=%s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339Nano))
	}

	return &Lock{file: file, path: path}, nil
}
