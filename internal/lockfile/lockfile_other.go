//go:build !unix && !linux && !darwin

package lockfile

import (
	"errors"
	"os"
)

var errWouldBlock = errors.New("lockfile: would block")

// lockFileExclusive is unimplemented outside Unix. hoard's Database Write
// Lock and Server Singleton Lock require flock(2)'s per-open-file-
// description semantics; Windows' LockFileEx has different sharing rules
// and has not been wired here. `hoard doctor` reports this as a fatal
// platform-support gap rather than silently running unlocked.
func lockFileExclusive(file *os.File) error {
	return errors.New("lockfile: advisory file locking is not implemented on this platform")
}

func unlockFile(file *os.File) error {
	return nil
}
