//go:build unix || linux || darwin

package lockfile

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

var errWouldBlock = unix.EWOULDBLOCK

// lockFileExclusive acquires a non-blocking exclusive flock(2) on file.
// Per-open-file-description: a second call against a fresh *os.File handle
// on the same path from the same process does not see this lock as held by
// "itself" and will contend normally, which is the behavior §4.2 requires.
func lockFileExclusive(file *os.File) error {
	err := unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB)
	if err != nil {
		if errors.Is(err, unix.EWOULDBLOCK) {
			return errWouldBlock
		}
		return err
	}
	return nil
}

func unlockFile(file *os.File) error {
	return unix.Flock(int(file.Fd()), unix.LOCK_UN)
}
