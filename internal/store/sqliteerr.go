package store

import (
	"errors"

	"github.com/mattn/go-sqlite3"
)

// isSQLiteBusy reports whether err is SQLITE_BUSY or SQLITE_LOCKED, the two
// codes the driver returns when busy_timeout expires while another
// connection holds the database lock.
func isSQLiteBusy(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
}

// isSQLiteConstraint reports whether err is a SQLite constraint violation
// (UNIQUE, CHECK, FOREIGN KEY, NOT NULL, ...).
func isSQLiteConstraint(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.Code == sqlite3.ErrConstraint
}
