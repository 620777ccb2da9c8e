// Package store implements hoard's Connection Factory and Data Model: a
// single writable SQLite connection paired with a pool of read-only
// connections, WAL journaling, busy-timeout based contention handling, and
// the row-level optimistic-concurrency guards the rest of the system builds
// on. Grounded on the original store package's Open/applyPragmas/
// applySchema/runMigrations split, generalized to hoard's multi-table
// schema and RowsAffected()-checked conditional writes.
package store
