package localdb

import (
	"strings"
	"time"

	"github.com/btncache/mirror/utils/log"

	"github.com/jmoiron/sqlx"
)

// WithImmediate runs fn inside a "BEGIN IMMEDIATE" transaction against db,
// committing on success and rolling back on any error returned by fn. SQLite
// busy collisions from other writers (the generic/time-series buckets and
// the cache store all serialize through single lock rows, per spec.md §4.1
// and §4.2) are retried in an unbounded loop that logs a warning, rather
// than surfaced to the caller.
func WithImmediate(db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	for {
		// The connection is opened with _txlock=immediate (see New), so
		// Beginx already issues "BEGIN IMMEDIATE" rather than a deferred
		// transaction.
		tx, err := db.Beginx()
		if err != nil {
			if isBusy(err) {
				log.Warn("database busy starting immediate transaction, retrying")
				time.Sleep(10 * time.Millisecond)
				continue
			}
			return err
		}

		if err := fn(tx); err != nil {
			tx.Rollback()
			if isBusy(err) {
				log.Warn("database busy within immediate transaction, retrying")
				time.Sleep(10 * time.Millisecond)
				continue
			}
			return err
		}

		if err := tx.Commit(); err != nil {
			if isBusy(err) {
				log.Warn("database busy committing immediate transaction, retrying")
				time.Sleep(10 * time.Millisecond)
				continue
			}
			return err
		}
		return nil
	}
}

func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}
