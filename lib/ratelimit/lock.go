// Package ratelimit implements the two durable, cross-process token
// buckets that gate every outbound call to the remote tracker: a classic
// leaky bucket for the generic HTTP budget, and an exact sliding-window
// bucket for the remote's own API quota.
package ratelimit

import (
	"github.com/jmoiron/sqlx"
)

// lockAndRun serializes fn against every other bucket writer sharing db, via
// the single user.bucket_lock row (spec.md §4.1: "a single lock row").
// Locking this row inside the BEGIN IMMEDIATE transaction forces concurrent
// writers from other processes/threads to block on SQLite's write lock
// instead of racing on the bucket's own rows.
func lockAndRun(tx *sqlx.Tx, fn func() error) error {
	var id int
	if err := tx.Get(&id, `SELECT id FROM user.bucket_lock WHERE id = 1`); err != nil {
		return err
	}
	return fn()
}
