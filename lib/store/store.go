// Package store implements the local cache store: idempotent upserts,
// cascading soft deletes, and read queries over the three-level entity
// graph (series → torrent_group → torrent_entry) plus file_info, all
// change-stamped so downstream consumers can tail updated_at.
package store

import (
	"database/sql"
	"strconv"

	"github.com/btncache/mirror/localdb"

	"github.com/jmoiron/sqlx"
)

// Store is the local cache store, backed by a single *sqlx.DB handle over
// the ATTACHed metadata/user databases.
type Store struct {
	db *sqlx.DB
}

// New creates a Store backed by db.
func New(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// nextChangestamp increments the persisted change-stamp counter inside tx
// and returns the new value. Every row written in the same transaction
// should use this one value, per spec.md §4.2.
func nextChangestamp(tx *sqlx.Tx) (int64, error) {
	var raw sql.NullString
	err := tx.Get(&raw, `SELECT value FROM user.kv WHERE name = 'changestamp'`)
	var n int64
	switch {
	case err == sql.ErrNoRows:
		n = 0
	case err != nil:
		return 0, err
	default:
		n, err = strconv.ParseInt(raw.String, 10, 64)
		if err != nil {
			return 0, err
		}
	}
	n++
	if _, err := tx.Exec(`
		INSERT INTO user.kv (name, value) VALUES ('changestamp', ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value`,
		strconv.FormatInt(n, 10)); err != nil {
		return 0, err
	}
	return n, nil
}

// Changestamp returns the current value of the change-stamp counter
// without incrementing it.
func (s *Store) Changestamp() (int64, error) {
	var raw sql.NullString
	err := s.db.Get(&raw, `SELECT value FROM user.kv WHERE name = 'changestamp'`)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(raw.String, 10, 64)
}

// withImmediate is a small indirection so tests could substitute a fake
// transaction runner; defaults to localdb.WithImmediate.
var withImmediate = localdb.WithImmediate
