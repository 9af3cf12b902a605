package migrations

import (
	"database/sql"

	"github.com/pressly/goose"
)

func init() {
	goose.AddMigration(up00002, down00002)
}

// up00002 creates the rate-limit, cursor, and account tables in the
// attached "user" schema (user.db), per spec.md §6.
func up00002(tx *sql.Tx) error {
	if _, err := tx.Exec(`CREATE TABLE IF NOT EXISTS user.kv (
		name  text PRIMARY KEY,
		value text NOT NULL
	);`); err != nil {
		return err
	}

	if _, err := tx.Exec(`CREATE TABLE IF NOT EXISTS user.user_info (
		id         integer PRIMARY KEY CHECK (id = 1),
		username   text    NOT NULL DEFAULT '',
		email      text    NOT NULL DEFAULT '',
		uploaded   integer NOT NULL DEFAULT 0,
		downloaded integer NOT NULL DEFAULT 0,
		enabled    integer NOT NULL DEFAULT 0,
		invites    integer NOT NULL DEFAULT 0,
		lumens     integer NOT NULL DEFAULT 0,
		join_date  integer NOT NULL DEFAULT 0,
		updated_at integer NOT NULL DEFAULT 0
	);`); err != nil {
		return err
	}

	if _, err := tx.Exec(`CREATE TABLE IF NOT EXISTS user.snatch (
		id          integer PRIMARY KEY,
		torrent_id  integer NOT NULL,
		downloaded  integer NOT NULL DEFAULT 0,
		uploaded    integer NOT NULL DEFAULT 0,
		seed_time   integer NOT NULL DEFAULT 0,
		seeding     integer NOT NULL DEFAULT 0,
		snatch_time integer NOT NULL DEFAULT 0,
		hnr_removed integer NOT NULL DEFAULT 0,
		updated_at  integer NOT NULL DEFAULT 0
	);`); err != nil {
		return err
	}
	if _, err := tx.Exec(`CREATE INDEX IF NOT EXISTS user.snatch_torrent_id ON snatch (torrent_id);`); err != nil {
		return err
	}

	// Generic leaky-bucket state: one row per bucket key.
	if _, err := tx.Exec(`CREATE TABLE IF NOT EXISTS user.token_bucket_generic (
		key         text    PRIMARY KEY,
		rate        integer NOT NULL,
		period_secs integer NOT NULL,
		level       real    NOT NULL,
		last_refill real    NOT NULL
	);`); err != nil {
		return err
	}

	// Time-series bucket state: one row per consumption timestamp, keyed
	// by bucket key. The exact sliding window is computed by counting rows
	// within [now-period, now].
	if _, err := tx.Exec(`CREATE TABLE IF NOT EXISTS user.token_bucket_timeseries (
		key   text NOT NULL,
		at    real NOT NULL
	);`); err != nil {
		return err
	}
	if _, err := tx.Exec(`CREATE INDEX IF NOT EXISTS user.token_bucket_timeseries_key_at ON token_bucket_timeseries (key, at);`); err != nil {
		return err
	}

	// Single lock row all bucket transactions serialize through, per
	// spec.md §4.1 ("a single lock row").
	if _, err := tx.Exec(`CREATE TABLE IF NOT EXISTS user.bucket_lock (
		id integer PRIMARY KEY CHECK (id = 1)
	);`); err != nil {
		return err
	}
	if _, err := tx.Exec(`INSERT OR IGNORE INTO user.bucket_lock (id) VALUES (1);`); err != nil {
		return err
	}

	return nil
}

func down00002(tx *sql.Tx) error {
	for _, stmt := range []string{
		`DROP TABLE user.bucket_lock;`,
		`DROP TABLE user.token_bucket_timeseries;`,
		`DROP TABLE user.token_bucket_generic;`,
		`DROP TABLE user.snatch;`,
		`DROP TABLE user.user_info;`,
		`DROP TABLE user.kv;`,
	} {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
