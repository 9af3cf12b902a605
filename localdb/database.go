package localdb

import (
	"database/sql"
	"fmt"

	_ "github.com/btncache/mirror/localdb/migrations" // Add migrations.
	"github.com/btncache/mirror/utils/osutil"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // SQL driver.
	"github.com/pressly/goose"
)

// Indirections over package-level dependencies so tests can substitute
// failures without touching the filesystem or a real sqlite driver,
// matching the teacher's localdb/database_test.go mocking style.
var (
	ensureFilePresent = osutil.EnsureFilePresent
	sqlxOpen          = sqlx.Open
	gooseSetDialect   = goose.SetDialect
	gooseUp           = func(db *sql.DB, dir string) error { return goose.Up(db, dir) }
)

// New opens (creating if necessary) the metadata and user SQLite databases,
// attaches the user database into the metadata connection's namespace as
// "user", and runs all registered migrations against both schemas.
func New(config Config) (*sqlx.DB, error) {
	config = config.applyDefaults()

	if err := ensureFilePresent(config.MetadataSource, 0775); err != nil {
		return nil, fmt.Errorf("ensure db source present: %s", err)
	}
	if err := ensureFilePresent(config.UserSource, 0775); err != nil {
		return nil, fmt.Errorf("ensure db source present: %s", err)
	}

	// _txlock=immediate makes every db.Begin() issue "BEGIN IMMEDIATE"
	// rather than a deferred transaction, so bucket and store writers
	// acquire the write lock up front instead of failing mid-transaction
	// (spec.md §4.1/§4.2).
	db, err := sqlxOpen("sqlite3", config.MetadataSource+"?_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("open sqlite3: %s", err)
	}
	// SQLite has concurrency issues where queries result in error if more
	// than one connection is accessing a table, so the handle keeps a single
	// connection; every goroutine sharing this handle (e.g. all backfill
	// workers) is serialized through it.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(fmt.Sprintf("ATTACH DATABASE %q AS user", config.UserSource)); err != nil {
		return nil, fmt.Errorf("attach user database: %s", err)
	}

	if err := gooseSetDialect("sqlite3"); err != nil {
		return nil, fmt.Errorf("set dialect as sqlite3: %s", err)
	}
	if err := gooseUp(db.DB, "."); err != nil {
		return nil, fmt.Errorf("perform db migration: %s", err)
	}
	return db, nil
}
