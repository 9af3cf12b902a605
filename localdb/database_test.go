package localdb

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/pressly/goose"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/btncache/mirror/utils/osutil"
)

func resetMocks() {
	ensureFilePresent = osutil.EnsureFilePresent
	sqlxOpen = sqlx.Open
	gooseSetDialect = goose.SetDialect
	gooseUp = func(db *sql.DB, dir string) error { return goose.Up(db, dir) }
}

func TestNewMigratesBothSchemas(t *testing.T) {
	resetMocks()
	dir := t.TempDir()

	db, err := New(Config{
		MetadataSource: filepath.Join(dir, "metadata.db"),
		UserSource:     filepath.Join(dir, "user.db"),
	})
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.Ping())

	var tables []string
	require.NoError(t, db.Select(&tables, `
		SELECT name FROM sqlite_master
		WHERE type='table' AND name NOT LIKE 'goose_%'
		ORDER BY name`))
	assert.Contains(t, tables, "series")
	assert.Contains(t, tables, "torrent_group")
	assert.Contains(t, tables, "torrent_entry")
	assert.Contains(t, tables, "file_info")

	var userTables []string
	require.NoError(t, db.Select(&userTables, `
		SELECT name FROM user.sqlite_master
		WHERE type='table' AND name NOT LIKE 'goose_%'
		ORDER BY name`))
	assert.Contains(t, userTables, "kv")
	assert.Contains(t, userTables, "token_bucket_generic")
	assert.Contains(t, userTables, "token_bucket_timeseries")
}

func TestNewMaxOpenConnsIsOne(t *testing.T) {
	resetMocks()
	dir := t.TempDir()

	db, err := New(Config{
		MetadataSource: filepath.Join(dir, "metadata.db"),
		UserSource:     filepath.Join(dir, "user.db"),
	})
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, 1, db.Stats().MaxOpenConnections)
}

func TestNewErrInvalidPath(t *testing.T) {
	resetMocks()
	dir := t.TempDir()

	tmpfile := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(tmpfile, []byte("x"), 0644))

	_, err := New(Config{
		MetadataSource: filepath.Join(tmpfile, "metadata.db"),
		UserSource:     filepath.Join(dir, "user.db"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ensure db source present")
}

func TestNewErrOpen(t *testing.T) {
	resetMocks()
	defer resetMocks()

	dir := t.TempDir()
	ensureFilePresent = func(path string, perm os.FileMode) error { return nil }
	sqlxOpen = func(driverName, dataSourceName string) (*sqlx.DB, error) {
		return nil, errors.New("mock open error")
	}

	_, err := New(Config{
		MetadataSource: filepath.Join(dir, "metadata.db"),
		UserSource:     filepath.Join(dir, "user.db"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open sqlite3")
}

func TestNewErrMigration(t *testing.T) {
	resetMocks()
	defer resetMocks()

	dir := t.TempDir()
	gooseUp = func(db *sql.DB, dir string) error { return errors.New("mock migration error") }

	_, err := New(Config{
		MetadataSource: filepath.Join(dir, "metadata.db"),
		UserSource:     filepath.Join(dir, "user.db"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "perform db migration")
}
