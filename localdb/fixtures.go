package localdb

import (
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
)

// Fixture returns a temporary, fully migrated test database pair and a
// cleanup function that removes the backing directory.
func Fixture() (*sqlx.DB, func()) {
	tmpdir, err := os.MkdirTemp("", "mirror-test-db-")
	if err != nil {
		panic(err)
	}
	cleanup := func() { os.RemoveAll(tmpdir) }

	db, err := New(Config{
		MetadataSource: filepath.Join(tmpdir, "metadata.db"),
		UserSource:     filepath.Join(tmpdir, "user.db"),
	})
	if err != nil {
		cleanup()
		panic(err)
	}
	return db, cleanup
}
