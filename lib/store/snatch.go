package store

import (
	"database/sql"

	"github.com/btncache/mirror/core"

	"github.com/jmoiron/sqlx"
)

// UpsertSnatch inserts or updates the snatch row for snatch.TorrentID,
// following the same high/low-volatility split as UpsertTorrentEntry:
// downloaded/uploaded/seed_time/seeding drift on every poll without that
// drift alone advancing updated_at, while snatch_time/hnr_removed are
// treated as important (a restored snatch or a fresh HnR flag does).
func (s *Store) UpsertSnatch(snatch core.Snatch) error {
	return withImmediate(s.db, func(tx *sqlx.Tx) error {
		return upsertSnatchTx(tx, snatch, func() (int64, error) { return nextChangestamp(tx) })
	})
}

func upsertSnatchTx(tx *sqlx.Tx, snatch core.Snatch, getCS func() (int64, error)) error {
	var existing core.Snatch
	err := tx.Get(&existing, `SELECT * FROM user.snatch WHERE torrent_id = ?`, snatch.TorrentID)
	if err == sql.ErrNoRows {
		cs, err := getCS()
		if err != nil {
			return err
		}
		snatch.UpdatedAt = cs
		_, err = tx.NamedExec(`
			INSERT INTO user.snatch
				(torrent_id, downloaded, uploaded, seed_time, seeding, snatch_time, hnr_removed, updated_at)
			VALUES
				(:torrent_id, :downloaded, :uploaded, :seed_time, :seeding, :snatch_time, :hnr_removed, :updated_at)`,
			snatch)
		return err
	}
	if err != nil {
		return err
	}

	switch {
	case snatchImportantEqual(existing, snatch) && snatchCountersEqual(existing, snatch):
		return nil
	case snatchImportantEqual(existing, snatch):
		_, err := tx.Exec(`
			UPDATE user.snatch SET downloaded = ?, uploaded = ?, seed_time = ?, seeding = ?
			WHERE torrent_id = ?`,
			snatch.Downloaded, snatch.Uploaded, snatch.SeedTime, snatch.Seeding, snatch.TorrentID)
		return err
	default:
		cs, err := getCS()
		if err != nil {
			return err
		}
		snatch.UpdatedAt = cs
		_, err = tx.Exec(`
			UPDATE user.snatch SET
				downloaded = ?, uploaded = ?, seed_time = ?, seeding = ?,
				snatch_time = ?, hnr_removed = ?, updated_at = ?
			WHERE torrent_id = ?`,
			snatch.Downloaded, snatch.Uploaded, snatch.SeedTime, snatch.Seeding,
			snatch.SnatchTime, snatch.HnRRemoved, snatch.UpdatedAt, snatch.TorrentID)
		return err
	}
}

func snatchImportantEqual(a, b core.Snatch) bool {
	return a.SnatchTime == b.SnatchTime && a.HnRRemoved == b.HnRRemoved
}

func snatchCountersEqual(a, b core.Snatch) bool {
	return a.Downloaded == b.Downloaded && a.Uploaded == b.Uploaded &&
		a.SeedTime == b.SeedTime && a.Seeding == b.Seeding
}

// GetSnatch returns the snatch row for torrentID.
func (s *Store) GetSnatch(torrentID int64) (core.Snatch, error) {
	var snatch core.Snatch
	err := s.db.Get(&snatch, `SELECT * FROM user.snatch WHERE torrent_id = ?`, torrentID)
	return snatch, err
}

// ListSnatches returns snatch rows newest-id first.
func (s *Store) ListSnatches(limit, offset int) ([]core.Snatch, error) {
	var rows []core.Snatch
	err := s.db.Select(&rows, `
		SELECT * FROM user.snatch ORDER BY id DESC LIMIT ? OFFSET ?`, limit, offset)
	return rows, err
}
