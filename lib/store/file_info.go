package store

import (
	"database/sql"

	"github.com/btncache/mirror/core"

	"github.com/jmoiron/sqlx"
)

// ReplaceFileLayout atomically replaces the file_info rows for torrentID
// with layout, so a reader never observes a partially-written layout.
// rawCached must reflect whether the caller actually persisted the raw
// metafile bytes to disk for torrentID: raw_torrent_cached is set to
// exactly that value, never unconditionally to true, to honor the
// raw_torrent_cached invariant in spec.md §3 ("1 iff the raw metafile is
// present on disk AND a complete set of file_info rows exists") even when
// StoreRawTorrent is disabled.
func (s *Store) ReplaceFileLayout(torrentID int64, layout []core.FileInfo, rawCached bool) error {
	return withImmediate(s.db, func(tx *sqlx.Tx) error {
		if _, err := tx.Exec(`DELETE FROM file_info WHERE torrent_id = ?`, torrentID); err != nil {
			return err
		}
		for _, f := range layout {
			f.TorrentID = torrentID
			if _, err := tx.NamedExec(`
				INSERT INTO file_info (torrent_id, file_index, path, start, stop)
				VALUES (:torrent_id, :file_index, :path, :start, :stop)`, f); err != nil {
				return err
			}
		}
		_, err := tx.Exec(`UPDATE torrent_entry SET raw_torrent_cached = ? WHERE id = ?`, rawCached, torrentID)
		return err
	})
}

// GetFileLayout returns the file_info rows for torrentID, ordered by index,
// or sql.ErrNoRows if torrentID has no stored layout.
func (s *Store) GetFileLayout(torrentID int64) ([]core.FileInfo, error) {
	var rows []core.FileInfo
	err := s.db.Select(&rows, `
		SELECT * FROM file_info WHERE torrent_id = ? ORDER BY file_index ASC`, torrentID)
	if err == nil && len(rows) == 0 {
		return nil, sql.ErrNoRows
	}
	return rows, err
}
