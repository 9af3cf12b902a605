package store

import (
	"database/sql"

	"github.com/btncache/mirror/core"

	"github.com/jmoiron/sqlx"
)

// UpsertTorrentEntry inserts or updates a torrent_entry row. Unlike
// UpsertSeries/UpsertGroup, torrent_entry carries high-volatility counters
// (seeders, leechers, snatched) that are allowed to change on their own
// without advancing updated_at, per spec.md §4.2(c).
func (s *Store) UpsertTorrentEntry(entry core.TorrentEntry) error {
	return withImmediate(s.db, func(tx *sqlx.Tx) error {
		return upsertTorrentEntryTx(tx, entry, func() (int64, error) { return nextChangestamp(tx) })
	})
}

// upsertTorrentEntryTx is UpsertTorrentEntry's tx-scoped logic,
// parameterized by a changestamp provider; see upsertSeriesTx.
func upsertTorrentEntryTx(tx *sqlx.Tx, entry core.TorrentEntry, getCS func() (int64, error)) error {
	var existing core.TorrentEntry
	err := tx.Get(&existing, `SELECT * FROM torrent_entry WHERE id = ?`, entry.ID)
	if err == sql.ErrNoRows {
		cs, err := getCS()
		if err != nil {
			return err
		}
		entry.UpdatedAt = cs
		entry.Deleted = false
		return insertTorrentEntryTx(tx, entry)
	}
	if err != nil {
		return err
	}

	entry.RawTorrentCached = existing.RawTorrentCached // not remote-observed; preserved.

	switch {
	case torrentEntryImportantEqual(existing, entry) && torrentEntryCountersEqual(existing, entry):
		return nil // (d) no write
	case torrentEntryImportantEqual(existing, entry):
		// (c) only counters differ: update without advancing updated_at.
		_, err := tx.Exec(`
			UPDATE torrent_entry SET seeders = ?, leechers = ?, snatched = ?
			WHERE id = ?`, entry.Seeders, entry.Leechers, entry.Snatched, entry.ID)
		return err
	default:
		// (b) important fields changed: update everything plus updated_at.
		cs, err := getCS()
		if err != nil {
			return err
		}
		entry.UpdatedAt = cs
		entry.Deleted = existing.Deleted
		return updateTorrentEntryTx(tx, entry)
	}
}

func torrentEntryImportantEqual(a, b core.TorrentEntry) bool {
	return a.GroupID == b.GroupID &&
		a.InfoHash == b.InfoHash &&
		a.Codec == b.Codec &&
		a.Container == b.Container &&
		a.Origin == b.Origin &&
		a.Resolution == b.Resolution &&
		a.Source == b.Source &&
		a.ReleaseName == b.ReleaseName &&
		a.Size == b.Size &&
		a.Time == b.Time
}

func torrentEntryCountersEqual(a, b core.TorrentEntry) bool {
	return a.Seeders == b.Seeders && a.Leechers == b.Leechers && a.Snatched == b.Snatched
}

func insertTorrentEntryTx(tx *sqlx.Tx, entry core.TorrentEntry) error {
	_, err := tx.NamedExec(`
		INSERT INTO torrent_entry
			(id, group_id, info_hash, codec, container, origin, resolution, source,
			 release_name, size, time, seeders, leechers, snatched, raw_torrent_cached,
			 updated_at, deleted)
		VALUES
			(:id, :group_id, :info_hash, :codec, :container, :origin, :resolution, :source,
			 :release_name, :size, :time, :seeders, :leechers, :snatched, :raw_torrent_cached,
			 :updated_at, :deleted)`, entry)
	return err
}

func updateTorrentEntryTx(tx *sqlx.Tx, entry core.TorrentEntry) error {
	_, err := tx.NamedExec(`
		UPDATE torrent_entry SET
			group_id = :group_id, info_hash = :info_hash, codec = :codec,
			container = :container, origin = :origin, resolution = :resolution,
			source = :source, release_name = :release_name, size = :size, time = :time,
			seeders = :seeders, leechers = :leechers, snatched = :snatched,
			updated_at = :updated_at
		WHERE id = :id`, entry)
	return err
}

// SetRawTorrentCached flips raw_torrent_cached once the metafile has been
// fetched, parsed, and its file_info rows persisted, per spec.md §3's
// raw_torrent_cached invariant. This does not advance updated_at: it's a
// locally-derived fact, not an observation from the remote.
func (s *Store) SetRawTorrentCached(id int64, cached bool) error {
	_, err := s.db.Exec(`UPDATE torrent_entry SET raw_torrent_cached = ? WHERE id = ?`, cached, id)
	return err
}

// GetTorrentEntry returns the torrent_entry row with the given id.
func (s *Store) GetTorrentEntry(id int64) (core.TorrentEntry, error) {
	var entry core.TorrentEntry
	err := s.db.Get(&entry, `SELECT * FROM torrent_entry WHERE id = ?`, id)
	return entry, err
}

// TorrentEntryFilter narrows a ListTorrentEntries query.
type TorrentEntryFilter struct {
	GroupID          *int64
	Deleted          *bool
	RawTorrentCached *bool
}

// ListTorrentEntries returns torrent_entry rows matching filter, newest-id
// first.
func (s *Store) ListTorrentEntries(filter TorrentEntryFilter, limit, offset int) ([]core.TorrentEntry, error) {
	query := `SELECT * FROM torrent_entry WHERE 1=1`
	var args []interface{}
	if filter.GroupID != nil {
		query += ` AND group_id = ?`
		args = append(args, *filter.GroupID)
	}
	if filter.Deleted != nil {
		query += ` AND deleted = ?`
		args = append(args, *filter.Deleted)
	}
	if filter.RawTorrentCached != nil {
		query += ` AND raw_torrent_cached = ?`
		args = append(args, *filter.RawTorrentCached)
	}
	query += ` ORDER BY id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	var rows []core.TorrentEntry
	err := s.db.Select(&rows, query, args...)
	return rows, err
}

// MissingFileLayout returns up to limit ids of non-deleted torrent_entry
// rows with no file_info rows at all, in descending id order — the walk
// order the file-layout scraper uses (spec.md §4.7). This is deliberately
// independent of raw_torrent_cached: that flag additionally requires the
// raw metafile bytes on disk (spec.md §3), which is only true when
// StoreRawTorrent is enabled, so gating the rescan on it would make the
// scraper refetch an already-decoded layout forever whenever raw bytes
// aren't persisted.
func (s *Store) MissingFileLayout(limit int) ([]int64, error) {
	var ids []int64
	err := s.db.Select(&ids, `
		SELECT id FROM torrent_entry
		WHERE deleted = 0 AND id NOT IN (SELECT DISTINCT torrent_id FROM file_info)
		ORDER BY id DESC LIMIT ?`, limit)
	return ids, err
}

// MarkTorrentEntriesDeleted soft-deletes every non-deleted entry in ids,
// then cascades to each affected group (and transitively series) within a
// single change-stamp.
func (s *Store) MarkTorrentEntriesDeleted(ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	return withImmediate(s.db, func(tx *sqlx.Tx) error {
		return markTorrentEntriesDeletedTx(tx, ids, func() (int64, error) { return nextChangestamp(tx) })
	})
}

// markTorrentEntriesDeletedTx is MarkTorrentEntriesDeleted's tx-scoped
// logic, parameterized by a changestamp provider so page reconciliation
// (lib/store's page.go) can fold this cascade into a page's single
// change-stamp instead of minting its own.
func markTorrentEntriesDeletedTx(tx *sqlx.Tx, ids []int64, getCS func() (int64, error)) error {
	var groupIDs []int64
	query, args, err := sqlx.In(`
		SELECT DISTINCT group_id FROM torrent_entry WHERE id IN (?) AND deleted = 0`, ids)
	if err != nil {
		return err
	}
	if err := tx.Select(&groupIDs, tx.Rebind(query), args...); err != nil {
		return err
	}
	if len(groupIDs) == 0 {
		return nil
	}

	cs, err := getCS()
	if err != nil {
		return err
	}

	query, args, err = sqlx.In(`
		UPDATE torrent_entry SET deleted = 1, updated_at = ?
		WHERE id IN (?) AND deleted = 0`, cs, ids)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(tx.Rebind(query), args...); err != nil {
		return err
	}

	for _, groupID := range groupIDs {
		if err := markGroupDeletedIfOrphanedTx(tx, groupID, cs); err != nil {
			return err
		}
	}
	return nil
}

// markGroupDeletedIfOrphanedTx soft-deletes groupID if it now has zero
// non-deleted child torrent_entry rows, cascading to its series in turn.
func markGroupDeletedIfOrphanedTx(tx *sqlx.Tx, groupID, changestamp int64) error {
	var remaining int
	if err := tx.Get(&remaining, `
		SELECT COUNT(*) FROM torrent_entry WHERE group_id = ? AND deleted = 0`, groupID); err != nil {
		return err
	}
	if remaining > 0 {
		return nil
	}
	var group core.Group
	if err := tx.Get(&group, `SELECT * FROM torrent_group WHERE id = ?`, groupID); err != nil {
		return err
	}
	if _, err := tx.Exec(`
		UPDATE torrent_group SET deleted = 1, updated_at = ? WHERE id = ? AND deleted = 0`,
		changestamp, groupID); err != nil {
		return err
	}
	return markSeriesDeletedIfOrphanedTx(tx, group.SeriesID, changestamp)
}
