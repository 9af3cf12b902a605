package store

import (
	"database/sql"

	"github.com/btncache/mirror/core"

	"github.com/jmoiron/sqlx"
)

// UpsertGroup inserts or updates a torrent_group row, following the same
// three-way compare as UpsertSeries.
func (s *Store) UpsertGroup(group core.Group) error {
	return withImmediate(s.db, func(tx *sqlx.Tx) error {
		return upsertGroupTx(tx, group, func() (int64, error) { return nextChangestamp(tx) })
	})
}

// upsertGroupTx is UpsertGroup's tx-scoped logic, parameterized by a
// changestamp provider; see upsertSeriesTx.
func upsertGroupTx(tx *sqlx.Tx, group core.Group, getCS func() (int64, error)) error {
	var existing core.Group
	err := tx.Get(&existing, `SELECT * FROM torrent_group WHERE id = ?`, group.ID)
	if err == sql.ErrNoRows {
		cs, err := getCS()
		if err != nil {
			return err
		}
		group.UpdatedAt = cs
		group.Deleted = false
		return insertGroupTx(tx, group)
	}
	if err != nil {
		return err
	}
	if groupImportantEqual(existing, group) {
		return nil
	}
	cs, err := getCS()
	if err != nil {
		return err
	}
	group.UpdatedAt = cs
	group.Deleted = existing.Deleted
	return updateGroupTx(tx, group)
}

// insertGroupTx inserts group, which must already carry its final
// UpdatedAt/Deleted values.
func insertGroupTx(tx *sqlx.Tx, group core.Group) error {
	_, err := tx.NamedExec(`
		INSERT INTO torrent_group (id, category, name, series_id, updated_at, deleted)
		VALUES (:id, :category, :name, :series_id, :updated_at, :deleted)`, group)
	return err
}

// updateGroupTx updates group, which must already carry its final
// UpdatedAt/Deleted values.
func updateGroupTx(tx *sqlx.Tx, group core.Group) error {
	_, err := tx.NamedExec(`
		UPDATE torrent_group SET category = :category, name = :name,
			series_id = :series_id, updated_at = :updated_at
		WHERE id = :id`, group)
	return err
}

func groupImportantEqual(a, b core.Group) bool {
	return a.Category == b.Category && a.Name == b.Name && a.SeriesID == b.SeriesID
}

// GetGroup returns the torrent_group row with the given id.
func (s *Store) GetGroup(id int64) (core.Group, error) {
	var group core.Group
	err := s.db.Get(&group, `SELECT * FROM torrent_group WHERE id = ?`, id)
	return group, err
}

// GroupFilter narrows a ListGroups query.
type GroupFilter struct {
	SeriesID *int64
	Deleted  *bool
}

// ListGroups returns torrent_group rows matching filter, newest-id first.
func (s *Store) ListGroups(filter GroupFilter, limit, offset int) ([]core.Group, error) {
	query := `SELECT * FROM torrent_group WHERE 1=1`
	var args []interface{}
	if filter.SeriesID != nil {
		query += ` AND series_id = ?`
		args = append(args, *filter.SeriesID)
	}
	if filter.Deleted != nil {
		query += ` AND deleted = ?`
		args = append(args, *filter.Deleted)
	}
	query += ` ORDER BY id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	var rows []core.Group
	err := s.db.Select(&rows, query, args...)
	return rows, err
}

// MarkGroupsDeleted soft-deletes every non-deleted group in ids, then
// cascades to each affected series, all within a single change-stamp.
func (s *Store) MarkGroupsDeleted(ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	return withImmediate(s.db, func(tx *sqlx.Tx) error {
		var seriesIDs []int64
		query, args, err := sqlx.In(`SELECT DISTINCT series_id FROM torrent_group WHERE id IN (?) AND deleted = 0`, ids)
		if err != nil {
			return err
		}
		if err := tx.Select(&seriesIDs, tx.Rebind(query), args...); err != nil {
			return err
		}
		if len(seriesIDs) == 0 {
			return nil
		}

		cs, err := nextChangestamp(tx)
		if err != nil {
			return err
		}

		query, args, err = sqlx.In(`
			UPDATE torrent_group SET deleted = 1, updated_at = ?
			WHERE id IN (?) AND deleted = 0`, cs, ids)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(tx.Rebind(query), args...); err != nil {
			return err
		}

		for _, seriesID := range seriesIDs {
			if err := markSeriesDeletedIfOrphanedTx(tx, seriesID, cs); err != nil {
				return err
			}
		}
		return nil
	})
}
