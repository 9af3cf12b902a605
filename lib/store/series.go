package store

import (
	"database/sql"

	"github.com/btncache/mirror/core"

	"github.com/jmoiron/sqlx"
)

// UpsertSeries inserts or updates a series row, following spec.md §4.2's
// three-way compare: insert if absent, update (advancing the change-stamp)
// if any important field differs, else no write.
func (s *Store) UpsertSeries(series core.Series) error {
	return withImmediate(s.db, func(tx *sqlx.Tx) error {
		return upsertSeriesTx(tx, series, func() (int64, error) { return nextChangestamp(tx) })
	})
}

// upsertSeriesTx is UpsertSeries's tx-scoped logic, parameterized by a
// changestamp provider so a batch of entities (e.g. one reconciled page)
// can share a single fresh change-stamp across every row it touches,
// per spec.md §4.5.1.
func upsertSeriesTx(tx *sqlx.Tx, series core.Series, getCS func() (int64, error)) error {
	var existing core.Series
	err := tx.Get(&existing, `SELECT * FROM series WHERE id = ?`, series.ID)
	if err == sql.ErrNoRows {
		cs, err := getCS()
		if err != nil {
			return err
		}
		series.UpdatedAt = cs
		series.Deleted = false
		return insertSeriesTx(tx, series)
	}
	if err != nil {
		return err
	}
	if seriesImportantEqual(existing, series) {
		return nil
	}
	cs, err := getCS()
	if err != nil {
		return err
	}
	series.UpdatedAt = cs
	series.Deleted = existing.Deleted
	return updateSeriesTx(tx, series)
}

// insertSeriesTx inserts series, which must already carry its final
// UpdatedAt/Deleted values.
func insertSeriesTx(tx *sqlx.Tx, series core.Series) error {
	_, err := tx.NamedExec(`
		INSERT INTO series
			(id, imdb_id, tvdb_id, tvrage_id, name, banner, poster, youtube_trailer, updated_at, deleted)
		VALUES
			(:id, :imdb_id, :tvdb_id, :tvrage_id, :name, :banner, :poster, :youtube_trailer, :updated_at, :deleted)`,
		series)
	return err
}

// updateSeriesTx updates series, which must already carry its final
// UpdatedAt/Deleted values.
func updateSeriesTx(tx *sqlx.Tx, series core.Series) error {
	_, err := tx.NamedExec(`
		UPDATE series SET
			imdb_id = :imdb_id, tvdb_id = :tvdb_id, tvrage_id = :tvrage_id,
			name = :name, banner = :banner, poster = :poster,
			youtube_trailer = :youtube_trailer, updated_at = :updated_at
		WHERE id = :id`, series)
	return err
}

func seriesImportantEqual(a, b core.Series) bool {
	return a.IMDbID == b.IMDbID &&
		a.TVDbID == b.TVDbID &&
		a.TVRageID == b.TVRageID &&
		a.Name == b.Name &&
		a.Banner == b.Banner &&
		a.Poster == b.Poster &&
		a.YoutubeTrailer == b.YoutubeTrailer
}

// GetSeries returns the series row with the given id.
func (s *Store) GetSeries(id int64) (core.Series, error) {
	var series core.Series
	err := s.db.Get(&series, `SELECT * FROM series WHERE id = ?`, id)
	return series, err
}

// SeriesFilter narrows a ListSeries query.
type SeriesFilter struct {
	Deleted *bool
}

// ListSeries returns series rows matching filter, newest-id first.
func (s *Store) ListSeries(filter SeriesFilter, limit, offset int) ([]core.Series, error) {
	query := `SELECT * FROM series WHERE 1=1`
	var args []interface{}
	if filter.Deleted != nil {
		query += ` AND deleted = ?`
		args = append(args, *filter.Deleted)
	}
	query += ` ORDER BY id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	var rows []core.Series
	err := s.db.Select(&rows, query, args...)
	return rows, err
}

// markSeriesDeletedIfOrphanedTx soft-deletes seriesID if it now has zero
// non-deleted child groups, cascading from a group deletion.
func markSeriesDeletedIfOrphanedTx(tx *sqlx.Tx, seriesID, changestamp int64) error {
	var remaining int
	if err := tx.Get(&remaining, `
		SELECT COUNT(*) FROM torrent_group WHERE series_id = ? AND deleted = 0`, seriesID); err != nil {
		return err
	}
	if remaining > 0 {
		return nil
	}
	_, err := tx.Exec(`
		UPDATE series SET deleted = 1, updated_at = ? WHERE id = ? AND deleted = 0`,
		changestamp, seriesID)
	return err
}
