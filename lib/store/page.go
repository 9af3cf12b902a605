package store

import (
	"github.com/btncache/mirror/core"

	"github.com/jmoiron/sqlx"
)

// ApplyReconciledPage upserts every entity in page under a single fresh
// change-stamp, then applies the contiguous-window deletion rule from
// spec.md §4.5.1: page.Torrents must list the ids observed at this offset,
// in descending order (the shape Gateway.GetTorrents returns).
//
// Given the page's lowest id iₖ₋₁ and highest id i₀:
//   - if isEnd, every non-deleted torrent_entry with id < iₖ₋₁ is stale
//     (nothing past the end of the catalog was re-observed to keep it
//     alive) and is marked deleted;
//   - every non-deleted torrent_entry with iₖ₋₁ < id < i₀ that was not
//     observed in this page fell out of the contiguous window since the
//     last pass and is marked deleted.
//
// Both rules cascade to orphaned groups and series, sharing the page's one
// change-stamp.
func (s *Store) ApplyReconciledPage(page core.ReconciledPage, isEnd bool) error {
	return withImmediate(s.db, func(tx *sqlx.Tx) error {
		return applyReconciledPageTx(tx, page, isEnd)
	})
}

// applyReconciledPageTx is ApplyReconciledPage's tx-scoped logic, shared
// with ApplyBackfillPage so the backfill scraper's cursor write and page
// reconciliation can live in one transaction (spec.md §4.5 step 4).
func applyReconciledPageTx(tx *sqlx.Tx, page core.ReconciledPage, isEnd bool) error {
	var cs int64
	var csSet bool
	getCS := func() (int64, error) {
		if !csSet {
			var err error
			cs, err = nextChangestamp(tx)
			if err != nil {
				return 0, err
			}
			csSet = true
		}
		return cs, nil
	}

	for _, series := range page.Series {
		if err := upsertSeriesTx(tx, series, getCS); err != nil {
			return err
		}
	}
	for _, group := range page.Groups {
		if err := upsertGroupTx(tx, group, getCS); err != nil {
			return err
		}
	}
	for _, entry := range page.Torrents {
		if err := upsertTorrentEntryTx(tx, entry, getCS); err != nil {
			return err
		}
	}

	if len(page.Torrents) == 0 {
		return nil
	}

	observed := make(map[int64]bool, len(page.Torrents))
	lowID, highID := page.Torrents[0].ID, page.Torrents[0].ID
	for _, entry := range page.Torrents {
		observed[entry.ID] = true
		if entry.ID > highID {
			highID = entry.ID
		}
		if entry.ID < lowID {
			lowID = entry.ID
		}
	}

	var staleIDs []int64
	if isEnd {
		var ids []int64
		if err := tx.Select(&ids, `
			SELECT id FROM torrent_entry WHERE deleted = 0 AND id < ?`, lowID); err != nil {
			return err
		}
		staleIDs = append(staleIDs, ids...)
	}

	var windowIDs []int64
	if err := tx.Select(&windowIDs, `
		SELECT id FROM torrent_entry WHERE deleted = 0 AND id > ? AND id < ?`, lowID, highID); err != nil {
		return err
	}
	for _, id := range windowIDs {
		if !observed[id] {
			staleIDs = append(staleIDs, id)
		}
	}

	if len(staleIDs) == 0 {
		return nil
	}
	return markTorrentEntriesDeletedTx(tx, staleIDs, getCS)
}
