package store

import (
	"github.com/btncache/mirror/core"

	"github.com/jmoiron/sqlx"
)

// Cursor names used by the backfill scraper (spec.md §4.5).
const (
	cursorScrapeNextOffset  = "scrape_next_offset"
	cursorScrapeLastResults = "scrape_last_results"
)

// ClaimBackfillOffset atomically reads and advances the shared backfill
// cursor, returning the offset this call should fetch. blockSize matches
// spec.md §4.5's BLOCK_SIZE; the next offset overlaps the current page by
// one row (BLOCK_SIZE-1 stride) so boundary deletions are never missed, and
// wraps back to 0 once it runs past the last known result count. Safe to
// call from multiple worker goroutines: each call claims a distinct offset
// inside its own immediate transaction.
func (s *Store) ClaimBackfillOffset(blockSize int) (int, error) {
	var offset int
	err := withImmediate(s.db, func(tx *sqlx.Tx) error {
		cur, err := getIntCursorTx(tx, cursorScrapeNextOffset)
		if err != nil {
			return err
		}
		lastResults, err := getIntCursorTx(tx, cursorScrapeLastResults)
		if err != nil {
			return err
		}
		offset = cur
		next := offset + blockSize - 1
		if lastResults > 0 && next > lastResults {
			next = 0
		}
		return setIntCursorTx(tx, cursorScrapeNextOffset, next)
	})
	return offset, err
}

// ApplyBackfillPage records page.Results as the new scrape_last_results
// cursor and reconciles page against its offset's contiguous window, in one
// transaction sharing one change-stamp (spec.md §4.5 step 4, §4.5.1).
func (s *Store) ApplyBackfillPage(offset int, page core.ReconciledPage) error {
	return withImmediate(s.db, func(tx *sqlx.Tx) error {
		if err := setIntCursorTx(tx, cursorScrapeLastResults, page.Results); err != nil {
			return err
		}
		isEnd := offset+len(page.Torrents) >= page.Results
		return applyReconciledPageTx(tx, page, isEnd)
	})
}
