package store

import (
	"testing"

	"github.com/btncache/mirror/core"

	"github.com/stretchr/testify/require"
)

func TestClaimBackfillOffsetStridesWithOverlap(t *testing.T) {
	require := require.New(t)
	s, cleanup := newTestStore(t)
	defer cleanup()

	first, err := s.ClaimBackfillOffset(10)
	require.NoError(err)
	require.Equal(0, first)

	second, err := s.ClaimBackfillOffset(10)
	require.NoError(err)
	// Stride is BLOCK_SIZE-1 so the next page's first row overlaps the
	// previous page's last row.
	require.Equal(9, second)

	third, err := s.ClaimBackfillOffset(10)
	require.NoError(err)
	require.Equal(18, third)
}

func TestClaimBackfillOffsetWrapsPastLastResults(t *testing.T) {
	require := require.New(t)
	s, cleanup := newTestStore(t)
	defer cleanup()

	require.NoError(s.ApplyBackfillPage(0, core.ReconciledPage{Results: 15}))

	offset, err := s.ClaimBackfillOffset(10)
	require.NoError(err)
	require.Equal(0, offset)

	// next would be 0+10-1=9, still <= 15: no wrap yet.
	offset, err = s.ClaimBackfillOffset(10)
	require.NoError(err)
	require.Equal(9, offset)

	// next would be 9+10-1=18 > 15: wraps back to 0.
	offset, err = s.ClaimBackfillOffset(10)
	require.NoError(err)
	require.Equal(0, offset)

	offset, err = s.ClaimBackfillOffset(10)
	require.NoError(err)
	require.Equal(9, offset)
}

func TestApplyBackfillPageWritesCursorAndReconcilesTogether(t *testing.T) {
	require := require.New(t)
	s, cleanup := newTestStore(t)
	defer cleanup()
	seedGroup(t, s, 1, 10)

	for _, id := range []int64{1, 2, 3, 4, 5, 6} {
		require.NoError(s.UpsertTorrentEntry(entryFixture(id, 10)))
	}

	page := core.ReconciledPage{
		Results:  6,
		Torrents: []core.TorrentEntry{entryFixture(6, 10), entryFixture(5, 10)},
	}
	require.NoError(s.ApplyBackfillPage(4, page))

	lastResults, err := s.GetCursor(cursorScrapeLastResults)
	require.NoError(err)
	require.Equal("6", lastResults)

	for _, id := range []int64{1, 2, 3, 4} {
		e, err := s.GetTorrentEntry(id)
		require.NoError(err)
		require.True(e.Deleted, "id %d should be deleted: offset+len(torrents) >= results marks end of catalog", id)
	}
}
