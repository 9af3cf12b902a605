package store

import (
	"testing"

	"github.com/btncache/mirror/core"

	"github.com/stretchr/testify/require"
)

func TestUpsertSnatchInserts(t *testing.T) {
	require := require.New(t)
	s, cleanup := newTestStore(t)
	defer cleanup()

	require.NoError(s.UpsertSnatch(core.Snatch{
		TorrentID: 5, Downloaded: 10, Uploaded: 20, SeedTime: 30, Seeding: true, SnatchTime: 99,
	}))

	got, err := s.GetSnatch(5)
	require.NoError(err)
	require.Equal(int64(10), got.Downloaded)
	require.True(got.Seeding)
	require.Equal(int64(99), got.SnatchTime)
}

// TestUpsertSnatchCounterOnlyChangeDoesNotAdvanceChangestamp mirrors
// TestUpsertTorrentEntryCounterOnlyChangeDoesNotAdvanceChangestamp: drifting
// seed/transfer counters shouldn't move updated_at.
func TestUpsertSnatchCounterOnlyChangeDoesNotAdvanceChangestamp(t *testing.T) {
	require := require.New(t)
	s, cleanup := newTestStore(t)
	defer cleanup()

	require.NoError(s.UpsertSnatch(core.Snatch{TorrentID: 5, Downloaded: 10, SnatchTime: 99}))
	first, err := s.GetSnatch(5)
	require.NoError(err)

	require.NoError(s.UpsertSnatch(core.Snatch{TorrentID: 5, Downloaded: 40, Uploaded: 7, SnatchTime: 99}))
	second, err := s.GetSnatch(5)
	require.NoError(err)

	require.Equal(first.UpdatedAt, second.UpdatedAt)
	require.Equal(int64(40), second.Downloaded)
}

func TestUpsertSnatchHnRChangeAdvancesChangestamp(t *testing.T) {
	require := require.New(t)
	s, cleanup := newTestStore(t)
	defer cleanup()

	require.NoError(s.UpsertSnatch(core.Snatch{TorrentID: 5, SnatchTime: 99, HnRRemoved: false}))
	first, err := s.GetSnatch(5)
	require.NoError(err)

	require.NoError(s.UpsertSnatch(core.Snatch{TorrentID: 5, SnatchTime: 99, HnRRemoved: true}))
	second, err := s.GetSnatch(5)
	require.NoError(err)

	require.Greater(second.UpdatedAt, first.UpdatedAt)
	require.True(second.HnRRemoved)
}

func TestListSnatchesOrdersDescending(t *testing.T) {
	require := require.New(t)
	s, cleanup := newTestStore(t)
	defer cleanup()

	require.NoError(s.UpsertSnatch(core.Snatch{TorrentID: 1}))
	require.NoError(s.UpsertSnatch(core.Snatch{TorrentID: 3}))
	require.NoError(s.UpsertSnatch(core.Snatch{TorrentID: 2}))

	rows, err := s.ListSnatches(10, 0)
	require.NoError(err)
	require.Len(rows, 3)
	require.Equal(int64(2), rows[0].TorrentID, "snatch.id is assigned by insertion order, descending")
}
