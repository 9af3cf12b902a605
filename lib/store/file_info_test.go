package store

import (
	"testing"

	"github.com/btncache/mirror/core"

	"github.com/stretchr/testify/require"
)

func TestReplaceFileLayoutRoundTrip(t *testing.T) {
	require := require.New(t)
	s, cleanup := newTestStore(t)
	defer cleanup()
	seedGroup(t, s, 1, 10)
	require.NoError(s.UpsertTorrentEntry(core.TorrentEntry{ID: 100, GroupID: 10, InfoHash: "ABC"}))

	layout := []core.FileInfo{
		{Index: 0, Path: []byte("x/a"), Start: 0, Stop: 100},
		{Index: 1, Path: []byte("x/b/c"), Start: 100, Stop: 150},
	}
	require.NoError(s.ReplaceFileLayout(100, layout, true))

	got, err := s.GetFileLayout(100)
	require.NoError(err)
	require.Len(got, 2)
	require.Equal([]byte("x/a"), got[0].Path)
	require.Equal(int64(100), got[0].Stop)
	require.Equal([]byte("x/b/c"), got[1].Path)

	entry, err := s.GetTorrentEntry(100)
	require.NoError(err)
	require.True(entry.RawTorrentCached)
}

func TestReplaceFileLayoutWithoutRawBytesLeavesCachedFalse(t *testing.T) {
	require := require.New(t)
	s, cleanup := newTestStore(t)
	defer cleanup()
	seedGroup(t, s, 1, 10)
	require.NoError(s.UpsertTorrentEntry(core.TorrentEntry{ID: 100, GroupID: 10, InfoHash: "ABC"}))

	require.NoError(s.ReplaceFileLayout(100, []core.FileInfo{
		{Index: 0, Path: []byte("x/a"), Start: 0, Stop: 100},
	}, false))

	got, err := s.GetFileLayout(100)
	require.NoError(err)
	require.Len(got, 1)

	entry, err := s.GetTorrentEntry(100)
	require.NoError(err)
	require.False(entry.RawTorrentCached, "raw_torrent_cached must stay false when the raw bytes weren't persisted")

	ids, err := s.MissingFileLayout(10)
	require.NoError(err)
	require.NotContains(ids, int64(100), "a row with file_info rows is no longer missing a layout, regardless of raw_torrent_cached")
}

func TestReplaceFileLayoutOverwritesPrior(t *testing.T) {
	require := require.New(t)
	s, cleanup := newTestStore(t)
	defer cleanup()
	seedGroup(t, s, 1, 10)
	require.NoError(s.UpsertTorrentEntry(core.TorrentEntry{ID: 100, GroupID: 10, InfoHash: "ABC"}))

	require.NoError(s.ReplaceFileLayout(100, []core.FileInfo{
		{Index: 0, Path: []byte("old"), Start: 0, Stop: 10},
	}, true))
	require.NoError(s.ReplaceFileLayout(100, []core.FileInfo{
		{Index: 0, Path: []byte("new"), Start: 0, Stop: 20},
	}, true))

	got, err := s.GetFileLayout(100)
	require.NoError(err)
	require.Len(got, 1)
	require.Equal([]byte("new"), got[0].Path)
}
