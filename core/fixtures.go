package core

import (
	"fmt"
	"math/rand"
)

// SeriesFixture returns a random Series for testing purposes.
func SeriesFixture() Series {
	id := rand.Int63n(1 << 30)
	return Series{
		ID:     id,
		IMDbID: fmt.Sprintf("tt%07d", id),
		Name:   fmt.Sprintf("series-%d", id),
	}
}

// GroupFixture returns a random Group under seriesID for testing purposes.
func GroupFixture(seriesID int64) Group {
	id := rand.Int63n(1 << 30)
	return Group{
		ID:       id,
		Category: CategoryEpisode,
		Name:     fmt.Sprintf("group-%d", id),
		SeriesID: seriesID,
	}
}

// TorrentEntryFixture returns a random TorrentEntry under groupID for
// testing purposes.
func TorrentEntryFixture(groupID int64) TorrentEntry {
	id := rand.Int63n(1 << 30)
	return TorrentEntry{
		ID:          id,
		GroupID:     groupID,
		InfoHash:    fmt.Sprintf("%040X", rand.Int63()),
		ReleaseName: fmt.Sprintf("release-%d", id),
		Size:        rand.Int63n(1 << 34),
		Time:        rand.Int63n(1 << 31),
		Seeders:     rand.Int63n(100),
		Leechers:    rand.Int63n(100),
		Snatched:    rand.Int63n(1000),
	}
}
