package core

// GroupCategory enumerates the release container kind for a Group.
type GroupCategory string

// Recognized group categories. The remote may return additional category
// strings; callers should not assume this list is exhaustive (see
// SPEC_FULL.md §9 on the hit-and-run threshold open question).
const (
	CategoryEpisode GroupCategory = "Episode"
	CategorySeason  GroupCategory = "Season"
)

// Series is the catalog entry for a show, identified by the remote's stable
// integer id.
type Series struct {
	ID              int64  `db:"id"`
	IMDbID          string `db:"imdb_id"`
	TVDbID          int64  `db:"tvdb_id"`
	TVRageID        int64  `db:"tvrage_id"`
	Name            string `db:"name"`
	Banner          string `db:"banner"`
	Poster          string `db:"poster"`
	YoutubeTrailer  string `db:"youtube_trailer"`
	UpdatedAt       int64  `db:"updated_at"`
	Deleted         bool   `db:"deleted"`
}

// Group is a release container beneath a Series, e.g. a single Episode or a
// full Season pack.
type Group struct {
	ID        int64         `db:"id"`
	Category  GroupCategory `db:"category"`
	Name      string        `db:"name"`
	SeriesID  int64         `db:"series_id"`
	UpdatedAt int64         `db:"updated_at"`
	Deleted   bool          `db:"deleted"`
}

// TorrentEntry is a specific upload beneath a Group.
type TorrentEntry struct {
	ID               int64  `db:"id"`
	GroupID          int64  `db:"group_id"`
	InfoHash         string `db:"info_hash"` // 20-byte hash, uppercase hex.
	Codec            string `db:"codec"`
	Container        string `db:"container"`
	Origin           string `db:"origin"`
	Resolution       string `db:"resolution"`
	Source           string `db:"source"`
	ReleaseName      string `db:"release_name"`
	Size             int64  `db:"size"`
	Time             int64  `db:"time"` // Upload instant, seconds since epoch.
	Seeders          int64  `db:"seeders"`
	Leechers         int64  `db:"leechers"`
	Snatched         int64  `db:"snatched"`
	RawTorrentCached bool   `db:"raw_torrent_cached"`
	UpdatedAt        int64  `db:"updated_at"`
	Deleted          bool   `db:"deleted"`
}

// FileInfo describes one file inside a torrent's metafile. (TorrentID, Index)
// is the compound primary key. Start/Stop is the file's half-open byte range
// within the concatenated torrent payload.
type FileInfo struct {
	TorrentID int64  `db:"torrent_id"`
	Index     int    `db:"file_index"`
	Path      []byte `db:"path"`
	Start     int64  `db:"start"`
	Stop      int64  `db:"stop"`
}

// UserInfo is the singleton identity/stats row for the configured account.
type UserInfo struct {
	ID         int64  `db:"id"`
	Username   string `db:"username"`
	Email      string `db:"email"`
	Uploaded   int64  `db:"uploaded"`
	Downloaded int64  `db:"downloaded"`
	Enabled    bool   `db:"enabled"`
	Invites    int64  `db:"invites"`
	Lumens     int64  `db:"lumens"`
	JoinDate   int64  `db:"join_date"`
	UpdatedAt  int64  `db:"updated_at"`
}

// Snatch is one user download history entry for a torrent.
type Snatch struct {
	ID         int64 `db:"id"`
	TorrentID  int64 `db:"torrent_id"`
	Downloaded int64 `db:"downloaded"`
	Uploaded   int64 `db:"uploaded"`
	SeedTime   int64 `db:"seed_time"`
	Seeding    bool  `db:"seeding"`
	SnatchTime int64 `db:"snatch_time"`
	// HnRRemoved is the remote's own HnR flag, stored verbatim; see
	// SPEC_FULL.md §9 for why no client-side threshold is recomputed.
	HnRRemoved bool  `db:"hnr_removed"`
	UpdatedAt  int64 `db:"updated_at"`
}

// EntityKind tags a row's table for the dynamic-dispatch cases noted in
// spec.md §9 ("feed() change tail"): a table-name lookup, not inheritance.
type EntityKind int

// Recognized entity kinds.
const (
	KindTorrentEntry EntityKind = iota
	KindGroup
	KindSeries
)

// TableName returns the SQL table backing a given entity kind.
func (k EntityKind) TableName() string {
	switch k {
	case KindTorrentEntry:
		return "torrent_entry"
	case KindGroup:
		return "torrent_group"
	case KindSeries:
		return "series"
	default:
		return ""
	}
}
