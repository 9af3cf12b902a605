package gateway

import (
	"encoding/json"

	"github.com/btncache/mirror/core"
)

// getTorrentsResult is the raw shape of a getTorrents/getTorrentById
// "result" member, keyed by torrent id per original_source/btn's
// _torrent_entry_from_json.
type getTorrentsResult struct {
	Results  json.Number                `json:"results"`
	Torrents map[string]json.RawMessage `json:"torrents"`
}

// torrentJSON is one entry of getTorrentsResult.Torrents.
type torrentJSON struct {
	SeriesID       json.Number `json:"SeriesID"`
	Series         string      `json:"Series"`
	SeriesBanner   string      `json:"SeriesBanner"`
	SeriesPoster   string      `json:"SeriesPoster"`
	ImdbID         string      `json:"ImdbID"`
	TvdbID         json.Number `json:"TvdbID"`
	TvrageID       json.Number `json:"TvrageID"`
	YoutubeTrailer string      `json:"YoutubeTrailer"`

	GroupID   json.Number `json:"GroupID"`
	Category  string      `json:"Category"`
	GroupName string      `json:"GroupName"`

	TorrentID   json.Number `json:"TorrentID"`
	Codec       string      `json:"Codec"`
	Container   string      `json:"Container"`
	InfoHash    string      `json:"InfoHash"`
	Leechers    json.Number `json:"Leechers"`
	Origin      string      `json:"Origin"`
	ReleaseName string      `json:"ReleaseName"`
	Resolution  string      `json:"Resolution"`
	Seeders     json.Number `json:"Seeders"`
	Size        json.Number `json:"Size"`
	Snatched    json.Number `json:"Snatched"`
	Source      string      `json:"Source"`
	Time        json.Number `json:"Time"`
}

// entitiesFromJSON normalizes one torrentJSON into the three entity records
// it describes, per spec.md §3's series -> group -> torrent_entry nesting.
func entitiesFromJSON(tj torrentJSON) (core.Series, core.Group, core.TorrentEntry, error) {
	seriesID, err := tj.SeriesID.Int64()
	if err != nil {
		return core.Series{}, core.Group{}, core.TorrentEntry{}, errf("SeriesID: %s", err)
	}
	groupID, err := tj.GroupID.Int64()
	if err != nil {
		return core.Series{}, core.Group{}, core.TorrentEntry{}, errf("GroupID: %s", err)
	}
	torrentID, err := tj.TorrentID.Int64()
	if err != nil {
		return core.Series{}, core.Group{}, core.TorrentEntry{}, errf("TorrentID: %s", err)
	}

	series := core.Series{
		ID:             seriesID,
		IMDbID:         tj.ImdbID,
		TVDbID:         numberOrZero(tj.TvdbID),
		TVRageID:       numberOrZero(tj.TvrageID),
		Name:           tj.Series,
		Banner:         tj.SeriesBanner,
		Poster:         tj.SeriesPoster,
		YoutubeTrailer: tj.YoutubeTrailer,
	}
	group := core.Group{
		ID:       groupID,
		Category: core.GroupCategory(tj.Category),
		Name:     tj.GroupName,
		SeriesID: seriesID,
	}
	entry := core.TorrentEntry{
		ID:          torrentID,
		GroupID:     groupID,
		InfoHash:    tj.InfoHash,
		Codec:       tj.Codec,
		Container:   tj.Container,
		Origin:      tj.Origin,
		Resolution:  tj.Resolution,
		Source:      tj.Source,
		ReleaseName: tj.ReleaseName,
		Size:        numberOrZero(tj.Size),
		Time:        numberOrZero(tj.Time),
		Seeders:     numberOrZero(tj.Seeders),
		Leechers:    numberOrZero(tj.Leechers),
		Snatched:    numberOrZero(tj.Snatched),
	}
	return series, group, entry, nil
}

func numberOrZero(n json.Number) int64 {
	if n == "" {
		return 0
	}
	v, err := n.Int64()
	if err != nil {
		return 0
	}
	return v
}

// decodeTorrentsPage parses a getTorrents "result" member into a
// core.ReconciledPage, the shape the backfill/tip scrapers reconcile
// against (spec.md §4.5.1).
func decodeTorrentsPage(raw json.RawMessage) (core.ReconciledPage, error) {
	var r getTorrentsResult
	if err := json.Unmarshal(raw, &r); err != nil {
		return core.ReconciledPage{}, errf("decode getTorrents result: %s", err)
	}
	results, err := r.Results.Int64()
	if err != nil {
		return core.ReconciledPage{}, errf("results: %s", err)
	}

	page := core.ReconciledPage{Results: int(results)}
	for _, rawEntry := range r.Torrents {
		var tj torrentJSON
		if err := json.Unmarshal(rawEntry, &tj); err != nil {
			return core.ReconciledPage{}, errf("decode torrent entry: %s", err)
		}
		series, group, entry, err := entitiesFromJSON(tj)
		if err != nil {
			return core.ReconciledPage{}, err
		}
		page.Series = append(page.Series, series)
		page.Groups = append(page.Groups, group)
		page.Torrents = append(page.Torrents, entry)
	}
	return page, nil
}

// userInfoJSON is the raw shape of a userInfo "result" member, per
// original_source/btn's _user_info_from_json.
type userInfoJSON struct {
	UserID   json.Number `json:"UserID"`
	Username string      `json:"Username"`
	Email    string      `json:"Email"`
	Upload   json.Number `json:"Upload"`
	Download json.Number `json:"Download"`
	Enabled  json.Number `json:"Enabled"`
	Invites  json.Number `json:"Invites"`
	Lumens   json.Number `json:"Lumens"`
	JoinDate json.Number `json:"JoinDate"`
}

func userInfoFromJSON(raw json.RawMessage) (core.UserInfo, error) {
	var j userInfoJSON
	if err := json.Unmarshal(raw, &j); err != nil {
		return core.UserInfo{}, errf("decode userInfo result: %s", err)
	}
	id, err := j.UserID.Int64()
	if err != nil {
		return core.UserInfo{}, errf("UserID: %s", err)
	}
	return core.UserInfo{
		ID:         id,
		Username:   j.Username,
		Email:      j.Email,
		Uploaded:   numberOrZero(j.Upload),
		Downloaded: numberOrZero(j.Download),
		Enabled:    numberOrZero(j.Enabled) != 0,
		Invites:    numberOrZero(j.Invites),
		Lumens:     numberOrZero(j.Lumens),
		JoinDate:   numberOrZero(j.JoinDate),
	}, nil
}

// snatchJSON is the raw shape of one getUserSnatchlist entry. The remote's
// exact field names for this method weren't exercised in original_source
// (getUserSnatchlistJson's result was never consumed there); this mirrors
// the column names the original schema settled on (snatch_time, seed_time,
// hnr_removed) per original_source's user_info/Snatch schema fields.
type snatchJSON struct {
	TorrentID  json.Number `json:"TorrentID"`
	Downloaded json.Number `json:"Downloaded"`
	Uploaded   json.Number `json:"Uploaded"`
	Seedtime   json.Number `json:"Seedtime"`
	Seeding    json.Number `json:"IsSeeding"`
	Snatched   json.Number `json:"Snatched"`
	HnR        json.Number `json:"IsHnR"`
}

func snatchFromJSON(raw json.RawMessage) (core.Snatch, error) {
	var j snatchJSON
	if err := json.Unmarshal(raw, &j); err != nil {
		return core.Snatch{}, errf("decode snatch entry: %s", err)
	}
	torrentID, err := j.TorrentID.Int64()
	if err != nil {
		return core.Snatch{}, errf("TorrentID: %s", err)
	}
	return core.Snatch{
		TorrentID:  torrentID,
		Downloaded: numberOrZero(j.Downloaded),
		Uploaded:   numberOrZero(j.Uploaded),
		SeedTime:   numberOrZero(j.Seedtime),
		Seeding:    numberOrZero(j.Seeding) != 0,
		SnatchTime: numberOrZero(j.Snatched),
		HnRRemoved: numberOrZero(j.HnR) != 0,
	}, nil
}

// decodeSnatchlistPage parses a getUserSnatchlist "result" member.
func decodeSnatchlistPage(raw json.RawMessage) ([]core.Snatch, int, error) {
	var r struct {
		Results  json.Number                `json:"results"`
		Snatches map[string]json.RawMessage `json:"torrents"`
	}
	if err := json.Unmarshal(raw, &r); err != nil {
		return nil, 0, errf("decode getUserSnatchlist result: %s", err)
	}
	results, err := r.Results.Int64()
	if err != nil {
		return nil, 0, errf("results: %s", err)
	}
	var snatches []core.Snatch
	for _, rawEntry := range r.Snatches {
		s, err := snatchFromJSON(rawEntry)
		if err != nil {
			return nil, 0, err
		}
		snatches = append(snatches, s)
	}
	return snatches, int(results), nil
}
