package gateway

import (
	"math"
	"sort"

	"github.com/btncache/mirror/core"
)

// unboundedResults is the largest signed 32-bit value (2**31-1), requested
// as results so the remote returns every row it has for the page rather
// than truncating at its own default of 10.
const unboundedResults = math.MaxInt32

// emptyFilters matches original_source/btn's getTorrentsPaged, which always
// passes an empty filters dict when it wants every row rather than a
// filtered subset.
var emptyFilters = map[string]interface{}{}

// GetTorrents fetches one page of the torrent catalog starting at offset,
// requesting every row the remote has there. opts controls the call's
// token accounting: callers that already reserved a token (the backfill
// scraper, per spec.md §4.5 step 1) pass Consume=false.
func (g *Gateway) GetTorrents(offset int, opts RPCOptions) (core.ReconciledPage, error) {
	raw, err := g.rpc("getTorrents", opts, emptyFilters, unboundedResults, offset)
	if err != nil {
		return core.ReconciledPage{}, err
	}
	page, err := decodeTorrentsPage(raw)
	if err != nil {
		return core.ReconciledPage{}, err
	}
	// The original client walks pages in descending-id order; preserve that
	// for callers that rely on ordering (original_source/btn's
	// sorted(tes, key=lambda te: -te.id)).
	sort.Slice(page.Torrents, func(i, j int) bool { return page.Torrents[i].ID > page.Torrents[j].ID })
	return page, nil
}

// GetTorrentByID fetches a single torrent's full record, wrapped as a
// one-entry page.
func (g *Gateway) GetTorrentByID(id int64) (core.ReconciledPage, error) {
	raw, err := g.rpc("getTorrentById", DefaultRPCOptions(), id)
	if err != nil {
		return core.ReconciledPage{}, err
	}
	return decodeTorrentsPage(raw)
}

// GetUserSnatchlist fetches one page of the configured account's snatch
// history.
func (g *Gateway) GetUserSnatchlist(results, offset int) ([]core.Snatch, int, error) {
	raw, err := g.rpc("getUserSnatchlist", DefaultRPCOptions(), results, offset)
	if err != nil {
		return nil, 0, err
	}
	return decodeSnatchlistPage(raw)
}

// UserInfo fetches the configured account's identity/stats row.
func (g *Gateway) UserInfo() (core.UserInfo, error) {
	raw, err := g.rpc("userInfo", DefaultRPCOptions())
	if err != nil {
		return core.UserInfo{}, err
	}
	return userInfoFromJSON(raw)
}
