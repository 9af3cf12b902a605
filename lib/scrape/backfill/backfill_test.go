package backfill

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/btncache/mirror/lib/gateway"
	"github.com/btncache/mirror/lib/ratelimit"
	"github.com/btncache/mirror/lib/store"
	"github.com/btncache/mirror/localdb"

	"github.com/andres-erbsen/clock"
	"github.com/stretchr/testify/require"
)

func torrentJSON(id, groupID int64) string {
	return fmt.Sprintf(`"%d":{
		"SeriesID":"1","Series":"Show","SeriesBanner":"","SeriesPoster":"",
		"ImdbID":"","TvdbID":"0","TvrageID":"0","YoutubeTrailer":"",
		"GroupID":"%d","Category":"Episode","GroupName":"S01E01",
		"TorrentID":"%d","Codec":"H.264","Container":"MKV","InfoHash":"HASH%d",
		"Leechers":"0","Origin":"Scene","ReleaseName":"r","Resolution":"1080p",
		"Seeders":"1","Size":"1","Snatched":"0","Source":"HDTV","Time":"1"
	}`, id, groupID, id, id)
}

// fixedPageServer always answers getTorrents with one page containing ids
// 5 and 4, claiming results=6, regardless of the requested offset — enough
// to drive one full backfill step deterministically.
func fixedPageServer(t *testing.T) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := fmt.Sprintf(`{"jsonrpc":"2.0","result":{"results":6,"torrents":{%s,%s}},"id":"1"}`,
			torrentJSON(5, 10), torrentJSON(4, 10))
		w.WriteHeader(200)
		w.Write([]byte(body))
	}))
}

func newTestScraper(t *testing.T, rpcURL string, config Config) (*Scraper, *ratelimit.TimeSeriesBucket, func()) {
	db, cleanup := localdb.Fixture()
	clk := clock.NewMock()
	clk.Set(time.Now())
	apiBucket := ratelimit.NewTimeSeriesBucket(db, clk, "api", 150, time.Hour)
	genericBucket := ratelimit.NewGenericBucket(db, clk, "generic", 20, 100*time.Second)
	g := gateway.New(gateway.Config{Key: "k", RPCURL: rpcURL, Site: "example.test"}, apiBucket, genericBucket, nil)
	s := store.New(db)
	return New(config, s, g, clk, nil), apiBucket, cleanup
}

func TestScraperStepClaimsOffsetAndReconciles(t *testing.T) {
	require := require.New(t)
	srv := fixedPageServer(t)
	defer srv.Close()

	scraper, _, cleanup := newTestScraper(t, srv.URL, Config{BlockSize: 10})
	defer cleanup()

	backoff, err := scraper.step()
	require.NoError(err)
	require.False(backoff)

	entry, err := scraper.store.GetTorrentEntry(5)
	require.NoError(err)
	require.Equal("HASH5", entry.InfoHash)

	cursor, err := scraper.store.GetCursor("scrape_next_offset")
	require.NoError(err)
	require.Equal("9", cursor)
}

func TestScraperStepBacksOffWhenTokenUnavailable(t *testing.T) {
	require := require.New(t)
	srv := fixedPageServer(t)
	defer srv.Close()

	scraper, apiBucket, cleanup := newTestScraper(t, srv.URL, Config{BlockSize: 10})
	defer cleanup()

	// Drain the api bucket directly (non-blocking) so the non-blocking
	// reservation in step 1 fails without risking a blocking Consume call
	// hanging on a mock clock that nothing advances.
	for {
		ok, _, err := apiBucket.TryConsume(1, 0)
		require.NoError(err)
		if !ok {
			break
		}
	}

	backoff, err := scraper.step()
	require.NoError(err)
	require.True(backoff)
}

func TestRunStopsOnClose(t *testing.T) {
	require := require.New(t)
	srv := fixedPageServer(t)
	defer srv.Close()

	scraper, _, cleanup := newTestScraper(t, srv.URL, Config{Workers: 2, BlockSize: 10, IdleSleep: time.Millisecond})
	defer cleanup()

	stop := make(chan struct{})
	var runErr error
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		runErr = scraper.Run(stop)
	}()
	close(stop)
	wg.Wait()
	require.NoError(runErr, "a clean stop shouldn't surface a worker error")
}
