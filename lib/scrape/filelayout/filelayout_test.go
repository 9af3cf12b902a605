package filelayout

import (
	"errors"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/btncache/mirror/core"
	"github.com/btncache/mirror/lib/gateway"
	"github.com/btncache/mirror/lib/ratelimit"
	"github.com/btncache/mirror/lib/store"
	"github.com/btncache/mirror/localdb"

	"github.com/andres-erbsen/clock"
	"github.com/stretchr/testify/require"
)

// singleFileMetafile is a minimal valid bencoded metafile describing one
// 100-byte file named "a.txt".
const singleFileMetafile = "d4:infod6:lengthi100e4:name5:a.txtee"

var errDial = errors.New("dial tcp: connection refused")

// fakeTransport answers every request with a fixed status/body, regardless
// of the request's URL — lets fetchOne exercise core.DownloadURL's
// hardcoded https scheme without a real TLS listener.
type fakeTransport struct {
	status int
	body   string
	err    error
}

func (t *fakeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.err != nil {
		return nil, t.err
	}
	rec := httptest.NewRecorder()
	rec.WriteHeader(t.status)
	rec.WriteString(t.body)
	resp := rec.Result()
	resp.Request = req
	return resp, nil
}

func newTestScraper(t *testing.T, config Config, transport http.RoundTripper) *Scraper {
	db, cleanup := localdb.Fixture()
	t.Cleanup(cleanup)
	clk := clock.NewMock()
	clk.Set(time.Now())
	apiBucket := ratelimit.NewTimeSeriesBucket(db, clk, "api", 150, time.Hour)
	genericBucket := ratelimit.NewGenericBucket(db, clk, "generic", 20, 100*time.Second)

	g := gateway.New(gateway.Config{
		Key:       "k",
		RPCURL:    "http://gateway.test/",
		Site:      "example.test",
		Transport: transport,
	}, apiBucket, genericBucket, nil)
	s := store.New(db)
	return New(config, s, g, clk, nil)
}

func seedTorrent(t *testing.T, s *store.Store, id int64) {
	require.NoError(t, s.UpsertTorrentEntry(core.TorrentEntry{ID: id, GroupID: 1, InfoHash: "H"}))
}

func TestFetchOneDecodesAndPersistsLayout(t *testing.T) {
	require := require.New(t)
	scraper := newTestScraper(t, Config{}, &fakeTransport{status: 200, body: singleFileMetafile})
	seedTorrent(t, scraper.store, 42)

	require.NoError(scraper.fetchOne(42))

	layout, err := scraper.store.GetFileLayout(42)
	require.NoError(err)
	require.Len(layout, 1)
	require.Equal("a.txt", string(layout[0].Path))
	require.Equal(int64(0), layout[0].Start)
	require.Equal(int64(100), layout[0].Stop)

	entry, err := scraper.store.GetTorrentEntry(42)
	require.NoError(err)
	require.False(entry.RawTorrentCached,
		"StoreRawTorrent defaults to false, so no raw metafile reached disk: raw_torrent_cached must stay false")

	ids, err := scraper.store.MissingFileLayout(10)
	require.NoError(err)
	require.NotContains(ids, int64(42), "a decoded layout must not be rescanned even though raw_torrent_cached is false")
}

func TestFetchOneWritesRawTorrentWhenConfigured(t *testing.T) {
	require := require.New(t)
	dir := t.TempDir()
	scraper := newTestScraper(t, Config{StoreRawTorrent: true, CacheDir: dir},
		&fakeTransport{status: 200, body: singleFileMetafile})
	seedTorrent(t, scraper.store, 7)

	require.NoError(scraper.fetchOne(7))

	raw, err := ioutil.ReadFile(filepath.Join(dir, "torrents", "7.torrent"))
	require.NoError(err)
	require.Equal(singleFileMetafile, string(raw))

	entry, err := scraper.store.GetTorrentEntry(7)
	require.NoError(err)
	require.True(entry.RawTorrentCached, "the raw bytes were persisted, so raw_torrent_cached must be true")
}

func TestFetchOneSwallowsTransportError(t *testing.T) {
	require := require.New(t)
	scraper := newTestScraper(t, Config{}, &fakeTransport{err: errDial})

	err := scraper.fetchOne(9)
	require.NoError(err, "transport errors are logged and swallowed, not surfaced")

	_, err = scraper.store.GetFileLayout(9)
	require.Error(err, "no layout should have been persisted")
}

func TestFetchOneReturnsErrorOnMalformedBencode(t *testing.T) {
	require := require.New(t)
	scraper := newTestScraper(t, Config{}, &fakeTransport{status: 200, body: "not bencode"})

	err := scraper.fetchOne(11)
	require.Error(err, "malformed bencode must surface so the row stays unfilled and gets retried")

	_, err = scraper.store.GetFileLayout(11)
	require.Error(err)
}

func TestRescanQueuesMissingLayoutsByDescendingID(t *testing.T) {
	require := require.New(t)
	scraper := newTestScraper(t, Config{ScanLimit: 10}, &fakeTransport{status: 200, body: singleFileMetafile})

	seedTorrent(t, scraper.store, 1)
	seedTorrent(t, scraper.store, 2)
	seedTorrent(t, scraper.store, 3)

	require.NoError(scraper.rescan())
	require.Equal(3, scraper.queue.Len())

	first, err := scraper.queue.Pop()
	require.NoError(err)
	require.Equal(int64(3), first.Value.(int64), "highest id should pop first")
}

func TestStepRescansWhenQueueEmpty(t *testing.T) {
	require := require.New(t)
	scraper := newTestScraper(t, Config{ScanLimit: 10, EmptyQueueSleep: time.Millisecond},
		&fakeTransport{status: 200, body: singleFileMetafile})

	sleep, err := scraper.step()
	require.NoError(err)
	require.Equal(scraper.config.EmptyQueueSleep, sleep, "nothing to fetch: sleep and wait for the next rescan")
}

func TestFormatID(t *testing.T) {
	require.Equal(t, "123", formatID(123))
}
