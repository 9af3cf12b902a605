// Package filelayout implements the file-layout scraper: a single worker
// that walks torrent_entry rows missing a cached file layout, fetches their
// raw metafile, and persists the decoded layout.
package filelayout

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/btncache/mirror/core"
	"github.com/btncache/mirror/lib/gateway"
	"github.com/btncache/mirror/lib/store"
	"github.com/btncache/mirror/metafile"
	"github.com/btncache/mirror/utils/dedup"
	"github.com/btncache/mirror/utils/heap"
	"github.com/btncache/mirror/utils/log"
	"github.com/btncache/mirror/utils/memsize"

	"github.com/andres-erbsen/clock"
	"github.com/uber-go/tally"
)

// Config configures a Scraper.
type Config struct {
	// ResetInterval is how often the working set is rescanned for rows
	// added or undeleted since the last scan, per spec.md §4.7.
	ResetInterval time.Duration `yaml:"reset_interval"`
	// EmptyQueueSleep is how long the worker sleeps when it finds nothing
	// to fetch.
	EmptyQueueSleep time.Duration `yaml:"empty_queue_sleep"`
	// ErrorSleep is how long the worker sleeps after an unexpected error.
	ErrorSleep time.Duration `yaml:"error_sleep"`
	// ScanLimit bounds how many missing-layout ids one rescan loads into
	// the priority queue at a time.
	ScanLimit int `yaml:"scan_limit"`
	// Concurrency bounds how many fetches run at once through the dedup
	// cache's worker semaphore; the generic token bucket still serializes
	// the actual HTTP calls to the configured rate.
	Concurrency int `yaml:"concurrency"`
	// CacheDir roots the raw-metafile directory (<cache>/torrents/<id>.torrent).
	CacheDir string `yaml:"cache_dir"`
	// StoreRawTorrent persists raw metafile bytes to disk in addition to
	// the decoded layout.
	StoreRawTorrent bool `yaml:"store_raw_torrent"`
	// Site/AuthKey/PassKey build the per-torrent download URL.
	Site    string `yaml:"site"`
	AuthKey string `yaml:"authkey"`
	PassKey string `yaml:"passkey"`
}

func (c Config) applyDefaults() Config {
	if c.ResetInterval == 0 {
		c.ResetInterval = time.Hour
	}
	if c.EmptyQueueSleep == 0 {
		c.EmptyQueueSleep = time.Second
	}
	if c.ErrorSleep == 0 {
		c.ErrorSleep = 60 * time.Second
	}
	if c.ScanLimit == 0 {
		c.ScanLimit = 10000
	}
	if c.Concurrency == 0 {
		c.Concurrency = 4
	}
	return c
}

// Scraper runs the file-layout walk described in spec.md §4.7.
type Scraper struct {
	config   Config
	store    *store.Store
	gateway  *gateway.Gateway
	clk      clock.Clock
	scope    tally.Scope
	queue    *heap.PriorityQueue
	dedup    *dedup.RequestCache
	lastScan time.Time
}

// New creates a Scraper.
func New(config Config, s *store.Store, g *gateway.Gateway, clk clock.Clock, scope tally.Scope) *Scraper {
	if scope == nil {
		scope = tally.NoopScope
	}
	config = config.applyDefaults()
	return &Scraper{
		config:  config,
		store:   s,
		gateway: g,
		clk:     clk,
		scope:   scope,
		queue:   heap.NewPriorityQueue(),
		dedup: dedup.NewRequestCache(dedup.RequestCacheConfig{
			NumWorkers:  config.Concurrency,
			BusyTimeout: time.Second,
		}, clk),
	}
}

// Run walks missing file layouts until stop is closed.
func (s *Scraper) Run(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		default:
		}

		sleep, err := s.step()
		if err != nil {
			log.Warnf("filelayout scraper: step failed: %s", err)
			s.scope.Counter("filelayout.errors").Inc(1)
			sleep = s.config.ErrorSleep
		}
		if sleep > 0 {
			select {
			case <-stop:
				return
			case <-s.clk.After(sleep):
			}
		}
	}
}

// step pops one id off the priority queue (rescanning first if due or
// empty) and fetches its metafile. Returns how long the caller should
// sleep before the next call.
func (s *Scraper) step() (time.Duration, error) {
	if s.queue.Len() == 0 || s.clk.Now().Sub(s.lastScan) >= s.config.ResetInterval {
		if err := s.rescan(); err != nil {
			return 0, err
		}
	}
	if s.queue.Len() == 0 {
		return s.config.EmptyQueueSleep, nil
	}

	item, err := s.queue.Pop()
	if err != nil {
		return s.config.EmptyQueueSleep, nil
	}
	id := item.Value.(int64)

	err = s.dedup.Start(idKey(id), func() error { return s.fetchOne(id) })
	switch err {
	case nil:
		return 0, nil
	case dedup.ErrRequestPending:
		return 0, nil
	case dedup.ErrWorkersBusy:
		s.queue.Push(item) // Put it back; try again once a worker frees up.
		return s.config.EmptyQueueSleep, nil
	default:
		return 0, err
	}
}

// rescan reloads the priority queue with every non-deleted torrent_entry
// id still missing a file layout, in descending-id priority order
// (Priority = -id so the highest id pops first).
func (s *Scraper) rescan() error {
	ids, err := s.store.MissingFileLayout(s.config.ScanLimit)
	if err != nil {
		return err
	}
	items := make([]*heap.Item, len(ids))
	for i, id := range ids {
		items[i] = &heap.Item{Value: id, Priority: int(-id)}
	}
	s.queue = heap.NewPriorityQueue(items...)
	s.lastScan = s.clk.Now()
	return nil
}

// fetchOne downloads, decodes, and persists the file layout for id.
func (s *Scraper) fetchOne(id int64) error {
	url := core.DownloadURL(s.config.Site, s.config.AuthKey, s.config.PassKey, id)
	raw, err := s.gateway.Get(url)
	if err != nil {
		log.Warnf("filelayout scraper: fetch %d: %s", id, err)
		return nil // HTTP error: log and continue, per spec.md §4.7.
	}

	layout, err := metafile.Decode(raw, id)
	if err != nil {
		return err // Malformed bencode: row stays unfilled, retried next scan.
	}

	if s.config.StoreRawTorrent {
		if err := s.writeRawTorrent(id, raw); err != nil {
			return err
		}
	}

	// raw_torrent_cached only goes true when the bytes above were actually
	// written to disk, per the raw_torrent_cached invariant in spec.md §3.
	if err := s.store.ReplaceFileLayout(id, layout, s.config.StoreRawTorrent); err != nil {
		return err
	}
	s.scope.Counter("filelayout.fetched").Inc(1)
	s.scope.Gauge("filelayout.fetched_bytes").Update(float64(len(raw)))
	log.Debugf("filelayout scraper: fetched %d (%s, %d files)", id, memsize.Format(uint64(len(raw))), len(layout))
	return nil
}

func (s *Scraper) writeRawTorrent(id int64, raw []byte) error {
	path := filepath.Join(s.config.CacheDir, "torrents", formatID(id)+".torrent")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return ioutil.WriteFile(path, raw, 0644)
}

func idKey(id int64) string {
	return formatID(id)
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
