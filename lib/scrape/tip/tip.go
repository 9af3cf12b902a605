// Package tip implements the tip scraper: a single worker that keeps the
// head of the catalog fresh at low token cost, falling back to a feed
// comparison before paying for a full paginated pass.
package tip

import (
	"strconv"
	"time"

	"github.com/btncache/mirror/core"
	"github.com/btncache/mirror/lib/gateway"
	"github.com/btncache/mirror/lib/store"
	"github.com/btncache/mirror/utils/log"

	"github.com/andres-erbsen/clock"
	"github.com/uber-go/tally"
)

const cursorTipLastScraped = "tip_last_scraped"

// Config configures a Scraper.
type Config struct {
	// FeedTopN bounds how many cached ids the feed fast-path compares
	// against, per spec.md §4.6's "top-1000 non-deleted ids" wording.
	FeedTopN int `yaml:"feed_top_n"`
	// IdleSleep is how long the worker sleeps once a pass is done (or a
	// fast-path check found nothing to do) before polling again.
	IdleSleep time.Duration `yaml:"idle_sleep"`
	// UserID/Auth/PassKey/AuthKey are the feed endpoint's credentials, per
	// original_source/btn's feed URL builder.
	UserID  string `yaml:"user_id"`
	Auth    string `yaml:"auth"`
	PassKey string `yaml:"passkey"`
	AuthKey string `yaml:"authkey"`
}

func (c Config) applyDefaults() Config {
	if c.FeedTopN == 0 {
		c.FeedTopN = 1000
	}
	if c.IdleSleep == 0 {
		c.IdleSleep = 60 * time.Second
	}
	return c
}

// session holds the rolling state of one in-progress catch-up pass,
// per spec.md §4.6. Held only in memory: a restart mid-pass simply starts a
// fresh pass next time, which is safe.
type session struct {
	offset int
	oldest int64 // Lowest id absorbed so far; -1 means "not yet bounded".
	newest int64 // Top id observed at the start of this pass.
}

// Scraper runs the tip-scraping loop described in spec.md §4.6.
type Scraper struct {
	config  Config
	store   *store.Store
	gateway *gateway.Gateway
	clk     clock.Clock
	scope   tally.Scope
	sess    *session
}

// New creates a Scraper.
func New(config Config, s *store.Store, g *gateway.Gateway, clk clock.Clock, scope tally.Scope) *Scraper {
	if scope == nil {
		scope = tally.NoopScope
	}
	return &Scraper{config: config.applyDefaults(), store: s, gateway: g, clk: clk, scope: scope}
}

// Run polls the tip of the catalog until stop is closed, sleeping
// IdleSleep between passes once nothing is left to do.
func (s *Scraper) Run(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		default:
		}

		done, err := s.step()
		if err != nil {
			log.Warnf("tip scraper: step failed: %s", err)
			s.scope.Counter("tip.errors").Inc(1)
			done = true // Don't spin on a persistent error; back off.
		}
		if done {
			select {
			case <-stop:
				return
			case <-s.clk.After(s.config.IdleSleep):
			}
		}
	}
}

// step runs one iteration: either the feed fast-path (no session active) or
// one page of an in-progress pass. Returns true when there is nothing more
// to do right now (fast-path found no drift, or a pass just completed).
func (s *Scraper) step() (bool, error) {
	if s.sess == nil {
		caughtUp, err := s.tryFastPath()
		if err != nil {
			return false, err
		}
		if caughtUp {
			return true, nil
		}
		s.sess = &session{offset: 0, oldest: -1}
	}

	page, err := s.gateway.GetTorrents(s.sess.offset, gateway.DefaultRPCOptions())
	if err != nil {
		if err == core.ErrWouldBlock || core.IsCallLimitExceeded(err) {
			return true, nil // Keep the session; try again after the idle sleep.
		}
		return true, err
	}
	return s.absorb(page)
}

// tryFastPath compares the feed's listed ids against the cache's top-N
// non-deleted ids. If they agree and the head matches tip_last_scraped, no
// pass is needed.
func (s *Scraper) tryFastPath() (bool, error) {
	feedIDs, err := s.gateway.GetFeedIDs(s.config.UserID, s.config.Auth, s.config.PassKey, s.config.AuthKey)
	if err != nil {
		return false, err
	}

	lastScraped, err := s.lastScraped()
	if err != nil {
		return false, err
	}

	cached, err := s.store.ListTorrentEntries(
		store.TorrentEntryFilter{Deleted: boolPtr(false)}, s.config.FeedTopN, 0)
	if err != nil {
		return false, err
	}
	cachedIDs := make([]int64, len(cached))
	for i, entry := range cached {
		cachedIDs[i] = entry.ID
	}

	if !idSetsEqual(feedIDs, cachedIDs) {
		return false, nil
	}
	top := maxID(feedIDs)
	return top == lastScraped, nil
}

// absorb applies update_scrape_results (spec.md §4.6 step 3) for one page
// of an in-progress pass.
func (s *Scraper) absorb(page core.ReconciledPage) (bool, error) {
	if len(page.Torrents) == 0 {
		// Nothing left at this offset: treat as end of catalog.
		s.finishPass()
		return true, nil
	}

	top := page.Torrents[0].ID
	bottom := page.Torrents[len(page.Torrents)-1].ID

	if s.sess.newest == 0 {
		s.sess.newest = top
	}

	goodOverlap := s.sess.oldest < 0 || top >= s.sess.oldest
	if !goodOverlap {
		s.sess.offset /= 2
		if s.sess.offset == 0 {
			s.sess.oldest = -1
		}
		return false, nil
	}

	isEnd := s.sess.offset+len(page.Torrents) >= page.Results
	if err := s.store.ApplyReconciledPage(page, isEnd); err != nil {
		return false, err
	}
	s.scope.Counter("tip.pages").Inc(1)

	if s.sess.oldest < 0 || bottom < s.sess.oldest {
		s.sess.oldest = bottom
	}
	s.sess.offset += len(page.Torrents) - 1

	lastScraped, err := s.lastScraped()
	if err != nil {
		return false, err
	}

	if isEnd || bottom <= lastScraped {
		s.finishPass()
		return true, nil
	}
	return false, nil
}

func (s *Scraper) finishPass() {
	if s.sess != nil && s.sess.newest > 0 {
		value := strconv.FormatInt(s.sess.newest, 10)
		if err := s.store.SetCursor(cursorTipLastScraped, value); err != nil {
			log.Warnf("tip scraper: failed to advance %s: %s", cursorTipLastScraped, err)
		}
	}
	s.sess = nil
}

func (s *Scraper) lastScraped() (int64, error) {
	v, err := s.store.GetCursor(cursorTipLastScraped)
	if err != nil || v == "" {
		return 0, err
	}
	return strconv.ParseInt(v, 10, 64)
}

func boolPtr(b bool) *bool { return &b }

func idSetsEqual(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[int64]bool, len(a))
	for _, id := range a {
		set[id] = true
	}
	for _, id := range b {
		if !set[id] {
			return false
		}
	}
	return true
}

func maxID(ids []int64) int64 {
	var m int64
	for _, id := range ids {
		if id > m {
			m = id
		}
	}
	return m
}
