// Package account implements the account scraper: a single worker that
// keeps the local mirror's user_info row and snatch history in sync with
// the remote, per SPEC_FULL.md §4.8. Neither is exercised by spec.md's
// catalog scrapers, since getTorrents/getTorrentById never touch them.
package account

import (
	"strconv"
	"time"

	"github.com/btncache/mirror/lib/gateway"
	"github.com/btncache/mirror/lib/store"
	"github.com/btncache/mirror/utils/log"

	"github.com/andres-erbsen/clock"
	"github.com/uber-go/tally"
)

const cursorSnatchlistNextOffset = "snatchlist_next_offset"

// Config configures a Scraper.
type Config struct {
	// PollInterval is how long the worker sleeps between full passes.
	PollInterval time.Duration `yaml:"poll_interval"`
	// PageSize bounds how many snatch rows one getUserSnatchlist call
	// requests at a time.
	PageSize int `yaml:"page_size"`
}

func (c Config) applyDefaults() Config {
	if c.PollInterval == 0 {
		c.PollInterval = 15 * time.Minute
	}
	if c.PageSize == 0 {
		c.PageSize = 500
	}
	return c
}

// Scraper runs the account-sync loop described in SPEC_FULL.md §4.8.
type Scraper struct {
	config  Config
	store   *store.Store
	gateway *gateway.Gateway
	clk     clock.Clock
	scope   tally.Scope
}

// New creates a Scraper.
func New(config Config, s *store.Store, g *gateway.Gateway, clk clock.Clock, scope tally.Scope) *Scraper {
	if scope == nil {
		scope = tally.NoopScope
	}
	return &Scraper{config: config.applyDefaults(), store: s, gateway: g, clk: clk, scope: scope}
}

// Run repeats one full pass (user info, then the snatch history to
// exhaustion) every PollInterval until stop is closed.
func (s *Scraper) Run(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		default:
		}

		if err := s.pass(); err != nil {
			log.Warnf("account scraper: pass failed: %s", err)
			s.scope.Counter("account.errors").Inc(1)
		}

		select {
		case <-stop:
			return
		case <-s.clk.After(s.config.PollInterval):
		}
	}
}

// pass refreshes user_info once, then walks the snatch history from its
// saved cursor to the end, resuming mid-page across restarts.
func (s *Scraper) pass() error {
	info, err := s.gateway.UserInfo()
	if err != nil {
		return err
	}
	if err := s.store.UpsertUserInfo(info); err != nil {
		return err
	}
	s.scope.Counter("account.user_info_refreshed").Inc(1)

	for {
		offset, err := s.nextOffset()
		if err != nil {
			return err
		}

		snatches, results, err := s.gateway.GetUserSnatchlist(s.config.PageSize, offset)
		if err != nil {
			return err
		}
		for _, snatch := range snatches {
			if err := s.store.UpsertSnatch(snatch); err != nil {
				return err
			}
		}
		s.scope.Counter("account.snatches_synced").Inc(int64(len(snatches)))

		next := offset + len(snatches)
		if err := s.store.SetCursor(cursorSnatchlistNextOffset, strconv.Itoa(next)); err != nil {
			return err
		}
		if len(snatches) == 0 || next >= results {
			return nil
		}
	}
}

func (s *Scraper) nextOffset() (int, error) {
	v, err := s.store.GetCursor(cursorSnatchlistNextOffset)
	if err != nil || v == "" {
		return 0, err
	}
	return strconv.Atoi(v)
}
