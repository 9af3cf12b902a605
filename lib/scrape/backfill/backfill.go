// Package backfill implements the backfill scraper: a pool of worker
// goroutines that walk the remote catalog page by page until every row has
// been observed at least once, reconciling deletions as they go.
package backfill

import (
	"fmt"
	"sync"
	"time"

	"github.com/btncache/mirror/core"
	"github.com/btncache/mirror/lib/gateway"
	"github.com/btncache/mirror/lib/store"
	"github.com/btncache/mirror/utils/errutil"
	"github.com/btncache/mirror/utils/log"

	"github.com/andres-erbsen/clock"
	"github.com/uber-go/tally"
)

// Config configures a Scraper.
type Config struct {
	// Workers is the number of worker goroutines running the step loop
	// concurrently, per spec.md §5.
	Workers int `yaml:"workers"`
	// BlockSize is the stride between successive claimed offsets. Pages
	// overlap by one row (BLOCK_SIZE-1 stride) so boundary deletions are
	// never missed, per spec.md §4.5.
	BlockSize int `yaml:"block_size"`
	// TargetTokens is the minimum number of api-bucket tokens a worker
	// leaves unreserved, so the backfill scraper never starves the tip
	// scraper or interactive callers of the gateway.
	TargetTokens int `yaml:"target_tokens"`
	// IdleSleep is how long a worker sleeps after a backoff signal (token
	// unavailable, or the remote reporting WouldBlock).
	IdleSleep time.Duration `yaml:"idle_sleep"`
}

func (c Config) applyDefaults() Config {
	if c.Workers == 0 {
		c.Workers = 10
	}
	if c.BlockSize == 0 {
		c.BlockSize = 1000
	}
	if c.IdleSleep == 0 {
		c.IdleSleep = 60 * time.Second
	}
	return c
}

// Scraper runs the backfill worker pool described in spec.md §4.5.
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

// Run launches config.Workers worker goroutines, each running the step loop
// until stop is closed. Run blocks until every worker has exited, then
// returns the last error each worker saw (nil if none did), joined into one
// error for the caller to log.
func (s *Scraper) Run(stop <-chan struct{}) error {
	var mu sync.Mutex
	var errs []error
	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			if err := s.workerLoop(worker, stop); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("worker %d: %s", worker, err))
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	return errutil.Join(errs)
}

// workerLoop runs the step loop until stop is closed, returning the last
// error it saw (for Run to surface), if any.
func (s *Scraper) workerLoop(worker int, stop <-chan struct{}) error {
	var lastErr error
	for {
		select {
		case <-stop:
			return lastErr
		default:
		}

		backoff, err := s.step()
		if err != nil {
			log.Warnf("backfill worker %d: step failed: %s", worker, err)
			s.scope.Counter("backfill.errors").Inc(1)
			lastErr = err
			backoff = true
		}
		if backoff {
			select {
			case <-stop:
				return lastErr
			case <-s.clk.After(s.config.IdleSleep):
			}
		}
	}
}

// step runs one iteration of the backfill step loop (spec.md §4.5 steps
// 1-4), returning whether the caller should back off before trying again.
func (s *Scraper) step() (bool, error) {
	// Step 1: reserve a token up front without blocking, so a worker that
	// can't get one yields immediately instead of occupying the offset
	// cursor while it waits.
	opts := gateway.DefaultRPCOptions()
	opts.Block = false
	opts.LeaveTokens = s.config.TargetTokens
	if err := s.gateway.ReserveAPIToken(opts); err != nil {
		if err == core.ErrWouldBlock {
			return true, nil
		}
		return true, err
	}

	// Step 2: atomically claim the next offset.
	offset, err := s.store.ClaimBackfillOffset(s.config.BlockSize)
	if err != nil {
		return true, err
	}

	// Step 3: fetch the page. The token was already reserved above.
	fetchOpts := gateway.DefaultRPCOptions()
	fetchOpts.Consume = false
	page, err := s.gateway.GetTorrents(offset, fetchOpts)
	if err != nil {
		if err == core.ErrWouldBlock || core.IsCallLimitExceeded(err) {
			return true, nil
		}
		return true, err
	}
	s.scope.Counter("backfill.pages").Inc(1)

	// Step 4: record the page's claimed total and reconcile, in one
	// transaction.
	if err := s.store.ApplyBackfillPage(offset, page); err != nil {
		return true, err
	}
	return false, nil
}
