// Package dedup deduplicates concurrent requests for the same id within one
// process, e.g. concurrent raw-metafile fetches for the same torrent id
// (spec.md §5).
package dedup

import (
	"errors"
	"sync"
	"time"

	"github.com/andres-erbsen/clock"
)

// ErrRequestPending is returned by Start when a request for the same id is
// already in flight.
var ErrRequestPending = errors.New("dedup: request already pending")

// ErrWorkersBusy is returned by Start when NumWorkers are all occupied and
// none freed up within BusyTimeout.
var ErrWorkersBusy = errors.New("dedup: all workers busy")

// RequestCacheConfig configures a RequestCache.
type RequestCacheConfig struct {
	// ErrorTTL is how long a non-not-found error is cached before Start
	// will retry the id.
	ErrorTTL time.Duration `yaml:"error_ttl"`
	// NotFoundTTL is how long a not-found error is cached, independently
	// of ErrorTTL.
	NotFoundTTL time.Duration `yaml:"not_found_ttl"`
	// CleanupInterval is the minimum time between purges of expired
	// cached errors. Purges run only from Start, once this much time has
	// passed since the previous purge.
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
	// NumWorkers bounds concurrent in-flight requests; zero means
	// unbounded.
	NumWorkers int `yaml:"num_workers"`
	// BusyTimeout bounds how long Start waits for a free worker slot
	// before returning ErrWorkersBusy.
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

func (c RequestCacheConfig) applyDefaults() RequestCacheConfig {
	if c.CleanupInterval == 0 {
		c.CleanupInterval = time.Minute
	}
	return c
}

type cachedError struct {
	err       error
	expiresAt time.Time
}

// RequestCache runs at most one function per id at a time, asynchronously,
// caching the outcome briefly so repeated callers for the same id don't
// hammer the underlying resource while a fetch is already in flight or
// recently failed.
type RequestCache struct {
	config     RequestCacheConfig
	clk        clock.Clock
	mu         sync.Mutex
	pending    map[string]bool
	errors     map[string]cachedError
	isNotFound func(error) bool
	lastClean  time.Time
	sem        chan struct{}
}

// NewRequestCache creates a new RequestCache.
func NewRequestCache(config RequestCacheConfig, clk clock.Clock) *RequestCache {
	config = config.applyDefaults()
	var sem chan struct{}
	if config.NumWorkers > 0 {
		sem = make(chan struct{}, config.NumWorkers)
	}
	return &RequestCache{
		config:     config,
		clk:        clk,
		pending:    make(map[string]bool),
		errors:     make(map[string]cachedError),
		isNotFound: func(error) bool { return false },
		lastClean:  clk.Now(),
		sem:        sem,
	}
}

// SetNotFound installs a predicate distinguishing not-found errors, which
// are cached under NotFoundTTL instead of ErrorTTL.
func (d *RequestCache) SetNotFound(f func(error) bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.isNotFound = f
}

// Start runs f for id in the background if no request for id is already
// pending and no cached error is still live. Returns nil once f has been
// launched, ErrRequestPending if a request for id is already in flight, a
// cached error if one is still live, or ErrWorkersBusy if NumWorkers are
// all occupied and none freed within BusyTimeout.
func (d *RequestCache) Start(id string, f func() error) error {
	d.mu.Lock()
	d.maybeCleanLocked()

	if d.pending[id] {
		d.mu.Unlock()
		return ErrRequestPending
	}
	if ce, ok := d.errors[id]; ok && d.clk.Now().Before(ce.expiresAt) {
		d.mu.Unlock()
		return ce.err
	}
	d.pending[id] = true
	d.mu.Unlock()

	if !d.acquireWorker() {
		d.mu.Lock()
		delete(d.pending, id)
		d.mu.Unlock()
		return ErrWorkersBusy
	}

	go func() {
		defer func() {
			d.mu.Lock()
			delete(d.pending, id)
			d.mu.Unlock()
			d.releaseWorker()
		}()
		if err := f(); err != nil {
			notFound := d.isNotFoundErr(err)
			ttl := d.config.ErrorTTL
			if notFound {
				ttl = d.config.NotFoundTTL
			}
			d.mu.Lock()
			d.errors[id] = cachedError{err: err, expiresAt: d.clk.Now().Add(ttl)}
			d.mu.Unlock()
		}
	}()
	return nil
}

func (d *RequestCache) isNotFoundErr(err error) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.isNotFound(err)
}

func (d *RequestCache) acquireWorker() bool {
	if d.sem == nil {
		return true
	}
	if d.config.BusyTimeout > 0 {
		select {
		case d.sem <- struct{}{}:
			return true
		case <-time.After(d.config.BusyTimeout):
			return false
		}
	}
	select {
	case d.sem <- struct{}{}:
		return true
	default:
		return false
	}
}

func (d *RequestCache) releaseWorker() {
	if d.sem != nil {
		<-d.sem
	}
}

func (d *RequestCache) maybeCleanLocked() {
	if d.clk.Now().Sub(d.lastClean) < d.config.CleanupInterval {
		return
	}
	d.lastClean = d.clk.Now()
	for id, ce := range d.errors {
		if !d.clk.Now().Before(ce.expiresAt) {
			delete(d.errors, id)
		}
	}
}
