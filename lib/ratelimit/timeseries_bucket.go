package ratelimit

import (
	"time"

	"github.com/btncache/mirror/localdb"

	"github.com/andres-erbsen/clock"
	"github.com/jmoiron/sqlx"
)

// TimeSeriesBucket models the remote's exact sliding-window quota: state is
// a queue of up to rate consumption timestamps, persisted in
// user.token_bucket_timeseries. A token is available iff fewer than rate
// timestamps lie within [now-period, now].
type TimeSeriesBucket struct {
	db     *sqlx.DB
	clk    clock.Clock
	key    string
	rate   int
	period time.Duration
}

// NewTimeSeriesBucket creates a TimeSeriesBucket backed by db, identified by
// key, permitting rate consumptions per period.
func NewTimeSeriesBucket(db *sqlx.DB, clk clock.Clock, key string, rate int, period time.Duration) *TimeSeriesBucket {
	return &TimeSeriesBucket{db: db, clk: clk, key: key, rate: rate, period: period}
}

// TryConsume attempts to record n consumptions while keeping at least leave
// slots free in the window, without blocking. Returns whether it succeeded,
// and if not, how long until the oldest entries blocking it will have aged
// out of the window.
func (b *TimeSeriesBucket) TryConsume(n, leave int) (bool, time.Duration, error) {
	var ok bool
	var wait time.Duration

	err := localdb.WithImmediate(b.db, func(tx *sqlx.Tx) error {
		return lockAndRun(tx, func() error {
			now := b.clk.Now()
			windowStart := now.Add(-b.period)

			var timestamps []float64
			if err := tx.Select(&timestamps, `
				SELECT at FROM user.token_bucket_timeseries
				WHERE key = ? AND at >= ?
				ORDER BY at ASC`, b.key, epochSeconds(windowStart)); err != nil {
				return err
			}

			count := len(timestamps)
			threshold := b.rate - n - leave

			if count <= threshold {
				ok = true
				for i := 0; i < n; i++ {
					if _, err := tx.Exec(`
						INSERT INTO user.token_bucket_timeseries (key, at) VALUES (?, ?)`,
						b.key, epochSeconds(now)); err != nil {
						return err
					}
				}
				_, err := tx.Exec(`
					DELETE FROM user.token_bucket_timeseries WHERE key = ? AND at < ?`,
					b.key, epochSeconds(windowStart))
				return err
			}

			deficit := count - threshold
			expiring := fromEpochSeconds(timestamps[deficit-1])
			wait = expiring.Add(b.period).Sub(now)
			// The window includes its start instant, so an entry only ages
			// out strictly after at+period: never report a zero wait.
			if wait <= 0 {
				wait = time.Nanosecond
			}
			return nil
		})
	})
	if err != nil {
		return false, 0, err
	}
	return ok, wait, nil
}

// Consume blocks until n consumptions can be recorded while keeping at
// least leave slots free in the window.
func (b *TimeSeriesBucket) Consume(n, leave int) error {
	for {
		ok, wait, err := b.TryConsume(n, leave)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		b.clk.Sleep(wait)
	}
}

// Set rewrites the bucket's queue to level synthetic timestamps distributed
// evenly across [queryTime-period, queryTime], discarding whatever was
// there before. Used when the remote reports a quota breach: it forces
// subsequent callers to wait precisely the remote's own sliding window.
func (b *TimeSeriesBucket) Set(level int, queryTime time.Time) error {
	return localdb.WithImmediate(b.db, func(tx *sqlx.Tx) error {
		return lockAndRun(tx, func() error {
			if _, err := tx.Exec(`DELETE FROM user.token_bucket_timeseries WHERE key = ?`, b.key); err != nil {
				return err
			}
			for _, ts := range fill(level, queryTime, b.period) {
				if _, err := tx.Exec(`
					INSERT INTO user.token_bucket_timeseries (key, at) VALUES (?, ?)`,
					b.key, epochSeconds(ts)); err != nil {
					return err
				}
			}
			return nil
		})
	})
}

// Exhaust rewrites the bucket as if all rate slots were consumed evenly
// across [queryTime-period, queryTime]. Called when the remote reports a
// quota breach we didn't see coming: our local accounting under-counted,
// so the safe correction is to assume the window is entirely full as of
// queryTime, forcing subsequent callers to wait out the remote's own
// sliding window rather than retrying immediately.
func (b *TimeSeriesBucket) Exhaust(queryTime time.Time) error {
	return b.Set(b.rate, queryTime)
}

// fill distributes level synthetic timestamps evenly across
// [queryTime-period, queryTime].
func fill(level int, queryTime time.Time, period time.Duration) []time.Time {
	if level <= 0 {
		return nil
	}
	if level == 1 {
		return []time.Time{queryTime}
	}
	start := queryTime.Add(-period)
	step := period / time.Duration(level-1)
	ts := make([]time.Time, level)
	for i := 0; i < level; i++ {
		ts[i] = start.Add(step * time.Duration(i))
	}
	return ts
}
