package ratelimit

import (
	"database/sql"
	"math"
	"time"

	"github.com/btncache/mirror/localdb"

	"github.com/andres-erbsen/clock"
	"github.com/jmoiron/sqlx"
)

// GenericBucket is a durable leaky bucket: state is the pair (level,
// last_refill_time), persisted in user.token_bucket_generic and shared by
// every process holding the same database.
type GenericBucket struct {
	db     *sqlx.DB
	clk    clock.Clock
	key    string
	rate   int
	period time.Duration
}

// NewGenericBucket creates a GenericBucket backed by db, identified by key,
// refilling at rate tokens per period.
func NewGenericBucket(db *sqlx.DB, clk clock.Clock, key string, rate int, period time.Duration) *GenericBucket {
	return &GenericBucket{db: db, clk: clk, key: key, rate: rate, period: period}
}

// TryConsume attempts to remove n tokens from the bucket while retaining at
// least leave tokens, without blocking. Returns whether it succeeded, and
// if not, how long the caller should wait before the next attempt would
// succeed (computed analytically from the refill rate).
func (b *GenericBucket) TryConsume(n, leave int) (bool, time.Duration, error) {
	var ok bool
	var wait time.Duration

	err := localdb.WithImmediate(b.db, func(tx *sqlx.Tx) error {
		return lockAndRun(tx, func() error {
			level, lastRefill, err := b.getOrInitTx(tx)
			if err != nil {
				return err
			}

			now := b.clk.Now()
			level, lastRefill = b.refill(level, lastRefill, now)

			if level-float64(n) >= float64(leave) {
				level -= float64(n)
				ok = true
			} else {
				deficit := float64(n+leave) - level
				wait = time.Duration(deficit * float64(b.period) / float64(b.rate))
			}
			return b.saveTx(tx, level, lastRefill)
		})
	})
	if err != nil {
		return false, 0, err
	}
	return ok, wait, nil
}

// Consume blocks until n tokens can be removed from the bucket while
// retaining at least leave tokens.
func (b *GenericBucket) Consume(n, leave int) error {
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

// refill applies the floor((now-last)*rate/period) refill rule, capping at
// rate, and advances lastRefill only by the time consumed by whole tokens
// added — so fractional progress toward the next token isn't discarded.
func (b *GenericBucket) refill(level float64, lastRefill, now time.Time) (float64, time.Time) {
	elapsed := now.Sub(lastRefill)
	if elapsed <= 0 {
		return level, lastRefill
	}
	added := math.Floor(elapsed.Seconds() * float64(b.rate) / b.period.Seconds())
	if added <= 0 {
		return level, lastRefill
	}
	level += added
	if level > float64(b.rate) {
		level = float64(b.rate)
	}
	consumed := time.Duration(added * float64(b.period) / float64(b.rate))
	return level, lastRefill.Add(consumed)
}

func (b *GenericBucket) getOrInitTx(tx *sqlx.Tx) (float64, time.Time, error) {
	var row struct {
		Level      float64 `db:"level"`
		LastRefill float64 `db:"last_refill"`
	}
	err := tx.Get(&row, `
		SELECT level, last_refill FROM user.token_bucket_generic WHERE key = ?`, b.key)
	if err == sql.ErrNoRows {
		now := b.clk.Now()
		_, err := tx.Exec(`
			INSERT INTO user.token_bucket_generic (key, rate, period_secs, level, last_refill)
			VALUES (?, ?, ?, ?, ?)`,
			b.key, b.rate, int(b.period.Seconds()), float64(b.rate), epochSeconds(now))
		if err != nil {
			return 0, time.Time{}, err
		}
		return float64(b.rate), now, nil
	}
	if err != nil {
		return 0, time.Time{}, err
	}
	return row.Level, fromEpochSeconds(row.LastRefill), nil
}

func (b *GenericBucket) saveTx(tx *sqlx.Tx, level float64, lastRefill time.Time) error {
	_, err := tx.Exec(`
		UPDATE user.token_bucket_generic SET level = ?, last_refill = ? WHERE key = ?`,
		level, epochSeconds(lastRefill), b.key)
	return err
}
