// Package backoff implements exponential backoff with an overall deadline.
package backoff

import (
	"errors"
	"math"
	"math/rand"
	"time"
)

// Config configures a Backoff.
type Config struct {
	Min          time.Duration `yaml:"min"`
	Max          time.Duration `yaml:"max"`
	Factor       float64       `yaml:"factor"`
	NoJitter     bool          `yaml:"no_jitter"`
	RetryTimeout time.Duration `yaml:"retry_timeout"`
}

func (c Config) applyDefaults() Config {
	if c.Factor == 0 {
		c.Factor = 2
	}
	if c.Max == 0 {
		c.Max = time.Duration(math.MaxInt64)
	}
	return c
}

// Backoff generates a bounded sequence of exponentially increasing delays.
type Backoff struct {
	config Config
}

// New creates a new Backoff.
func New(config Config) *Backoff {
	return &Backoff{config.applyDefaults()}
}

// ErrRetryTimeout is returned by Attempts.Err after the overall retry
// deadline has elapsed.
var ErrRetryTimeout = errors.New("backoff: retry timeout exceeded")

// Attempts is a stateful iterator over one bounded retry sequence.
type Attempts struct {
	b     *Backoff
	start time.Time
	n     int
	err   error
}

// Attempts starts a new bounded retry sequence.
func (b *Backoff) Attempts() *Attempts {
	return &Attempts{b: b, start: time.Now()}
}

// WaitForNext sleeps for the next backoff delay (zero on the first call)
// and reports whether another attempt should be made within the configured
// RetryTimeout. Once it returns false, Err returns the reason.
func (a *Attempts) WaitForNext() bool {
	delay := a.nextDelay()
	if a.b.config.RetryTimeout > 0 && time.Since(a.start)+delay > a.b.config.RetryTimeout {
		a.err = ErrRetryTimeout
		return false
	}
	if delay > 0 {
		time.Sleep(delay)
	}
	a.n++
	return true
}

// Err returns the reason iteration stopped, or nil if it hasn't stopped yet.
func (a *Attempts) Err() error {
	return a.err
}

func (a *Attempts) nextDelay() time.Duration {
	if a.n == 0 {
		return 0
	}
	c := a.b.config
	d := float64(c.Min) * math.Pow(c.Factor, float64(a.n-1))
	if d > float64(c.Max) {
		d = float64(c.Max)
	}
	delay := time.Duration(d)
	if !c.NoJitter {
		delay = time.Duration(float64(delay) * (0.5 + rand.Float64()/2))
	}
	return delay
}
