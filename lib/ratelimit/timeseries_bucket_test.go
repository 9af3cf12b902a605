package ratelimit

import (
	"testing"
	"time"

	"github.com/btncache/mirror/localdb"

	"github.com/andres-erbsen/clock"
	"github.com/stretchr/testify/require"
)

func TestTimeSeriesBucketConsumesUpToRate(t *testing.T) {
	require := require.New(t)

	db, cleanup := localdb.Fixture()
	defer cleanup()

	clk := clock.NewMock()
	b := NewTimeSeriesBucket(db, clk, "api", 3, time.Hour)

	for i := 0; i < 3; i++ {
		ok, _, err := b.TryConsume(1, 0)
		require.NoError(err)
		require.True(ok, "attempt %d should succeed", i)
	}

	ok, wait, err := b.TryConsume(1, 0)
	require.NoError(err)
	require.False(ok)
	require.True(wait > 0)
}

func TestTimeSeriesBucketWindowSlides(t *testing.T) {
	require := require.New(t)

	db, cleanup := localdb.Fixture()
	defer cleanup()

	clk := clock.NewMock()
	b := NewTimeSeriesBucket(db, clk, "api", 2, time.Hour)

	ok, _, err := b.TryConsume(1, 0)
	require.NoError(err)
	require.True(ok)

	clk.Add(30 * time.Minute)

	ok, _, err = b.TryConsume(1, 0)
	require.NoError(err)
	require.True(ok)

	ok, _, err = b.TryConsume(1, 0)
	require.NoError(err)
	require.False(ok)

	// The first consumption ages out after the full hour.
	clk.Add(31 * time.Minute)

	ok, _, err = b.TryConsume(1, 0)
	require.NoError(err)
	require.True(ok)
}

func TestTimeSeriesBucketSetOverwritesQueue(t *testing.T) {
	require := require.New(t)

	db, cleanup := localdb.Fixture()
	defer cleanup()

	clk := clock.NewMock()
	clk.Add(10 * time.Hour) // avoid a zero mock epoch.
	b := NewTimeSeriesBucket(db, clk, "api", 5, time.Hour)

	now := clk.Now()
	require.NoError(b.Set(5, now))

	ok, wait, err := b.TryConsume(1, 0)
	require.NoError(err)
	require.False(ok)
	require.True(wait >= 0)
	require.True(wait <= time.Hour)

	// Advancing past the oldest synthetic timestamp's expiry frees a slot.
	clk.Add(time.Millisecond)
	ok, _, err = b.TryConsume(1, 0)
	require.NoError(err)
	require.True(ok)
}

func TestTimeSeriesBucketExhaustFillsToRate(t *testing.T) {
	require := require.New(t)

	db, cleanup := localdb.Fixture()
	defer cleanup()

	clk := clock.NewMock()
	clk.Add(10 * time.Hour)
	b := NewTimeSeriesBucket(db, clk, "api", 3, time.Hour)

	// One slot free before the remote tells us we're actually out of quota.
	require.NoError(b.Set(2, clk.Now()))
	ok, _, err := b.TryConsume(1, 0)
	require.NoError(err)
	require.True(ok)

	require.NoError(b.Exhaust(clk.Now()))
	ok, wait, err := b.TryConsume(1, 0)
	require.NoError(err)
	require.False(ok, "exhaust should leave no slots free")
	require.True(wait > 0 && wait <= time.Hour)
}

func TestFillDistributesEvenly(t *testing.T) {
	require := require.New(t)

	now := time.Unix(1000, 0)
	period := time.Minute

	ts := fill(5, now, period)
	require.Len(ts, 5)
	require.Equal(now.Add(-period), ts[0])
	require.Equal(now, ts[4])
	for i := 1; i < len(ts); i++ {
		require.True(ts[i].After(ts[i-1]))
	}
}

func TestFillSingleLevel(t *testing.T) {
	require := require.New(t)

	now := time.Unix(1000, 0)
	ts := fill(1, now, time.Minute)
	require.Equal([]time.Time{now}, ts)
}

func TestFillZeroLevel(t *testing.T) {
	require := require.New(t)
	require.Nil(fill(0, time.Now(), time.Minute))
}
