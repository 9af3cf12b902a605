package ratelimit

import "time"

func epochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func fromEpochSeconds(s float64) time.Time {
	return time.Unix(0, int64(s*1e9))
}
