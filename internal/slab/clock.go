package slab

import "time"

// defaultClock returns a function reporting seconds elapsed since the
// clock was created, mirroring original_source's rel_time_t (seconds
// since process start rather than wall-clock Unix time).
func defaultClock() func() int64 {
	start := time.Now()
	return func() int64 {
		return int64(time.Since(start).Seconds())
	}
}
