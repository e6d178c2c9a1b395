package replay

import (
	"chronolog/util"
	"math"
	"time"
)

// kMaxDelayMs is the longest delay in millis that fits in a time.Duration.
const kMaxDelayMs = float64(math.MaxInt64 / int64(time.Millisecond))

// timingWindow holds the timestamps of the previous and current records of a replay. A window with fewer than two
// records has no previous record.
type timingWindow struct {
	previous int64
	current  int64
	size     int
}

// push slides the window over the given timestamp.
func (w timingWindow) push(ts int64) timingWindow {
	if w.size == 0 {
		return timingWindow{current: ts, size: 1}
	}
	return timingWindow{previous: w.current, current: ts, size: 2}
}

// deltaMs returns the time between the previous and current records. It is 0 for the first record and for records
// that are older than their predecessor.
func (w timingWindow) deltaMs() int64 {
	if w.size < 2 {
		return 0
	}
	return util.MaxInt64(w.current-w.previous, 0)
}

// delay returns the time to wait before emitting the current record when replaying at the given acceleration.
func (w timingWindow) delay(acceleration float64) time.Duration {
	delayMs := float64(w.deltaMs()) / acceleration
	if delayMs >= kMaxDelayMs {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(int64(delayMs)) * time.Millisecond
}
