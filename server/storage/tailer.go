package storage

import (
	"chronolog/server/base"
	"fmt"
)

// Tailer is a cursor over a roll log. A tailer reads the records of a segment in order and moves on to the next
// segment only once the current one has been rolled over and fully read. A tailer must not be used by multiple
// goroutines concurrently.
type Tailer struct {
	rl    *RollLog
	cycle int
	seq   int64
}

// ToEnd moves the tailer past the last record currently in the log.
func (t *Tailer) ToEnd() *Tailer {
	t.rl.lock.RLock()
	defer t.rl.lock.RUnlock()
	if len(t.rl.segments) == 0 {
		return t
	}
	live := t.rl.segments[len(t.rl.segments)-1]
	t.cycle = live.ID()
	t.seq = live.NumRecords()
	return t
}

// Index returns the index of the next record that will be read.
func (t *Tailer) Index() base.Index {
	return base.NewIndex(t.cycle, t.seq)
}

// Cycle returns the cycle the tailer is currently positioned in.
func (t *Tailer) Cycle() int {
	return t.cycle
}

// ReadNext reads the next record. ok is false if no record is currently available.
func (t *Tailer) ReadNext() (data []byte, ok bool, err error) {
	rl := t.rl
	rl.lock.RLock()
	defer rl.lock.RUnlock()
	if rl.closed {
		return nil, false, ErrRollLogClosed
	}
	for {
		idx := rl.findSegmentIdxFrom(t.cycle)
		if idx < 0 {
			return nil, false, nil
		}
		seg := rl.segments[idx]
		if seg.ID() != t.cycle {
			// The cycle was either deleted or never had a segment. Skip to the next one.
			rl.logger.VInfof(1, "Tailer skipping from cycle: %d to cycle: %d", t.cycle, seg.ID())
			t.cycle = seg.ID()
			t.seq = 0
		}
		if t.seq < seg.NumRecords() {
			data, err := seg.Get(t.seq)
			if err != nil {
				return nil, false, fmt.Errorf("%w: unable to read record %s: %v", ErrRollLogBackend, t.Index(), err)
			}
			t.seq++
			return data, true, nil
		}
		if !seg.IsImmutable() || idx == len(rl.segments)-1 {
			return nil, false, nil
		}
		t.cycle = rl.segments[idx+1].ID()
		t.seq = 0
	}
}
