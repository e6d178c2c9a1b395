package replay

import (
	"chronolog/server/stream"
	"errors"
	"flag"
	"io"
	"math"
	"time"
)

var (
	FlagEmptyLoopBackoffMs = flag.Int("replay_empty_loop_backoff_ms", 100,
		"Minimum time between two iterations of a looped replay whose iterations are empty")
)

// Stream replays a historical stream. Without a timing mode the values are replayed as fast as the subscriber
// consumes them. With a timing mode, the gaps between the timestamps of consecutive values are reproduced.
type Stream[T any] struct {
	source       stream.Stream[T]
	timestampOf  func(T) int64
	timed        bool
	acceleration float64
}

// New returns a replayable stream over source. timestampOf returns the timestamp of a value in unix millis. Every
// subscription subscribes to source afresh so source must be cold.
func New[T any](source stream.Stream[T], timestampOf func(T) int64) *Stream[T] {
	return &Stream[T]{source: source, timestampOf: timestampOf}
}

// WithOriginalTiming returns a stream that replays the values with their original timing.
func (s *Stream[T]) WithOriginalTiming() *Stream[T] {
	return s.WithTimeAcceleration(1.0)
}

// WithTimeAcceleration returns a stream that replays the values factor times faster than they were recorded. It
// replaces any timing mode set previously.
func (s *Stream[T]) WithTimeAcceleration(factor float64) *Stream[T] {
	cp := *s
	cp.timed = true
	cp.acceleration = factor
	return &cp
}

// Acceleration returns the time acceleration of the stream or 0 if values are replayed as fast as possible.
func (s *Stream[T]) Acceleration() float64 {
	if !s.timed {
		return 0
	}
	return s.acceleration
}

// Subscribe implements stream.Stream.
func (s *Stream[T]) Subscribe() stream.Subscription[T] {
	if s.timed && !validAcceleration(s.acceleration) {
		return stream.Error[T](ErrInvalidAcceleration).Subscribe()
	}
	return stream.Create(s.replay).Subscribe()
}

func (s *Stream[T]) replay(sk stream.Sink[T]) {
	ctx := sk.Context()
	sub := s.source.Subscribe()
	defer sub.Cancel()
	var window timingWindow
	for {
		if !stream.WaitForDemand(sk) {
			return
		}
		v, err := sub.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				sk.Complete()
			} else if ctx.Err() == nil {
				sk.Error(err)
			}
			return
		}
		window = window.push(s.timestampOf(v))
		if s.timed && !stream.Sleep(sk, window.delay(s.acceleration)) {
			return
		}
		if !sk.Next(v) {
			return
		}
	}
}

// InLoop returns a stream that replays the values forever. Every iteration after the first starts delay after the
// previous one completed. The first value of every iteration is marked as a loop restart.
func (s *Stream[T]) InLoop(delay time.Duration) stream.Stream[Value[T]] {
	return stream.Create(func(sk stream.Sink[Value[T]]) {
		s.loop(sk, delay)
	})
}

func (s *Stream[T]) loop(sk stream.Sink[Value[T]], delay time.Duration) {
	emptyLoopBackoff := time.Duration(*FlagEmptyLoopBackoffMs) * time.Millisecond
	for iteration := 0; ; iteration++ {
		if iteration > 0 && !stream.Sleep(sk, delay) {
			return
		}
		if !stream.WaitForDemand(sk) {
			return
		}
		emitted, done, err := s.iterate(sk)
		if err != nil {
			sk.Error(err)
			return
		}
		if done {
			return
		}
		if emitted == 0 && delay < emptyLoopBackoff && !stream.Sleep(sk, emptyLoopBackoff-delay) {
			return
		}
	}
}

// iterate runs a single loop iteration. done is true if the loop stream is done.
func (s *Stream[T]) iterate(sk stream.Sink[Value[T]]) (emitted int, done bool, err error) {
	ctx := sk.Context()
	sub := s.Subscribe()
	defer sub.Cancel()
	for {
		if !stream.WaitForDemand(sk) {
			return emitted, true, nil
		}
		v, err := sub.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return emitted, false, nil
			}
			if ctx.Err() != nil {
				return emitted, true, nil
			}
			return emitted, true, err
		}
		if !sk.Next(Value[T]{Value: v, LoopRestart: emitted == 0}) {
			return emitted, true, nil
		}
		emitted++
	}
}

func validAcceleration(factor float64) bool {
	return factor > 0 && !math.IsNaN(factor) && !math.IsInf(factor, 0)
}
