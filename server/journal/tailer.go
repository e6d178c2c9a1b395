package journal

import (
	"chronolog/server/storage"
	"chronolog/server/stream"
	"chronolog/util"
	"chronolog/util/logging"
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"
)

type tailerKind int

const (
	historyTailer tailerKind = iota
	newValuesTailer
	allValuesTailer
)

func (kind tailerKind) String() string {
	switch kind {
	case historyTailer:
		return "history"
	case newValuesTailer:
		return "new-values"
	case allValuesTailer:
		return "all-values"
	default:
		return "unknown"
	}
}

// retrieve returns a stream backed by a tailer. The tailer is positioned when the stream is subscribed so that a
// new values stream only misses the values stored before Subscribe returned.
func (s *Store[I, O]) retrieve(kind tailerKind, deleteAfterRead bool) stream.Stream[O] {
	return stream.Defer(func() stream.Stream[O] {
		if !s.registerWorker() {
			return stream.Error[O](ErrStoreClosed)
		}
		tailer := s.log.CreateTailer()
		if kind == newValuesTailer {
			tailer.ToEnd()
		}
		id := atomic.AddInt64(&s.numTailers, 1)
		logger := s.logger.Child(fmt.Sprintf("tailer-%s-%d", kind, id))
		return stream.CreateContext(s.ctx, func(sk stream.Sink[O]) {
			defer s.workerWg.Done()
			s.tail(sk, tailer, kind, deleteAfterRead, logger)
		})
	})
}

// tail runs the tailer loop until the stream is done.
func (s *Store[I, O]) tail(sk stream.Sink[O], tailer *storage.Tailer, kind tailerKind, deleteAfterRead bool,
	logger *logging.PrefixLogger) {
	ctx := sk.Context()
	logger.VInfof(1, "Starting tailer at index: %s", tailer.Index())
	prevCycle := tailer.Cycle()
	for {
		if ctx.Err() != nil {
			logger.VInfof(1, "Tailer exiting at index: %s", tailer.Index())
			return
		}
		// Never touch the log without demand.
		if !stream.AwaitDemand(sk, s.demandPollInterval) {
			continue
		}
		data, ok, err := tailer.ReadNext()
		if err != nil {
			if errors.Is(err, storage.ErrRollLogClosed) {
				return
			}
			logger.Errorf("Unable to read from log at index: %s due to err: %s", tailer.Index(), err.Error())
			sk.Error(fmt.Errorf("%w: %v", ErrStoreIO, err))
			return
		}
		if ok {
			value, err := s.codec.Decode(data)
			if err != nil {
				logger.Errorf("Unable to decode record before index: %s due to err: %s", tailer.Index(),
					err.Error())
				sk.Error(err)
				return
			}
			if !sk.Next(value) {
				return
			}
		} else if kind == historyTailer {
			logger.VInfof(1, "Reached end of history at index: %s", tailer.Index())
			sk.Complete()
			return
		} else if !stream.Sleep(sk, s.dataPollInterval) {
			return
		}
		if cycle := tailer.Cycle(); cycle != prevCycle {
			if deleteAfterRead {
				s.deleteReadCycles(ctx, prevCycle, cycle, logger)
			}
			prevCycle = cycle
		}
	}
}

// deleteReadCycles deletes the segments of all cycles in [from, to). The tailer has read all of them. Failures are
// logged and otherwise ignored.
func (s *Store[I, O]) deleteReadCycles(ctx context.Context, from int, to int, logger *logging.PrefixLogger) {
	backoffFn := util.CreateContextBackoffFn(ctx, 50*time.Millisecond, time.Second)
	for _, cycle := range s.log.Cycles() {
		if cycle < from || cycle >= to {
			continue
		}
		err := util.DoRetryWithMultiAttempts(func(attempt int) (bool, error) {
			if ctx.Err() != nil {
				return false, ctx.Err()
			}
			err := s.log.DeleteCycle(cycle)
			switch {
			case err == nil, errors.Is(err, storage.ErrRollLogSegmentNotFound):
				return false, nil
			case errors.Is(err, storage.ErrRollLogClosed), errors.Is(err, storage.ErrRollLogLiveSegment):
				return false, err
			default:
				logger.Warningf("Attempt %d to delete cycle: %d failed due to err: %s", attempt, cycle,
					err.Error())
				return true, err
			}
		}, backoffFn, s.deleteRetryAttempts)
		if err != nil {
			logger.Errorf("Unable to delete cycle: %d after reading it due to err: %s", cycle, err.Error())
			continue
		}
		logger.Infof("Deleted cycle: %d after reading it", cycle)
	}
}
