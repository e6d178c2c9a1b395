package journal

import (
	"chronolog/server/replay"
	"chronolog/server/storage"
	"chronolog/server/stream"
	"chronolog/util/logging"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"
)

// Store is a durable append only store of values. Values of type I are stored and values of type O are retrieved,
// the Codec converting between the two. A store owns its log until it is closed.
type Store[I any, O any] struct {
	codec               Codec[I, O]
	log                 *storage.RollLog
	appender            *storage.Appender
	demandPollInterval  time.Duration
	dataPollInterval    time.Duration
	deleteRetryAttempts int
	// ctx is cancelled when the store is closed. All background workers are bound to it.
	ctx      context.Context
	cancel   context.CancelFunc
	lock     sync.RWMutex
	closed   bool
	workerWg sync.WaitGroup
	// Number of tailers created so far. Only used to tell tailers apart in the logs.
	numTailers int64
	logger     *logging.PrefixLogger
}

// NewStore opens a plain store at cfg.Path. Values are stored without timestamps.
func NewStore[T any](cfg Config[T]) (*Store[T, T], error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return openStore[T, T](cfg, NewPlainCodec(cfg.Encoder, cfg.Decoder))
}

func openStore[I any, O any, T any](cfg Config[T], codec Codec[I, O]) (*Store[I, O], error) {
	s := new(Store[I, O])
	s.codec = codec
	s.logger = logging.NewPrefixLogger(fmt.Sprintf("journal:%s", filepath.Base(cfg.Path)))
	log, err := storage.OpenRollLog(storage.RollLogOpts{
		RootDirectory:     cfg.Path,
		RollCycle:         cfg.RollCycle,
		Clock:             cfg.Clock,
		RollCheckInterval: cfg.RollCheckInterval,
		Logger:            s.logger,
	})
	if err != nil {
		return nil, err
	}
	s.log = log
	s.appender = log.AcquireAppender()
	s.demandPollInterval = cfg.DemandPollInterval
	s.dataPollInterval = cfg.DataPollInterval
	s.deleteRetryAttempts = cfg.DeleteRetryAttempts
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.logger.Infof("Opened store at: %s with roll cycle: %s", cfg.Path, log.RollCycle())
	return s, nil
}

// Store encodes the item and appends it to the log.
func (s *Store[I, O]) Store(item I) error {
	data, err := s.codec.Encode(item)
	if err != nil {
		return err
	}
	s.lock.RLock()
	defer s.lock.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	idx, err := s.appender.Append(data)
	if err != nil {
		if errors.Is(err, storage.ErrRollLogClosed) {
			return ErrStoreClosed
		}
		s.logger.Errorf("Unable to append record due to err: %s", err.Error())
		return err
	}
	s.logger.VInfof(2, "Appended record at index: %s", idx)
	return nil
}

// StoreAll stores every item of src until src completes or fails, or the returned handle is cancelled. A failure
// of src is logged and stops consumption. Items stored before that remain in the log.
func (s *Store[I, O]) StoreAll(src stream.Stream[I]) *StoreHandle {
	ctx, cancel := context.WithCancel(s.ctx)
	handle := newStoreHandle(cancel)
	if !s.registerWorker() {
		cancel()
		handle.finish(ErrStoreClosed)
		return handle
	}
	go func() {
		defer s.workerWg.Done()
		defer cancel()
		handle.finish(s.storeAll(ctx, src))
	}()
	return handle
}

func (s *Store[I, O]) storeAll(ctx context.Context, src stream.Stream[I]) error {
	sub := src.Subscribe()
	defer sub.Cancel()
	count := 0
	for {
		item, err := sub.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.logger.VInfof(1, "Source completed after storing %d items", count)
				return nil
			}
			if ctx.Err() != nil {
				s.logger.VInfof(1, "Stopped storing from source after %d items", count)
				return nil
			}
			s.logger.Errorf("Source failed after storing %d items due to err: %s", count, err.Error())
			return err
		}
		if err := s.Store(item); err != nil {
			s.logger.Errorf("Unable to store item from source due to err: %s", err.Error())
			return err
		}
		count++
	}
}

// RetrieveHistory returns a stream of all the values currently in the store. The stream completes once the end of
// the log is reached.
func (s *Store[I, O]) RetrieveHistory() stream.Stream[O] {
	return s.retrieve(historyTailer, false)
}

// RetrieveNewValues returns a stream of the values stored after the stream is subscribed. The stream never
// completes on its own.
func (s *Store[I, O]) RetrieveNewValues() stream.Stream[O] {
	return s.retrieve(newValuesTailer, false)
}

// RetrieveAll returns a stream of all the values in the store followed by all the values stored later on. If
// deleteAfterRead is true, segments are deleted once they have been rolled over and fully read by the stream.
func (s *Store[I, O]) RetrieveAll(deleteAfterRead bool) stream.Stream[O] {
	return s.retrieve(allValuesTailer, deleteAfterRead)
}

// ReplayHistory returns a replayable stream of the history. Every subscription reads the history afresh.
func (s *Store[I, O]) ReplayHistory(timestampOf func(O) int64) *replay.Stream[O] {
	return replay.New(s.RetrieveHistory(), timestampOf)
}

// RollCycle returns the roll cycle of the underlying log.
func (s *Store[I, O]) RollCycle() storage.RollCycle {
	return s.log.RollCycle()
}

// Cycles returns the cycles currently present in the underlying log.
func (s *Store[I, O]) Cycles() []int {
	return s.log.Cycles()
}

// Close stops all tailers, waits for them to exit and closes the log. Streams of a closed store complete.
func (s *Store[I, O]) Close() error {
	s.lock.Lock()
	if s.closed {
		s.lock.Unlock()
		return nil
	}
	s.closed = true
	s.cancel()
	s.lock.Unlock()
	s.logger.Infof("Closing store. Waiting for background workers to exit")
	s.workerWg.Wait()
	return s.log.Close()
}

// registerWorker registers a background worker with the store. It returns false if the store is closed.
func (s *Store[I, O]) registerWorker() bool {
	s.lock.RLock()
	defer s.lock.RUnlock()
	if s.closed {
		return false
	}
	s.workerWg.Add(1)
	return true
}

// StoreHandle controls a StoreAll operation.
type StoreHandle struct {
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

func newStoreHandle(cancel context.CancelFunc) *StoreHandle {
	return &StoreHandle{cancel: cancel, done: make(chan struct{})}
}

// Cancel stops consuming the source. Items stored so far remain in the store.
func (h *StoreHandle) Cancel() {
	h.cancel()
}

// Done is closed once the operation has finished.
func (h *StoreHandle) Done() <-chan struct{} {
	return h.done
}

// Err returns the error that stopped the operation. It must only be called after Done is closed.
func (h *StoreHandle) Err() error {
	return h.err
}

func (h *StoreHandle) finish(err error) {
	h.err = err
	close(h.done)
}
