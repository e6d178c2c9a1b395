package journal

import (
	"chronolog/server/replay"
	"chronolog/server/storage"
	"chronolog/server/stream"
)

// Journal is a store that stamps every value with the time at which it was stored.
type Journal[T any] struct {
	store *Store[T, TimedValue[T]]
}

// NewJournal opens a journal at cfg.Path.
func NewJournal[T any](cfg Config[T]) (*Journal[T], error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	s, err := openStore[T, TimedValue[T]](cfg, NewJournalCodec(cfg.Encoder, cfg.Decoder, cfg.Clock))
	if err != nil {
		return nil, err
	}
	return &Journal[T]{store: s}, nil
}

// Store stores the item stamped with the journal clock.
func (j *Journal[T]) Store(item T) error {
	return j.store.Store(item)
}

func (j *Journal[T]) StoreAll(src stream.Stream[T]) *StoreHandle {
	return j.store.StoreAll(src)
}

func (j *Journal[T]) RetrieveHistory() stream.Stream[TimedValue[T]] {
	return j.store.RetrieveHistory()
}

func (j *Journal[T]) RetrieveNewValues() stream.Stream[TimedValue[T]] {
	return j.store.RetrieveNewValues()
}

func (j *Journal[T]) RetrieveAll(deleteAfterRead bool) stream.Stream[TimedValue[T]] {
	return j.store.RetrieveAll(deleteAfterRead)
}

// Replay returns a replayable stream of the history that uses the stored timestamps.
func (j *Journal[T]) Replay() *replay.Stream[TimedValue[T]] {
	return j.store.ReplayHistory(TimestampOf[T])
}

func (j *Journal[T]) RollCycle() storage.RollCycle {
	return j.store.RollCycle()
}

func (j *Journal[T]) Cycles() []int {
	return j.store.Cycles()
}

func (j *Journal[T]) Close() error {
	return j.store.Close()
}
