package client

import (
	"chronolog/comm"
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
)

// Consumer reads the payloads of a single journal stream.
type Consumer struct {
	stream      comm.ValueStreamClient
	cancel      context.CancelFunc
	loop        bool
	closed      atomic.Bool
	mu          sync.Mutex
	loopRestart bool
}

func newConsumer(stream comm.ValueStreamClient, cancel context.CancelFunc, loop bool) *Consumer {
	return &Consumer{stream: stream, cancel: cancel, loop: loop}
}

// Next blocks until the next payload is available. io.EOF is returned once the stream has completed.
func (consumer *Consumer) Next() ([]byte, error) {
	consumer.mu.Lock()
	defer consumer.mu.Unlock()
	consumer.loopRestart = false
	for {
		if consumer.closed.Load() {
			return nil, ErrConsumerClosed
		}
		val, err := consumer.stream.Recv()
		if err != nil {
			if consumer.closed.Load() {
				return nil, ErrConsumerClosed
			}
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			return nil, newError(err)
		}
		if consumer.loop && len(val.GetValue()) == 0 {
			consumer.loopRestart = true
			continue
		}
		return val.GetValue(), nil
	}
}

// LoopRestart returns true if the payload returned by the last call to Next is the first payload of a new
// iteration of a looped replay.
func (consumer *Consumer) LoopRestart() bool {
	consumer.mu.Lock()
	defer consumer.mu.Unlock()
	return consumer.loopRestart
}

// Close cancels the stream. Pending and subsequent calls to Next fail with ErrConsumerClosed.
func (consumer *Consumer) Close() {
	if consumer.closed.CompareAndSwap(false, true) {
		consumer.cancel()
	}
}
