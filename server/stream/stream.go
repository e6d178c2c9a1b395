package stream

import (
	"context"
	"io"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// Stream is a cold, pull based sequence of values. Every subscription runs its own producer.
type Stream[T any] interface {
	Subscribe() Subscription[T]
}

// Subscription is the consumer side of a subscribed stream.
type Subscription[T any] interface {
	// Request signals demand for n more values.
	Request(n int64)
	// Next returns the next value. If there is no outstanding demand, one value is requested first. io.EOF is
	// returned once the stream has completed and the terminal error once it has failed.
	Next(ctx context.Context) (T, error)
	// Cancel cancels the subscription. The producer is asked to stop and subsequent calls to Next fail with
	// ErrCancelled.
	Cancel()
}

// Sink is the producer side of a subscription.
type Sink[T any] interface {
	// Context is done once the subscriber cancels or the owner of the stream shuts down.
	Context() context.Context
	// Requested returns the outstanding demand.
	Requested() int64
	// DemandSignal fires when the subscriber requests more values.
	DemandSignal() <-chan struct{}
	// Next hands the value over to the subscriber. It blocks until the subscriber takes the value and returns
	// false if the subscription is done.
	Next(v T) bool
	// Complete terminates the stream successfully.
	Complete()
	// Error terminates the stream with the given error.
	Error(err error)
}

type producerFunc[T any] struct {
	ctx     context.Context
	produce func(Sink[T])
}

// Create returns a stream whose subscriptions run produce on a dedicated goroutine. If produce returns without
// terminating the stream, the stream completes.
func Create[T any](produce func(sink Sink[T])) Stream[T] {
	return &producerFunc[T]{ctx: context.Background(), produce: produce}
}

// CreateContext is the same as Create but the producers also stop once ctx is done. A producer stopped this way
// completes the stream.
func CreateContext[T any](ctx context.Context, produce func(sink Sink[T])) Stream[T] {
	return &producerFunc[T]{ctx: ctx, produce: produce}
}

func (pf *producerFunc[T]) Subscribe() Subscription[T] {
	sub := newSubscription[T](pf.ctx)
	go func() {
		defer sub.finish()
		pf.produce(&sink[T]{sub: sub})
	}()
	return sub
}

type subscription[T any] struct {
	ctx          context.Context
	cancelCtx    context.CancelFunc
	demand       int64
	demandCh     chan struct{}
	items        chan T
	done         chan struct{}
	cancelled    chan struct{}
	terminalOnce sync.Once
	cancelOnce   sync.Once
	err          error
}

func newSubscription[T any](parent context.Context) *subscription[T] {
	sub := new(subscription[T])
	sub.ctx, sub.cancelCtx = context.WithCancel(parent)
	sub.demandCh = make(chan struct{}, 1)
	sub.items = make(chan T)
	sub.done = make(chan struct{})
	sub.cancelled = make(chan struct{})
	return sub
}

func (sub *subscription[T]) Request(n int64) {
	if n <= 0 {
		return
	}
	for {
		curr := atomic.LoadInt64(&sub.demand)
		next := curr + n
		if next < curr {
			next = math.MaxInt64
		}
		if atomic.CompareAndSwapInt64(&sub.demand, curr, next) {
			break
		}
	}
	select {
	case sub.demandCh <- struct{}{}:
	default:
	}
}

func (sub *subscription[T]) Next(ctx context.Context) (T, error) {
	var zero T
	if atomic.LoadInt64(&sub.demand) <= 0 {
		sub.Request(1)
	}
	select {
	case v := <-sub.items:
		return v, nil
	case <-sub.done:
		if sub.err != nil {
			return zero, sub.err
		}
		return zero, io.EOF
	case <-sub.cancelled:
		return zero, ErrCancelled
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}

func (sub *subscription[T]) Cancel() {
	sub.cancelOnce.Do(func() {
		close(sub.cancelled)
		sub.cancelCtx()
	})
}

// sink implements Sink on top of the state shared with the subscription.
type sink[T any] struct {
	sub *subscription[T]
}

func (sk *sink[T]) Context() context.Context {
	return sk.sub.ctx
}

func (sk *sink[T]) Requested() int64 {
	return atomic.LoadInt64(&sk.sub.demand)
}

func (sk *sink[T]) DemandSignal() <-chan struct{} {
	return sk.sub.demandCh
}

func (sk *sink[T]) Next(v T) bool {
	sub := sk.sub
	select {
	case <-sub.done:
		return false
	case <-sub.ctx.Done():
		return false
	default:
	}
	// Demand is consumed before the hand-off so that the subscriber observes it once it has the value.
	sub.consumeDemand()
	select {
	case sub.items <- v:
		return true
	case <-sub.done:
		return false
	case <-sub.ctx.Done():
		return false
	}
}

func (sk *sink[T]) Complete() {
	sk.sub.terminate(nil)
}

func (sk *sink[T]) Error(err error) {
	sk.sub.terminate(err)
}

func (sub *subscription[T]) consumeDemand() {
	for {
		curr := atomic.LoadInt64(&sub.demand)
		if curr <= 0 || atomic.CompareAndSwapInt64(&sub.demand, curr, curr-1) {
			return
		}
	}
}

func (sub *subscription[T]) terminate(err error) {
	sub.terminalOnce.Do(func() {
		sub.err = err
		close(sub.done)
	})
}

// finish is invoked once the producer returns.
func (sub *subscription[T]) finish() {
	select {
	case <-sub.cancelled:
		sub.terminate(ErrCancelled)
	default:
		sub.terminate(nil)
	}
	sub.cancelCtx()
}

// AwaitDemand waits until the subscriber has requested at least one value. It waits at most timeout and returns
// early if the sink is done. It returns true if there is outstanding demand.
func AwaitDemand[T any](sk Sink[T], timeout time.Duration) bool {
	if sk.Requested() > 0 {
		return true
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-sk.DemandSignal():
	case <-timer.C:
	case <-sk.Context().Done():
	}
	return sk.Requested() > 0
}

// Sleep waits for d and returns false if the sink is done before that.
func Sleep[T any](sk Sink[T], d time.Duration) bool {
	if d <= 0 {
		return sk.Context().Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-sk.Context().Done():
		return false
	}
}

// WaitForDemand blocks until the subscriber has requested at least one value. It returns false if the sink is done
// first.
func WaitForDemand[T any](sk Sink[T]) bool {
	for sk.Requested() <= 0 {
		select {
		case <-sk.DemandSignal():
		case <-sk.Context().Done():
			return false
		}
	}
	return sk.Context().Err() == nil
}
