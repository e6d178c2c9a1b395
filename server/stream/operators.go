package stream

import (
	"context"
	"errors"
	"io"
)

type deferred[T any] struct {
	factory func() Stream[T]
}

// Defer returns a stream that invokes factory on every subscription and subscribes to the stream it returns.
func Defer[T any](factory func() Stream[T]) Stream[T] {
	return &deferred[T]{factory: factory}
}

func (d *deferred[T]) Subscribe() Subscription[T] {
	return d.factory().Subscribe()
}

// Just returns a stream that emits the given values and completes.
func Just[T any](values ...T) Stream[T] {
	return Create(func(sk Sink[T]) {
		for _, v := range values {
			if !sk.Next(v) {
				return
			}
		}
		sk.Complete()
	})
}

// Error returns a stream that fails with err as soon as it is subscribed.
func Error[T any](err error) Stream[T] {
	return Create(func(sk Sink[T]) {
		sk.Error(err)
	})
}

// Collect subscribes to s and gathers all its values until it completes.
func Collect[T any](ctx context.Context, s Stream[T]) ([]T, error) {
	return collect(ctx, s, -1)
}

// CollectN subscribes to s, gathers its first n values and cancels the subscription. Fewer values are returned if
// the stream completes early.
func CollectN[T any](ctx context.Context, s Stream[T], n int) ([]T, error) {
	if n <= 0 {
		return nil, nil
	}
	return collect(ctx, s, n)
}

func collect[T any](ctx context.Context, s Stream[T], n int) ([]T, error) {
	sub := s.Subscribe()
	defer sub.Cancel()
	if n > 0 {
		sub.Request(int64(n))
	}
	var values []T
	for n < 0 || len(values) < n {
		v, err := sub.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return values, nil
			}
			return values, err
		}
		values = append(values, v)
	}
	return values, nil
}
