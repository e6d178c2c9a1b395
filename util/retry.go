package util

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"
)

// RetryFunc are functions that must be retried. A function asks for another attempt by returning retry=true.
type RetryFunc func(attempt int) (retry bool, err error)

// BackoffFunc must backoff for a certain time interval before returning.
type BackoffFunc func(attempt int)

var (
	ErrExhaustedAllRetryAttempts = errors.New("ErrExhaustedAllRetryAttempts: exhausted all attempts")
	ErrRetryContextExpired       = errors.New("ErrRetryContextExpired: retry context/timeout expired")
)

// DoRetryWithMultiAttempts calls fn until it no longer asks for a retry or until numAttempts attempts have been
// made. The error of the last attempt is wrapped in ErrExhaustedAllRetryAttempts when the attempts run out.
func DoRetryWithMultiAttempts(fn RetryFunc, bfn BackoffFunc, numAttempts int) error {
	if numAttempts <= 0 {
		numAttempts = 1
	}
	var err error
	for attempt := 1; attempt <= numAttempts; attempt++ {
		var retry bool
		retry, err = fn(attempt)
		if !retry {
			return err
		}
		if attempt < numAttempts {
			bfn(attempt)
		}
	}
	if err == nil {
		return ErrExhaustedAllRetryAttempts
	}
	return fmt.Errorf("%w: %v", ErrExhaustedAllRetryAttempts, err)
}

// DoRetryWithContext calls fn until it no longer asks for a retry or until the context expires.
func DoRetryWithContext(ctx context.Context, fn RetryFunc, bfn BackoffFunc) error {
	attempt := 0
	for {
		attempt++
		retry, err := fn(attempt)
		if !retry {
			return err
		}
		select {
		case <-ctx.Done():
			return ErrRetryContextExpired
		default:
			bfn(attempt)
		}
	}
}

// CreateBackoffFn returns a BackoffFunc that waits using exponential back offs between initial and max.
func CreateBackoffFn(initial time.Duration, max time.Duration) BackoffFunc {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     initial,
		RandomizationFactor: 0.2,
		Multiplier:          1.5,
		MaxInterval:         max,
		MaxElapsedTime:      0, // Never stop the timer.
		Clock:               backoff.SystemClock,
	}
	b.Reset()
	return func(attempt int) {
		time.Sleep(b.NextBackOff())
	}
}

// CreateContextBackoffFn is the same as CreateBackoffFn but the waits end early once ctx is done.
func CreateContextBackoffFn(ctx context.Context, initial time.Duration, max time.Duration) BackoffFunc {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     initial,
		RandomizationFactor: 0.2,
		Multiplier:          1.5,
		MaxInterval:         max,
		MaxElapsedTime:      0, // Never stop the timer.
		Clock:               backoff.SystemClock,
	}
	b.Reset()
	return func(attempt int) {
		timer := time.NewTimer(b.NextBackOff())
		defer timer.Stop()
		select {
		case <-ctx.Done():
		case <-timer.C:
		}
	}
}
