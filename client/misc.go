package client

import (
	"time"

	"github.com/cenkalti/backoff"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// createBackoffFn is a helper function that returns a wrapped function which waits using exponential back offs.
func createBackoffFn() func(int) {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     10 * time.Millisecond,
		RandomizationFactor: 0.2,
		Multiplier:          1.5,
		MaxInterval:         time.Second * 1,
		MaxElapsedTime:      0, // Never stop the timer.
		Clock:               backoff.SystemClock,
	}
	b.Reset()
	bfn := func(attempt int) {
		time.Sleep(b.NextBackOff())
	}
	return bfn
}

// isRetryable is a helper function that checks whether a failed request may succeed if it is sent again.
func isRetryable(err error) bool {
	return status.Code(err) == codes.Unavailable
}
