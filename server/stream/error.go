package stream

import "errors"

// ErrCancelled is returned by Subscription.Next once the subscription has been cancelled.
var ErrCancelled = errors.New("ErrCancelled: subscription cancelled")
