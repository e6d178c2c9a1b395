package replay

import "errors"

// ErrInvalidAcceleration is returned when a replay is subscribed with a time acceleration that is not a positive
// finite number.
var ErrInvalidAcceleration = errors.New("ErrInvalidAcceleration: time acceleration must be a positive number")
