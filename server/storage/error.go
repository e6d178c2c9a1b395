package storage

import "errors"

var (
	// ErrRollLogClosed is returned when the roll log is accessed after it has been closed.
	ErrRollLogClosed = errors.New("ErrRollLogClosed: roll log is closed")

	// ErrRollLogInvalidArg is returned when the roll log is opened with invalid options.
	ErrRollLogInvalidArg = errors.New("ErrRollLogInvalidArg: invalid argument")

	// ErrRollLogLiveSegment is returned when we try to delete the live segment.
	ErrRollLogLiveSegment = errors.New("ErrRollLogLiveSegment: the live segment cannot be deleted")

	// ErrRollLogSegmentNotFound is returned when the requested cycle has no segment.
	ErrRollLogSegmentNotFound = errors.New("ErrRollLogSegmentNotFound: segment not found")

	// ErrRollLogBackend is returned when the roll log hits an unexpected file system or segment error.
	ErrRollLogBackend = errors.New("ErrRollLogBackend: roll log backend error")
)
