package segments

import "errors"

var (
	// ErrSegmentBackend when we have an unexpected segment error.
	ErrSegmentBackend = errors.New("ErrSegmentBackend: segment backend error")

	// ErrSegmentClosed is returned if we try to access the segment when it is closed.
	ErrSegmentClosed = errors.New("ErrSegmentClosed: segment is closed")

	// ErrSegmentImmutable is returned if we try to append to a segment that has been rolled over.
	ErrSegmentImmutable = errors.New("ErrSegmentImmutable: segment is immutable")

	// ErrSegmentInvalid is returned when the segment on disk does not match the requested segment.
	ErrSegmentInvalid = errors.New("ErrSegmentInvalid: segment is invalid")

	// ErrSegmentRecordNotFound is returned when the requested sequence number has not been written yet.
	ErrSegmentRecordNotFound = errors.New("ErrSegmentRecordNotFound: record not found in segment")

	// ErrSegmentMetadata is returned when the segment metadata cannot be read or written.
	ErrSegmentMetadata = errors.New("ErrSegmentMetadata: segment metadata error")
)
