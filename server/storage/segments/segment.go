package segments

import (
	"context"
)

// Segment holds the records of a single roll cycle. Records are addressed by their sequence number within the
// segment, starting at 0. Only the live segment accepts appends; once marked immutable a segment never changes.
type Segment interface {
	// ID returns the segment ID which is the roll cycle the segment covers.
	ID() int
	// Close the segment.
	Close() error
	// Append appends a single record to the segment and returns its sequence number.
	Append(ctx context.Context, record []byte) (int64, error)
	// Get fetches the record with the given sequence number.
	Get(seq int64) ([]byte, error)
	// NumRecords returns the number of records in the segment.
	NumRecords() int64
	// IsEmpty returns true if the segment is empty. False otherwise.
	IsEmpty() bool
	// IsImmutable returns true once the segment has been rolled over.
	IsImmutable() bool
	// GetMetadata fetches the metadata of the segment.
	GetMetadata() SegmentMetadata
	// SetMetadata sets the metadata. This is updated internally and by the roll log when a segment is created.
	SetMetadata(SegmentMetadata) error
	// MarkImmutable marks the segment as immutable.
	MarkImmutable() error
	// MarkExpired marks the segment as expired.
	MarkExpired() error
	// Size returns the on disk size of the segment in bytes.
	Size() int64
}
