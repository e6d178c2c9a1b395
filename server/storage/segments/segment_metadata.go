package segments

import (
	"encoding/json"
	"fmt"
	"time"
)

// SegmentMetadata holds the metadata of a segment.
// Note: Make sure to add any new fields to the ToString() method as well.
type SegmentMetadata struct {
	ID                 int       `json:"id"`                  // Segment ID i.e. the roll cycle of the segment.
	Immutable          bool      `json:"immutable"`           // Flag to indicate whether segment is immutable.
	Expired            bool      `json:"expired"`             // Flag indicating whether the segment has expired.
	NumRecords         int64     `json:"num_records"`         // Number of records. Only persisted once immutable.
	CreatedTimestamp   time.Time `json:"created_timestamp"`   // Segment created time.
	ImmutableTimestamp time.Time `json:"immutable_timestamp"` // Time when segment was marked as immutable.
	ExpiredTimestamp   time.Time `json:"expired_timestamp"`   // Time when segment was expired.
}

func newSegmentMetadata(data []byte) (*SegmentMetadata, error) {
	var sm SegmentMetadata
	if err := json.Unmarshal(data, &sm); err != nil {
		return nil, fmt.Errorf("%w: failed to deserialize segment metadata: %v", ErrSegmentMetadata, err)
	}
	return &sm, nil
}

func (sm *SegmentMetadata) ToString() string {
	return fmt.Sprintf("ID: %d, Immutable %v, Expired %v, Num records: %d, Created At: %v, "+
		"Immutable At: %v, Expired At: %v", sm.ID, sm.Immutable, sm.Expired, sm.NumRecords,
		sm.CreatedTimestamp, sm.ImmutableTimestamp, sm.ExpiredTimestamp)
}

func (sm *SegmentMetadata) Serialize() ([]byte, error) {
	data, err := json.Marshal(sm)
	if err != nil {
		return nil, fmt.Errorf("%w: unable to serialize segment metadata: %v", ErrSegmentMetadata, err)
	}
	return data, nil
}
