package base

import (
	"flag"
	"fmt"
)

var (
	dataDir = flag.String("data_directory", "", "Data directory for chronolog")
)

// GetDataDirectory returns the data directory configured on the command line. An empty string is returned when
// no directory was configured.
func GetDataDirectory() string {
	return *dataDir
}

// Index is a cursor into a roll log. The upper 32 bits hold the roll cycle of the segment the record lives in and
// the lower 32 bits hold the sequence number of the record within that segment. Indexes are monotonically
// increasing and are never reused, even after the segment they point into has been deleted.
type Index int64

const kSeqBits = 32
const kSeqMask = (int64(1) << kSeqBits) - 1

// NewIndex builds the index for the given cycle and sequence number.
func NewIndex(cycle int, seq int64) Index {
	return Index(int64(cycle)<<kSeqBits | (seq & kSeqMask))
}

// Cycle returns the roll cycle the index points into.
func (idx Index) Cycle() int {
	return int(int64(idx) >> kSeqBits)
}

// Seq returns the position of the record within its cycle.
func (idx Index) Seq() int64 {
	return int64(idx) & kSeqMask
}

func (idx Index) String() string {
	return fmt.Sprintf("%d:%d", idx.Cycle(), idx.Seq())
}
