package segments

import (
	"flag"
	"fmt"
	"strings"

	"github.com/dgraph-io/badger/v2/options"
)

var (
	FlagSegmentCompression = flag.String("segment_compression", "none",
		"Compression used for segment data. One of none, snappy or zstd")
	FlagSegmentSyncWrites = flag.Bool("segment_sync_writes", true,
		"Flag to indicate whether every append must be synced to disk before it is acknowledged")
	FlagSegmentMaxTableSizeBytes = flag.Int64("segment_max_table_size_bytes", 8*1024*1024,
		"Max size of a single table in a segment")
	FlagSegmentValueLogFileSizeBytes = flag.Int64("segment_value_log_file_size_bytes", 64*1024*1024,
		"Max size of a single value log file in a segment")
)

// compressionType converts the given name to a badger compression type.
func compressionType(name string) (options.CompressionType, error) {
	switch strings.ToLower(name) {
	case "", "none":
		return options.None, nil
	case "snappy":
		return options.Snappy, nil
	case "zstd":
		return options.ZSTD, nil
	default:
		return options.None, fmt.Errorf("%w: unknown compression type: %s", ErrSegmentBackend, name)
	}
}
