package kv_store

// KVStore is the ordered key value store that backs a segment.
type KVStore interface {
	GetDataDir() string
	Close() error
	// Get gets the value for the given key from the store.
	Get([]byte) ([]byte, error)
	// Put puts the value for the given key in the store.
	Put([]byte, []byte) error
	// Delete deletes the key from the store.
	Delete([]byte) error
	// BatchPut atomically puts all the given key value pairs in the store.
	BatchPut([][]byte, [][]byte) error
	// Size returns the approximate on disk size of the store in bytes.
	Size() int64
	// CreateScanner creates a scanner that can be used to iterate over the keys starting with prefix. The scanner
	// is positioned at startKey(or the first/last key with the prefix if startKey is empty).
	CreateScanner(prefix []byte, startKey []byte, reverse bool) Scanner
}

// Scanner iterates over a consistent snapshot of the store. Scanners must be closed after use.
type Scanner interface {
	Rewind()
	Valid() bool
	Next()
	Seek(key []byte)
	GetItem() (key []byte, val []byte, err error)
	Close()
}
