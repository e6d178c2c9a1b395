package segments

import (
	"bytes"
	"chronolog/server/storage/kv_store"
	"chronolog/util"
	"chronolog/util/logging"
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v2"
	"github.com/dgraph-io/badger/v2/options"
)

var kRecordKeyPrefixBytes = []byte(kRecordKeyPrefix)

// BadgerSegment implements Segment where the data is backed using badger db.
type BadgerSegment struct {
	segLock    sync.RWMutex          // A RW lock for the segment.
	appendLock sync.Mutex            // Serializes appends so that sequence numbers are dense.
	rootDir    string                // Root directory of this segment.
	dataDB     kv_store.KVStore      // Backing KV store to hold the data.
	metadataDB *segmentMetadataDB    // Segment metadata DB.
	metadata   *SegmentMetadata      // Cached segment metadata.
	nextSeq    int64                 // Next sequence number. Accessed atomically.
	closed     bool                  // Flag that indicates whether the segment is closed.
	logger     *logging.PrefixLogger // Logger object.
}

type BadgerSegmentOpts struct {
	RootDir string                // Root directory for the segment. This is a compulsory parameter.
	ID      int                   // Segment ID i.e. the roll cycle. This is a compulsory parameter.
	Logger  *logging.PrefixLogger // Parent logger if any. Optional parameter.
}

// NewBadgerSegment opens the segment located at opts.RootDir, creating it if required.
func NewBadgerSegment(opts *BadgerSegmentOpts) (*BadgerSegment, error) {
	if opts.RootDir == "" {
		return nil, fmt.Errorf("%w: segment root directory is required", ErrSegmentInvalid)
	}
	if err := os.MkdirAll(path.Join(opts.RootDir, dataDirName), 0774); err != nil {
		return nil, fmt.Errorf("%w: unable to create segment directory: %v", ErrSegmentBackend, err)
	}
	seg := new(BadgerSegment)
	seg.rootDir = opts.RootDir
	if opts.Logger == nil {
		seg.logger = logging.NewPrefixLogger(fmt.Sprintf("segment:%d", opts.ID))
	} else {
		seg.logger = opts.Logger.Child(fmt.Sprintf("segment:%d", opts.ID))
	}
	if err := seg.initialize(opts.ID); err != nil {
		return nil, err
	}
	if err := seg.open(); err != nil {
		seg.metadataDB.Close()
		return nil, err
	}
	return seg, nil
}

func (seg *BadgerSegment) initialize(id int) error {
	seg.logger.Infof("Initializing badger segment located at: %s", seg.rootDir)
	mdb, err := newSegmentMetadataDB(seg.rootDir)
	if err != nil {
		return err
	}
	seg.metadataDB = mdb
	sm, found, err := mdb.GetMetadata()
	if err != nil {
		mdb.Close()
		return err
	}
	if !found {
		seg.logger.Infof("Did not find any metadata associated with this segment. This must be a new segment!")
		sm = &SegmentMetadata{ID: id, CreatedTimestamp: time.Now()}
		if err := mdb.PutMetadata(sm); err != nil {
			mdb.Close()
			return err
		}
	} else if sm.ID != id {
		mdb.Close()
		return fmt.Errorf("%w: expected segment %d, found segment %d at %s", ErrSegmentInvalid, id, sm.ID,
			seg.rootDir)
	}
	seg.metadata = sm
	return nil
}

func (seg *BadgerSegment) open() error {
	compression, err := compressionType(*FlagSegmentCompression)
	if err != nil {
		return err
	}
	opts := badger.DefaultOptions(path.Join(seg.rootDir, dataDirName))
	opts.SyncWrites = *FlagSegmentSyncWrites
	opts.NumMemtables = 2
	opts.VerifyValueChecksum = true
	opts.BlockCacheSize = 0
	opts.IndexCacheSize = 0
	opts.NumCompactors = 2
	opts.Compression = compression
	opts.MaxTableSize = *FlagSegmentMaxTableSizeBytes
	opts.ValueLogFileSize = *FlagSegmentValueLogFileSizeBytes
	opts.TableLoadingMode = options.FileIO
	opts.ValueLogLoadingMode = options.FileIO
	opts.CompactL0OnClose = false
	opts.Logger = seg.logger
	dataDB, err := kv_store.NewBadgerKVStore(path.Join(seg.rootDir, dataDirName), opts)
	if err != nil {
		return fmt.Errorf("%w: unable to open segment data: %v", ErrSegmentBackend, err)
	}
	seg.dataDB = dataDB

	// The last record key gives us the next sequence number.
	itr := seg.dataDB.CreateScanner(kRecordKeyPrefixBytes, nil, true)
	defer itr.Close()
	if !itr.Valid() {
		seg.nextSeq = 0
		return nil
	}
	key, _, err := itr.GetItem()
	if err != nil {
		return fmt.Errorf("%w: unable to scan last record: %v", ErrSegmentBackend, err)
	}
	seg.nextSeq = keyToSeq(key) + 1
	seg.logger.VInfof(1, "Opened segment with %d records", seg.nextSeq)
	return nil
}

// ID returns the segment id.
func (seg *BadgerSegment) ID() int {
	return seg.metadata.ID
}

// Close implements the Segment interface.
func (seg *BadgerSegment) Close() error {
	seg.segLock.Lock()
	defer seg.segLock.Unlock()
	if seg.closed {
		return nil
	}
	seg.logger.Infof("Closing segment")
	seg.closed = true
	var retErr error
	if err := seg.dataDB.Close(); err != nil {
		retErr = err
	}
	if err := seg.metadataDB.Close(); err != nil && retErr == nil {
		retErr = err
	}
	return retErr
}

// Append implements the Segment interface.
func (seg *BadgerSegment) Append(ctx context.Context, record []byte) (int64, error) {
	seg.segLock.RLock()
	defer seg.segLock.RUnlock()
	if seg.closed {
		return -1, ErrSegmentClosed
	}
	if seg.metadata.Immutable || seg.metadata.Expired {
		return -1, ErrSegmentImmutable
	}
	if err := ctx.Err(); err != nil {
		return -1, err
	}
	seg.appendLock.Lock()
	defer seg.appendLock.Unlock()
	seq := atomic.LoadInt64(&seg.nextSeq)
	if err := seg.dataDB.Put(seqToKey(seq), record); err != nil {
		seg.logger.Errorf("Unable to append record %d due to err: %s", seq, err.Error())
		return -1, fmt.Errorf("%w: %v", ErrSegmentBackend, err)
	}
	atomic.StoreInt64(&seg.nextSeq, seq+1)
	return seq, nil
}

// Get implements the Segment interface.
func (seg *BadgerSegment) Get(seq int64) ([]byte, error) {
	seg.segLock.RLock()
	defer seg.segLock.RUnlock()
	if seg.closed {
		return nil, ErrSegmentClosed
	}
	if seq < 0 || seq >= atomic.LoadInt64(&seg.nextSeq) {
		return nil, ErrSegmentRecordNotFound
	}
	val, err := seg.dataDB.Get(seqToKey(seq))
	if err != nil {
		if errors.Is(err, kv_store.ErrKVStoreKeyNotFound) {
			return nil, ErrSegmentRecordNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrSegmentBackend, err)
	}
	return val, nil
}

// NumRecords implements the Segment interface.
func (seg *BadgerSegment) NumRecords() int64 {
	return atomic.LoadInt64(&seg.nextSeq)
}

// IsEmpty implements the Segment interface.
func (seg *BadgerSegment) IsEmpty() bool {
	return seg.NumRecords() == 0
}

// IsImmutable implements the Segment interface.
func (seg *BadgerSegment) IsImmutable() bool {
	seg.segLock.RLock()
	defer seg.segLock.RUnlock()
	return seg.metadata.Immutable
}

// GetMetadata implements the Segment interface.
func (seg *BadgerSegment) GetMetadata() SegmentMetadata {
	seg.segLock.RLock()
	defer seg.segLock.RUnlock()
	sm := *seg.metadata
	if !sm.Immutable {
		sm.NumRecords = seg.NumRecords()
	}
	return sm
}

// SetMetadata implements the Segment interface.
func (seg *BadgerSegment) SetMetadata(sm SegmentMetadata) error {
	seg.segLock.Lock()
	defer seg.segLock.Unlock()
	if seg.closed {
		return ErrSegmentClosed
	}
	if sm.ID != seg.metadata.ID {
		return fmt.Errorf("%w: segment ID cannot be changed from %d to %d", ErrSegmentInvalid,
			seg.metadata.ID, sm.ID)
	}
	return seg.persistMetadata(&sm)
}

// MarkImmutable implements the Segment interface.
func (seg *BadgerSegment) MarkImmutable() error {
	seg.segLock.Lock()
	defer seg.segLock.Unlock()
	if seg.closed {
		return ErrSegmentClosed
	}
	if seg.metadata.Immutable {
		return nil
	}
	sm := *seg.metadata
	sm.Immutable = true
	sm.ImmutableTimestamp = time.Now()
	sm.NumRecords = atomic.LoadInt64(&seg.nextSeq)
	seg.logger.Infof("Marking segment as immutable with %d records", sm.NumRecords)
	return seg.persistMetadata(&sm)
}

// MarkExpired implements the Segment interface.
func (seg *BadgerSegment) MarkExpired() error {
	seg.segLock.Lock()
	defer seg.segLock.Unlock()
	if seg.closed {
		return ErrSegmentClosed
	}
	if seg.metadata.Expired {
		return nil
	}
	sm := *seg.metadata
	sm.Expired = true
	sm.ExpiredTimestamp = time.Now()
	return seg.persistMetadata(&sm)
}

// Size implements the Segment interface.
func (seg *BadgerSegment) Size() int64 {
	seg.segLock.RLock()
	defer seg.segLock.RUnlock()
	if seg.closed {
		return 0
	}
	return seg.dataDB.Size()
}

func (seg *BadgerSegment) persistMetadata(sm *SegmentMetadata) error {
	if err := seg.metadataDB.PutMetadata(sm); err != nil {
		seg.logger.Errorf("Unable to persist segment metadata due to err: %s", err.Error())
		return err
	}
	seg.metadata = sm
	return nil
}

func seqToKey(seq int64) []byte {
	var buf bytes.Buffer
	buf.Grow(len(kRecordKeyPrefixBytes) + 8)
	buf.Write(kRecordKeyPrefixBytes)
	buf.Write(util.UintToBytes(uint64(seq)))
	return buf.Bytes()
}

func keyToSeq(key []byte) int64 {
	return int64(util.BytesToUint(key[len(kRecordKeyPrefixBytes):]))
}
