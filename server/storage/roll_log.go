package storage

import (
	"chronolog/server/base"
	"chronolog/server/storage/segments"
	"chronolog/util/logging"
	"context"
	"flag"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

const KSegmentsDirectoryName = "segments"
const KExpiredSegmentDirSuffix = "-expired"

var (
	FlagRollCycle = flag.String("rolllog_roll_cycle", DailyRollCycle.Name,
		"Roll cycle of the log. One of MINUTELY, HOURLY or DAILY")
	FlagRollCheckIntervalMs = flag.Int("rolllog_roll_check_interval_ms", 1000,
		"Interval at which the roll log checks whether the live segment must be rolled over")
)

// RollLog is a segmented append only log. Every segment covers a single roll cycle. Records are appended to the
// live segment which is rolled over once the clock moves into a newer cycle. Rolled over segments are immutable and
// can be deleted as a whole.
//
// The roll log must be backed by a local file system.
type RollLog struct {
	// Lock on the roll log. Appends and structural changes acquire the write lock.
	lock sync.RWMutex
	// Root directory of the log.
	rootDir string
	// Roll cycle of the log.
	rollCycle RollCycle
	// Clock used to figure out the current cycle.
	clock func() time.Time
	// Interval at which the roll manager checks whether the live segment must be rolled.
	rollCheckInterval time.Duration
	// List of segments sorted by cycle. The last segment is the live segment.
	segments []segments.Segment
	// Disposer.
	disposer *StorageDisposer
	// Notification to ask the roll manager to exit.
	rollManagerDone chan struct{}
	rollManagerWg   sync.WaitGroup
	// Flag to indicate whether the log is closed.
	closed bool
	// Roll log logger.
	logger *logging.PrefixLogger
}

type RollLogOpts struct {
	// Data directory where the log is stored. This is a compulsory parameter.
	RootDirectory string

	// Roll cycle of the log. This is an optional parameter. Defaults to FlagRollCycle.
	RollCycle RollCycle

	// Clock used to assign records to cycles. This is an optional parameter. Defaults to time.Now.
	Clock func() time.Time

	// The interval at which the live segment is checked for roll over. This is an optional parameter.
	RollCheckInterval time.Duration

	// Disposer used to remove deleted segments. This is an optional parameter.
	Disposer *StorageDisposer

	// Parent logger. This is an optional parameter.
	Logger *logging.PrefixLogger
}

// OpenRollLog opens the roll log located at opts.RootDirectory, creating it if required.
func OpenRollLog(opts RollLogOpts) (*RollLog, error) {
	if opts.RootDirectory == "" {
		return nil, fmt.Errorf("%w: a root directory must be specified", ErrRollLogInvalidArg)
	}
	rl := new(RollLog)
	rl.rootDir = opts.RootDirectory
	if opts.Logger == nil {
		rl.logger = logging.NewPrefixLogger("rolllog")
	} else {
		rl.logger = opts.Logger.Child("rolllog")
	}
	rl.rollCycle = opts.RollCycle
	if rl.rollCycle == (RollCycle{}) {
		rc, err := ParseRollCycle(*FlagRollCycle)
		if err != nil {
			return nil, err
		}
		rl.rollCycle = rc
	}
	if !rl.rollCycle.IsValid() {
		return nil, fmt.Errorf("%w: invalid roll cycle: %v", ErrRollLogInvalidArg, rl.rollCycle)
	}
	rl.clock = opts.Clock
	if rl.clock == nil {
		rl.clock = time.Now
	}
	rl.rollCheckInterval = opts.RollCheckInterval
	if rl.rollCheckInterval <= 0 {
		if *FlagRollCheckIntervalMs <= 0 {
			return nil, fmt.Errorf("%w: roll check interval must be > 0", ErrRollLogInvalidArg)
		}
		rl.rollCheckInterval = time.Duration(*FlagRollCheckIntervalMs) * time.Millisecond
	}
	rl.disposer = opts.Disposer
	if rl.disposer == nil {
		rl.disposer = DefaultDisposer()
	}
	if err := rl.initialize(); err != nil {
		rl.closeSegments()
		return nil, err
	}
	rl.rollManagerDone = make(chan struct{})
	rl.rollManagerWg.Add(1)
	go rl.rollManager()
	return rl, nil
}

func (rl *RollLog) initialize() error {
	rl.logger.Infof("Initializing roll log located at: %s with roll cycle: %s", rl.rootDir, rl.rollCycle)
	if err := os.MkdirAll(rl.getSegmentRootDirectory(), 0774); err != nil {
		return fmt.Errorf("%w: unable to create segment root directory: %v", ErrRollLogBackend, err)
	}

	// Delete all expired segments from the file system.
	for _, segDir := range rl.getExpiredFileSystemSegments() {
		rl.disposer.Dispose(segDir, nil)
	}

	segmentIDs, err := rl.getFileSystemSegments()
	if err != nil {
		return err
	}
	for ii, segmentID := range segmentIDs {
		segment, err := rl.openSegment(segmentID)
		if err != nil {
			return err
		}
		meta := segment.GetMetadata()
		if meta.Expired {
			// We crashed after expiring the segment but before renaming it.
			rl.logger.Infof("Found expired segment: %d. Disposing it", segmentID)
			segment.Close()
			if err := rl.disposeSegment(segmentID); err != nil {
				return err
			}
			continue
		}
		if ii < len(segmentIDs)-1 && !meta.Immutable {
			rl.logger.Warningf("Found live segment: %d in the middle of segments. Marking it immutable",
				segmentID)
			if err := segment.MarkImmutable(); err != nil {
				segment.Close()
				return fmt.Errorf("%w: unable to repair segment %d: %v", ErrRollLogBackend, segmentID, err)
			}
		}
		rl.segments = append(rl.segments, segment)
	}

	if len(rl.segments) == 0 {
		rl.logger.Infof("Did not find any segment in the backing store. Creating segment for first time")
		if err := rl.createNewSegmentUnsafe(rl.rollCycle.CycleAt(rl.clock())); err != nil {
			return err
		}
	} else {
		live := rl.segments[len(rl.segments)-1]
		if live.IsImmutable() {
			if err := rl.createNewSegmentUnsafe(rl.nextCycleUnsafe()); err != nil {
				return err
			}
		} else if err := rl.maybeRollUnsafe(); err != nil {
			return err
		}
	}

	return nil
}

// RollCycle returns the roll cycle of the log.
func (rl *RollLog) RollCycle() RollCycle {
	return rl.rollCycle
}

// CycleOf returns the cycle that the given index belongs to.
func (rl *RollLog) CycleOf(index base.Index) int {
	return index.Cycle()
}

// Cycles returns the cycles that currently have a segment in ascending order.
func (rl *RollLog) Cycles() []int {
	rl.lock.RLock()
	defer rl.lock.RUnlock()
	cycles := make([]int, 0, len(rl.segments))
	for _, seg := range rl.segments {
		cycles = append(cycles, seg.ID())
	}
	return cycles
}

// LiveCycle returns the cycle of the live segment.
func (rl *RollLog) LiveCycle() int {
	rl.lock.RLock()
	defer rl.lock.RUnlock()
	if len(rl.segments) == 0 {
		return -1
	}
	return rl.segments[len(rl.segments)-1].ID()
}

// AcquireAppender returns an appender to the log.
func (rl *RollLog) AcquireAppender() *Appender {
	return &Appender{rl: rl}
}

// CreateTailer returns a tailer positioned at the first record of the log.
func (rl *RollLog) CreateTailer() *Tailer {
	rl.lock.RLock()
	defer rl.lock.RUnlock()
	tailer := &Tailer{rl: rl}
	if len(rl.segments) > 0 {
		tailer.cycle = rl.segments[0].ID()
	}
	return tailer
}

// DeleteCycle deletes the segment of the given cycle. Only rolled over segments can be deleted.
func (rl *RollLog) DeleteCycle(cycle int) error {
	rl.lock.Lock()
	defer rl.lock.Unlock()
	if rl.closed {
		return ErrRollLogClosed
	}
	idx := rl.findSegmentIdxByID(cycle)
	if idx < 0 {
		return ErrRollLogSegmentNotFound
	}
	if idx == len(rl.segments)-1 {
		return ErrRollLogLiveSegment
	}
	seg := rl.segments[idx]
	rl.segments = append(rl.segments[:idx], rl.segments[idx+1:]...)
	rl.logger.Infof("Deleting segment: %d", cycle)
	if err := seg.MarkExpired(); err != nil {
		rl.logger.Errorf("Unable to mark segment: %d as expired due to err: %s", cycle, err.Error())
	}
	if err := seg.Close(); err != nil {
		rl.logger.Errorf("Unable to close segment: %d due to err: %s", cycle, err.Error())
	}
	return rl.disposeSegment(cycle)
}

// Close closes the log.
func (rl *RollLog) Close() error {
	rl.lock.Lock()
	if rl.closed {
		rl.lock.Unlock()
		return nil
	}
	rl.closed = true
	rl.lock.Unlock()
	close(rl.rollManagerDone)
	rl.rollManagerWg.Wait()

	rl.lock.Lock()
	defer rl.lock.Unlock()
	rl.logger.Infof("Closing roll log")
	return rl.closeSegments()
}

func (rl *RollLog) closeSegments() error {
	var retErr error
	for _, seg := range rl.segments {
		if err := seg.Close(); err != nil {
			rl.logger.Errorf("Unable to close segment: %d due to err: %s", seg.ID(), err.Error())
			retErr = fmt.Errorf("%w: %v", ErrRollLogBackend, err)
		}
	}
	rl.segments = nil
	return retErr
}

// appendRecord appends the record to the live segment, rolling it over first if required.
func (rl *RollLog) appendRecord(ctx context.Context, data []byte) (base.Index, error) {
	rl.lock.Lock()
	defer rl.lock.Unlock()
	if rl.closed {
		return -1, ErrRollLogClosed
	}
	if err := rl.maybeRollUnsafe(); err != nil {
		return -1, err
	}
	live := rl.segments[len(rl.segments)-1]
	seq, err := live.Append(ctx, data)
	if err != nil {
		return -1, err
	}
	return base.NewIndex(live.ID(), seq), nil
}

// rollManager rolls the live segment over once its cycle has passed even if nothing is being appended so that
// tailers can move past idle cycles.
func (rl *RollLog) rollManager() {
	defer rl.rollManagerWg.Done()
	ticker := time.NewTicker(rl.rollCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-rl.rollManagerDone:
			rl.logger.VInfof(1, "Roll manager exiting")
			return
		case <-ticker.C:
			rl.maybeRoll()
		}
	}
}

func (rl *RollLog) maybeRoll() {
	rl.lock.Lock()
	defer rl.lock.Unlock()
	if rl.closed {
		return
	}
	if err := rl.maybeRollUnsafe(); err != nil {
		rl.logger.Errorf("Unable to roll over live segment due to err: %s", err.Error())
	}
}

// maybeRollUnsafe rolls the live segment over if the clock has moved past its cycle. Callers must hold the write
// lock. If the clock moves backwards, records keep going to the live segment so that indexes stay monotonic.
func (rl *RollLog) maybeRollUnsafe() error {
	live := rl.segments[len(rl.segments)-1]
	curr := rl.rollCycle.CycleAt(rl.clock())
	if curr <= live.ID() {
		return nil
	}
	rl.logger.Infof("Rolling over live segment: %d. New cycle: %d", live.ID(), curr)
	if err := live.MarkImmutable(); err != nil {
		return fmt.Errorf("%w: unable to mark segment %d immutable: %v", ErrRollLogBackend, live.ID(), err)
	}
	return rl.createNewSegmentUnsafe(curr)
}

// nextCycleUnsafe returns the cycle for a new live segment when the previous live segment was rolled over.
func (rl *RollLog) nextCycleUnsafe() int {
	curr := rl.rollCycle.CycleAt(rl.clock())
	last := rl.segments[len(rl.segments)-1].ID()
	if curr <= last {
		return last + 1
	}
	return curr
}

func (rl *RollLog) createNewSegmentUnsafe(cycle int) error {
	seg, err := rl.openSegment(cycle)
	if err != nil {
		return err
	}
	rl.segments = append(rl.segments, seg)
	return nil
}

func (rl *RollLog) openSegment(cycle int) (segments.Segment, error) {
	opts := segments.BadgerSegmentOpts{
		RootDir: rl.getSegmentDirectory(cycle),
		ID:      cycle,
		Logger:  rl.logger,
	}
	seg, err := segments.NewBadgerSegment(&opts)
	if err != nil {
		return nil, fmt.Errorf("%w: unable to open segment %d: %v", ErrRollLogBackend, cycle, err)
	}
	return seg, nil
}

// disposeSegment renames the segment directory as expired and hands it over to the disposer.
func (rl *RollLog) disposeSegment(cycle int) error {
	segDir := rl.getSegmentDirectory(cycle)
	expiredSegDir := path.Join(filepath.Dir(segDir), filepath.Base(segDir)+KExpiredSegmentDirSuffix)
	rl.logger.Infof("Renaming segment directory for segment: %d to %s", cycle, expiredSegDir)
	if err := os.Rename(segDir, expiredSegDir); err != nil {
		return fmt.Errorf("%w: unable to rename segment directory %s: %v", ErrRollLogBackend, segDir, err)
	}
	rl.disposer.Dispose(expiredSegDir, func(err error) {
		if err != nil {
			rl.logger.Errorf("Unable to delete segment: %d due to err: %s", cycle, err.Error())
		}
	})
	return nil
}

// findSegmentIdxByID returns the index of the segment with the given cycle or -1 if there is no such segment.
func (rl *RollLog) findSegmentIdxByID(cycle int) int {
	idx := rl.findSegmentIdxFrom(cycle)
	if idx < 0 || rl.segments[idx].ID() != cycle {
		return -1
	}
	return idx
}

// findSegmentIdxFrom returns the index of the first segment whose cycle is >= the given cycle or -1 if there is no
// such segment.
func (rl *RollLog) findSegmentIdxFrom(cycle int) int {
	idx := sort.Search(len(rl.segments), func(ii int) bool {
		return rl.segments[ii].ID() >= cycle
	})
	if idx == len(rl.segments) {
		return -1
	}
	return idx
}

// getFileSystemSegments returns the cycles of all the segments in the segment root directory in ascending order.
func (rl *RollLog) getFileSystemSegments() ([]int, error) {
	entries, err := os.ReadDir(rl.getSegmentRootDirectory())
	if err != nil {
		return nil, fmt.Errorf("%w: unable to read segment root directory: %v", ErrRollLogBackend, err)
	}
	var segmentIDs []int
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasSuffix(entry.Name(), KExpiredSegmentDirSuffix) {
			continue
		}
		segmentID, err := strconv.Atoi(entry.Name())
		if err != nil {
			rl.logger.Warningf("Skipping unknown directory: %s in segment root directory", entry.Name())
			continue
		}
		segmentIDs = append(segmentIDs, segmentID)
	}
	sort.Ints(segmentIDs)
	return segmentIDs, nil
}

// getExpiredFileSystemSegments returns all the segments that have the expired suffix in the segment directory name.
func (rl *RollLog) getExpiredFileSystemSegments() []string {
	segRootDir := rl.getSegmentRootDirectory()
	entries, err := os.ReadDir(segRootDir)
	if err != nil {
		rl.logger.Errorf("Unable to read segment root directory due to err: %v", err)
		return nil
	}
	var expiredSegs []string
	for _, entry := range entries {
		if entry.IsDir() && strings.HasSuffix(entry.Name(), KExpiredSegmentDirSuffix) {
			expiredSegs = append(expiredSegs, path.Join(segRootDir, entry.Name()))
		}
	}
	return expiredSegs
}

func (rl *RollLog) getSegmentRootDirectory() string {
	return path.Join(rl.rootDir, KSegmentsDirectoryName)
}

func (rl *RollLog) getSegmentDirectory(cycle int) string {
	return path.Join(rl.getSegmentRootDirectory(), strconv.Itoa(cycle))
}
