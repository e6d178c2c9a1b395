package storage

import (
	"chronolog/util/testutil"
	"errors"
	"fmt"
	"os"
	"path"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/golang/glog"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (fc *fakeClock) Now() time.Time {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	return fc.now
}

func (fc *fakeClock) Advance(d time.Duration) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	fc.now = fc.now.Add(d)
}

func openTestRollLog(t *testing.T, testName string, clock *fakeClock) (*RollLog, RollLogOpts) {
	opts := RollLogOpts{
		RootDirectory:     testutil.CreateFreshTestDir(testName),
		RollCycle:         MinutelyRollCycle,
		Clock:             clock.Now,
		RollCheckInterval: time.Hour,
	}
	rl, err := OpenRollLog(opts)
	require.NoError(t, err)
	return rl, opts
}

func appendRecords(t *testing.T, rl *RollLog, prefix string, count int) {
	appender := rl.AcquireAppender()
	for ii := 0; ii < count; ii++ {
		_, err := appender.Append([]byte(fmt.Sprintf("%s-%d", prefix, ii)))
		require.NoError(t, err)
	}
}

func readAvailable(t *testing.T, tailer *Tailer) []string {
	var values []string
	for {
		data, ok, err := tailer.ReadNext()
		require.NoError(t, err)
		if !ok {
			return values
		}
		values = append(values, string(data))
	}
}

func expectedRecords(prefix string, count int) []string {
	var values []string
	for ii := 0; ii < count; ii++ {
		values = append(values, fmt.Sprintf("%s-%d", prefix, ii))
	}
	return values
}

var kTestStartTime = time.Date(2026, 3, 14, 9, 26, 0, 0, time.UTC)

func TestRollCycle(t *testing.T) {
	testutil.LogTestMarker("TestRollCycle")
	rc, err := ParseRollCycle("minutely")
	require.NoError(t, err)
	require.Equal(t, MinutelyRollCycle, rc)
	_, err = ParseRollCycle("weekly")
	require.True(t, errors.Is(err, ErrRollLogInvalidArg))

	cycle := MinutelyRollCycle.CycleAt(kTestStartTime)
	require.Equal(t, cycle, MinutelyRollCycle.CycleAt(kTestStartTime.Add(59*time.Second)))
	require.Equal(t, cycle+1, MinutelyRollCycle.CycleAt(kTestStartTime.Add(time.Minute)))
	require.True(t, MinutelyRollCycle.StartOf(cycle).Equal(kTestStartTime))
	require.Equal(t, DailyRollCycle.CycleAt(kTestStartTime), int(kTestStartTime.Unix()/86400))
	require.False(t, RollCycle{Name: "tiny", Length: time.Microsecond}.IsValid())
}

func TestRollLogAppendAndTail(t *testing.T) {
	testutil.LogTestMarker("TestRollLogAppendAndTail")
	clock := newFakeClock(kTestStartTime)
	rl, _ := openTestRollLog(t, "TestRollLogAppendAndTail", clock)
	defer rl.Close()
	firstCycle := rl.LiveCycle()
	require.Equal(t, MinutelyRollCycle.CycleAt(kTestStartTime), firstCycle)

	tailer := rl.CreateTailer()
	require.Empty(t, readAvailable(t, tailer))
	appendRecords(t, rl, "first", 10)
	require.Equal(t, expectedRecords("first", 10), readAvailable(t, tailer))
	require.Equal(t, firstCycle, tailer.Cycle())
	require.Equal(t, int64(10), tailer.Index().Seq())

	clock.Advance(time.Minute)
	idx, err := rl.AcquireAppender().Append([]byte("second-0"))
	require.NoError(t, err)
	require.Equal(t, firstCycle+1, rl.CycleOf(idx))
	require.Equal(t, int64(0), idx.Seq())
	appendRecords(t, rl, "third", 3)
	require.Equal(t, []int{firstCycle, firstCycle + 1}, rl.Cycles())

	values := readAvailable(t, tailer)
	require.Equal(t, append([]string{"second-0"}, expectedRecords("third", 3)...), values)
	require.Equal(t, firstCycle+1, tailer.Cycle())

	// A fresh tailer reads everything in append order.
	all := readAvailable(t, rl.CreateTailer())
	require.Len(t, all, 14)
	require.Equal(t, "first-0", all[0])
	require.Equal(t, "third-2", all[13])
}

func TestRollLogToEnd(t *testing.T) {
	testutil.LogTestMarker("TestRollLogToEnd")
	clock := newFakeClock(kTestStartTime)
	rl, _ := openTestRollLog(t, "TestRollLogToEnd", clock)
	defer rl.Close()
	appendRecords(t, rl, "old", 5)
	tailer := rl.CreateTailer().ToEnd()
	require.Empty(t, readAvailable(t, tailer))
	appendRecords(t, rl, "new", 2)
	require.Equal(t, expectedRecords("new", 2), readAvailable(t, tailer))
}

func TestRollLogClockMovesBackwards(t *testing.T) {
	testutil.LogTestMarker("TestRollLogClockMovesBackwards")
	clock := newFakeClock(kTestStartTime)
	rl, _ := openTestRollLog(t, "TestRollLogClockMovesBackwards", clock)
	defer rl.Close()
	appender := rl.AcquireAppender()
	first, err := appender.Append([]byte("a"))
	require.NoError(t, err)
	clock.Advance(-5 * time.Minute)
	second, err := appender.Append([]byte("b"))
	require.NoError(t, err)
	require.Greater(t, int64(second), int64(first))
	require.Len(t, rl.Cycles(), 1)
}

func TestRollLogDeleteCycle(t *testing.T) {
	testutil.LogTestMarker("TestRollLogDeleteCycle")
	clock := newFakeClock(kTestStartTime)
	rl, opts := openTestRollLog(t, "TestRollLogDeleteCycle", clock)
	defer rl.Close()
	firstCycle := rl.LiveCycle()
	appendRecords(t, rl, "first", 5)
	staleTailer := rl.CreateTailer()
	clock.Advance(time.Minute)
	appendRecords(t, rl, "second", 5)
	clock.Advance(time.Minute)
	appendRecords(t, rl, "third", 5)

	require.Equal(t, ErrRollLogLiveSegment, rl.DeleteCycle(firstCycle+2))
	require.Equal(t, ErrRollLogSegmentNotFound, rl.DeleteCycle(firstCycle+10))
	require.NoError(t, rl.DeleteCycle(firstCycle))
	require.Equal(t, ErrRollLogSegmentNotFound, rl.DeleteCycle(firstCycle))
	require.Equal(t, []int{firstCycle + 1, firstCycle + 2}, rl.Cycles())

	segDir := path.Join(opts.RootDirectory, KSegmentsDirectoryName, strconv.Itoa(firstCycle))
	expiredDir := segDir + KExpiredSegmentDirSuffix
	require.Eventually(t, func() bool {
		_, errSeg := os.Stat(segDir)
		_, errExp := os.Stat(expiredDir)
		return os.IsNotExist(errSeg) && os.IsNotExist(errExp)
	}, 10*time.Second, 10*time.Millisecond)

	// A tailer positioned in the deleted cycle skips forward.
	values := readAvailable(t, staleTailer)
	require.Equal(t, append(expectedRecords("second", 5), expectedRecords("third", 5)...), values)
	glog.Infof("Tailer index after reading: %s", staleTailer.Index())
}

func TestRollLogReopen(t *testing.T) {
	testutil.LogTestMarker("TestRollLogReopen")
	clock := newFakeClock(kTestStartTime)
	rl, opts := openTestRollLog(t, "TestRollLogReopen", clock)
	firstCycle := rl.LiveCycle()
	appendRecords(t, rl, "first", 5)
	clock.Advance(time.Minute)
	appendRecords(t, rl, "second", 5)
	require.NoError(t, rl.Close())

	rl, err := OpenRollLog(opts)
	require.NoError(t, err)
	require.Equal(t, []int{firstCycle, firstCycle + 1}, rl.Cycles())
	appendRecords(t, rl, "third", 2)
	values := readAvailable(t, rl.CreateTailer())
	require.Len(t, values, 12)
	require.NoError(t, rl.Close())

	// Reopening in a later cycle rolls the live segment over.
	clock.Advance(3 * time.Minute)
	rl, err = OpenRollLog(opts)
	require.NoError(t, err)
	defer rl.Close()
	require.Equal(t, firstCycle+4, rl.LiveCycle())
	require.Len(t, readAvailable(t, rl.CreateTailer()), 12)
}

func TestRollLogRollManager(t *testing.T) {
	testutil.LogTestMarker("TestRollLogRollManager")
	clock := newFakeClock(kTestStartTime)
	opts := RollLogOpts{
		RootDirectory:     testutil.CreateFreshTestDir("TestRollLogRollManager"),
		RollCycle:         MinutelyRollCycle,
		Clock:             clock.Now,
		RollCheckInterval: 5 * time.Millisecond,
	}
	rl, err := OpenRollLog(opts)
	require.NoError(t, err)
	defer rl.Close()
	firstCycle := rl.LiveCycle()
	appendRecords(t, rl, "first", 3)
	tailer := rl.CreateTailer()
	require.Len(t, readAvailable(t, tailer), 3)

	// No appends. The roll manager must still roll the live segment so that the tailer can move on.
	clock.Advance(time.Minute)
	require.Eventually(t, func() bool {
		return rl.LiveCycle() == firstCycle+1
	}, 5*time.Second, 5*time.Millisecond)
	require.Empty(t, readAvailable(t, tailer))
	require.Equal(t, firstCycle+1, tailer.Cycle())
	require.NoError(t, rl.DeleteCycle(firstCycle))
}

func TestRollLogClosed(t *testing.T) {
	testutil.LogTestMarker("TestRollLogClosed")
	clock := newFakeClock(kTestStartTime)
	rl, _ := openTestRollLog(t, "TestRollLogClosed", clock)
	tailer := rl.CreateTailer()
	require.NoError(t, rl.Close())
	require.NoError(t, rl.Close())
	_, err := rl.AcquireAppender().Append([]byte("a"))
	require.Equal(t, ErrRollLogClosed, err)
	_, _, err = tailer.ReadNext()
	require.Equal(t, ErrRollLogClosed, err)
	require.Equal(t, ErrRollLogClosed, rl.DeleteCycle(1))
}

func TestOpenRollLogInvalidOpts(t *testing.T) {
	testutil.LogTestMarker("TestOpenRollLogInvalidOpts")
	_, err := OpenRollLog(RollLogOpts{})
	require.True(t, errors.Is(err, ErrRollLogInvalidArg))
	_, err = OpenRollLog(RollLogOpts{
		RootDirectory: testutil.CreateFreshTestDir("TestOpenRollLogInvalidOpts"),
		RollCycle:     RollCycle{Name: "bad", Length: time.Nanosecond},
	})
	require.True(t, errors.Is(err, ErrRollLogInvalidArg))
}
