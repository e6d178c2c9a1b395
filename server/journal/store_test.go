package journal

import (
	"chronolog/server/storage"
	"chronolog/server/stream"
	"chronolog/util/testutil"
	"context"
	"errors"
	"fmt"
	"io"
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

var kTestStartTime = time.Date(2026, 3, 14, 9, 26, 0, 0, time.UTC)

func testConfig(testName string, clock func() time.Time) Config[string] {
	return Config[string]{
		Path:               testutil.CreateFreshTestDir(testName),
		Encoder:            StringEncoder,
		Decoder:            StringDecoder,
		RollCycle:          storage.MinutelyRollCycle,
		Clock:              clock,
		DemandPollInterval: 20 * time.Millisecond,
		DataPollInterval:   5 * time.Millisecond,
		RollCheckInterval:  10 * time.Millisecond,
	}
}

func newTestStore(t *testing.T, testName string, clock func() time.Time) *Store[string, string] {
	s, err := NewStore(testConfig(testName, clock))
	require.NoError(t, err)
	return s
}

func storeValues(t *testing.T, s *Store[string, string], prefix string, count int) []string {
	var values []string
	for ii := 0; ii < count; ii++ {
		v := fmt.Sprintf("%s-%d", prefix, ii)
		require.NoError(t, s.Store(v))
		values = append(values, v)
	}
	return values
}

func nextN[T any](t *testing.T, sub stream.Subscription[T], n int) []T {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	var values []T
	for ii := 0; ii < n; ii++ {
		v, err := sub.Next(ctx)
		require.NoError(t, err)
		values = append(values, v)
	}
	return values
}

func requireNoValue[T any](t *testing.T, sub stream.Subscription[T], wait time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()
	v, err := sub.Next(ctx)
	require.True(t, errors.Is(err, context.DeadlineExceeded), "unexpected value: %v, err: %v", v, err)
}

func TestConfigValidation(t *testing.T) {
	testutil.LogTestMarker("TestConfigValidation")
	_, err := NewStore(Config[string]{Encoder: StringEncoder, Decoder: StringDecoder})
	require.Equal(t, ErrConfigMissingPath, err)
	_, err = NewStore(Config[string]{Path: "/tmp/x", Decoder: StringDecoder})
	require.Equal(t, ErrConfigMissingEncoder, err)
	_, err = NewJournal(Config[string]{Path: "/tmp/x", Encoder: StringEncoder})
	require.Equal(t, ErrConfigMissingDecoder, err)
	_, err = NewStore(Config[string]{Path: "/tmp/x", Encoder: StringEncoder, Decoder: StringDecoder,
		DataPollInterval: -time.Second})
	require.True(t, errors.Is(err, ErrConfigInvalidInterval))

	cfg := Config[string]{Path: "/tmp/x", Encoder: StringEncoder, Decoder: StringDecoder}
	require.NoError(t, cfg.validate())
	require.Equal(t, storage.DailyRollCycle, cfg.RollCycle)
	require.Equal(t, 100*time.Millisecond, cfg.DemandPollInterval)
	require.Equal(t, 10*time.Millisecond, cfg.DataPollInterval)
	require.NotNil(t, cfg.Clock)
}

func TestRetrieveHistory(t *testing.T) {
	testutil.LogTestMarker("TestRetrieveHistory")
	s := newTestStore(t, "TestRetrieveHistory", nil)
	defer s.Close()
	values, err := stream.Collect(context.Background(), s.RetrieveHistory())
	require.NoError(t, err)
	require.Empty(t, values)

	expected := storeValues(t, s, "value", 100)
	values, err = stream.Collect(context.Background(), s.RetrieveHistory())
	require.NoError(t, err)
	require.Equal(t, expected, values)
}

func TestRetrieveNewValues(t *testing.T) {
	testutil.LogTestMarker("TestRetrieveNewValues")
	s := newTestStore(t, "TestRetrieveNewValues", nil)
	defer s.Close()
	storeValues(t, s, "old", 20)
	sub := s.RetrieveNewValues().Subscribe()
	defer sub.Cancel()
	expected := storeValues(t, s, "new", 10)
	require.Equal(t, expected, nextN(t, sub, 10))
	requireNoValue(t, sub, 100*time.Millisecond)
	// The stream keeps tailing.
	require.NoError(t, s.Store("later"))
	require.Equal(t, []string{"later"}, nextN(t, sub, 1))
}

func TestRetrieveAll(t *testing.T) {
	testutil.LogTestMarker("TestRetrieveAll")
	s := newTestStore(t, "TestRetrieveAll", nil)
	defer s.Close()
	expected := storeValues(t, s, "old", 20)
	sub := s.RetrieveAll(false).Subscribe()
	defer sub.Cancel()
	require.Equal(t, expected, nextN(t, sub, 20))
	expected = storeValues(t, s, "new", 20)
	require.Equal(t, expected, nextN(t, sub, 20))
	requireNoValue(t, sub, 50*time.Millisecond)
}

func TestIndependentTailers(t *testing.T) {
	testutil.LogTestMarker("TestIndependentTailers")
	s := newTestStore(t, "TestIndependentTailers", nil)
	defer s.Close()
	fast := s.RetrieveAll(false).Subscribe()
	defer fast.Cancel()
	slow := s.RetrieveAll(false).Subscribe()
	defer slow.Cancel()
	expected := storeValues(t, s, "value", 30)
	require.Equal(t, expected, nextN(t, fast, 30))
	require.Equal(t, expected[:10], nextN(t, slow, 10))
	require.Equal(t, expected[10:], nextN(t, slow, 20))
}

func TestRetrieveAcrossCycles(t *testing.T) {
	testutil.LogTestMarker("TestRetrieveAcrossCycles")
	clock := &fakeClock{now: kTestStartTime}
	s := newTestStore(t, "TestRetrieveAcrossCycles", clock.Now)
	defer s.Close()
	sub := s.RetrieveAll(false).Subscribe()
	defer sub.Cancel()
	var expected []string
	for cycle := 0; cycle < 3; cycle++ {
		expected = append(expected, storeValues(t, s, fmt.Sprintf("cycle%d", cycle), 5)...)
		if cycle < 2 {
			clock.Advance(time.Minute)
		}
	}
	require.Len(t, s.Cycles(), 3)
	require.Equal(t, expected, nextN(t, sub, 15))
	history, err := stream.Collect(context.Background(), s.RetrieveHistory())
	require.NoError(t, err)
	require.Equal(t, expected, history)
}

func TestRetrieveAllDeleteAfterRead(t *testing.T) {
	testutil.LogTestMarker("TestRetrieveAllDeleteAfterRead")
	clock := &fakeClock{now: kTestStartTime}
	s := newTestStore(t, "TestRetrieveAllDeleteAfterRead", clock.Now)
	defer s.Close()
	firstCycle := storage.MinutelyRollCycle.CycleAt(kTestStartTime)
	var expected []string
	for cycle := 0; cycle < 3; cycle++ {
		expected = append(expected, storeValues(t, s, fmt.Sprintf("cycle%d", cycle), 5)...)
		if cycle < 2 {
			clock.Advance(time.Minute)
		}
	}
	require.Equal(t, []int{firstCycle, firstCycle + 1, firstCycle + 2}, s.Cycles())

	sub := s.RetrieveAll(true).Subscribe()
	defer sub.Cancel()
	require.Equal(t, expected[:5], nextN(t, sub, 5))
	// The first cycle has been fully read but the tailer has not moved past it yet.
	time.Sleep(100 * time.Millisecond)
	require.Equal(t, []int{firstCycle, firstCycle + 1, firstCycle + 2}, s.Cycles())

	require.Equal(t, expected[5:6], nextN(t, sub, 1))
	require.Eventually(t, func() bool {
		cycles := s.Cycles()
		return len(cycles) == 2 && cycles[0] == firstCycle+1
	}, 5*time.Second, 10*time.Millisecond)

	require.Equal(t, expected[6:], nextN(t, sub, 9))
	require.Eventually(t, func() bool {
		cycles := s.Cycles()
		return len(cycles) == 1 && cycles[0] == firstCycle+2
	}, 5*time.Second, 10*time.Millisecond)

	// The live segment is never deleted and the other streams only see what is left.
	history, err := stream.Collect(context.Background(), s.RetrieveHistory())
	require.NoError(t, err)
	require.Equal(t, expected[10:], history)
	require.NoError(t, s.Store("after"))
	require.Equal(t, []string{"after"}, nextN(t, sub, 1))
}

func TestCancelStopsTailer(t *testing.T) {
	testutil.LogTestMarker("TestCancelStopsTailer")
	s := newTestStore(t, "TestCancelStopsTailer", nil)
	storeValues(t, s, "value", 3)
	sub := s.RetrieveAll(false).Subscribe()
	require.Len(t, nextN(t, sub, 1), 1)
	sub.Cancel()
	_, err := sub.Next(context.Background())
	require.Equal(t, stream.ErrCancelled, err)

	idle := s.RetrieveNewValues().Subscribe()
	idle.Cancel()

	// Close waits for all tailers so it only returns once they have stopped.
	start := time.Now()
	require.NoError(t, s.Close())
	require.Less(t, time.Since(start), time.Second)
}

func TestCloseCompletesTailers(t *testing.T) {
	testutil.LogTestMarker("TestCloseCompletesTailers")
	s := newTestStore(t, "TestCloseCompletesTailers", nil)
	sub := s.RetrieveNewValues().Subscribe()
	result := make(chan error, 1)
	go func() {
		_, err := sub.Next(context.Background())
		result <- err
	}()
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, s.Close())
	select {
	case err := <-result:
		require.Equal(t, io.EOF, err)
	case <-time.After(5 * time.Second):
		glog.Fatalf("Tailer did not complete after the store was closed")
	}
	require.NoError(t, s.Close())

	require.Equal(t, ErrStoreClosed, s.Store("value"))
	_, err := stream.Collect(context.Background(), s.RetrieveHistory())
	require.Equal(t, ErrStoreClosed, err)
	handle := s.StoreAll(stream.Just("a"))
	<-handle.Done()
	require.Equal(t, ErrStoreClosed, handle.Err())
}

func TestStoreAll(t *testing.T) {
	testutil.LogTestMarker("TestStoreAll")
	s := newTestStore(t, "TestStoreAll", nil)
	defer s.Close()
	handle := s.StoreAll(stream.Just("a", "b", "c"))
	<-handle.Done()
	require.NoError(t, handle.Err())
	values, err := stream.Collect(context.Background(), s.RetrieveHistory())
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c"}, values)
}

func TestStoreAllSourceError(t *testing.T) {
	testutil.LogTestMarker("TestStoreAllSourceError")
	s := newTestStore(t, "TestStoreAllSourceError", nil)
	defer s.Close()
	errBoom := errors.New("boom")
	src := stream.Create(func(sk stream.Sink[string]) {
		for _, v := range []string{"a", "b", "c"} {
			if !sk.Next(v) {
				return
			}
		}
		sk.Error(errBoom)
	})
	handle := s.StoreAll(src)
	<-handle.Done()
	require.Equal(t, errBoom, handle.Err())
	values, err := stream.Collect(context.Background(), s.RetrieveHistory())
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b", "c"}, values)
}

func TestStoreAllCancel(t *testing.T) {
	testutil.LogTestMarker("TestStoreAllCancel")
	s := newTestStore(t, "TestStoreAllCancel", nil)
	defer s.Close()
	src := stream.Create(func(sk stream.Sink[string]) {
		for ii := 0; ; ii++ {
			if !sk.Next(fmt.Sprintf("value-%d", ii)) {
				return
			}
			if !stream.Sleep(sk, 5*time.Millisecond) {
				return
			}
		}
	})
	handle := s.StoreAll(src)
	time.Sleep(50 * time.Millisecond)
	handle.Cancel()
	select {
	case <-handle.Done():
	case <-time.After(5 * time.Second):
		glog.Fatalf("StoreAll did not stop after being cancelled")
	}
	require.NoError(t, handle.Err())
	values, err := stream.Collect(context.Background(), s.RetrieveHistory())
	require.NoError(t, err)
	require.NotEmpty(t, values)
	for ii, v := range values {
		require.Equal(t, fmt.Sprintf("value-%d", ii), v)
	}
}

func TestDecodeErrorTerminatesOnlyThatStream(t *testing.T) {
	testutil.LogTestMarker("TestDecodeErrorTerminatesOnlyThatStream")
	cfg := testConfig("TestDecodeErrorTerminatesOnlyThatStream", nil)
	cfg.Decoder = func(data []byte) (string, error) {
		if string(data) == "bad" {
			return "", errors.New("bad record")
		}
		return string(data), nil
	}
	s, err := NewStore(cfg)
	require.NoError(t, err)
	defer s.Close()
	require.NoError(t, s.Store("good"))
	live := s.RetrieveNewValues().Subscribe()
	defer live.Cancel()
	require.NoError(t, s.Store("bad"))

	values, err := stream.Collect(context.Background(), s.RetrieveHistory())
	require.True(t, errors.Is(err, ErrCodecDecode))
	require.Equal(t, []string{"good"}, values)

	_, err = live.Next(context.Background())
	require.True(t, errors.Is(err, ErrCodecDecode))

	// The store keeps working.
	require.NoError(t, s.Store("good-again"))
	values, err = stream.CollectN(context.Background(), s.RetrieveAll(false), 1)
	require.NoError(t, err)
	require.Equal(t, []string{"good"}, values)
}

func TestStoreReopen(t *testing.T) {
	testutil.LogTestMarker("TestStoreReopen")
	cfg := testConfig("TestStoreReopen", nil)
	s, err := NewStore(cfg)
	require.NoError(t, err)
	expected := storeValues(t, s, "first", 10)
	require.NoError(t, s.Close())

	s, err = NewStore(cfg)
	require.NoError(t, err)
	defer s.Close()
	expected = append(expected, storeValues(t, s, "second", 10)...)
	values, err := stream.Collect(context.Background(), s.RetrieveHistory())
	require.NoError(t, err)
	require.Equal(t, expected, values)
}

func TestStressWorkload(t *testing.T) {
	testutil.LogTestMarker("TestStressWorkload")
	cfg := Config[[]byte]{
		Path:               testutil.CreateFreshTestDir("TestStressWorkload"),
		Encoder:            BytesEncoder,
		Decoder:            BytesDecoder,
		RollCycle:          storage.MinutelyRollCycle,
		DemandPollInterval: 20 * time.Millisecond,
		DataPollInterval:   5 * time.Millisecond,
	}
	s, err := NewStore(cfg)
	require.NoError(t, err)
	defer s.Close()
	sw := NewStressWorkload(s, 3, 64)
	sw.Start()
	time.Sleep(500 * time.Millisecond)
	require.NoError(t, sw.Stop())
	require.Greater(t, sw.NumStored(), int64(0))
	require.Greater(t, sw.NumConsumed(), int64(0))
	glog.Infof("Stored: %d, consumed: %d", sw.NumStored(), sw.NumConsumed())
}
