package journal

import (
	"chronolog/server/stream"
	"chronolog/util"
	"context"
	"errors"
	"io"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
)

// StressWorkload runs a producer that stores random payloads as fast as it can while a set of tailers read the
// store from the start. Consumers verify that they see the payloads in the order they were stored.
type StressWorkload struct {
	store        *Store[[]byte, []byte]
	numConsumers int
	payloadSize  int
	doneChan     chan struct{}
	wg           sync.WaitGroup
	numStored    atomic.Int64
	numConsumed  atomic.Int64
	failure      atomic.Pointer[error]
}

func NewStressWorkload(store *Store[[]byte, []byte], numConsumers int, payloadSizeBytes int) *StressWorkload {
	sw := new(StressWorkload)
	sw.store = store
	sw.numConsumers = numConsumers
	sw.payloadSize = payloadSizeBytes
	if sw.payloadSize < 8 {
		sw.payloadSize = 8
	}
	sw.doneChan = make(chan struct{})
	return sw
}

func (sw *StressWorkload) Start() {
	glog.Infof("Starting workloads")
	for ii := 0; ii < sw.numConsumers; ii++ {
		sw.wg.Add(1)
		go sw.consumer(ii)
	}
	sw.wg.Add(1)
	go sw.producer()
}

// Stop stops the workload and returns the first failure seen by any of the workers.
func (sw *StressWorkload) Stop() error {
	glog.Infof("Stopping workloads")
	close(sw.doneChan)
	sw.wg.Wait()
	glog.Infof("All workers have finished. Stored: %d, consumed: %d", sw.numStored.Load(), sw.numConsumed.Load())
	if errp := sw.failure.Load(); errp != nil {
		return *errp
	}
	return nil
}

// NumStored returns the number of payloads stored so far.
func (sw *StressWorkload) NumStored() int64 {
	return sw.numStored.Load()
}

// NumConsumed returns the number of payloads read so far across all the consumers.
func (sw *StressWorkload) NumConsumed() int64 {
	return sw.numConsumed.Load()
}

func (sw *StressWorkload) fail(err error) {
	sw.failure.CompareAndSwap(nil, &err)
}

func (sw *StressWorkload) producer() {
	defer sw.wg.Done()
	token := make([]byte, sw.payloadSize)
	rand.Read(token)
	start := time.Now()
	count := int64(0)
	for {
		select {
		case <-sw.doneChan:
			elapsed := time.Since(start)
			if count > 0 {
				glog.Infof("Producer exiting. "+
					"\nTotal Time: %v"+
					"\nAverage time per payload: %v",
					elapsed, elapsed/time.Duration(count))
			}
			return
		default:
			payload := append([]byte(nil), token...)
			putSeq(payload, count)
			if err := sw.store.Store(payload); err != nil {
				glog.Errorf("Unexpected error while storing payload: %d due to err: %s", count, err.Error())
				sw.fail(err)
				return
			}
			count++
			sw.numStored.Add(1)
		}
	}
}

func (sw *StressWorkload) consumer(consumerID int) {
	defer sw.wg.Done()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-sw.doneChan:
			cancel()
		case <-ctx.Done():
		}
	}()
	sub := sw.store.RetrieveAll(false).Subscribe()
	defer sub.Cancel()
	expected := int64(0)
	for {
		payload, err := sub.Next(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) || errors.Is(err, stream.ErrCancelled) {
				glog.Infof("Consumer: %d exiting after %d payloads", consumerID, expected)
				return
			}
			glog.Errorf("Unexpected error from consumer: %d due to err: %s", consumerID, err.Error())
			sw.fail(err)
			return
		}
		if seq := getSeq(payload); seq != expected {
			glog.Errorf("Wrong payload got by consumer: %d. Expected: %d, got: %d", consumerID, expected, seq)
			sw.fail(errors.New("payloads were consumed out of order"))
			return
		}
		if expected%5000 == 0 {
			glog.Infof("Consumer ID: %d, consumed up to payload: %d", consumerID, expected)
		}
		expected++
		sw.numConsumed.Add(1)
	}
}

func putSeq(payload []byte, seq int64) {
	copy(payload, util.UintToBytes(uint64(seq)))
}

func getSeq(payload []byte) int64 {
	return int64(util.BytesToUint(payload[:8]))
}
