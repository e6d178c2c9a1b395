package storage

import (
	"chronolog/util/logging"
	"os"
	"sync"
)

var defaultLock sync.Once
var defaultDisposer *StorageDisposer

type disposeEntry struct {
	dirPath string
	cb      func(error)
}

// StorageDisposer removes expired segment directories in the background.
type StorageDisposer struct {
	numDisposers int
	disposeChan  chan *disposeEntry
	logger       *logging.PrefixLogger
}

func NewDisposer(numDisposers int) *StorageDisposer {
	if numDisposers <= 0 {
		numDisposers = 1
	}
	disposer := new(StorageDisposer)
	disposer.numDisposers = numDisposers
	disposer.disposeChan = make(chan *disposeEntry, 200)
	disposer.logger = logging.NewPrefixLogger("disposer")
	disposer.initialize()
	return disposer
}

func DefaultDisposer() *StorageDisposer {
	defaultLock.Do(func() {
		defaultDisposer = NewDisposer(2)
	})
	return defaultDisposer
}

func (ds *StorageDisposer) initialize() {
	for ii := 0; ii < ds.numDisposers; ii++ {
		go ds.dispose()
	}
}

// Dispose schedules the given directory for removal. cb, if not nil, is invoked once the removal is done.
func (ds *StorageDisposer) Dispose(dirPath string, cb func(error)) {
	ds.disposeChan <- &disposeEntry{dirPath: dirPath, cb: cb}
}

func (ds *StorageDisposer) dispose() {
	for e := range ds.disposeChan {
		ds.logger.Infof("Deleting directory: %s", e.dirPath)
		err := os.RemoveAll(e.dirPath)
		if err != nil {
			ds.logger.Errorf("Unable to delete directory: %s due to err: %s", e.dirPath, err.Error())
		}
		if e.cb != nil {
			e.cb(err)
		}
	}
}
