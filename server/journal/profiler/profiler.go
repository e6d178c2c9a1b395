package main

import (
	"chronolog/server/journal"
	"chronolog/server/storage"
	"chronolog/util/testutil"
	"flag"
	"log"
	"net/http"
	_ "net/http/pprof"
	"runtime"
	"time"

	"github.com/golang/glog"
)

var (
	flagNumConsumers = flag.Int("num_consumers", 4, "Number of tailers reading the journal")
	flagPayloadSize  = flag.Int("payload_size_bytes", 512, "Size of each payload")
	flagDuration     = flag.Duration("duration", 35*time.Second, "How long the workload runs for")
)

func main() {
	flag.Parse()
	runtime.GOMAXPROCS(4)
	testDir := testutil.CreateFreshTestDir("JournalStress")
	go func() {
		log.Println(http.ListenAndServe("localhost:8080", nil))
	}()

	s, err := journal.NewStore(journal.Config[[]byte]{
		Path:      testDir,
		Encoder:   journal.BytesEncoder,
		Decoder:   journal.BytesDecoder,
		RollCycle: storage.MinutelyRollCycle,
	})
	if err != nil {
		glog.Fatalf("Unable to open journal due to err: %s", err.Error())
	}
	sw := journal.NewStressWorkload(s, *flagNumConsumers, *flagPayloadSize)
	sw.Start()
	time.Sleep(*flagDuration)
	if err := sw.Stop(); err != nil {
		glog.Errorf("Stress workload failed due to err: %s", err.Error())
	}
	if err := s.Close(); err != nil {
		glog.Errorf("Unable to close journal due to err: %s", err.Error())
	}
	glog.Flush()
}
