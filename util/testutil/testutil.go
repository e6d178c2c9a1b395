package testutil

import (
	"fmt"
	"os"
	"path"

	"github.com/golang/glog"
)

// CreateFreshTestDir creates an empty directory for the given test under the system temp directory. Any leftover
// from a previous run is removed first.
func CreateFreshTestDir(testName string) string {
	dataDir := path.Join(os.TempDir(), "chronolog", testName)
	if err := os.RemoveAll(dataDir); err != nil {
		glog.Fatalf("Unable to delete test directory: %s due to err: %v", dataDir, err)
	}
	if err := os.MkdirAll(dataDir, 0774); err != nil {
		glog.Fatalf("Unable to create test dir: %s due to err: %v", dataDir, err)
	}
	return dataDir
}

func LogTestMarker(testName string) {
	glog.InfoDepth(1, fmt.Sprintf("\n\n============================================================ %s "+
		"============================================================\n\n", testName))
}
