package logging

import (
	"fmt"
	"github.com/golang/glog"
)

// PrefixLogger attaches a fixed prefix to every log statement. Prefixes of nested components are chained so
// that a single log line carries the full path e.g. {journal:/data/q} {rolllog} {segment-19876}.
type PrefixLogger struct {
	prefix string // The prefix string that is attached to every log statement.
}

// NewPrefixLogger returns a new instance of the prefix logger.
func NewPrefixLogger(prefix string) *PrefixLogger {
	logger := PrefixLogger{prefix: createPrefixStr(prefix)}
	return &logger
}

// NewPrefixLoggerWithParent returns a new instance of the prefix logger. It uses the prefix of the parent as well
// as the given prefix in every log statement.
func NewPrefixLoggerWithParent(prefix string, parentLogger *PrefixLogger) *PrefixLogger {
	actualPrefix := createPrefixStr(prefix)
	if parentLogger != nil {
		actualPrefix = parentLogger.GetPrefix() + " " + actualPrefix
	}
	logger := PrefixLogger{prefix: actualPrefix}
	return &logger
}

// Child returns a logger whose prefix is nested under this logger's prefix.
func (logger *PrefixLogger) Child(prefix string) *PrefixLogger {
	return NewPrefixLoggerWithParent(prefix, logger)
}

func (logger *PrefixLogger) GetPrefix() string {
	return logger.prefix
}

func (logger *PrefixLogger) Infof(format string, args ...interface{}) {
	glog.InfoDepth(1, logger.format(format, args...))
}

func (logger *PrefixLogger) Errorf(format string, args ...interface{}) {
	glog.ErrorDepth(1, logger.format(format, args...))
}

func (logger *PrefixLogger) Warningf(format string, args ...interface{}) {
	glog.WarningDepth(1, logger.format(format, args...))
}

func (logger *PrefixLogger) Fatalf(format string, args ...interface{}) {
	glog.FatalDepth(1, logger.format(format, args...))
}

func (logger *PrefixLogger) VInfof(v uint, format string, args ...interface{}) {
	if glog.V(glog.Level(v)) {
		glog.InfoDepth(1, logger.format(format, args...))
	}
}

// Debugf logs at verbosity level 2. It lets the PrefixLogger act as a badger.Logger.
func (logger *PrefixLogger) Debugf(format string, args ...interface{}) {
	if glog.V(2) {
		glog.InfoDepth(1, logger.format(format, args...))
	}
}

func (logger *PrefixLogger) format(format string, args ...interface{}) string {
	return fmt.Sprintf("%s %s", logger.prefix, fmt.Sprintf(format, args...))
}

func createPrefixStr(prefix string) string {
	return "{" + prefix + "}"
}
