package storage

import (
	"fmt"
	"strings"
	"time"
)

// RollCycle is the time window covered by a single segment of the roll log. Cycles are numbered from the unix epoch
// so cycle n covers [n * Length, (n+1) * Length).
type RollCycle struct {
	Name   string
	Length time.Duration
}

var (
	MinutelyRollCycle = RollCycle{Name: "MINUTELY", Length: time.Minute}
	HourlyRollCycle   = RollCycle{Name: "HOURLY", Length: time.Hour}
	DailyRollCycle    = RollCycle{Name: "DAILY", Length: 24 * time.Hour}
)

var kRollCycles = []RollCycle{MinutelyRollCycle, HourlyRollCycle, DailyRollCycle}

// ParseRollCycle returns the roll cycle with the given name.
func ParseRollCycle(name string) (RollCycle, error) {
	for _, rc := range kRollCycles {
		if strings.EqualFold(rc.Name, name) {
			return rc, nil
		}
	}
	return RollCycle{}, fmt.Errorf("%w: unknown roll cycle: %s", ErrRollLogInvalidArg, name)
}

// IsValid returns true if the roll cycle covers at least a millisecond.
func (rc RollCycle) IsValid() bool {
	return rc.Length >= time.Millisecond
}

// CycleAt returns the cycle that the given time falls in.
func (rc RollCycle) CycleAt(t time.Time) int {
	return int(t.UnixMilli() / rc.Length.Milliseconds())
}

// StartOf returns the start time of the given cycle.
func (rc RollCycle) StartOf(cycle int) time.Time {
	return time.UnixMilli(int64(cycle) * rc.Length.Milliseconds())
}

func (rc RollCycle) String() string {
	return rc.Name
}
