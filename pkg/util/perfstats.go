package util

import (
	"runtime"
	"time"

	log "github.com/sirupsen/logrus"
)

// PerfStats provides a snapshot of memory allocation at a given point in
// time and, via Lap, a running log of how long each pass of the compiler
// pipeline (spec §4.10) took since the previous lap. This is the
// per-pass profiling shown at the trace log level (spec §6.5): a single
// Compile call threads one PerfStats through its pipeline and calls Lap
// after each stage, giving each stage its own line instead of one opaque
// total.
type PerfStats struct {
	// Starting time
	startTime time.Time
	// Starting total memory allocation
	startMem uint64
	// Starting number of gc events
	startGc uint32
	// Time of the most recent Lap, for per-pass deltas
	lapTime time.Time
}

// NewPerfStats creates a new snapshot of the current amount of memory allocated.
func NewPerfStats() *PerfStats {
	var m runtime.MemStats

	startTime := time.Now()

	runtime.ReadMemStats(&m)

	return &PerfStats{startTime, m.TotalAlloc, m.NumGC, startTime}
}

// Log logs the difference between the state now and as it was when the PerfStats object was created.
func (p *PerfStats) Log(prefix string) {
	var m runtime.MemStats

	runtime.ReadMemStats(&m)
	alloc := (m.TotalAlloc - p.startMem) / 1024 / 1024 / 1024
	gcs := m.NumGC - p.startGc
	exectime := time.Since(p.startTime).Seconds()

	log.Debugf("%s took %0.2fs using %v Gb (%v GC events) [%v Gb]", prefix, exectime, alloc, gcs, m.Alloc/1024/1024/1024)
}

// Lap records the time elapsed since the previous Lap (or since the
// PerfStats was created, for the first call) under pass, at trace level
// so it stays silent unless the log level is trace.
func (p *PerfStats) Lap(pass string) {
	now := time.Now()
	log.Tracef("%s: %0.4fs", pass, now.Sub(p.lapTime).Seconds())
	p.lapTime = now
}
