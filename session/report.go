package session

import "time"

// Report summarizes one published pagination run.
type Report struct {
	Generation      uint64
	Blocks          int
	Breaks          int
	Pages           int
	Splits          int
	OversizedBlocks int

	// Degraded is set when the primary resolver failed or timed out and the
	// run proceeded on heuristic heights.
	Degraded       bool
	DegradedReason string

	MeasureDuration time.Duration
	PackDuration    time.Duration
	TotalDuration   time.Duration
}
