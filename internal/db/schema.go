package db

import "time"

// MonitorRun is one invocation of the monitor
type MonitorRun struct {
	RunID               string
	StartedAt           time.Time
	EndedAt             *time.Time
	OutputDir           string
	StatsFile           string
	MaxTimeWithoutFinds int64 // seconds
	CheckInterval       int64 // seconds
	FinalState          *string
	StopReason          *string
}

// MonitorTick is the outcome of a single check. Counter columns are nil when
// the stats file lacked the key or could not be read.
type MonitorTick struct {
	RunID         string
	Tick          int
	CheckedAt     time.Time
	Available     bool
	TimeWoFinds   *int64
	LastFind      *int64
	CorpusCount   *int64
	UniqueCrashes *int64
	UniqueHangs   *int64
	ExecsDone     *int64
	Verdict       string
	Reported      bool
}

// Termination records one SIGTERM sent to a fuzzer process
type Termination struct {
	RunID       string
	PID         int
	SignalledAt time.Time
	Error       *string
}
