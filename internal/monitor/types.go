package monitor

import (
	"context"
	"time"

	"github.com/DylanMcBean/Exepose/internal/activity"
	"github.com/DylanMcBean/Exepose/internal/fuzzstats"
	"github.com/DylanMcBean/Exepose/internal/history"
	"github.com/DylanMcBean/Exepose/internal/process"
)

// State is the lifecycle state of the monitor loop
type State int

const (
	Running State = iota
	// Stopped means the fuzzer went quiet and was signalled
	Stopped
	// Cancelled means the context ended first; the fuzzer was left alone
	Cancelled
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Stopped:
		return "stopped"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// StatsSource produces one snapshot per call
type StatsSource interface {
	Path() string
	Read() (*fuzzstats.Snapshot, error)
}

// Stopper terminates the fuzzer processes
type Stopper interface {
	Terminate(ctx context.Context) process.Result
}

// Recorder persists the run history. All calls are best-effort.
type Recorder interface {
	Begin(run history.Run) error
	RecordTick(runID string, tick int, at time.Time, snap *fuzzstats.Snapshot, out activity.Outcome) error
	RecordStop(runID string, at time.Time, res process.Result) error
	End(runID string, at time.Time, state string, reason string) error
}

// Result summarises a finished run
type Result struct {
	RunID string
	State State

	// Ticks counts checks performed, including ones without data
	Ticks int

	// Rows counts report lines logged, headers included
	Rows int

	// Stop is set when the fuzzer was terminated
	Stop *process.Result

	// StopReason explains why the monitor stopped the fuzzer
	StopReason string
}
