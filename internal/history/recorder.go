package history

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/DylanMcBean/Exepose/internal/activity"
	"github.com/DylanMcBean/Exepose/internal/db"
	"github.com/DylanMcBean/Exepose/internal/fuzzstats"
	"github.com/DylanMcBean/Exepose/internal/process"
)

// Store is the subset of db.DB the recorder writes to
type Store interface {
	CreateMonitorRun(run *db.MonitorRun) error
	FinishMonitorRun(runID string, endedAt time.Time, finalState string, stopReason *string) error
	CreateMonitorTick(tick *db.MonitorTick) error
	CreateTerminations(terminations []db.Termination) error
}

// Run describes a monitor run at start up
type Run struct {
	ID                  string
	StartedAt           time.Time
	OutputDir           string
	StatsFile           string
	MaxTimeWithoutFinds time.Duration
	CheckInterval       time.Duration
}

// NewRunID returns a fresh random run identifier
func NewRunID() string {
	return uuid.New().String()
}

// Recorder persists monitor runs, ticks and terminations
type Recorder struct {
	store  Store
	logger *slog.Logger
}

// NewRecorder creates a recorder backed by store
func NewRecorder(store Store, logger *slog.Logger) *Recorder {
	return &Recorder{store: store, logger: logger}
}

func int64Ptr(i int64) *int64 {
	return &i
}

func stringPtr(s string) *string {
	return &s
}

// optionalInt converts a (value, ok) pair into a nullable column
func optionalInt(i int64, ok bool) *int64 {
	if !ok {
		return nil
	}
	return int64Ptr(i)
}

// Begin records the start of a run
func (r *Recorder) Begin(run Run) error {
	if err := r.store.CreateMonitorRun(&db.MonitorRun{
		RunID:               run.ID,
		StartedAt:           run.StartedAt,
		OutputDir:           run.OutputDir,
		StatsFile:           run.StatsFile,
		MaxTimeWithoutFinds: int64(run.MaxTimeWithoutFinds / time.Second),
		CheckInterval:       int64(run.CheckInterval / time.Second),
	}); err != nil {
		return fmt.Errorf("failed to record run start: %w", err)
	}

	r.logger.Debug("recorded monitor run", "run_id", run.ID)
	return nil
}

// RecordTick stores the snapshot and verdict of one check. snap is nil when
// the stats file could not be read.
func (r *Recorder) RecordTick(runID string, tick int, at time.Time, snap *fuzzstats.Snapshot, out activity.Outcome) error {
	row := &db.MonitorTick{
		RunID:     runID,
		Tick:      tick,
		CheckedAt: at,
		Available: snap != nil,
		Verdict:   out.Verdict.String(),
		Reported:  out.Reported(),
	}

	if snap != nil {
		row.TimeWoFinds = optionalInt(snap.Int(fuzzstats.KeyTimeWithoutFinds))
		row.LastFind = optionalInt(snap.Int(fuzzstats.KeyLastFind))
		row.CorpusCount = optionalInt(snap.Int(fuzzstats.KeyCorpusCount))
		row.UniqueCrashes = optionalInt(snap.Crashes())
		row.UniqueHangs = optionalInt(snap.Hangs())
		row.ExecsDone = optionalInt(snap.Int(fuzzstats.KeyExecsDone))
	}

	if err := r.store.CreateMonitorTick(row); err != nil {
		return fmt.Errorf("failed to record tick %d: %w", tick, err)
	}
	return nil
}

// RecordStop stores one row per PID the terminator tried to signal
func (r *Recorder) RecordStop(runID string, at time.Time, res process.Result) error {
	terms := make([]db.Termination, 0, len(res.Signalled)+len(res.Failed))

	for _, pid := range res.Signalled {
		terms = append(terms, db.Termination{RunID: runID, PID: pid, SignalledAt: at})
	}
	for _, f := range res.Failed {
		terms = append(terms, db.Termination{RunID: runID, PID: f.PID, SignalledAt: at, Error: stringPtr(f.Err.Error())})
	}

	if err := r.store.CreateTerminations(terms); err != nil {
		return fmt.Errorf("failed to record terminations: %w", err)
	}
	return nil
}

// End records the terminal state of the run
func (r *Recorder) End(runID string, at time.Time, state string, reason string) error {
	var stopReason *string
	if reason != "" {
		stopReason = stringPtr(reason)
	}

	if err := r.store.FinishMonitorRun(runID, at, state, stopReason); err != nil {
		return fmt.Errorf("failed to record run end: %w", err)
	}
	return nil
}
