package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/DylanMcBean/Exepose/internal/activity"
	"github.com/DylanMcBean/Exepose/internal/fuzzstats"
	"github.com/DylanMcBean/Exepose/internal/history"
)

// ErrAlreadyRun is returned when Run is called on a monitor that has finished
var ErrAlreadyRun = errors.New("monitor: already run")

// Monitor polls the fuzzer stats file on a fixed cadence and stops the
// fuzzer once it has gone quiet for too long
type Monitor struct {
	// Configuration
	config Config
	logger *slog.Logger
	runID  string
	now    func() time.Time

	// Collaborators
	source    StatsSource
	evaluator *activity.Evaluator
	stopper   Stopper
	recorder  Recorder

	// State (accessed only by the loop)
	started  bool
	state    State
	previous *fuzzstats.Snapshot
	result   Result
}

// Option customises a Monitor
type Option func(*Monitor)

// WithRecorder enables history recording
func WithRecorder(r Recorder) Option {
	return func(m *Monitor) {
		m.recorder = r
	}
}

// WithClock replaces time.Now for timestamps and report rows
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) {
		m.now = now
	}
}

// WithRunID sets the run identifier instead of generating one
func WithRunID(id string) Option {
	return func(m *Monitor) {
		m.runID = id
	}
}

// New creates a monitor with validated configuration
func New(config Config, source StatsSource, stopper Stopper, logger *slog.Logger, opts ...Option) (*Monitor, error) {
	if err := validateConfig(config); err != nil {
		return nil, err
	}
	if source == nil {
		return nil, errors.New("monitor: stats source required")
	}
	if stopper == nil {
		return nil, errors.New("monitor: stopper required")
	}

	m := &Monitor{
		config:  config,
		logger:  logger,
		now:     time.Now,
		source:  source,
		stopper: stopper,
		state:   Running,
	}

	for _, opt := range opts {
		opt(m)
	}

	if m.runID == "" {
		m.runID = history.NewRunID()
	}

	m.evaluator = activity.NewEvaluator(config.MaxTimeWithoutFinds, activity.NewTable(m.now, time.Local))
	m.result.RunID = m.runID

	return m, nil
}

// RunID returns the identifier of this run
func (m *Monitor) RunID() string {
	return m.runID
}

// Run blocks until the fuzzer has been stopped or ctx is done. Exactly one
// timer is pending at any time, so checks never overlap.
func (m *Monitor) Run(ctx context.Context) (Result, error) {
	if m.started {
		return m.result, ErrAlreadyRun
	}
	m.started = true

	startedAt := m.now()
	m.logger.Info("starting fuzzer monitor",
		"current_time", startedAt.Format(activity.TimeLayout),
		"output_dir", m.config.OutputDir,
		"fuzzer_stats", m.config.StatsFile,
		"max_time_without_finds", int64(m.config.MaxTimeWithoutFinds/time.Second),
		"check_interval", int64(m.config.CheckInterval/time.Second),
		"run_id", m.runID)

	if m.recorder != nil {
		if err := m.recorder.Begin(history.Run{
			ID:                  m.runID,
			StartedAt:           startedAt,
			OutputDir:           m.config.OutputDir,
			StatsFile:           m.config.StatsFile,
			MaxTimeWithoutFinds: m.config.MaxTimeWithoutFinds,
			CheckInterval:       m.config.CheckInterval,
		}); err != nil {
			m.logger.Error("history recording disabled", "error", err)
			m.recorder = nil
		}
	}

	timer := time.NewTimer(m.config.InitialDelay)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			m.state = Cancelled
			m.logger.Info("monitor cancelled, leaving fuzzer running", "ticks", m.result.Ticks)
			m.finish()
			return m.result, nil

		case <-timer.C:
			if m.check(ctx) == activity.Stop {
				m.finish()
				return m.result, nil
			}
			// Measured from now, not from the previous fire time.
			timer.Reset(m.config.CheckInterval)
		}
	}
}

// check performs one tick: read, evaluate, report, and stop if quiet
func (m *Monitor) check(ctx context.Context) activity.Verdict {
	m.result.Ticks++
	checkedAt := m.now()

	snap := m.readStats()
	out := m.evaluator.Evaluate(m.previous, snap)

	if snap == nil {
		m.logger.Debug("fuzzer stats file not found or unreadable")
	}

	for _, row := range out.Rows {
		m.logger.Info(row)
	}
	m.result.Rows += len(out.Rows)

	m.recordTick(checkedAt, snap, out)

	// Overwritten every tick, including with nil after a failed read.
	m.previous = snap

	if out.Verdict == activity.Stop {
		m.stop(ctx, out)
	}

	return out.Verdict
}

// readStats returns nil when no snapshot is available this tick
func (m *Monitor) readStats() *fuzzstats.Snapshot {
	snap, err := m.source.Read()
	if err == nil {
		return snap
	}

	var readErr *fuzzstats.ReadError
	switch {
	case errors.Is(err, fuzzstats.ErrStatsFileMissing):
		m.logger.Error("stats file does not exist", "path", m.source.Path())
	case errors.As(err, &readErr):
		m.logger.Error("failed to read stats file", "path", readErr.Path, "error", readErr.Err)
	default:
		m.logger.Error("failed to read stats file", "path", m.source.Path(), "error", err)
	}

	return nil
}

func (m *Monitor) stop(ctx context.Context, out activity.Outcome) {
	seconds := out.SecondsWithoutFinds
	m.result.StopReason = fmt.Sprintf("no new paths for %d seconds", seconds)

	m.logger.Info(fmt.Sprintf("Time since last new path: %d seconds. No new paths found. Exiting.", seconds),
		"time_since_last_find", seconds,
		"max_time_without_finds", int64(m.config.MaxTimeWithoutFinds/time.Second))

	res := m.stopper.Terminate(ctx)
	m.result.Stop = &res
	m.state = Stopped

	if err := res.Err(); err != nil {
		m.logger.Warn("some fuzzer processes could not be signalled", "error", err)
	}

	if m.recorder != nil {
		if err := m.recorder.RecordStop(m.runID, m.now(), res); err != nil {
			m.logger.Warn("failed to record termination", "error", err)
		}
	}
}

func (m *Monitor) recordTick(at time.Time, snap *fuzzstats.Snapshot, out activity.Outcome) {
	if m.recorder == nil {
		return
	}
	if err := m.recorder.RecordTick(m.runID, m.result.Ticks, at, snap, out); err != nil {
		m.logger.Warn("failed to record tick", "tick", m.result.Ticks, "error", err)
	}
}

func (m *Monitor) finish() {
	m.result.State = m.state

	if m.recorder != nil {
		if err := m.recorder.End(m.runID, m.now(), m.state.String(), m.result.StopReason); err != nil {
			m.logger.Warn("failed to record run end", "error", err)
		}
	}
}
