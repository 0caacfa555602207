package process

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"syscall"
)

// Signaler delivers a signal to a single PID
type Signaler func(pid int, sig syscall.Signal) error

// Kill is the default Signaler backed by kill(2)
func Kill(pid int, sig syscall.Signal) error {
	return syscall.Kill(pid, sig)
}

// Failure records a PID the signal could not be delivered to
type Failure struct {
	PID int
	Err error
}

// Result summarises one termination pass
type Result struct {
	Located   []int
	Signalled []int
	Failed    []Failure
}

// Err joins the per-PID failures, or returns nil when every send succeeded
func (r Result) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	errs := make([]error, 0, len(r.Failed))
	for _, f := range r.Failed {
		errs = append(errs, fmt.Errorf("pid %d: %w", f.PID, f.Err))
	}
	return errors.Join(errs...)
}

// Terminator sends SIGTERM to every located fuzzer process.
// It does not wait for exit, escalate to SIGKILL, or retry.
type Terminator struct {
	locator Locator
	signal  Signaler
	logger  *slog.Logger
}

// NewTerminator creates a terminator. A nil signaler means Kill.
func NewTerminator(locator Locator, signal Signaler, logger *slog.Logger) *Terminator {
	if signal == nil {
		signal = Kill
	}
	return &Terminator{
		locator: locator,
		signal:  signal,
		logger:  logger,
	}
}

// Locate exposes the underlying locator
func (t *Terminator) Locate(ctx context.Context) []int {
	return t.locator.Locate(ctx)
}

// Terminate signals every located PID. A failed send is logged and the
// remaining PIDs are still signalled.
func (t *Terminator) Terminate(ctx context.Context) Result {
	res := Result{Located: t.locator.Locate(ctx)}

	if len(res.Located) == 0 {
		t.logger.Info("no fuzzer processes to stop")
		return res
	}

	for _, pid := range res.Located {
		t.logger.Info("stopping fuzzer process", "pid", pid)

		if err := t.signal(pid, syscall.SIGTERM); err != nil {
			t.logger.Warn("failed to signal fuzzer process", "pid", pid, "error", err)
			res.Failed = append(res.Failed, Failure{PID: pid, Err: err})
			continue
		}
		res.Signalled = append(res.Signalled, pid)
	}

	return res
}
