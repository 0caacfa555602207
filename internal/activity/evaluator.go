package activity

import (
	"time"

	"github.com/DylanMcBean/Exepose/internal/fuzzstats"
)

// Verdict is the decision taken after one check
type Verdict int

const (
	Continue Verdict = iota
	Stop
)

func (v Verdict) String() string {
	switch v {
	case Continue:
		return "continue"
	case Stop:
		return "stop"
	default:
		return "unknown"
	}
}

// Outcome is what the evaluator derived from one pair of snapshots
type Outcome struct {
	Verdict Verdict

	// Available is false when the new snapshot could not be read
	Available bool

	// SecondsWithoutFinds is time_wo_finds from the new snapshot (0 when
	// absent). Digit strings too large for int64 saturate to math.MaxInt64.
	SecondsWithoutFinds int64

	// Rows are the report lines to print, in order. Empty when nothing changed.
	Rows []string
}

// Reported reports whether the outcome carries at least one row
func (o Outcome) Reported() bool {
	return len(o.Rows) > 0
}

// Evaluator turns consecutive snapshots into a verdict and report rows.
// It holds no state of its own; the previous snapshot is owned by the caller.
type Evaluator struct {
	MaxTimeWithoutFinds time.Duration
	Table               *Table
}

// NewEvaluator creates an evaluator with the given quiescence threshold
func NewEvaluator(maxTimeWithoutFinds time.Duration, table *Table) *Evaluator {
	if table == nil {
		table = NewTable(time.Now, time.Local)
	}
	return &Evaluator{
		MaxTimeWithoutFinds: maxTimeWithoutFinds,
		Table:               table,
	}
}

// Evaluate compares next against prev. Either may be nil; nil means no data
// was available on that tick. A nil prev marks a first read, which prints the
// header before the data row.
func (e *Evaluator) Evaluate(prev, next *fuzzstats.Snapshot) Outcome {
	if next == nil {
		return Outcome{Verdict: Continue}
	}

	seconds, _ := next.IntSaturated(fuzzstats.KeyTimeWithoutFinds)
	out := Outcome{
		Verdict:             Continue,
		Available:           true,
		SecondsWithoutFinds: seconds,
	}

	// Compared in whole seconds; equal to the threshold still counts as active.
	if seconds > int64(e.MaxTimeWithoutFinds/time.Second) {
		out.Verdict = Stop
		return out
	}

	switch {
	case prev == nil:
		out.Rows = []string{e.Table.Header(), e.Table.Row(next)}
	case lastFindChanged(prev, next):
		out.Rows = []string{e.Table.Row(next)}
	}

	return out
}

// lastFindChanged compares last_find by presence and value
func lastFindChanged(prev, next *fuzzstats.Snapshot) bool {
	pv, pok := prev.Get(fuzzstats.KeyLastFind)
	nv, nok := next.Get(fuzzstats.KeyLastFind)
	if pok != nok {
		return true
	}
	return pv != nv
}
