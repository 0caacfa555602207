package activity

import (
	"fmt"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/DylanMcBean/Exepose/internal/fuzzstats"
)

// TimeLayout is used for both the wall clock and last_find columns
const TimeLayout = "2006-01-02 15:04:05"

// NotAvailable fills any column whose key is missing from the stats file
const NotAvailable = "N/A"

// Column widths of the progress table
const (
	widthCurrentTime = 20
	widthLastFind    = 20
	widthCorpus      = 13
	widthCrashes     = 13
	widthHangs       = 11
	widthExecs       = 13
)

// Table renders the fixed width progress table
type Table struct {
	now      func() time.Time
	location *time.Location
	printer  *message.Printer
}

// NewTable creates a table that stamps rows using now, rendered in loc
func NewTable(now func() time.Time, loc *time.Location) *Table {
	if now == nil {
		now = time.Now
	}
	if loc == nil {
		loc = time.Local
	}
	return &Table{
		now:      now,
		location: loc,
		printer:  message.NewPrinter(language.English),
	}
}

// Header returns the column title row
func (t *Table) Header() string {
	return formatRow("Current Time", "Last Find", "Corpus Count", "Saved Crashes", "Saved Hangs", "Execs Done")
}

// Row returns the data row for snap
func (t *Table) Row(snap *fuzzstats.Snapshot) string {
	crashes, crashesOK := snap.Crashes()
	hangs, hangsOK := snap.Hangs()

	return formatRow(
		t.now().In(t.location).Format(TimeLayout),
		t.lastFound(snap),
		t.count(snap.Int(fuzzstats.KeyCorpusCount)),
		t.count(crashes, crashesOK),
		t.count(hangs, hangsOK),
		t.count(snap.Int(fuzzstats.KeyExecsDone)),
	)
}

func (t *Table) lastFound(snap *fuzzstats.Snapshot) string {
	ts, ok := snap.Int(fuzzstats.KeyLastFind)
	if !ok || ts == 0 {
		return NotAvailable
	}
	return time.Unix(ts, 0).In(t.location).Format(TimeLayout)
}

// count groups thousands with commas, e.g. 1234567 -> 1,234,567
func (t *Table) count(n int64, ok bool) string {
	if !ok {
		return NotAvailable
	}
	return t.printer.Sprintf("%d", n)
}

func formatRow(currentTime, lastFind, corpus, crashes, hangs, execs string) string {
	return fmt.Sprintf("| %-*s | %-*s | %-*s | %-*s | %-*s | %-*s |",
		widthCurrentTime, currentTime,
		widthLastFind, lastFind,
		widthCorpus, corpus,
		widthCrashes, crashes,
		widthHangs, hangs,
		widthExecs, execs,
	)
}
