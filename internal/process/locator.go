package process

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Locator finds the PIDs of running fuzzer processes.
// A failed search is reported as an empty result, never as an error.
type Locator interface {
	Locate(ctx context.Context) []int
}

// PgrepLocator matches full command lines with `pgrep -f`
type PgrepLocator struct {
	Pattern string
	Logger  *slog.Logger

	// Command defaults to "pgrep"
	Command string
}

// NewPgrepLocator creates a locator for the given command-line pattern
func NewPgrepLocator(pattern string, logger *slog.Logger) *PgrepLocator {
	return &PgrepLocator{Pattern: pattern, Logger: logger, Command: "pgrep"}
}

// Locate runs pgrep and returns the matching PIDs, excluding our own
func (l *PgrepLocator) Locate(ctx context.Context) []int {
	command := l.Command
	if command == "" {
		command = "pgrep"
	}

	out, err := exec.CommandContext(ctx, command, "-f", l.Pattern).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 {
			// pgrep exits 1 when nothing matched
			l.Logger.Debug("no fuzzer processes found", "pattern", l.Pattern)
			return []int{}
		}
		l.Logger.Warn("process search failed", "pattern", l.Pattern, "error", err)
		return []int{}
	}

	return parsePIDs(out, l.Logger)
}

// parsePIDs reads whitespace separated PIDs, skipping our own
func parsePIDs(out []byte, logger *slog.Logger) []int {
	self := os.Getpid()
	pids := []int{}

	for _, field := range strings.Fields(string(out)) {
		pid, err := strconv.Atoi(field)
		if err != nil {
			logger.Warn("ignoring unparsable pid", "value", field)
			continue
		}
		if pid == self {
			continue
		}
		pids = append(pids, pid)
	}

	return pids
}

// ProcFSLocator scans /proc/<pid>/cmdline directly, for hosts without pgrep
type ProcFSLocator struct {
	Pattern string
	Logger  *slog.Logger

	// Root defaults to /proc
	Root string
}

// NewProcFSLocator creates a /proc based locator
func NewProcFSLocator(pattern string, logger *slog.Logger) *ProcFSLocator {
	return &ProcFSLocator{Pattern: pattern, Logger: logger, Root: "/proc"}
}

// Locate returns the PIDs whose command line contains Pattern
func (l *ProcFSLocator) Locate(ctx context.Context) []int {
	root := l.Root
	if root == "" {
		root = "/proc"
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		l.Logger.Warn("process search failed", "root", root, "error", err)
		return []int{}
	}

	self := os.Getpid()
	pids := []int{}

	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		if !entry.IsDir() {
			continue
		}

		pid, err := strconv.Atoi(entry.Name())
		if err != nil || pid == self {
			continue
		}

		// Processes can exit between ReadDir and ReadFile.
		raw, err := os.ReadFile(filepath.Join(root, entry.Name(), "cmdline"))
		if err != nil || len(raw) == 0 {
			continue
		}

		// Arguments are NUL separated; pgrep -f matches against them space joined.
		cmdline := string(bytes.ReplaceAll(bytes.TrimRight(raw, "\x00"), []byte{0}, []byte{' '}))
		if strings.Contains(cmdline, l.Pattern) {
			pids = append(pids, pid)
		}
	}

	sort.Ints(pids)
	return pids
}

// NewLocator returns the locator registered under kind ("pgrep" or "procfs").
// procRoot replaces /proc for the procfs locator when non-empty.
func NewLocator(kind, pattern, procRoot string, logger *slog.Logger) (Locator, error) {
	switch kind {
	case "", "pgrep":
		return NewPgrepLocator(pattern, logger), nil
	case "procfs":
		l := NewProcFSLocator(pattern, logger)
		if procRoot != "" {
			l.Root = procRoot
		}
		return l, nil
	default:
		return nil, errors.New("process: unknown locator " + strconv.Quote(kind))
	}
}
