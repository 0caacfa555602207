package fuzzstats

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrStatsFileMissing is returned when the stats file does not exist yet.
// afl-fuzz only writes it after the dry run finishes.
var ErrStatsFileMissing = errors.New("fuzzstats: stats file does not exist")

// ReadError wraps any other failure while reading or scanning the stats file
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("fuzzstats: failed to read %s: %v", e.Path, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// Parse reads key: value lines from r. Only the first colon splits a line, so
// values such as command lines may contain colons. Lines without a colon are
// ignored. Lines have no length limit; AFL++ writes the full target command
// line into command_line.
func Parse(r io.Reader) (*Snapshot, error) {
	values := make(map[string]Value)

	br := bufio.NewReader(r)
	for {
		line, err := br.ReadString('\n')
		if len(line) > 0 {
			parseLine(strings.TrimRight(line, "\r\n"), values)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
	}

	return &Snapshot{values: values}, nil
}

func parseLine(line string, values map[string]Value) {
	key, raw, found := strings.Cut(line, ":")
	if !found {
		return
	}
	values[strings.TrimSpace(key)] = parseValue(strings.TrimSpace(raw))
}

// parseValue keeps the value as a string unless it is made only of decimal
// digits and fits in an int64
func parseValue(raw string) Value {
	if !isDigits(raw) {
		return StringValue(raw)
	}
	i, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return StringValue(raw)
	}
	return IntValue(i)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// ReadFile opens and parses the stats file at path
func ReadFile(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %w", ErrStatsFileMissing, err)
		}
		return nil, &ReadError{Path: path, Err: err}
	}
	defer f.Close()

	snap, err := Parse(f)
	if err != nil {
		return nil, &ReadError{Path: path, Err: err}
	}

	return snap, nil
}

// Reader reads the stats file of one fuzzer output directory
type Reader struct {
	path string
}

// NewReader returns a Reader for <outputDir>/<statsFile>
func NewReader(outputDir, statsFile string) *Reader {
	return &Reader{path: filepath.Join(outputDir, statsFile)}
}

// Path returns the full path of the stats file
func (r *Reader) Path() string {
	return r.path
}

// Read parses the current content of the stats file
func (r *Reader) Read() (*Snapshot, error) {
	return ReadFile(r.path)
}
