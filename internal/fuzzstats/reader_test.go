package fuzzstats

import (
	"errors"
	"math"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const sampleStats = `start_time        : 1700000000
last_update       : 1700003600
fuzzer_pid        : 4242
time_wo_finds     : 100
last_find         : 1700003500
corpus_count      : 1234
saved_crashes     : 3
saved_hangs       : 0
execs_done        : 98765432
execs_per_sec     : 2743.51
command_line      : afl-fuzz -i in -o out -- ./target @@
banner
`

func writeStats(t *testing.T, content string) string {
	t.Helper()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "fuzzer_stats"), []byte(content), 0644); err != nil {
		t.Fatalf("failed to write stats file: %v", err)
	}
	return dir
}

func TestParse_TypesValues(t *testing.T) {
	snap, err := Parse(strings.NewReader(sampleStats))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		key     string
		wantInt bool
		want    string
	}{
		{"time_wo_finds", true, "100"},
		{"corpus_count", true, "1234"},
		{"execs_done", true, "98765432"},
		{"execs_per_sec", false, "2743.51"},
		{"command_line", false, "afl-fuzz -i in -o out -- ./target @@"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			v, ok := snap.Get(tt.key)
			if !ok {
				t.Fatalf("expected key %s to be present", tt.key)
			}
			if v.IsInt() != tt.wantInt {
				t.Errorf("expected IsInt=%v for %s", tt.wantInt, tt.key)
			}
			if v.String() != tt.want {
				t.Errorf("expected %q, got %q", tt.want, v.String())
			}
		})
	}

	if snap.Has("banner") {
		t.Error("expected line without separator to be skipped")
	}
}

func TestParse_FirstColonSplits(t *testing.T) {
	snap, err := Parse(strings.NewReader("target_mode : default:persistent:shmem\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, ok := snap.String("target_mode")
	if !ok {
		t.Fatal("expected target_mode to be present")
	}
	if got != "default:persistent:shmem" {
		t.Errorf("expected value to keep trailing colons, got %q", got)
	}
}

func TestParse_EdgeValues(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		wantInt bool
	}{
		{"empty value", "key:", false},
		{"negative number", "key: -5", false},
		{"leading plus", "key: +5", false},
		{"overflow stays string", "key: 99999999999999999999999", false},
		{"zero", "key: 0", true},
		{"padded digits", "key:    42   ", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap, err := Parse(strings.NewReader(tt.line))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			v, ok := snap.Get("key")
			if !ok {
				t.Fatal("expected key to be present")
			}
			if v.IsInt() != tt.wantInt {
				t.Errorf("expected IsInt=%v, got %v (value %q)", tt.wantInt, v.IsInt(), v.String())
			}
		})
	}
}

func TestParse_Idempotent(t *testing.T) {
	a, err := Parse(strings.NewReader(sampleStats))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	b, err := Parse(strings.NewReader(sampleStats))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !a.Equal(b) {
		t.Error("expected parsing the same content twice to yield equal snapshots")
	}
}

func TestReadFile_Success(t *testing.T) {
	dir := writeStats(t, sampleStats)

	r := NewReader(dir, "fuzzer_stats")
	snap, err := r.Read()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := snap.IntOr(KeyLastFind, 0); got != 1700003500 {
		t.Errorf("expected last_find 1700003500, got %d", got)
	}
	if got, ok := snap.Crashes(); !ok || got != 3 {
		t.Errorf("expected saved_crashes fallback 3, got %d (ok=%v)", got, ok)
	}
	if _, ok := snap.Hangs(); !ok {
		t.Error("expected saved_hangs fallback to be present")
	}
}

func TestReadFile_Missing(t *testing.T) {
	r := NewReader(t.TempDir(), "fuzzer_stats")

	_, err := r.Read()
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !errors.Is(err, ErrStatsFileMissing) {
		t.Errorf("expected ErrStatsFileMissing, got %v", err)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("expected error to wrap fs.ErrNotExist, got %v", err)
	}

	var readErr *ReadError
	if errors.As(err, &readErr) {
		t.Error("missing file should not be reported as ReadError")
	}
}

func TestReadFile_ReadError(t *testing.T) {
	// A directory opens fine but fails on read.
	dir := t.TempDir()
	path := filepath.Join(dir, "fuzzer_stats")
	if err := os.Mkdir(path, 0755); err != nil {
		t.Fatalf("failed to create directory: %v", err)
	}

	_, err := ReadFile(path)
	if err == nil {
		t.Fatal("expected error when stats path is a directory")
	}

	var readErr *ReadError
	if !errors.As(err, &readErr) {
		t.Fatalf("expected ReadError, got %T: %v", err, err)
	}
	if readErr.Path != path {
		t.Errorf("expected path %s, got %s", path, readErr.Path)
	}
	if errors.Is(err, ErrStatsFileMissing) {
		t.Error("read failure should not be reported as missing file")
	}
}

func TestSnapshot_NilSafe(t *testing.T) {
	var snap *Snapshot

	if snap.Has(KeyLastFind) {
		t.Error("expected nil snapshot to have no keys")
	}
	if got := snap.IntOr(KeyTimeWithoutFinds, 7); got != 7 {
		t.Errorf("expected default 7, got %d", got)
	}
	if !snap.Equal(nil) {
		t.Error("expected nil snapshots to be equal")
	}
	if snap.Equal(NewSnapshot(nil)) {
		t.Error("expected nil and empty snapshot to differ")
	}
}

func TestParse_LongLines(t *testing.T) {
	for _, size := range []int{70000, 1 << 20} {
		content := "time_wo_finds: 4000\ncommand_line: " + strings.Repeat("a", size) + "\nlast_find: 1700000000"

		snap, err := Parse(strings.NewReader(content))
		if err != nil {
			t.Fatalf("expected %d byte line to parse, got %v", size, err)
		}
		if got := snap.IntOr(KeyTimeWithoutFinds, 0); got != 4000 {
			t.Errorf("expected time_wo_finds 4000, got %d", got)
		}
		if cmd, _ := snap.String("command_line"); len(cmd) != size {
			t.Errorf("expected command_line of %d bytes, got %d", size, len(cmd))
		}
		// final line without a newline is still read
		if got := snap.IntOr(KeyLastFind, 0); got != 1700000000 {
			t.Errorf("expected last_find after long line, got %d", got)
		}
	}
}

func TestSnapshot_IntSaturated(t *testing.T) {
	snap, err := Parse(strings.NewReader("a: 10000000000\nb: 9223372036854775807\nc: 99999999999999999999\nd: 2743.51\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		key    string
		want   int64
		wantOK bool
	}{
		{"a", 10000000000, true},
		{"b", math.MaxInt64, true},
		{"c", math.MaxInt64, true},
		{"d", 0, false},
		{"missing", 0, false},
	}

	for _, tt := range tests {
		got, ok := snap.IntSaturated(tt.key)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("%s: expected (%d, %v), got (%d, %v)", tt.key, tt.want, tt.wantOK, got, ok)
		}
	}

	// the raw value is still kept as a string
	if snap.IntOr("c", -1) != -1 {
		t.Error("expected overflowing value to stay a string")
	}
}
