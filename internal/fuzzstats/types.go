package fuzzstats

import (
	"math"
	"sort"
	"strconv"
)

// Well-known keys written by afl-fuzz into fuzzer_stats
const (
	KeyTimeWithoutFinds = "time_wo_finds"
	KeyLastFind         = "last_find"
	KeyCorpusCount      = "corpus_count"
	KeyUniqueCrashes    = "unique_crashes"
	KeyUniqueHangs      = "unique_hangs"
	KeyExecsDone        = "execs_done"

	// AFL++ 4.x renamed the crash and hang counters
	KeySavedCrashes = "saved_crashes"
	KeySavedHangs   = "saved_hangs"
)

// Value is a single parsed stats value: either an integer or a raw string
type Value struct {
	isInt bool
	i     int64
	s     string
}

// IntValue returns an integer Value
func IntValue(i int64) Value {
	return Value{isInt: true, i: i}
}

// StringValue returns a string Value
func StringValue(s string) Value {
	return Value{s: s}
}

// IsInt reports whether the value was parsed as an integer
func (v Value) IsInt() bool {
	return v.isInt
}

// Int returns the integer form of the value
func (v Value) Int() (int64, bool) {
	return v.i, v.isInt
}

func (v Value) String() string {
	if v.isInt {
		return strconv.FormatInt(v.i, 10)
	}
	return v.s
}

// Snapshot is the parsed content of one read of the stats file.
// It is never mutated after Parse returns it.
type Snapshot struct {
	values map[string]Value
}

// NewSnapshot builds a snapshot from already typed values
func NewSnapshot(values map[string]Value) *Snapshot {
	copied := make(map[string]Value, len(values))
	for k, v := range values {
		copied[k] = v
	}
	return &Snapshot{values: copied}
}

// Get returns the raw value stored under key
func (s *Snapshot) Get(key string) (Value, bool) {
	if s == nil {
		return Value{}, false
	}
	v, ok := s.values[key]
	return v, ok
}

// Has reports whether key was present in the file
func (s *Snapshot) Has(key string) bool {
	_, ok := s.Get(key)
	return ok
}

// Int returns the integer stored under key. ok is false when the key is
// missing or its value is not an integer.
func (s *Snapshot) Int(key string) (int64, bool) {
	v, ok := s.Get(key)
	if !ok {
		return 0, false
	}
	return v.Int()
}

// IntOr returns the integer under key or def
func (s *Snapshot) IntOr(key string, def int64) int64 {
	if i, ok := s.Int(key); ok {
		return i
	}
	return def
}

// IntSaturated is Int, except that a value made only of digits but too large
// for int64 returns math.MaxInt64 instead of failing
func (s *Snapshot) IntSaturated(key string) (int64, bool) {
	v, ok := s.Get(key)
	if !ok {
		return 0, false
	}
	if i, ok := v.Int(); ok {
		return i, true
	}
	if isDigits(v.s) {
		return math.MaxInt64, true
	}
	return 0, false
}

// String returns the textual form of the value under key
func (s *Snapshot) String(key string) (string, bool) {
	v, ok := s.Get(key)
	if !ok {
		return "", false
	}
	return v.String(), true
}

// Len returns the number of keys in the snapshot
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.values)
}

// Keys returns the snapshot keys in sorted order
func (s *Snapshot) Keys() []string {
	if s == nil {
		return nil
	}
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Equal reports whether both snapshots hold the same keys and values
func (s *Snapshot) Equal(other *Snapshot) bool {
	if s.Len() != other.Len() {
		return false
	}
	if s == nil || other == nil {
		return s == other
	}
	for k, v := range s.values {
		ov, ok := other.values[k]
		if !ok || ov != v {
			return false
		}
	}
	return true
}

// Crashes returns the crash counter, preferring unique_crashes over the
// AFL++ 4.x saved_crashes name
func (s *Snapshot) Crashes() (int64, bool) {
	if i, ok := s.Int(KeyUniqueCrashes); ok {
		return i, true
	}
	return s.Int(KeySavedCrashes)
}

// Hangs returns the hang counter, preferring unique_hangs over saved_hangs
func (s *Snapshot) Hangs() (int64, bool) {
	if i, ok := s.Int(KeyUniqueHangs); ok {
		return i, true
	}
	return s.Int(KeySavedHangs)
}
