// Package index implements the sorted name index behind autocomplete. It
// keeps (name, id) pairs ordered by a fixed total order and answers prefix
// range queries with two binary searches.
//
// Ordering is case-insensitive: names are lower-cased once on entry
// construction (the fold key) and compared bytewise; entries with equal fold
// keys are ordered by ID so the order is total and deterministic. The same
// fold is applied to query prefixes, so storage order and query bounds always
// agree. Locale-aware collation is deliberately not attempted: the
// upper-bound computation relies on plain byte order.
//
// The index is backed by a sorted slice. Insert is O(log n) search plus an
// O(n) shift, which suits the read-heavy, low-write workload; lookups and
// range bounds are O(log n). The index performs no locking of its own; the
// suggestion engine serialises access.
package index

import (
	"fmt"
	"sort"
	"strings"

	apperrors "github.com/shopstream-labs/catalog-suggest/pkg/errors"
)

// Entry is one (name, id) pair. Key is the fold key used for ordering and
// prefix matching; Name keeps the display form returned to callers.
type Entry struct {
	Key  string
	Name string
	ID   string
}

// NewEntry builds an Entry for a display name and item ID.
func NewEntry(name, id string) Entry {
	return Entry{Key: Fold(name), Name: name, ID: id}
}

// Fold normalises a name or query prefix into ordering form.
func Fold(s string) string {
	return strings.ToLower(s)
}

// SortedNameIndex is the ordered sequence of entries.
type SortedNameIndex struct {
	entries []Entry
}

// New returns an empty index.
func New() *SortedNameIndex {
	return &SortedNameIndex{}
}

// Build constructs an index from unsorted entries with a single O(n log n)
// sort. It is the bulk-load path for startup; incremental changes go through
// Insert and Remove.
func Build(entries []Entry) *SortedNameIndex {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		return less(sorted[i], sorted[j])
	})
	return &SortedNameIndex{entries: sorted}
}

func less(a, b Entry) bool {
	if a.Key != b.Key {
		return a.Key < b.Key
	}
	return a.ID < b.ID
}

// Len returns the number of entries.
func (x *SortedNameIndex) Len() int {
	return len(x.entries)
}

// At returns the entry at position i.
func (x *SortedNameIndex) At(i int) Entry {
	return x.entries[i]
}

// LowerBound returns the first position whose fold key is >= the folded
// prefix. For an empty prefix this is 0.
func (x *SortedNameIndex) LowerBound(prefix string) int {
	key := Fold(prefix)
	return sort.Search(len(x.entries), func(i int) bool {
		return x.entries[i].Key >= key
	})
}

// UpperBound returns the first position past the range of entries whose names
// start with prefix. It binary-searches for the lower bound of the successor
// key: the prefix with its last byte incremented, the smallest string that
// sorts strictly after every string having the prefix. An empty prefix, or
// one with no successor, bounds the whole index.
func (x *SortedNameIndex) UpperBound(prefix string) int {
	key := Fold(prefix)
	if key == "" {
		return len(x.entries)
	}
	succ, ok := successor(key)
	if !ok {
		return len(x.entries)
	}
	return sort.Search(len(x.entries), func(i int) bool {
		return x.entries[i].Key >= succ
	})
}

// successor returns the smallest string strictly greater than every string
// with the given prefix. Trailing 0xFF bytes cannot be incremented and are
// dropped; a prefix of only 0xFF bytes has no successor.
func successor(key string) (string, bool) {
	b := []byte(key)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] != 0xFF {
			b[i]++
			return string(b[:i+1]), true
		}
	}
	return "", false
}

// Range returns the [lo, hi) prefix bounds in one call.
func (x *SortedNameIndex) Range(prefix string) (lo, hi int) {
	return x.LowerBound(prefix), x.UpperBound(prefix)
}

// Names collects up to max display names from positions [lo, hi), in index
// order. It never materialises more than max entries.
func (x *SortedNameIndex) Names(lo, hi, max int) []string {
	if lo < 0 {
		lo = 0
	}
	if hi > len(x.entries) {
		hi = len(x.entries)
	}
	if lo >= hi || max <= 0 {
		return []string{}
	}
	if hi-lo > max {
		hi = lo + max
	}
	names := make([]string, 0, hi-lo)
	for i := lo; i < hi; i++ {
		names = append(names, x.entries[i].Name)
	}
	return names
}

// Insert adds a (name, id) pair at its sorted position.
func (x *SortedNameIndex) Insert(name, id string) {
	e := NewEntry(name, id)
	pos := sort.Search(len(x.entries), func(i int) bool {
		return !less(x.entries[i], e)
	})
	x.entries = append(x.entries, Entry{})
	copy(x.entries[pos+1:], x.entries[pos:])
	x.entries[pos] = e
}

// Remove deletes the exact (name, id) pair. The equal-key run is located by
// binary search and scanned linearly for the ID; the scan is bounded by the
// number of duplicate names. Returns ErrItemNotFound if the pair is absent.
func (x *SortedNameIndex) Remove(name, id string) error {
	key := Fold(name)
	lo := sort.Search(len(x.entries), func(i int) bool {
		return x.entries[i].Key >= key
	})
	for i := lo; i < len(x.entries) && x.entries[i].Key == key; i++ {
		if x.entries[i].ID == id {
			x.entries = append(x.entries[:i], x.entries[i+1:]...)
			return nil
		}
	}
	return apperrors.ErrItemNotFound
}

// CheckSorted verifies the full ordering invariant. It is O(n) and intended
// for tests and readiness probes, not the query path.
func (x *SortedNameIndex) CheckSorted() error {
	for i := 1; i < len(x.entries); i++ {
		if less(x.entries[i], x.entries[i-1]) {
			return fmt.Errorf("%w: entries %d and %d out of order (%q/%s before %q/%s)",
				apperrors.ErrIndexCorrupt,
				i-1, i,
				x.entries[i-1].Key, x.entries[i-1].ID,
				x.entries[i].Key, x.entries[i].ID,
			)
		}
	}
	return nil
}
