package index

import (
	"errors"
	"reflect"
	"testing"

	apperrors "github.com/shopstream-labs/catalog-suggest/pkg/errors"
)

func buildFrom(pairs [][2]string) *SortedNameIndex {
	entries := make([]Entry, 0, len(pairs))
	for _, p := range pairs {
		entries = append(entries, NewEntry(p[0], p[1]))
	}
	return Build(entries)
}

func TestBuildSortsEntries(t *testing.T) {
	idx := buildFrom([][2]string{
		{"dog food", "3"},
		{"cat food", "1"},
		{"carrots", "2"},
	})

	if err := idx.CheckSorted(); err != nil {
		t.Fatalf("CheckSorted() = %v, want nil", err)
	}

	got := idx.Names(0, idx.Len(), idx.Len())
	want := []string{"carrots", "cat food", "dog food"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("full order = %v, want %v", got, want)
	}
}

func TestRangeBounds(t *testing.T) {
	idx := buildFrom([][2]string{
		{"cat", "1"},
		{"car", "2"},
		{"dog", "3"},
	})

	tests := []struct {
		prefix string
		names  []string
	}{
		{"ca", []string{"car", "cat"}},
		{"car", []string{"car"}},
		{"cat", []string{"cat"}},
		{"c", []string{"car", "cat"}},
		{"d", []string{"dog"}},
		{"e", []string{}},
		{"", []string{"car", "cat", "dog"}},
		{"catastrophe", []string{}},
	}

	for _, tt := range tests {
		lo, hi := idx.Range(tt.prefix)
		got := idx.Names(lo, hi, idx.Len())
		if !reflect.DeepEqual(got, tt.names) {
			t.Errorf("Range(%q) names = %v, want %v", tt.prefix, got, tt.names)
		}
	}
}

func TestRangeCaseInsensitive(t *testing.T) {
	idx := buildFrom([][2]string{
		{"Cheddar Cheese", "1"},
		{"cherry tomatoes", "2"},
		{"Chocolate", "3"},
	})

	lo, hi := idx.Range("CHE")
	got := idx.Names(lo, hi, idx.Len())
	want := []string{"Cheddar Cheese", "cherry tomatoes"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Range(CHE) names = %v, want %v", got, want)
	}
}

func TestDuplicateNamesOrderedByID(t *testing.T) {
	idx := buildFrom([][2]string{
		{"milk", "9"},
		{"milk", "2"},
		{"milk", "5"},
	})

	for i, wantID := range []string{"2", "5", "9"} {
		if got := idx.At(i).ID; got != wantID {
			t.Errorf("At(%d).ID = %s, want %s", i, got, wantID)
		}
	}
}

func TestNamesTruncation(t *testing.T) {
	idx := buildFrom([][2]string{
		{"apple", "1"},
		{"apricot", "2"},
		{"avocado", "3"},
	})

	lo, hi := idx.Range("a")
	got := idx.Names(lo, hi, 2)
	want := []string{"apple", "apricot"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Names(max=2) = %v, want %v", got, want)
	}

	if got := idx.Names(lo, hi, 0); len(got) != 0 {
		t.Errorf("Names(max=0) = %v, want empty", got)
	}
}

func TestEmptyIndex(t *testing.T) {
	idx := New()

	lo, hi := idx.Range("anything")
	if lo != 0 || hi != 0 {
		t.Errorf("Range on empty index = [%d, %d), want [0, 0)", lo, hi)
	}
	if got := idx.Names(lo, hi, 10); len(got) != 0 {
		t.Errorf("Names on empty index = %v, want empty", got)
	}
	if err := idx.CheckSorted(); err != nil {
		t.Errorf("CheckSorted on empty index = %v, want nil", err)
	}
}

func TestSuccessor(t *testing.T) {
	tests := []struct {
		key  string
		want string
		ok   bool
	}{
		{"ca", "cb", true},
		{"a", "b", true},
		{"az", "a{", true},
		{"a\xff", "b", true},
		{"a\xff\xff", "b", true},
		{"\xff", "", false},
		{"\xff\xff", "", false},
	}

	for _, tt := range tests {
		got, ok := successor(tt.key)
		if got != tt.want || ok != tt.ok {
			t.Errorf("successor(%q) = (%q, %v), want (%q, %v)", tt.key, got, ok, tt.want, tt.ok)
		}
	}
}

func TestUpperBoundMaxBytePrefix(t *testing.T) {
	idx := buildFrom([][2]string{
		{"apple", "1"},
		{"\xff\xff", "2"},
	})

	lo, hi := idx.Range("\xff")
	got := idx.Names(lo, hi, idx.Len())
	if !reflect.DeepEqual(got, []string{"\xff\xff"}) {
		t.Errorf("Range(0xFF) names = %q, want [%q]", got, "\xff\xff")
	}
	if hi != idx.Len() {
		t.Errorf("UpperBound for all-0xFF prefix = %d, want Len()=%d", hi, idx.Len())
	}
}

func TestInsertKeepsOrder(t *testing.T) {
	idx := New()
	for _, p := range [][2]string{
		{"tomato", "4"},
		{"bread", "1"},
		{"milk", "3"},
		{"butter", "2"},
		{"Bread", "5"},
	} {
		idx.Insert(p[0], p[1])
		if err := idx.CheckSorted(); err != nil {
			t.Fatalf("CheckSorted after Insert(%q, %s) = %v", p[0], p[1], err)
		}
	}

	if idx.Len() != 5 {
		t.Fatalf("Len() = %d, want 5", idx.Len())
	}

	lo, hi := idx.Range("bre")
	got := idx.Names(lo, hi, idx.Len())
	want := []string{"bread", "Bread"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Range(bre) names = %v, want %v", got, want)
	}
}

func TestRemove(t *testing.T) {
	idx := buildFrom([][2]string{
		{"milk", "1"},
		{"milk", "2"},
		{"bread", "3"},
	})

	if err := idx.Remove("milk", "1"); err != nil {
		t.Fatalf("Remove(milk, 1) = %v, want nil", err)
	}
	if idx.Len() != 2 {
		t.Fatalf("Len() after remove = %d, want 2", idx.Len())
	}

	lo, hi := idx.Range("milk")
	got := idx.Names(lo, hi, idx.Len())
	if !reflect.DeepEqual(got, []string{"milk"}) {
		t.Errorf("Range(milk) names = %v, want [milk]", got)
	}
	if id := idx.At(lo).ID; id != "2" {
		t.Errorf("remaining milk entry ID = %s, want 2", id)
	}

	if err := idx.Remove("milk", "1"); !errors.Is(err, apperrors.ErrItemNotFound) {
		t.Errorf("Remove of absent pair = %v, want ErrItemNotFound", err)
	}
	if err := idx.Remove("cheese", "9"); !errors.Is(err, apperrors.ErrItemNotFound) {
		t.Errorf("Remove of unknown name = %v, want ErrItemNotFound", err)
	}
}

func TestCheckSortedDetectsCorruption(t *testing.T) {
	idx := buildFrom([][2]string{
		{"apple", "1"},
		{"banana", "2"},
	})
	idx.entries[0], idx.entries[1] = idx.entries[1], idx.entries[0]

	err := idx.CheckSorted()
	if !errors.Is(err, apperrors.ErrIndexCorrupt) {
		t.Errorf("CheckSorted on shuffled index = %v, want ErrIndexCorrupt", err)
	}
}
