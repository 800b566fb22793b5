package suggest

import (
	"errors"
	"fmt"
	"math/rand"
	"reflect"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/shopstream-labs/catalog-suggest/internal/catalog"
	"github.com/shopstream-labs/catalog-suggest/internal/catalog/validator"
	"github.com/shopstream-labs/catalog-suggest/internal/suggest/index"
	apperrors "github.com/shopstream-labs/catalog-suggest/pkg/errors"
)

func record(id, name string) catalog.ItemRecord {
	return catalog.ItemRecord{
		ID:                  id,
		Name:                name,
		ShoppingCategory:    "Grocery",
		ShoppingSubcategory: "Pantry",
		ItemCategory:        "Food",
		ItemSubcategory:     "Staples",
		TagsDSW:             []string{"test"},
		TagsGSW:             []string{"test"},
	}
}

func loadedEngine(t *testing.T, records ...catalog.ItemRecord) *Engine {
	t.Helper()
	e := NewEngine()
	if err := e.Load(records); err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}
	return e
}

func TestQueryOrdering(t *testing.T) {
	e := loadedEngine(t,
		record("1", "cat"),
		record("2", "car"),
		record("3", "dog"),
	)

	tests := []struct {
		prefix string
		top    int
		want   []string
	}{
		{"ca", 10, []string{"car", "cat"}},
		{"ca", 1, []string{"car"}},
		{"dog", 10, []string{"dog"}},
		{"x", 10, []string{}},
		{"", 10, []string{"car", "cat", "dog"}},
		{"", 2, []string{"car", "cat"}},
	}

	for _, tt := range tests {
		got, err := e.Query(tt.prefix, tt.top)
		if err != nil {
			t.Fatalf("Query(%q, %d) error = %v", tt.prefix, tt.top, err)
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("Query(%q, %d) = %v, want %v", tt.prefix, tt.top, got, tt.want)
		}
	}
}

func TestQueryInvalidTop(t *testing.T) {
	e := loadedEngine(t, record("1", "cat"))

	for _, top := range []int{0, -1} {
		if _, err := e.Query("c", top); !errors.Is(err, apperrors.ErrInvalidInput) {
			t.Errorf("Query(c, %d) = %v, want ErrInvalidInput", top, err)
		}
	}
}

func TestAddItem(t *testing.T) {
	e := loadedEngine(t,
		record("1", "cat"),
		record("2", "car"),
		record("3", "dog"),
	)

	if err := e.AddItem(record("4", "cab")); err != nil {
		t.Fatalf("AddItem(cab) = %v, want nil", err)
	}

	got, err := e.Query("ca", 10)
	if err != nil {
		t.Fatalf("Query(ca) error = %v", err)
	}
	want := []string{"cab", "car", "cat"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Query(ca) after add = %v, want %v", got, want)
	}
	if err := e.CheckInvariants(); err != nil {
		t.Errorf("CheckInvariants() = %v, want nil", err)
	}
}

func TestAddItemDuplicateID(t *testing.T) {
	e := loadedEngine(t, record("1", "cat"))

	err := e.AddItem(record("1", "another cat"))
	if !errors.Is(err, apperrors.ErrItemExists) {
		t.Errorf("AddItem with existing ID = %v, want ErrItemExists", err)
	}
	if e.Len() != 1 {
		t.Errorf("Len() after rejected add = %d, want 1", e.Len())
	}
}

func TestAddItemInvalid(t *testing.T) {
	e := NewEngine()

	rec := record("", "")
	err := e.AddItem(rec)
	var verr *validator.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("AddItem(empty) = %v, want ValidationError", err)
	}
	if _, ok := verr.Fields["_id"]; !ok {
		t.Errorf("ValidationError.Fields missing _id: %v", verr.Fields)
	}
	if _, ok := verr.Fields["name"]; !ok {
		t.Errorf("ValidationError.Fields missing name: %v", verr.Fields)
	}
	if e.Len() != 0 {
		t.Errorf("Len() after rejected add = %d, want 0", e.Len())
	}
}

func TestDeleteItem(t *testing.T) {
	e := loadedEngine(t,
		record("1", "cat"),
		record("2", "car"),
	)

	if err := e.DeleteItem("2"); err != nil {
		t.Fatalf("DeleteItem(2) = %v, want nil", err)
	}

	got, err := e.Query("ca", 10)
	if err != nil {
		t.Fatalf("Query(ca) error = %v", err)
	}
	if !reflect.DeepEqual(got, []string{"cat"}) {
		t.Errorf("Query(ca) after delete = %v, want [cat]", got)
	}

	if err := e.DeleteItem("2"); !errors.Is(err, apperrors.ErrItemNotFound) {
		t.Errorf("second DeleteItem(2) = %v, want ErrItemNotFound", err)
	}
	if err := e.DeleteItem("99"); !errors.Is(err, apperrors.ErrItemNotFound) {
		t.Errorf("DeleteItem(99) = %v, want ErrItemNotFound", err)
	}
}

func TestDeletedIDNeverReused(t *testing.T) {
	e := loadedEngine(t, record("1", "cat"))

	if err := e.DeleteItem("1"); err != nil {
		t.Fatalf("DeleteItem(1) = %v, want nil", err)
	}

	err := e.AddItem(record("1", "resurrected cat"))
	if !errors.Is(err, apperrors.ErrItemExists) {
		t.Errorf("AddItem with retired ID = %v, want ErrItemExists", err)
	}
}

func TestDuplicateNamesDistinctIDs(t *testing.T) {
	e := loadedEngine(t,
		record("b", "milk"),
		record("a", "milk"),
		record("c", "bread"),
	)

	got, err := e.Query("milk", 10)
	if err != nil {
		t.Fatalf("Query(milk) error = %v", err)
	}
	if !reflect.DeepEqual(got, []string{"milk", "milk"}) {
		t.Errorf("Query(milk) = %v, want [milk milk]", got)
	}

	if err := e.DeleteItem("a"); err != nil {
		t.Fatalf("DeleteItem(a) = %v, want nil", err)
	}
	got, _ = e.Query("milk", 10)
	if !reflect.DeepEqual(got, []string{"milk"}) {
		t.Errorf("Query(milk) after partial delete = %v, want [milk]", got)
	}
	if err := e.CheckInvariants(); err != nil {
		t.Errorf("CheckInvariants() = %v, want nil", err)
	}
}

func TestLoadRejectsDuplicateIDs(t *testing.T) {
	e := NewEngine()
	err := e.Load([]catalog.ItemRecord{
		record("1", "cat"),
		record("1", "dog"),
	})
	if !errors.Is(err, apperrors.ErrInvalidInput) {
		t.Errorf("Load with duplicate IDs = %v, want ErrInvalidInput", err)
	}
	if e.Len() != 0 {
		t.Errorf("Len() after rejected load = %d, want 0", e.Len())
	}
}

func TestSnapshotDeepCopy(t *testing.T) {
	rec := record("1", "cat")
	e := loadedEngine(t, rec)

	snap := e.Snapshot()
	if len(snap) != 1 {
		t.Fatalf("Snapshot() length = %d, want 1", len(snap))
	}
	snap[0].Name = "mutated"
	snap[0].TagsDSW[0] = "mutated"

	got, _ := e.Query("cat", 10)
	if !reflect.DeepEqual(got, []string{"cat"}) {
		t.Errorf("Query(cat) after snapshot mutation = %v, want [cat]", got)
	}
	again := e.Snapshot()
	if again[0].TagsDSW[0] != "test" {
		t.Errorf("snapshot tag = %q, want test", again[0].TagsDSW[0])
	}
}

func TestSnapshotSortedByID(t *testing.T) {
	e := loadedEngine(t,
		record("c", "cherry"),
		record("a", "apple"),
		record("b", "banana"),
	)

	snap := e.Snapshot()
	ids := make([]string, len(snap))
	for i, rec := range snap {
		ids[i] = rec.ID
	}
	if !sort.StringsAreSorted(ids) {
		t.Errorf("snapshot IDs not sorted: %v", ids)
	}
}

// Queries against the engine must always agree with a brute-force scan of the
// same records, across random interleavings of adds and deletes.
func TestQueryMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	names := []string{
		"milk", "Milk", "milkshake", "bread", "butter", "cheese",
		"cherry", "chocolate", "tomato", "tomato paste", "apple", "apricot",
	}

	e := NewEngine()
	live := make(map[string]string)
	nextID := 0

	for step := 0; step < 500; step++ {
		if rng.Intn(3) > 0 || len(live) == 0 {
			id := fmt.Sprintf("item-%04d", nextID)
			nextID++
			name := names[rng.Intn(len(names))]
			if err := e.AddItem(record(id, name)); err != nil {
				t.Fatalf("step %d: AddItem(%s, %q) = %v", step, id, name, err)
			}
			live[id] = name
		} else {
			var victim string
			for id := range live {
				victim = id
				break
			}
			if err := e.DeleteItem(victim); err != nil {
				t.Fatalf("step %d: DeleteItem(%s) = %v", step, victim, err)
			}
			delete(live, victim)
		}
	}

	if err := e.CheckInvariants(); err != nil {
		t.Fatalf("CheckInvariants() = %v, want nil", err)
	}

	for _, prefix := range []string{"", "m", "mi", "milk", "ch", "tomato ", "z", "MILK"} {
		got, err := e.Query(prefix, len(live)+1)
		if err != nil {
			t.Fatalf("Query(%q) error = %v", prefix, err)
		}

		type pair struct{ key, name, id string }
		var expected []pair
		for id, name := range live {
			if strings.HasPrefix(index.Fold(name), index.Fold(prefix)) {
				expected = append(expected, pair{index.Fold(name), name, id})
			}
		}
		sort.Slice(expected, func(i, j int) bool {
			if expected[i].key != expected[j].key {
				return expected[i].key < expected[j].key
			}
			return expected[i].id < expected[j].id
		})
		want := make([]string, 0, len(expected))
		for _, p := range expected {
			want = append(want, p.name)
		}

		if !reflect.DeepEqual(got, want) {
			t.Errorf("Query(%q) = %v, want %v", prefix, got, want)
		}
	}
}

func TestConcurrentQueriesAndMutations(t *testing.T) {
	e := NewEngine()
	seed := make([]catalog.ItemRecord, 0, 100)
	for i := 0; i < 100; i++ {
		seed = append(seed, record(fmt.Sprintf("seed-%03d", i), fmt.Sprintf("item %03d", i)))
	}
	if err := e.Load(seed); err != nil {
		t.Fatalf("Load() = %v", err)
	}

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				if _, err := e.Query("item", 10); err != nil {
					t.Errorf("worker %d: Query = %v", worker, err)
					return
				}
			}
		}(w)
	}
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				id := fmt.Sprintf("w%d-%03d", worker, i)
				if err := e.AddItem(record(id, "new item "+id)); err != nil {
					t.Errorf("worker %d: AddItem = %v", worker, err)
					return
				}
				if err := e.DeleteItem(id); err != nil {
					t.Errorf("worker %d: DeleteItem = %v", worker, err)
					return
				}
			}
		}(w)
	}
	wg.Wait()

	if err := e.CheckInvariants(); err != nil {
		t.Errorf("CheckInvariants() after concurrent ops = %v", err)
	}
	if e.Len() != 100 {
		t.Errorf("Len() = %d, want 100", e.Len())
	}
}

func TestCorruptionPoisonsMutations(t *testing.T) {
	e := loadedEngine(t, record("1", "cat"), record("2", "dog"))

	// Break the bijection from the outside: the index loses a pair the
	// catalog still holds.
	e.mu.Lock()
	if err := e.idx.Remove("cat", "1"); err != nil {
		e.mu.Unlock()
		t.Fatalf("setup Remove = %v", err)
	}
	e.mu.Unlock()

	err := e.DeleteItem("1")
	if !errors.Is(err, apperrors.ErrIndexCorrupt) {
		t.Fatalf("DeleteItem on broken index = %v, want ErrIndexCorrupt", err)
	}

	if err := e.AddItem(record("3", "bird")); !errors.Is(err, apperrors.ErrIndexCorrupt) {
		t.Errorf("AddItem after poison = %v, want ErrIndexCorrupt", err)
	}
	if err := e.DeleteItem("2"); !errors.Is(err, apperrors.ErrIndexCorrupt) {
		t.Errorf("DeleteItem after poison = %v, want ErrIndexCorrupt", err)
	}
	if err := e.CheckInvariants(); !errors.Is(err, apperrors.ErrIndexCorrupt) {
		t.Errorf("CheckInvariants after poison = %v, want ErrIndexCorrupt", err)
	}

	// Reads stay available.
	got, err := e.Query("dog", 10)
	if err != nil {
		t.Fatalf("Query after poison = %v, want nil", err)
	}
	if !reflect.DeepEqual(got, []string{"dog"}) {
		t.Errorf("Query(dog) after poison = %v, want [dog]", got)
	}
}
