// Package suggest implements the autocomplete engine: a catalog of items and
// a sorted name index kept mutually consistent behind a single reader-writer
// lock. Queries and snapshots take shared access and run concurrently;
// mutations take exclusive access, so no reader ever observes the catalog and
// the index disagreeing or the index mid-shift.
package suggest

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/shopstream-labs/catalog-suggest/internal/catalog"
	"github.com/shopstream-labs/catalog-suggest/internal/catalog/validator"
	"github.com/shopstream-labs/catalog-suggest/internal/suggest/index"
	apperrors "github.com/shopstream-labs/catalog-suggest/pkg/errors"
)

// Engine owns the catalog and the sorted name index exclusively. No other
// component holds a mutable reference to either.
type Engine struct {
	mu      sync.RWMutex
	items   catalog.Catalog
	idx     *index.SortedNameIndex
	deleted map[string]struct{}
	corrupt error
	logger  *slog.Logger
}

// NewEngine returns an empty engine.
func NewEngine() *Engine {
	return &Engine{
		items:   make(catalog.Catalog),
		idx:     index.New(),
		deleted: make(map[string]struct{}),
		logger:  slog.Default().With("component", "suggest-engine"),
	}
}

// Load bulk-builds the catalog and index from a snapshot. The index is built
// with a single sort rather than repeated inserts, so startup stays
// O(n log n). Records failing validation or duplicating an ID are rejected
// before any state changes.
func (e *Engine) Load(records []catalog.ItemRecord) error {
	items := make(catalog.Catalog, len(records))
	entries := make([]index.Entry, 0, len(records))
	for i := range records {
		rec := records[i]
		if err := validator.ValidateItemRecord(&rec); err != nil {
			return fmt.Errorf("%w: record %q: %v", apperrors.ErrInvalidInput, rec.ID, err)
		}
		if _, ok := items[rec.ID]; ok {
			return fmt.Errorf("%w: duplicate identifier %q in snapshot", apperrors.ErrInvalidInput, rec.ID)
		}
		items[rec.ID] = rec.Clone()
		entries = append(entries, index.NewEntry(rec.Name, rec.ID))
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.items = items
	e.idx = index.Build(entries)
	e.corrupt = nil
	e.logger.Info("catalog loaded", "items", len(items))
	return nil
}

// Query returns up to top item names whose name starts with prefix, in index
// order. The empty prefix matches everything. Fails with ErrInvalidInput when
// top is not positive.
func (e *Engine) Query(prefix string, top int) ([]string, error) {
	if top <= 0 {
		return nil, fmt.Errorf("%w: top must be positive, got %d", apperrors.ErrInvalidInput, top)
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	lo, hi := e.idx.Range(prefix)
	return e.idx.Names(lo, hi, top), nil
}

// AddItem validates the record, then inserts it into the catalog and the
// index inside one exclusive section. Fails with ErrItemExists when the ID is
// already present or was used by a previously deleted item: identifiers are
// never reused within a process instance.
func (e *Engine) AddItem(rec catalog.ItemRecord) error {
	if err := validator.ValidateItemRecord(&rec); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.corrupt != nil {
		return e.corrupt
	}
	if _, ok := e.items[rec.ID]; ok {
		return fmt.Errorf("%w: %s", apperrors.ErrItemExists, rec.ID)
	}
	if _, ok := e.deleted[rec.ID]; ok {
		return apperrors.Newf(apperrors.ErrItemExists, 409, "identifier %s was retired by a delete", rec.ID)
	}
	e.items[rec.ID] = rec.Clone()
	e.idx.Insert(rec.Name, rec.ID)
	return nil
}

// DeleteItem removes the item's index pair and catalog record inside one
// exclusive section. Fails with ErrItemNotFound when the ID is absent. A
// missing index pair for a present catalog record breaks the bijection
// invariant: the engine poisons itself and refuses further mutation while
// leaving reads available.
func (e *Engine) DeleteItem(id string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.corrupt != nil {
		return e.corrupt
	}
	rec, ok := e.items[id]
	if !ok {
		return fmt.Errorf("%w: %s", apperrors.ErrItemNotFound, id)
	}
	if err := e.idx.Remove(rec.Name, id); err != nil {
		e.corrupt = fmt.Errorf("%w: catalog holds %q but index pair (%q, %s) is missing",
			apperrors.ErrIndexCorrupt, id, rec.Name, id)
		e.logger.Error("catalog/index bijection broken, refusing further mutation",
			"item_id", id,
			"name", rec.Name,
		)
		return e.corrupt
	}
	delete(e.items, id)
	e.deleted[id] = struct{}{}
	return nil
}

// Snapshot returns a consistent point-in-time copy of every record, sorted by
// ID for deterministic exports. It takes shared access only, so exports never
// block queries.
func (e *Engine) Snapshot() []catalog.ItemRecord {
	e.mu.RLock()
	defer e.mu.RUnlock()
	records := make([]catalog.ItemRecord, 0, len(e.items))
	for _, rec := range e.items {
		records = append(records, rec.Clone())
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].ID < records[j].ID
	})
	return records
}

// Len returns the number of items in the catalog.
func (e *Engine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.items)
}

// CheckInvariants verifies that the index is fully sorted and that catalog
// and index form a bijection. O(n); used by tests and the readiness probe.
func (e *Engine) CheckInvariants() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.corrupt != nil {
		return e.corrupt
	}
	if err := e.idx.CheckSorted(); err != nil {
		return err
	}
	if e.idx.Len() != len(e.items) {
		return fmt.Errorf("%w: index has %d entries, catalog has %d items",
			apperrors.ErrIndexCorrupt, e.idx.Len(), len(e.items))
	}
	seen := make(map[string]struct{}, e.idx.Len())
	for i := 0; i < e.idx.Len(); i++ {
		entry := e.idx.At(i)
		rec, ok := e.items[entry.ID]
		if !ok {
			return fmt.Errorf("%w: index entry %q/%s has no catalog record",
				apperrors.ErrIndexCorrupt, entry.Key, entry.ID)
		}
		if index.Fold(rec.Name) != entry.Key {
			return fmt.Errorf("%w: index key %q does not match catalog name %q for %s",
				apperrors.ErrIndexCorrupt, entry.Key, rec.Name, entry.ID)
		}
		if _, dup := seen[entry.ID]; dup {
			return fmt.Errorf("%w: identifier %s appears twice in index",
				apperrors.ErrIndexCorrupt, entry.ID)
		}
		seen[entry.ID] = struct{}{}
	}
	return nil
}
