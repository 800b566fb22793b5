// Package catalog defines the item data model. The catalog is the
// authoritative set of items, keyed by their unique identifier; display names
// are not unique across items.
package catalog

// ItemRecord is a single catalog item. ID is unique and immutable once
// assigned; Name is the sort and search key. The JSON field names follow the
// snapshot shape produced by the upstream export pipeline.
type ItemRecord struct {
	ID                  string   `json:"_id"`
	Name                string   `json:"name"`
	ShoppingCategory    string   `json:"shoppingCategory"`
	ShoppingSubcategory string   `json:"shopping_subcategory"`
	ItemCategory        string   `json:"item_category"`
	ItemSubcategory     string   `json:"item_subcategory"`
	TagsDSW             []string `json:"tags_dsw"`
	TagsGSW             []string `json:"tags_gsw"`
}

// Clone returns a deep copy of the record. Tag slices are copied so callers
// cannot alias catalog-owned memory.
func (r ItemRecord) Clone() ItemRecord {
	out := r
	if r.TagsDSW != nil {
		out.TagsDSW = append([]string(nil), r.TagsDSW...)
	}
	if r.TagsGSW != nil {
		out.TagsGSW = append([]string(nil), r.TagsGSW...)
	}
	return out
}

// Catalog maps item IDs to their records. It has no locking of its own: the
// suggestion engine owns it exclusively and guards all access.
type Catalog map[string]ItemRecord
