package validator

import (
	"strings"
	"testing"

	"github.com/shopstream-labs/catalog-suggest/internal/catalog"
)

func validRecord() catalog.ItemRecord {
	return catalog.ItemRecord{
		ID:                  "item-001",
		Name:                "Whole Milk",
		ShoppingCategory:    "Grocery",
		ShoppingSubcategory: "Dairy",
		ItemCategory:        "Beverages",
		ItemSubcategory:     "Milk",
		TagsDSW:             []string{"dairy", "fresh"},
		TagsGSW:             []string{"staple"},
	}
}

func TestValidateItemRecordAccepts(t *testing.T) {
	rec := validRecord()
	if err := ValidateItemRecord(&rec); err != nil {
		t.Errorf("ValidateItemRecord(valid) = %v, want nil", err)
	}

	rec = validRecord()
	rec.TagsDSW = nil
	rec.TagsGSW = nil
	if err := ValidateItemRecord(&rec); err != nil {
		t.Errorf("ValidateItemRecord(no tags) = %v, want nil", err)
	}
}

func TestValidateItemRecordRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*catalog.ItemRecord)
		field  string
	}{
		{"missing id", func(r *catalog.ItemRecord) { r.ID = "" }, "_id"},
		{"blank id", func(r *catalog.ItemRecord) { r.ID = "   " }, "_id"},
		{"long id", func(r *catalog.ItemRecord) { r.ID = strings.Repeat("x", 256) }, "_id"},
		{"missing name", func(r *catalog.ItemRecord) { r.Name = "" }, "name"},
		{"long name", func(r *catalog.ItemRecord) { r.Name = strings.Repeat("n", 1025) }, "name"},
		{"missing shopping category", func(r *catalog.ItemRecord) { r.ShoppingCategory = "" }, "shoppingCategory"},
		{"missing shopping subcategory", func(r *catalog.ItemRecord) { r.ShoppingSubcategory = "" }, "shopping_subcategory"},
		{"missing item category", func(r *catalog.ItemRecord) { r.ItemCategory = "" }, "item_category"},
		{"long item subcategory", func(r *catalog.ItemRecord) { r.ItemSubcategory = strings.Repeat("s", 513) }, "item_subcategory"},
		{"too many dsw tags", func(r *catalog.ItemRecord) { r.TagsDSW = make([]string, 257) }, "tags_dsw"},
		{"too many gsw tags", func(r *catalog.ItemRecord) { r.TagsGSW = make([]string, 257) }, "tags_gsw"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := validRecord()
			tt.mutate(&rec)

			err := ValidateItemRecord(&rec)
			if err == nil {
				t.Fatal("ValidateItemRecord() = nil, want error")
			}
			verr, ok := err.(*ValidationError)
			if !ok {
				t.Fatalf("error type = %T, want *ValidationError", err)
			}
			if _, found := verr.Fields[tt.field]; !found {
				t.Errorf("Fields = %v, want entry for %q", verr.Fields, tt.field)
			}
		})
	}
}

func TestValidateItemRecordCollectsAllFailures(t *testing.T) {
	rec := catalog.ItemRecord{}

	err := ValidateItemRecord(&rec)
	verr, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("error type = %T, want *ValidationError", err)
	}
	for _, field := range []string{"_id", "name", "shoppingCategory", "shopping_subcategory", "item_category", "item_subcategory"} {
		if _, found := verr.Fields[field]; !found {
			t.Errorf("Fields missing %q: %v", field, verr.Fields)
		}
	}
}
