// Package validator provides input validation for item records before they
// reach the suggestion engine. Validation runs before any shared state is
// touched and returns per-field error details.
package validator

import (
	"fmt"
	"strings"

	"github.com/shopstream-labs/catalog-suggest/internal/catalog"
)

const (
	maxIDLength   = 255
	maxNameLength = 1024
	maxFieldLen   = 512
	maxTags       = 256
)

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	var parts []string
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s:%s", field, msg))
	}
	return strings.Join(parts, "; ")
}

// ValidateItemRecord checks that the record's required fields are present and
// within length limits. It returns a ValidationError describing every failing
// field, or nil when the record is acceptable.
func ValidateItemRecord(rec *catalog.ItemRecord) error {
	errs := make(map[string]string)

	id := strings.TrimSpace(rec.ID)
	if id == "" {
		errs["_id"] = "identifier is required"
	} else if len(id) > maxIDLength {
		errs["_id"] = fmt.Sprintf("identifier must be at most %d characters", maxIDLength)
	}
	name := strings.TrimSpace(rec.Name)
	if name == "" {
		errs["name"] = "name is required"
	} else if len(name) > maxNameLength {
		errs["name"] = fmt.Sprintf("name must be at most %d characters", maxNameLength)
	}
	for field, value := range map[string]string{
		"shoppingCategory":     rec.ShoppingCategory,
		"shopping_subcategory": rec.ShoppingSubcategory,
		"item_category":        rec.ItemCategory,
		"item_subcategory":     rec.ItemSubcategory,
	} {
		if strings.TrimSpace(value) == "" {
			errs[field] = field + " is required"
		} else if len(value) > maxFieldLen {
			errs[field] = fmt.Sprintf("%s must be at most %d characters", field, maxFieldLen)
		}
	}
	if len(rec.TagsDSW) > maxTags {
		errs["tags_dsw"] = fmt.Sprintf("at most %d tags allowed", maxTags)
	}
	if len(rec.TagsGSW) > maxTags {
		errs["tags_gsw"] = fmt.Sprintf("at most %d tags allowed", maxTags)
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
