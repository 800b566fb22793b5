// Package audit publishes catalog mutation events to Kafka and aggregates
// them into running statistics.
package audit

import "time"

const (
	EventItemAdded   = "item_added"
	EventItemDeleted = "item_deleted"
)

// MutationEvent records one catalog mutation.
type MutationEvent struct {
	Type      string    `json:"type"`
	ItemID    string    `json:"item_id"`
	ItemName  string    `json:"item_name,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
