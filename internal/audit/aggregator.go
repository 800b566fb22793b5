package audit

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopstream-labs/catalog-suggest/pkg/config"
	"github.com/shopstream-labs/catalog-suggest/pkg/kafka"
)

const recentEventLimit = 50

// AggregatedStats summarises the mutation events consumed so far.
type AggregatedStats struct {
	ItemsAdded         int64           `json:"items_added"`
	ItemsDeleted       int64           `json:"items_deleted"`
	MutationsPerMinute float64         `json:"mutations_per_minute"`
	RecentEvents       []MutationEvent `json:"recent_events"`
}

// Aggregator consumes the audit topic and keeps running counters plus a ring
// of the most recent events.
type Aggregator struct {
	mu           sync.RWMutex
	itemsAdded   atomic.Int64
	itemsDeleted atomic.Int64
	recent       []MutationEvent
	startTime    time.Time

	consumer *kafka.Consumer
	logger   *slog.Logger
}

// NewAggregator builds an Aggregator consuming the given audit topic.
func NewAggregator(cfg config.KafkaConfig, topic string) *Aggregator {
	a := &Aggregator{
		recent:    make([]MutationEvent, 0, recentEventLimit),
		startTime: time.Now(),
		logger:    slog.Default().With("component", "audit-aggregator"),
	}
	a.consumer = kafka.NewConsumer(cfg, topic, HandleEvent(a))
	return a
}

// Start enters the consume loop until ctx is cancelled.
func (a *Aggregator) Start(ctx context.Context) error {
	a.logger.Info("audit aggregator starting")
	return a.consumer.Start(ctx)
}

// HandleEvent returns the Kafka message handler that feeds an Aggregator.
// Undecodable events are logged and skipped, never retried.
func HandleEvent(agg *Aggregator) kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[MutationEvent](value)
		if err != nil {
			agg.logger.Error("failed to decode audit event", "error", err)
			return nil
		}
		agg.record(event)
		return nil
	}
}

func (a *Aggregator) record(event MutationEvent) {
	switch event.Type {
	case EventItemAdded:
		a.itemsAdded.Add(1)
	case EventItemDeleted:
		a.itemsDeleted.Add(1)
	default:
		a.logger.Warn("unknown audit event type", "type", event.Type)
		return
	}

	a.mu.Lock()
	a.recent = append(a.recent, event)
	if len(a.recent) > recentEventLimit {
		a.recent = a.recent[len(a.recent)-recentEventLimit:]
	}
	a.mu.Unlock()
}

// Stats returns a snapshot of the aggregated counters.
func (a *Aggregator) Stats() AggregatedStats {
	a.mu.RLock()
	defer a.mu.RUnlock()

	stats := AggregatedStats{
		ItemsAdded:   a.itemsAdded.Load(),
		ItemsDeleted: a.itemsDeleted.Load(),
		RecentEvents: append([]MutationEvent(nil), a.recent...),
	}
	elapsed := time.Since(a.startTime).Minutes()
	if elapsed > 0 {
		stats.MutationsPerMinute = float64(stats.ItemsAdded+stats.ItemsDeleted) / elapsed
	}
	return stats
}
