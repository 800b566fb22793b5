package snapshot

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopstream-labs/catalog-suggest/internal/catalog"
	"github.com/shopstream-labs/catalog-suggest/pkg/metrics"
	"github.com/shopstream-labs/catalog-suggest/pkg/resilience"
)

// Source is anything that can produce a consistent point-in-time copy of the
// catalog. The suggestion engine satisfies it.
type Source interface {
	Snapshot() []catalog.ItemRecord
}

// Exporter periodically writes the engine's snapshot to the store. Export
// reads through Snapshot only, so it never blocks the mutation path. Failing
// stores trip a circuit breaker so a dead backend doesn't burn a retry cycle
// on every tick.
type Exporter struct {
	source   Source
	store    Store
	interval time.Duration
	breaker  *resilience.CircuitBreaker
	metrics  *metrics.Metrics
	logger   *slog.Logger
	done     chan struct{}
}

// NewExporter creates an Exporter flushing every interval.
func NewExporter(source Source, store Store, interval time.Duration, m *metrics.Metrics) *Exporter {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Exporter{
		source:   source,
		store:    store,
		interval: interval,
		breaker:  resilience.NewCircuitBreaker("snapshot-export", resilience.CircuitBreakerConfig{}),
		metrics:  m,
		logger:   slog.Default().With("component", "snapshot-exporter"),
		done:     make(chan struct{}),
	}
}

// Start launches the export loop. On shutdown a final export runs with a
// short deadline so the latest catalog state is not lost.
func (e *Exporter) Start(ctx context.Context) {
	go func() {
		defer close(e.done)
		ticker := time.NewTicker(e.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				e.export(ctx)
			case <-ctx.Done():
				e.logger.Info("export loop stopping, performing final export")
				finalCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				e.export(finalCtx)
				cancel()
				return
			}
		}
	}()
	e.logger.Info("snapshot exporter started", "interval", e.interval)
}

// Close waits for the export loop to finish.
func (e *Exporter) Close() {
	<-e.done
}

// Export performs one snapshot save immediately.
func (e *Exporter) Export(ctx context.Context) error {
	return e.export(ctx)
}

func (e *Exporter) export(ctx context.Context) error {
	records := e.source.Snapshot()
	err := e.breaker.Execute(func() error {
		return resilience.Retry(ctx, "snapshot-save", resilience.RetryConfig{}, func() error {
			return e.store.SaveAll(ctx, records)
		})
	})
	if err != nil {
		if e.metrics != nil {
			e.metrics.SnapshotExportsTotal.WithLabelValues("error").Inc()
		}
		e.logger.Error("snapshot export failed", "items", len(records), "error", err)
		return err
	}
	if e.metrics != nil {
		e.metrics.SnapshotExportsTotal.WithLabelValues("ok").Inc()
	}
	e.logger.Info("snapshot exported", "items", len(records))
	return nil
}
