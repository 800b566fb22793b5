package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/shopstream-labs/catalog-suggest/internal/audit"
	"github.com/shopstream-labs/catalog-suggest/internal/catalog"
	"github.com/shopstream-labs/catalog-suggest/internal/catalog/validator"
	"github.com/shopstream-labs/catalog-suggest/internal/suggest"
	"github.com/shopstream-labs/catalog-suggest/internal/suggest/cache"
	apperrors "github.com/shopstream-labs/catalog-suggest/pkg/errors"
	"github.com/shopstream-labs/catalog-suggest/pkg/logger"
	"github.com/shopstream-labs/catalog-suggest/pkg/metrics"
	"github.com/shopstream-labs/catalog-suggest/pkg/middleware"
	"github.com/shopstream-labs/catalog-suggest/pkg/tracing"
)

type Handler struct {
	engine     *suggest.Engine
	cache      *cache.SuggestionCache
	collector  *audit.Collector
	metrics    *metrics.Metrics
	defaultTop int
	maxResults int
	logger     *slog.Logger
}

func New(engine *suggest.Engine, suggestionCache *cache.SuggestionCache, collector *audit.Collector, m *metrics.Metrics, defaultTop, maxResults int) *Handler {
	return &Handler{
		engine:     engine,
		cache:      suggestionCache,
		collector:  collector,
		metrics:    m,
		defaultTop: defaultTop,
		maxResults: maxResults,
		logger:     slog.Default().With("component", "suggest-handler"),
	}
}

// Autocomplete serves GET /api/v1/autocomplete?prefix=&top=. A missing
// prefix matches everything; a missing top falls back to the configured
// default; top above the cap is clamped.
func (h *Handler) Autocomplete(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	ctx, span := tracing.StartSpan(ctx, "autocomplete", middleware.GetRequestID(ctx))
	defer func() {
		span.End()
		span.Log()
	}()

	prefix := r.URL.Query().Get("prefix")
	span.SetAttr("prefix", prefix)

	top := h.defaultTop
	if topStr := r.URL.Query().Get("top"); topStr != "" {
		parsed, err := strconv.Atoi(topStr)
		if err != nil || parsed < 1 {
			h.writeError(w, http.StatusBadRequest, "top must be a positive integer")
			return
		}
		if parsed > h.maxResults {
			parsed = h.maxResults
		}
		top = parsed
	}

	var names []string
	var err error
	cacheHit := false

	if h.cache != nil {
		_, cacheSpan := tracing.StartChildSpan(ctx, "cache-lookup")
		names, cacheHit, err = h.cache.GetOrCompute(ctx, prefix, top, func() ([]string, error) {
			return h.engine.Query(prefix, top)
		})
		cacheSpan.SetAttr("hit", cacheHit)
		cacheSpan.End()
	} else {
		names, err = h.engine.Query(prefix, top)
	}

	if err != nil {
		status := apperrors.HTTPStatusCode(err)
		if h.metrics != nil {
			h.metrics.SuggestQueriesTotal.WithLabelValues("error").Inc()
		}
		log.Error("autocomplete query failed", "prefix", prefix, "error", err)
		h.writeError(w, status, "autocomplete failed")
		return
	}

	latency := time.Since(start)
	log.Info("autocomplete completed",
		"prefix", prefix,
		"top", top,
		"returned", len(names),
		"cache_hit", cacheHit,
		"latency_ms", latency.Milliseconds(),
	)
	if h.metrics != nil {
		resultType := "hit"
		if len(names) == 0 {
			resultType = "zero_result"
		}
		cacheStatus := "miss"
		if cacheHit {
			cacheStatus = "hit"
		}
		h.metrics.SuggestQueriesTotal.WithLabelValues(resultType).Inc()
		h.metrics.SuggestLatency.WithLabelValues(cacheStatus).Observe(latency.Seconds())
		h.metrics.SuggestResultsCount.Observe(float64(len(names)))
		if cacheHit {
			h.metrics.CacheHitsTotal.Inc()
		} else {
			h.metrics.CacheMissesTotal.Inc()
		}
	}

	h.writeJSON(w, http.StatusOK, names)
}

// AddItem serves POST /api/v1/items (and the legacy POST /add_item route).
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	var rec catalog.ItemRecord
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := h.engine.AddItem(rec); err != nil {
		h.recordMutation("add", err)
		var validationErr *validator.ValidationError
		if errors.As(err, &validationErr) {
			h.writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":  "validation failed",
				"fields": validationErr.Fields,
			})
			return
		}
		status := apperrors.HTTPStatusCode(err)
		log.Error("add item failed", "item_id", rec.ID, "status_code", status, "error", err)
		h.writeError(w, status, err.Error())
		return
	}
	h.recordMutation("add", nil)
	h.afterMutation(r, audit.MutationEvent{
		Type:      audit.EventItemAdded,
		ItemID:    rec.ID,
		ItemName:  rec.Name,
		RequestID: middleware.GetRequestID(ctx),
		Timestamp: time.Now().UTC(),
	})

	log.Info("item added", "item_id", rec.ID, "name", rec.Name)
	h.writeJSON(w, http.StatusCreated, map[string]string{
		"item_id": rec.ID,
		"status":  "created",
	})
}

// DeleteItem serves DELETE /api/v1/items/{id} (and the legacy
// DELETE /delete/{id} route).
func (h *Handler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	id := r.PathValue("id")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "item id is required")
		return
	}

	if err := h.engine.DeleteItem(id); err != nil {
		h.recordMutation("delete", err)
		status := apperrors.HTTPStatusCode(err)
		if status >= http.StatusInternalServerError {
			log.Error("delete item failed", "item_id", id, "error", err)
		}
		h.writeError(w, status, err.Error())
		return
	}
	h.recordMutation("delete", nil)
	h.afterMutation(r, audit.MutationEvent{
		Type:      audit.EventItemDeleted,
		ItemID:    id,
		RequestID: middleware.GetRequestID(ctx),
		Timestamp: time.Now().UTC(),
	})

	log.Info("item deleted", "item_id", id)
	h.writeJSON(w, http.StatusOK, map[string]string{
		"item_id": id,
		"status":  "deleted",
	})
}

// CacheStats serves GET /api/v1/cache/stats.
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": strconv.FormatFloat(hitRate, 'f', 1, 64) + "%",
	})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// afterMutation invalidates the suggestion cache and emits an audit event.
// Both are best-effort: the mutation has already committed.
func (h *Handler) afterMutation(r *http.Request, event audit.MutationEvent) {
	if h.cache != nil {
		if err := h.cache.Invalidate(r.Context()); err != nil {
			h.logger.Error("cache invalidation failed", "error", err)
		}
	}
	if h.collector != nil {
		h.collector.Track(event)
	}
	if h.metrics != nil {
		h.metrics.CatalogSize.Set(float64(h.engine.Len()))
	}
}

func (h *Handler) recordMutation(kind string, err error) {
	if h.metrics == nil {
		return
	}
	status := "ok"
	switch {
	case err == nil:
	case errors.Is(err, apperrors.ErrItemExists):
		status = "conflict"
	case errors.Is(err, apperrors.ErrItemNotFound):
		status = "not_found"
	case errors.Is(err, apperrors.ErrInvalidInput):
		status = "invalid"
	default:
		var validationErr *validator.ValidationError
		if errors.As(err, &validationErr) {
			status = "invalid"
		} else {
			status = "error"
		}
	}
	h.metrics.CatalogMutations.WithLabelValues(kind, status).Inc()
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
