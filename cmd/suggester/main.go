package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopstream-labs/catalog-suggest/internal/audit"
	"github.com/shopstream-labs/catalog-suggest/internal/catalog"
	"github.com/shopstream-labs/catalog-suggest/internal/snapshot"
	"github.com/shopstream-labs/catalog-suggest/internal/suggest"
	"github.com/shopstream-labs/catalog-suggest/internal/suggest/cache"
	"github.com/shopstream-labs/catalog-suggest/internal/suggest/handler"
	"github.com/shopstream-labs/catalog-suggest/pkg/config"
	"github.com/shopstream-labs/catalog-suggest/pkg/health"
	"github.com/shopstream-labs/catalog-suggest/pkg/kafka"
	"github.com/shopstream-labs/catalog-suggest/pkg/logger"
	"github.com/shopstream-labs/catalog-suggest/pkg/metrics"
	"github.com/shopstream-labs/catalog-suggest/pkg/middleware"
	pkgpostgres "github.com/shopstream-labs/catalog-suggest/pkg/postgres"
	pkgredis "github.com/shopstream-labs/catalog-suggest/pkg/redis"
	"github.com/shopstream-labs/catalog-suggest/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting suggestion service", "port", cfg.Server.Port, "snapshot_backend", cfg.Snapshot.Backend)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			shutdownMetrics(shutdownCtx)
		}()
	}

	var store snapshot.Store
	var pgClient *pkgpostgres.Client
	switch cfg.Snapshot.Backend {
	case "postgres":
		pgClient, err = pkgpostgres.New(cfg.Postgres)
		if err != nil {
			slog.Error("postgres unavailable", "error", err)
			os.Exit(1)
		}
		defer pgClient.Close()
		store, err = snapshot.NewPostgresStore(ctx, pgClient)
		if err != nil {
			slog.Error("failed to initialise snapshot store", "error", err)
			os.Exit(1)
		}
	case "file":
		store = snapshot.NewFileStore(cfg.Snapshot.FilePath)
	default:
		slog.Error("unknown snapshot backend", "backend", cfg.Snapshot.Backend)
		os.Exit(1)
	}

	engine := suggest.NewEngine()
	var records []catalog.ItemRecord
	err = resilience.WithTimeout(ctx, 30*time.Second, "snapshot-load", func(ctx context.Context) error {
		var loadErr error
		records, loadErr = store.LoadAll(ctx)
		return loadErr
	})
	if err != nil {
		slog.Error("failed to load catalog snapshot", "error", err)
		os.Exit(1)
	}
	if err := engine.Load(records); err != nil {
		slog.Error("failed to build catalog", "error", err)
		os.Exit(1)
	}
	slog.Info("catalog ready", "items", engine.Len())
	if m != nil {
		m.CatalogSize.Set(float64(engine.Len()))
	}

	var suggestionCache *cache.SuggestionCache
	redisClient, err := pkgredis.NewClient(cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, suggestion caching disabled", "error", err)
	} else {
		defer redisClient.Close()
		suggestionCache = cache.New(redisClient, cfg.Redis)
		slog.Info("suggestion cache enabled",
			"addr", cfg.Redis.Addr,
			"ttl", cfg.Redis.CacheTTL,
		)
	}

	auditProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.CatalogAudit)
	defer auditProducer.Close()
	collector := audit.NewCollector(auditProducer, 100, 5*time.Second)
	collector.Start(ctx)
	defer collector.Close()

	aggregator := audit.NewAggregator(cfg.Kafka, cfg.Kafka.Topics.CatalogAudit)
	go func() {
		if err := aggregator.Start(ctx); err != nil {
			slog.Error("audit aggregator error", "error", err)
		}
	}()
	auditH := audit.NewHandler(aggregator)
	slog.Info("audit pipeline started", "topic", cfg.Kafka.Topics.CatalogAudit)

	exporter := snapshot.NewExporter(engine, store, cfg.Snapshot.ExportInterval.Std(), m)
	exporter.Start(ctx)
	defer exporter.Close()

	checker := health.NewChecker()
	checker.Register("engine", func(ctx context.Context) health.ComponentHealth {
		if err := engine.CheckInvariants(); err != nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp, Message: fmt.Sprintf("%d items", engine.Len())}
	})
	checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
		if redisClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if err := redisClient.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})
	if pgClient != nil {
		checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
			if err := pgClient.Ping(ctx); err != nil {
				return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
			}
			return health.ComponentHealth{Status: health.StatusUp}
		})
	}

	h := handler.New(engine, suggestionCache, collector, m, cfg.Suggest.DefaultTop, cfg.Suggest.MaxResults)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/autocomplete", h.Autocomplete)
	mux.HandleFunc("POST /api/v1/items", h.AddItem)
	mux.HandleFunc("DELETE /api/v1/items/{id}", h.DeleteItem)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("GET /api/v1/audit/stats", auditH.Stats)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())
	// Legacy routes kept for callers of the original service.
	mux.HandleFunc("GET /autocomplete", h.Autocomplete)
	mux.HandleFunc("POST /add_item", h.AddItem)
	mux.HandleFunc("DELETE /delete/{id}", h.DeleteItem)

	var chain http.Handler = mux
	if m != nil {
		chain = middleware.Metrics(m)(chain)
	}
	chain = middleware.Timeout(cfg.Server.WriteTimeout.Std())(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout.Std(),
		WriteTimeout: cfg.Server.WriteTimeout.Std(),
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Std())
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("suggestion service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("suggestion service stopped")
}
