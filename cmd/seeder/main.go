// Command seeder loads an item catalog from a JSON export file and writes it
// to the configured snapshot store. It replaces the ad-hoc notebook step that
// used to produce the service's startup data.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/shopstream-labs/catalog-suggest/internal/catalog"
	"github.com/shopstream-labs/catalog-suggest/internal/catalog/validator"
	"github.com/shopstream-labs/catalog-suggest/internal/snapshot"
	"github.com/shopstream-labs/catalog-suggest/pkg/config"
	"github.com/shopstream-labs/catalog-suggest/pkg/logger"
	pkgpostgres "github.com/shopstream-labs/catalog-suggest/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	inputPath := flag.String("input", "", "path to items JSON array file")
	skipInvalid := flag.Bool("skip-invalid", false, "skip records failing validation instead of aborting")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)

	if *inputPath == "" {
		slog.Error("missing required -input flag")
		os.Exit(1)
	}

	data, err := os.ReadFile(*inputPath)
	if err != nil {
		slog.Error("failed to read input file", "path", *inputPath, "error", err)
		os.Exit(1)
	}
	var records []catalog.ItemRecord
	if err := json.Unmarshal(data, &records); err != nil {
		slog.Error("failed to parse input file", "path", *inputPath, "error", err)
		os.Exit(1)
	}
	slog.Info("input parsed", "path", *inputPath, "records", len(records))

	valid := make([]catalog.ItemRecord, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	skipped := 0
	for i := range records {
		rec := records[i]
		if err := validator.ValidateItemRecord(&rec); err != nil {
			if *skipInvalid {
				slog.Warn("skipping invalid record", "item_id", rec.ID, "error", err)
				skipped++
				continue
			}
			slog.Error("record failed validation", "item_id", rec.ID, "error", err)
			os.Exit(1)
		}
		if _, dup := seen[rec.ID]; dup {
			slog.Error("duplicate identifier in input", "item_id", rec.ID)
			os.Exit(1)
		}
		seen[rec.ID] = struct{}{}
		valid = append(valid, rec)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	var store snapshot.Store
	switch cfg.Snapshot.Backend {
	case "postgres":
		pgClient, err := pkgpostgres.New(cfg.Postgres)
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

	if err := store.SaveAll(ctx, valid); err != nil {
		slog.Error("failed to save snapshot", "error", err)
		os.Exit(1)
	}
	slog.Info("seed complete",
		"backend", cfg.Snapshot.Backend,
		"items", len(valid),
		"skipped", skipped,
	)
}
