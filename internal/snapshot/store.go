// Package snapshot persists catalog snapshots. The engine only ever touches
// persistence through the Store contract: a bulk load at startup and a full
// save on export. Two backends exist: PostgreSQL for deployments and a
// checksummed binary file for seeding and local runs.
package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/shopstream-labs/catalog-suggest/internal/catalog"
	"github.com/shopstream-labs/catalog-suggest/pkg/postgres"
)

// Store is the load/save contract between the engine and persistence.
type Store interface {
	LoadAll(ctx context.Context) ([]catalog.ItemRecord, error)
	SaveAll(ctx context.Context, records []catalog.ItemRecord) error
}

// PostgresStore keeps the snapshot in a single items table keyed by item_id.
// Tag lists are stored as text arrays.
type PostgresStore struct {
	client *postgres.Client
	logger *slog.Logger
}

// NewPostgresStore creates the store and ensures the items table exists.
func NewPostgresStore(ctx context.Context, client *postgres.Client) (*PostgresStore, error) {
	s := &PostgresStore{
		client: client,
		logger: slog.Default().With("component", "snapshot-postgres"),
	}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS catalog_items (
	item_id              TEXT PRIMARY KEY,
	name                 TEXT NOT NULL,
	shopping_category    TEXT NOT NULL,
	shopping_subcategory TEXT NOT NULL,
	item_category        TEXT NOT NULL,
	item_subcategory     TEXT NOT NULL,
	tags_dsw             TEXT[] NOT NULL DEFAULT '{}',
	tags_gsw             TEXT[] NOT NULL DEFAULT '{}'
)`
	if _, err := s.client.DB.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("creating catalog_items table: %w", err)
	}
	return nil
}

// LoadAll reads every item in a single SELECT. Sorting happens once in the
// engine's bulk build, not here.
func (s *PostgresStore) LoadAll(ctx context.Context) ([]catalog.ItemRecord, error) {
	const query = `
SELECT item_id, name, shopping_category, shopping_subcategory,
       item_category, item_subcategory, tags_dsw, tags_gsw
FROM catalog_items`
	rows, err := s.client.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying catalog_items: %w", err)
	}
	defer rows.Close()

	var records []catalog.ItemRecord
	for rows.Next() {
		var rec catalog.ItemRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.Name,
			&rec.ShoppingCategory,
			&rec.ShoppingSubcategory,
			&rec.ItemCategory,
			&rec.ItemSubcategory,
			pq.Array(&rec.TagsDSW),
			pq.Array(&rec.TagsGSW),
		); err != nil {
			return nil, fmt.Errorf("scanning catalog row: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating catalog rows: %w", err)
	}
	s.logger.Info("snapshot loaded from postgres", "items", len(records))
	return records, nil
}

// SaveAll replaces the stored snapshot with the given records in one
// transaction, so a concurrent LoadAll sees either the old or the new
// snapshot, never a mix.
func (s *PostgresStore) SaveAll(ctx context.Context, records []catalog.ItemRecord) error {
	err := s.client.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `TRUNCATE catalog_items`); err != nil {
			return fmt.Errorf("truncating catalog_items: %w", err)
		}
		const insert = `
INSERT INTO catalog_items
	(item_id, name, shopping_category, shopping_subcategory,
	 item_category, item_subcategory, tags_dsw, tags_gsw)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
		stmt, err := tx.PrepareContext(ctx, insert)
		if err != nil {
			return fmt.Errorf("preparing insert: %w", err)
		}
		defer stmt.Close()
		for _, rec := range records {
			if _, err := stmt.ExecContext(ctx,
				rec.ID,
				rec.Name,
				rec.ShoppingCategory,
				rec.ShoppingSubcategory,
				rec.ItemCategory,
				rec.ItemSubcategory,
				pq.Array(rec.TagsDSW),
				pq.Array(rec.TagsGSW),
			); err != nil {
				return fmt.Errorf("inserting item %s: %w", rec.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.logger.Info("snapshot saved to postgres", "items", len(records))
	return nil
}

// decodeRecords parses a JSON array of item records, the shape produced by
// the upstream export pipeline and by FileStore.
func decodeRecords(data []byte) ([]catalog.ItemRecord, error) {
	var records []catalog.ItemRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parsing item records: %w", err)
	}
	return records, nil
}
