package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dunamismax/pixellab/internal/domain"
	_ "github.com/lib/pq"
)

const usageSchemaSQL = `
CREATE TABLE IF NOT EXISTS usage_logs (
	request_id TEXT PRIMARY KEY,
	source_type TEXT NOT NULL,
	width INTEGER NOT NULL,
	height INTEGER NOT NULL,
	pixels_processed BIGINT NOT NULL,
	input_bytes BIGINT NOT NULL,
	output_bytes BIGINT NOT NULL,
	compute_time_ms BIGINT NOT NULL,
	catalog_version INTEGER NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS usage_logs_created_at_idx ON usage_logs (created_at);
`

type PostgresUsageStore struct {
	db *sql.DB
}

func NewPostgresUsageStore(ctx context.Context, dsn string) (*PostgresUsageStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	store := &PostgresUsageStore{db: db}
	if err := store.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *PostgresUsageStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, usageSchemaSQL); err != nil {
		return fmt.Errorf("ensure usage_logs schema: %w", err)
	}
	return nil
}

func (s *PostgresUsageStore) Close() error {
	return s.db.Close()
}

func (s *PostgresUsageStore) CreateUsageLog(ctx context.Context, usage domain.UsageLog) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO usage_logs (request_id, source_type, width, height, pixels_processed,
		   input_bytes, output_bytes, compute_time_ms, catalog_version, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (request_id) DO NOTHING`,
		usage.RequestID,
		usage.SourceType,
		usage.Width,
		usage.Height,
		usage.PixelsProcessed,
		usage.InputBytes,
		usage.OutputBytes,
		usage.ComputeTimeMS,
		usage.CatalogVersion,
		usage.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert usage log: %w", err)
	}
	return nil
}

func (s *PostgresUsageStore) Totals(ctx context.Context) (UsageTotals, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(pixels_processed), 0),
		        COALESCE(SUM(input_bytes), 0),
		        COALESCE(SUM(output_bytes), 0),
		        COALESCE(SUM(compute_time_ms), 0)
		 FROM usage_logs`,
	)

	var totals UsageTotals
	if err := row.Scan(
		&totals.Requests,
		&totals.PixelsProcessed,
		&totals.InputBytes,
		&totals.OutputBytes,
		&totals.ComputeTimeMS,
	); err != nil {
		return UsageTotals{}, fmt.Errorf("query usage totals: %w", err)
	}
	return totals, nil
}
