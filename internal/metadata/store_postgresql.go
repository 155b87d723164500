package metadata

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgreSQLStore implements Store for PostgreSQL databases.
type PostgreSQLStore struct {
	pool *pgxpool.Pool
}

// NewPostgreSQLStore creates a new PostgreSQL metadata store.
// Table creation is idempotent and runs once at construction.
func NewPostgreSQLStore(pool *pgxpool.Pool) (*PostgreSQLStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("connection pool is required")
	}

	ctx := context.Background()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS uploads (
			id BIGSERIAL PRIMARY KEY,
			file_id TEXT UNIQUE NOT NULL,
			filename TEXT NOT NULL,
			provider TEXT,
			content_type TEXT NOT NULL,
			bytes BIGINT NOT NULL,
			uploaded_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS runs (
			id BIGSERIAL PRIMARY KEY,
			run_id TEXT UNIQUE NOT NULL,
			thread_id TEXT NOT NULL,
			assistant_id TEXT,
			status TEXT NOT NULL,
			schema_profile TEXT,
			metadata JSONB,
			started_at TIMESTAMPTZ NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return nil, fmt.Errorf("failed to create metadata tables: %w", err)
		}
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_uploads_uploaded_at ON uploads(uploaded_at)",
		"CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at)",
		"CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status)",
	}
	for _, idx := range indexes {
		if _, err := pool.Exec(ctx, idx); err != nil {
			slog.Warn("failed to create index", "error", err)
		}
	}

	return &PostgreSQLStore{pool: pool}, nil
}

// LogUpload inserts or replaces the upload record keyed by file_id.
func (s *PostgreSQLStore) LogUpload(ctx context.Context, rec *UploadRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO uploads (file_id, filename, provider, content_type, bytes, uploaded_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (file_id) DO UPDATE SET
			filename = EXCLUDED.filename,
			provider = EXCLUDED.provider,
			content_type = EXCLUDED.content_type,
			bytes = EXCLUDED.bytes,
			uploaded_at = EXCLUDED.uploaded_at`,
		rec.FileID, rec.Filename, rec.Provider, rec.ContentType, rec.Bytes, rec.UploadedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert upload %s: %w", rec.FileID, err)
	}
	return nil
}

// LogRun inserts or replaces the run record keyed by run_id.
func (s *PostgreSQLStore) LogRun(ctx context.Context, rec *RunRecord) error {
	metadataJSON, err := marshalMetadata(rec.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal run metadata for %s: %w", rec.RunID, err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO runs (run_id, thread_id, assistant_id, status, schema_profile, metadata, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (run_id) DO UPDATE SET
			thread_id = EXCLUDED.thread_id,
			assistant_id = EXCLUDED.assistant_id,
			status = EXCLUDED.status,
			schema_profile = EXCLUDED.schema_profile,
			metadata = EXCLUDED.metadata,
			started_at = EXCLUDED.started_at`,
		rec.RunID, rec.ThreadID, emptyToNull(rec.AssistantID), rec.Status,
		emptyToNull(rec.SchemaProfile), metadataJSON, rec.StartedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", rec.RunID, err)
	}
	return nil
}

// UpdateRunStatus point-writes the status column for an existing run.
func (s *PostgreSQLStore) UpdateRunStatus(ctx context.Context, runID, status string) error {
	_, err := s.pool.Exec(ctx, "UPDATE runs SET status = $1 WHERE run_id = $2", status, runID)
	if err != nil {
		return fmt.Errorf("failed to update run %s status: %w", runID, err)
	}
	return nil
}

// Close is a no-op; the pool is owned by the storage layer.
func (s *PostgreSQLStore) Close() error {
	return nil
}
