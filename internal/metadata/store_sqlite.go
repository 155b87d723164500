package metadata

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// SQLiteStore implements Store for SQLite databases.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite metadata store.
// Table creation is idempotent and runs once at construction.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	// Autoincrement surrogate key plus the natural unique key; replace
	// semantics hang off the UNIQUE constraint.
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS uploads (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			file_id TEXT UNIQUE NOT NULL,
			filename TEXT NOT NULL,
			provider TEXT,
			content_type TEXT NOT NULL,
			bytes INTEGER NOT NULL,
			uploaded_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT UNIQUE NOT NULL,
			thread_id TEXT NOT NULL,
			assistant_id TEXT,
			status TEXT NOT NULL,
			schema_profile TEXT,
			metadata_json TEXT,
			started_at TEXT NOT NULL
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return nil, fmt.Errorf("failed to create metadata tables: %w", err)
		}
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_uploads_uploaded_at ON uploads(uploaded_at)",
		"CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at)",
		"CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status)",
	}
	for _, idx := range indexes {
		if _, err := db.Exec(idx); err != nil {
			slog.Warn("failed to create index", "error", err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

// LogUpload inserts or replaces the upload record keyed by file_id.
func (s *SQLiteStore) LogUpload(ctx context.Context, rec *UploadRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO uploads (file_id, filename, provider, content_type, bytes, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.FileID,
		rec.Filename,
		nullableString(rec.Provider),
		rec.ContentType,
		rec.Bytes,
		rec.UploadedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to insert upload %s: %w", rec.FileID, err)
	}
	return nil
}

// LogRun inserts or replaces the run record keyed by run_id.
func (s *SQLiteStore) LogRun(ctx context.Context, rec *RunRecord) error {
	metadataJSON, err := marshalMetadata(rec.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal run metadata for %s: %w", rec.RunID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs (run_id, thread_id, assistant_id, status, schema_profile, metadata_json, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID,
		rec.ThreadID,
		emptyToNull(rec.AssistantID),
		rec.Status,
		emptyToNull(rec.SchemaProfile),
		metadataJSON,
		rec.StartedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", rec.RunID, err)
	}
	return nil
}

// UpdateRunStatus point-writes the status column for an existing run.
// No existence check is performed; a missing run_id affects zero rows.
func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID, status string) error {
	_, err := s.db.ExecContext(ctx, "UPDATE runs SET status = ? WHERE run_id = ?", status, runID)
	if err != nil {
		return fmt.Errorf("failed to update run %s status: %w", runID, err)
	}
	return nil
}

// Close is a no-op; the DB handle is owned by the storage layer.
func (s *SQLiteStore) Close() error {
	return nil
}

// marshalMetadata serializes the caller-supplied metadata map as a compact
// JSON string. Empty maps are stored as SQL NULL.
func marshalMetadata(m map[string]string) (any, error) {
	if len(m) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func nullableString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func emptyToNull(s string) any {
	if s == "" {
		return nil
	}
	return s
}
