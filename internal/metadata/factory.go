package metadata

import (
	"context"
	"errors"
	"fmt"

	"agentgw/config"
	"agentgw/internal/storage"
)

// Result holds the initialized metadata components and their dependencies.
// The caller is responsible for calling Close() to release resources.
type Result struct {
	// Store gives synchronous access for the out-of-band status update hook.
	Store Store

	// Recorder is the fire-and-forget write path used by the orchestrators.
	Recorder Recorder

	Storage storage.Storage
}

// Close releases all resources. Safe to call multiple times.
func (r *Result) Close() error {
	var errs []error
	if r.Recorder != nil {
		if err := r.Recorder.Close(); err != nil {
			errs = append(errs, fmt.Errorf("recorder close: %w", err))
		}
	}
	if r.Storage != nil {
		if err := r.Storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage close: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %w", errors.Join(errs...))
	}
	return nil
}

// New creates the metadata store and recorder from configuration.
// The caller must call Result.Close() during shutdown.
//
// If metadata persistence is disabled, returns a NoopRecorder and nil store.
func New(ctx context.Context, cfg *config.Config) (*Result, error) {
	if !cfg.Metadata.Enabled {
		return &Result{Recorder: NoopRecorder{}}, nil
	}

	store, err := storage.New(ctx, storage.Config{
		Type: cfg.Storage.Type,
		SQLite: storage.SQLiteConfig{
			Path: cfg.Storage.SQLite.Path,
		},
		PostgreSQL: storage.PostgreSQLConfig{
			URL:      cfg.Storage.PostgreSQL.URL,
			MaxConns: cfg.Storage.PostgreSQL.MaxConns,
		},
		MongoDB: storage.MongoDBConfig{
			URL:      cfg.Storage.MongoDB.URL,
			Database: cfg.Storage.MongoDB.Database,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage: %w", err)
	}

	metaStore, err := createStore(store)
	if err != nil {
		store.Close()
		return nil, err
	}

	return &Result{
		Store:    metaStore,
		Recorder: NewAsyncRecorder(metaStore, cfg.Metadata.BufferSize),
		Storage:  store,
	}, nil
}

// createStore creates the appropriate Store for the storage backend.
func createStore(store storage.Storage) (Store, error) {
	switch store.Type() {
	case storage.TypeSQLite:
		return NewSQLiteStore(store.SQLiteDB())

	case storage.TypePostgreSQL:
		pool := store.PostgreSQLPool()
		if pool == nil {
			return nil, fmt.Errorf("PostgreSQL pool is nil")
		}
		return NewPostgreSQLStore(pool)

	case storage.TypeMongoDB:
		db := store.MongoDatabase()
		if db == nil {
			return nil, fmt.Errorf("MongoDB database is nil")
		}
		return NewMongoDBStore(db)

	default:
		return nil, fmt.Errorf("unknown storage type: %s", store.Type())
	}
}
