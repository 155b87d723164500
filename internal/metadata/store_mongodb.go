package metadata

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// MongoDBStore implements Store for MongoDB.
type MongoDBStore struct {
	uploads *mongo.Collection
	runs    *mongo.Collection
}

// NewMongoDBStore creates a new MongoDB metadata store.
// Unique indexes on the natural keys back the replace semantics.
func NewMongoDBStore(database *mongo.Database) (*MongoDBStore, error) {
	if database == nil {
		return nil, fmt.Errorf("database is required")
	}

	uploads := database.Collection("uploads")
	runs := database.Collection("runs")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := uploads.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "file_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		// Indexes may already exist; log and continue.
		slog.Warn("failed to create uploads index", "error", err)
	}

	runIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "run_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "status", Value: 1}},
		},
	}
	if _, err := runs.Indexes().CreateMany(ctx, runIndexes); err != nil {
		slog.Warn("failed to create runs indexes", "error", err)
	}

	return &MongoDBStore{uploads: uploads, runs: runs}, nil
}

// LogUpload upserts the upload record keyed by file_id.
func (s *MongoDBStore) LogUpload(ctx context.Context, rec *UploadRecord) error {
	opts := options.Replace().SetUpsert(true)
	_, err := s.uploads.ReplaceOne(ctx, bson.D{{Key: "file_id", Value: rec.FileID}}, rec, opts)
	if err != nil {
		return fmt.Errorf("failed to upsert upload %s: %w", rec.FileID, err)
	}
	return nil
}

// LogRun upserts the run record keyed by run_id.
func (s *MongoDBStore) LogRun(ctx context.Context, rec *RunRecord) error {
	opts := options.Replace().SetUpsert(true)
	_, err := s.runs.ReplaceOne(ctx, bson.D{{Key: "run_id", Value: rec.RunID}}, rec, opts)
	if err != nil {
		return fmt.Errorf("failed to upsert run %s: %w", rec.RunID, err)
	}
	return nil
}

// UpdateRunStatus point-writes the status field for an existing run.
// A missing run_id matches zero documents; it is not an error.
func (s *MongoDBStore) UpdateRunStatus(ctx context.Context, runID, status string) error {
	_, err := s.runs.UpdateOne(ctx,
		bson.D{{Key: "run_id", Value: runID}},
		bson.D{{Key: "$set", Value: bson.D{{Key: "status", Value: status}}}},
	)
	if err != nil {
		return fmt.Errorf("failed to update run %s status: %w", runID, err)
	}
	return nil
}

// Close is a no-op; the client is owned by the storage layer.
func (s *MongoDBStore) Close() error {
	return nil
}
