// Package metadata provides durable, best-effort logging of upload and run
// events. The store is a write-only log from the caller's perspective: the
// only mutation after insert is the run status point-write.
package metadata

import (
	"context"
	"time"
)

// UploadRecord is the metadata persisted for one successful file upload.
type UploadRecord struct {
	FileID      string    `bson:"file_id"`
	Filename    string    `bson:"filename"`
	Provider    *string   `bson:"provider,omitempty"`
	ContentType string    `bson:"content_type"`
	Bytes       int       `bson:"bytes"`
	UploadedAt  time.Time `bson:"uploaded_at"`
}

// RunRecord is the metadata persisted when a run is accepted upstream.
type RunRecord struct {
	RunID         string            `bson:"run_id"`
	ThreadID      string            `bson:"thread_id"`
	AssistantID   string            `bson:"assistant_id,omitempty"`
	Status        string            `bson:"status"`
	SchemaProfile string            `bson:"schema_profile,omitempty"`
	Metadata      map[string]string `bson:"metadata,omitempty"`
	StartedAt     time.Time         `bson:"started_at"`
}

// Store persists upload and run records. LogUpload and LogRun have
// insert-or-replace semantics keyed by the natural id: calling either twice
// with the same id leaves exactly one record, the second call winning.
// Implementations must be safe for concurrent use.
type Store interface {
	LogUpload(ctx context.Context, rec *UploadRecord) error
	LogRun(ctx context.Context, rec *RunRecord) error

	// UpdateRunStatus updates the status of an existing run. A missing
	// run_id silently affects zero rows; it is not an error.
	UpdateRunStatus(ctx context.Context, runID, status string) error

	Close() error
}

// Recorder accepts records on a best-effort, fire-and-forget basis.
// Calls never block the submitting flow and never report failure; a write
// error must not fail the parent operation's already-successful external
// call. Failures are logged and counted instead.
type Recorder interface {
	RecordUpload(rec *UploadRecord)
	RecordRun(rec *RunRecord)
	Close() error
}

// NoopRecorder is used when metadata persistence is disabled.
type NoopRecorder struct{}

// RecordUpload does nothing
func (NoopRecorder) RecordUpload(_ *UploadRecord) {}

// RecordRun does nothing
func (NoopRecorder) RecordRun(_ *RunRecord) {}

// Close does nothing
func (NoopRecorder) Close() error { return nil }
