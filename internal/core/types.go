package core

import "time"

// Run status values as reported by the external provider.
// This system only ever writes the initial status at creation; later
// transitions arrive through the out-of-band status update hook.
const (
	RunStatusQueued    = "queued"
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
	RunStatusCancelled = "cancelled"
)

// ValidRunStatus reports whether s is a recognized run status.
func ValidRunStatus(s string) bool {
	switch s {
	case RunStatusQueued, RunStatusRunning, RunStatusCompleted, RunStatusFailed, RunStatusCancelled:
		return true
	}
	return false
}

// UploadResult is returned when a file has been uploaded and forwarded
// to the external Files API.
type UploadResult struct {
	FileID      string    `json:"file_id"`
	Filename    string    `json:"filename"`
	Provider    *string   `json:"provider"`
	ContentType string    `json:"content_type"`
	Bytes       int       `json:"bytes"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

// RunRequest is the payload used to start an agent run.
type RunRequest struct {
	FileIDs       []string          `json:"file_ids"`
	Instructions  string            `json:"instructions"`
	SchemaProfile string            `json:"response_schema"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// RunResult is returned once an agent run has been accepted upstream.
type RunResult struct {
	RunID         string            `json:"run_id"`
	Status        string            `json:"status"`
	ThreadID      string            `json:"thread_id"`
	StartedAt     time.Time         `json:"started_at"`
	DashboardURL  string            `json:"dashboard_url,omitempty"`
	AssistantID   string            `json:"assistant_id"`
	SchemaProfile string            `json:"requested_schema"`
	Metadata      map[string]string `json:"metadata"`
}
