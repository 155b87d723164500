package agents

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"agentgw/config"
	"agentgw/internal/assistants"
	"agentgw/internal/core"
	"agentgw/internal/metadata"
)

// captureRecorder records synchronously so tests can assert on records
// without draining an async pipeline.
type captureRecorder struct {
	mu      sync.Mutex
	uploads []*metadata.UploadRecord
	runs    []*metadata.RunRecord
}

func (r *captureRecorder) RecordUpload(rec *metadata.UploadRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.uploads = append(r.uploads, rec)
}

func (r *captureRecorder) RecordRun(rec *metadata.RunRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, rec)
}

func (r *captureRecorder) Close() error { return nil }

func newTestService(t *testing.T, handler http.HandlerFunc) (*Service, *captureRecorder) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := config.OpenAIConfig{
		APIKey:      "sk-test",
		BaseURL:     server.URL,
		AssistantID: "asst_default",
	}
	client := assistants.NewWithHTTPClient(server.Client(), assistants.Config{
		BaseURL: server.URL,
		APIKey:  cfg.APIKey,
	})
	recorder := &captureRecorder{}
	return New(cfg, client, recorder), recorder
}

func TestUploadSource(t *testing.T) {
	svc, recorder := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"file_abc","filename":"q1.csv","bytes":1024}`))
	})

	content := strings.Repeat("r", 1024)
	result, err := svc.UploadSource(context.Background(), strings.NewReader(content), "q1.csv", "text/csv", "")
	if err != nil {
		t.Fatalf("UploadSource failed: %v", err)
	}

	if result.FileID != "file_abc" {
		t.Errorf("FileID = %q", result.FileID)
	}
	if result.Filename != "q1.csv" {
		t.Errorf("Filename = %q", result.Filename)
	}
	if result.Provider != nil {
		t.Errorf("Provider = %v, want nil", *result.Provider)
	}
	if result.Bytes != 1024 {
		t.Errorf("Bytes = %d, want 1024", result.Bytes)
	}
	if result.UploadedAt.IsZero() || result.UploadedAt.Location() != time.UTC {
		t.Errorf("UploadedAt = %v", result.UploadedAt)
	}

	if len(recorder.uploads) != 1 {
		t.Fatalf("uploads recorded = %d", len(recorder.uploads))
	}
	if recorder.uploads[0].FileID != "file_abc" {
		t.Errorf("recorded FileID = %q", recorder.uploads[0].FileID)
	}

	// JSON shape of the result as handed to API callers.
	payload, _ := json.Marshal(result)
	if !strings.Contains(string(payload), `"provider":null`) {
		t.Errorf("payload = %s", payload)
	}
}

func TestUploadSourceProvider(t *testing.T) {
	svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"file_xyz"}`))
	})

	result, err := svc.UploadSource(context.Background(), strings.NewReader("x"), "bank.csv", "text/csv", "chase")
	if err != nil {
		t.Fatalf("UploadSource failed: %v", err)
	}
	if result.Provider == nil || *result.Provider != "chase" {
		t.Errorf("Provider = %v", result.Provider)
	}
}

func TestUploadSourceMissingFileID(t *testing.T) {
	svc, recorder := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"object":"file"}`))
	})

	_, err := svc.UploadSource(context.Background(), strings.NewReader("x"), "q1.csv", "text/csv", "")
	var gwErr *core.GatewayError
	if !errors.As(err, &gwErr) || gwErr.Type != core.ErrorTypeProtocol {
		t.Fatalf("error = %v", err)
	}
	if len(recorder.uploads) != 0 {
		t.Errorf("uploads recorded = %d, want 0", len(recorder.uploads))
	}
}

func TestUploadSourceNoCredential(t *testing.T) {
	svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request should be made without a credential")
	})
	svc.cfg.APIKey = ""

	_, err := svc.UploadSource(context.Background(), strings.NewReader("x"), "q1.csv", "text/csv", "")
	var gwErr *core.GatewayError
	if !errors.As(err, &gwErr) || gwErr.Type != core.ErrorTypeConfiguration {
		t.Fatalf("error = %v", err)
	}
}

// runHandler serves the two-call thread-then-run sequence and captures the
// decoded request bodies.
type runHandler struct {
	mu         sync.Mutex
	threadBody map[string]any
	runBody    map[string]any
	runResp    string
}

func (h *runHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch {
	case r.URL.Path == "/threads":
		_ = json.NewDecoder(r.Body).Decode(&h.threadBody)
		_, _ = w.Write([]byte(`{"id":"thread_1"}`))
	case strings.HasSuffix(r.URL.Path, "/runs"):
		_ = json.NewDecoder(r.Body).Decode(&h.runBody)
		resp := h.runResp
		if resp == "" {
			resp = `{"id":"run_1","status":"queued","created_at":1700000000,"assistant_id":"asst_default"}`
		}
		_, _ = w.Write([]byte(resp))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func TestStartRun(t *testing.T) {
	handler := &runHandler{}
	svc, recorder := newTestService(t, handler.ServeHTTP)

	result, err := svc.StartRun(context.Background(), &core.RunRequest{
		FileIDs:       []string{"file_abc", "file_def"},
		SchemaProfile: "income_cashflow_expense",
		Metadata:      map[string]string{"client": "acme"},
	})
	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}

	if result.RunID != "run_1" || result.ThreadID != "thread_1" {
		t.Errorf("ids = %q / %q", result.RunID, result.ThreadID)
	}
	if result.Status != "queued" {
		t.Errorf("Status = %q", result.Status)
	}
	if want := time.Unix(1700000000, 0).UTC(); !result.StartedAt.Equal(want) {
		t.Errorf("StartedAt = %v, want %v", result.StartedAt, want)
	}
	if result.AssistantID != "asst_default" {
		t.Errorf("AssistantID = %q", result.AssistantID)
	}
	if result.SchemaProfile != "income_cashflow_expense" {
		t.Errorf("SchemaProfile = %q", result.SchemaProfile)
	}
	if result.Metadata["client"] != "acme" {
		t.Errorf("Metadata = %v", result.Metadata)
	}

	// Thread carries one user message with ordered attachments.
	messages := handler.threadBody["messages"].([]any)
	message := messages[0].(map[string]any)
	if message["role"] != "user" {
		t.Errorf("role = %v", message["role"])
	}
	content := message["content"].([]any)[0].(map[string]any)
	if !strings.Contains(content["text"].(string), "attached spreadsheets") {
		t.Errorf("message text = %v", content["text"])
	}
	attachments := message["attachments"].([]any)
	if len(attachments) != 2 {
		t.Fatalf("attachments = %d", len(attachments))
	}
	if fid := attachments[0].(map[string]any)["file_id"]; fid != "file_abc" {
		t.Errorf("first attachment = %v", fid)
	}
	if fid := attachments[1].(map[string]any)["file_id"]; fid != "file_def" {
		t.Errorf("second attachment = %v", fid)
	}

	// Run body carries the assistant, metadata, schema, and instructions.
	if handler.runBody["assistant_id"] != "asst_default" {
		t.Errorf("assistant_id = %v", handler.runBody["assistant_id"])
	}
	md := handler.runBody["metadata"].(map[string]any)
	if md["client"] != "acme" {
		t.Errorf("metadata = %v", md)
	}
	rf := handler.runBody["response_format"].(map[string]any)
	if rf["type"] != "json_schema" {
		t.Errorf("response_format type = %v", rf["type"])
	}
	if handler.runBody["instructions"] == "" {
		t.Error("instructions missing")
	}

	if len(recorder.runs) != 1 {
		t.Fatalf("runs recorded = %d", len(recorder.runs))
	}
	if recorder.runs[0].RunID != "run_1" || recorder.runs[0].Status != "queued" {
		t.Errorf("recorded run = %+v", recorder.runs[0])
	}
}

func TestStartRunDefaults(t *testing.T) {
	handler := &runHandler{runResp: `{"id":"run_2"}`}
	svc, _ := newTestService(t, handler.ServeHTTP)

	before := time.Now().UTC()
	result, err := svc.StartRun(context.Background(), &core.RunRequest{
		FileIDs:      []string{"file_abc"},
		Instructions: "   ",
	})
	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}

	// Blank instructions fall back to the built-in prompt.
	if instr := handler.runBody["instructions"].(string); instr != defaultRunInstructions {
		t.Errorf("instructions = %q", instr)
	}
	// No metadata key when the request carried none.
	if _, ok := handler.runBody["metadata"]; ok {
		t.Error("metadata should be omitted")
	}
	// Missing upstream fields take defaults.
	if result.Status != core.RunStatusQueued {
		t.Errorf("Status = %q", result.Status)
	}
	if result.StartedAt.Before(before) {
		t.Errorf("StartedAt = %v", result.StartedAt)
	}
	if result.AssistantID != "asst_default" {
		t.Errorf("AssistantID = %q", result.AssistantID)
	}
	if result.SchemaProfile != "income_cashflow_expense" {
		t.Errorf("SchemaProfile = %q", result.SchemaProfile)
	}
	if result.Metadata == nil || len(result.Metadata) != 0 {
		t.Errorf("Metadata = %v, want empty map", result.Metadata)
	}
}

func TestStartRunUnknownSchemaProfile(t *testing.T) {
	handler := &runHandler{}
	svc, _ := newTestService(t, handler.ServeHTTP)

	result, err := svc.StartRun(context.Background(), &core.RunRequest{
		FileIDs:       []string{"file_abc"},
		SchemaProfile: "unknown_profile",
	})
	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}
	if _, ok := handler.runBody["response_format"]; ok {
		t.Error("response_format should be omitted for an unknown profile")
	}
	// The requested name is still echoed back.
	if result.SchemaProfile != "unknown_profile" {
		t.Errorf("SchemaProfile = %q", result.SchemaProfile)
	}
}

func TestStartRunMissingConfiguration(t *testing.T) {
	tests := []struct {
		name        string
		apiKey      string
		assistantID string
	}{
		{name: "no api key", apiKey: "", assistantID: "asst_1"},
		{name: "no assistant id", apiKey: "sk-test", assistantID: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
				t.Error("no request should be made")
			})
			svc.cfg.APIKey = tt.apiKey
			svc.cfg.AssistantID = tt.assistantID

			_, err := svc.StartRun(context.Background(), &core.RunRequest{FileIDs: []string{"file_abc"}})
			var gwErr *core.GatewayError
			if !errors.As(err, &gwErr) || gwErr.Type != core.ErrorTypeConfiguration {
				t.Fatalf("error = %v", err)
			}
		})
	}
}

func TestStartRunMissingThreadID(t *testing.T) {
	svc, recorder := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"object":"thread"}`))
	})

	_, err := svc.StartRun(context.Background(), &core.RunRequest{FileIDs: []string{"file_abc"}})
	var gwErr *core.GatewayError
	if !errors.As(err, &gwErr) || gwErr.Type != core.ErrorTypeProtocol {
		t.Fatalf("error = %v", err)
	}
	if len(recorder.runs) != 0 {
		t.Errorf("runs recorded = %d, want 0", len(recorder.runs))
	}
}

func TestStartRunPersistsMetadata(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	db.SetMaxOpenConns(1)

	store, err := metadata.NewSQLiteStore(db)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	recorder := metadata.NewAsyncRecorder(store, 16)

	handler := &runHandler{}
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client := assistants.NewWithHTTPClient(server.Client(), assistants.Config{
		BaseURL: server.URL,
		APIKey:  "sk-test",
	})
	svc := New(config.OpenAIConfig{APIKey: "sk-test", BaseURL: server.URL, AssistantID: "asst_default"}, client, recorder)

	_, err = svc.StartRun(context.Background(), &core.RunRequest{
		FileIDs:  []string{"file_abc"},
		Metadata: map[string]string{"client": "acme"},
	})
	if err != nil {
		t.Fatalf("StartRun failed: %v", err)
	}
	if err := recorder.Close(); err != nil {
		t.Fatalf("close recorder: %v", err)
	}

	var threadID, status, metadataJSON string
	row := db.QueryRow(`SELECT thread_id, status, metadata_json FROM runs WHERE run_id = ?`, "run_1")
	if err := row.Scan(&threadID, &status, &metadataJSON); err != nil {
		t.Fatalf("scan run row: %v", err)
	}
	if threadID != "thread_1" || status != "queued" {
		t.Errorf("row = %q / %q", threadID, status)
	}
	if metadataJSON != `{"client":"acme"}` {
		t.Errorf("metadata_json = %q", metadataJSON)
	}
}
