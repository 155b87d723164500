package metadata

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// stubStore collects writes and can be made to fail.
type stubStore struct {
	mu      sync.Mutex
	uploads []*UploadRecord
	runs    []*RunRecord
	failAll bool
}

func (s *stubStore) LogUpload(_ context.Context, rec *UploadRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return errors.New("disk full")
	}
	s.uploads = append(s.uploads, rec)
	return nil
}

func (s *stubStore) LogRun(_ context.Context, rec *RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return errors.New("disk full")
	}
	s.runs = append(s.runs, rec)
	return nil
}

func (s *stubStore) UpdateRunStatus(_ context.Context, _, _ string) error { return nil }
func (s *stubStore) Close() error                                         { return nil }

func (s *stubStore) counts() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.uploads), len(s.runs)
}

func TestAsyncRecorder_WritesQueuedRecords(t *testing.T) {
	store := &stubStore{}
	rec := NewAsyncRecorder(store, 16)

	rec.RecordUpload(&UploadRecord{FileID: "file_1", Filename: "a.csv", ContentType: "text/csv", Bytes: 10, UploadedAt: time.Now()})
	rec.RecordRun(&RunRecord{RunID: "run_1", ThreadID: "thread_1", Status: "queued", StartedAt: time.Now()})

	// Close drains the buffer before returning.
	if err := rec.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	uploads, runs := store.counts()
	if uploads != 1 {
		t.Errorf("uploads written = %d, want 1", uploads)
	}
	if runs != 1 {
		t.Errorf("runs written = %d, want 1", runs)
	}
}

func TestAsyncRecorder_StoreFailureIsSwallowed(t *testing.T) {
	store := &stubStore{failAll: true}
	rec := NewAsyncRecorder(store, 16)

	// Record never reports failure to the caller; the write error is
	// logged and counted in the background.
	rec.RecordUpload(&UploadRecord{FileID: "file_1", Filename: "a.csv", ContentType: "text/csv", UploadedAt: time.Now()})

	if err := rec.Close(); err != nil {
		t.Fatalf("Close should not surface store write errors: %v", err)
	}
}

func TestAsyncRecorder_RecordAfterCloseIsIgnored(t *testing.T) {
	store := &stubStore{}
	rec := NewAsyncRecorder(store, 16)

	if err := rec.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// Must neither panic nor write.
	rec.RecordUpload(&UploadRecord{FileID: "file_late", UploadedAt: time.Now()})

	uploads, _ := store.counts()
	if uploads != 0 {
		t.Errorf("uploads written after close = %d, want 0", uploads)
	}
}

func TestAsyncRecorder_CloseIsIdempotent(t *testing.T) {
	rec := NewAsyncRecorder(&stubStore{}, 4)

	if err := rec.Close(); err != nil {
		t.Fatalf("first Close failed: %v", err)
	}
	if err := rec.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
}

func TestAsyncRecorder_NilRecordsIgnored(t *testing.T) {
	store := &stubStore{}
	rec := NewAsyncRecorder(store, 4)

	rec.RecordUpload(nil)
	rec.RecordRun(nil)

	if err := rec.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	uploads, runs := store.counts()
	if uploads != 0 || runs != 0 {
		t.Errorf("writes = (%d, %d), want (0, 0)", uploads, runs)
	}
}

func TestNoopRecorder(t *testing.T) {
	var rec Recorder = NoopRecorder{}
	rec.RecordUpload(&UploadRecord{FileID: "file_1"})
	rec.RecordRun(&RunRecord{RunID: "run_1"})
	if err := rec.Close(); err != nil {
		t.Errorf("Close() = %v, want nil", err)
	}
}
