package metadata

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"agentgw/internal/observability"
)

const writeTimeout = 10 * time.Second

// entry is one queued record awaiting its background write.
type entry struct {
	upload *UploadRecord
	run    *RunRecord
}

// AsyncRecorder queues records on a buffered channel and writes them from a
// background goroutine, so a slow disk or database never delays the
// caller-visible result. Write failures are logged and counted, never
// propagated: the parent operation's external call already succeeded.
type AsyncRecorder struct {
	store  Store
	buffer chan entry
	done   chan struct{}
	wg     sync.WaitGroup
	writes sync.WaitGroup // tracks in-flight Record calls
	closed atomic.Bool
}

// NewAsyncRecorder creates a recorder backed by the given store.
// The recorder starts a background goroutine for writes.
func NewAsyncRecorder(store Store, bufferSize int) *AsyncRecorder {
	if bufferSize <= 0 {
		bufferSize = 256
	}

	r := &AsyncRecorder{
		store:  store,
		buffer: make(chan entry, bufferSize),
		done:   make(chan struct{}),
	}

	r.wg.Add(1)
	go r.writeLoop()

	return r
}

// RecordUpload queues an upload record. Non-blocking: if the buffer is full
// or the recorder is closed, the record is dropped with a warning.
func (r *AsyncRecorder) RecordUpload(rec *UploadRecord) {
	if rec == nil {
		return
	}
	r.enqueue(entry{upload: rec}, "upload", rec.FileID)
}

// RecordRun queues a run record. Same non-blocking semantics as RecordUpload.
func (r *AsyncRecorder) RecordRun(rec *RunRecord) {
	if rec == nil {
		return
	}
	r.enqueue(entry{run: rec}, "run", rec.RunID)
}

func (r *AsyncRecorder) enqueue(e entry, kind, id string) {
	if r.closed.Load() {
		return
	}

	// Track this call so Close cannot close the buffer mid-send.
	r.writes.Add(1)
	defer r.writes.Done()

	// Close() may have set closed between the first check and Add.
	if r.closed.Load() {
		return
	}

	select {
	case r.buffer <- e:
	default:
		observability.MetadataEntriesDropped.WithLabelValues(kind).Inc()
		slog.Warn("metadata buffer full, dropping record", "kind", kind, "id", id)
	}
}

// Close stops the recorder and drains queued records.
// Close is idempotent and safe to call multiple times.
func (r *AsyncRecorder) Close() error {
	if r.closed.Swap(true) {
		return nil
	}

	// Wait for in-flight Record calls before closing the buffer.
	r.writes.Wait()

	close(r.done)
	r.wg.Wait()

	return r.store.Close()
}

// writeLoop runs in the background and writes queued records one at a time.
func (r *AsyncRecorder) writeLoop() {
	defer r.wg.Done()

	for {
		select {
		case e := <-r.buffer:
			r.write(e)

		case <-r.done:
			// Shutdown: stop accepting and drain what is queued.
			close(r.buffer)
			for e := range r.buffer {
				r.write(e)
			}
			return
		}
	}
}

func (r *AsyncRecorder) write(e entry) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	switch {
	case e.upload != nil:
		slog.Debug("persisting upload metadata", "file_id", e.upload.FileID)
		if err := r.store.LogUpload(ctx, e.upload); err != nil {
			observability.MetadataWriteFailures.WithLabelValues("upload").Inc()
			slog.Error("failed to persist upload metadata", "file_id", e.upload.FileID, "error", err)
		}
	case e.run != nil:
		slog.Debug("persisting run metadata", "run_id", e.run.RunID)
		if err := r.store.LogRun(ctx, e.run); err != nil {
			observability.MetadataWriteFailures.WithLabelValues("run").Inc()
			slog.Error("failed to persist run metadata", "run_id", e.run.RunID, "error", err)
		}
	}
}
