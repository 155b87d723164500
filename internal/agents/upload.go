package agents

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/tidwall/gjson"

	"agentgw/internal/core"
	"agentgw/internal/metadata"
)

// UploadSource reads the source document and uploads it to the provider's
// files API. The returned result carries the provider-assigned file id,
// which the caller passes to StartRun. Metadata logging is best-effort and
// never affects the returned result.
func (s *Service) UploadSource(ctx context.Context, src io.Reader, filename, contentType, provider string) (*core.UploadResult, error) {
	if s.cfg.APIKey == "" {
		return nil, core.NewConfigurationError("OPENAI_API_KEY is not configured")
	}

	if filename == "" {
		filename = "upload"
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	content, err := io.ReadAll(src)
	if err != nil {
		return nil, core.NewInvalidRequestError("failed to read uploaded file: "+err.Error(), err)
	}

	slog.Info("uploading source document",
		"filename", filename,
		"content_type", contentType,
		"bytes", len(content))

	body, err := s.client.UploadFile(ctx, filename, contentType, content)
	if err != nil {
		return nil, err
	}

	fileID := gjson.GetBytes(body, "id").String()
	if fileID == "" {
		return nil, core.NewProtocolError("files API response did not include a file id")
	}
	if echoed := gjson.GetBytes(body, "filename").String(); echoed != "" {
		filename = echoed
	}

	result := &core.UploadResult{
		FileID:      fileID,
		Filename:    filename,
		ContentType: contentType,
		Bytes:       len(content),
		UploadedAt:  time.Now().UTC(),
	}
	if provider != "" {
		result.Provider = &provider
	}

	s.recorder.RecordUpload(&metadata.UploadRecord{
		FileID:      result.FileID,
		Filename:    result.Filename,
		Provider:    result.Provider,
		ContentType: result.ContentType,
		Bytes:       result.Bytes,
		UploadedAt:  result.UploadedAt,
	})

	return result, nil
}
