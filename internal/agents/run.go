package agents

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"agentgw/internal/assistants"
	"agentgw/internal/core"
	"agentgw/internal/metadata"
	"agentgw/internal/schema"
)

// StartRun creates a thread seeded with the uploaded files and starts an
// assistant run on it. The run executes asynchronously upstream; the result
// reflects the provider's initial acknowledgement, not the run outcome.
func (s *Service) StartRun(ctx context.Context, req *core.RunRequest) (*core.RunResult, error) {
	if s.cfg.APIKey == "" {
		return nil, core.NewConfigurationError("OPENAI_API_KEY is not configured")
	}
	if s.cfg.AssistantID == "" {
		return nil, core.NewConfigurationError("OPENAI_ASSISTANT_ID is not configured")
	}

	profile := req.SchemaProfile
	if profile == "" {
		profile = schema.DefaultProfile
	}

	attachments := make([]assistants.Attachment, 0, len(req.FileIDs))
	for _, fileID := range req.FileIDs {
		attachments = append(attachments, assistants.Attachment{FileID: fileID})
	}

	threadBody, err := s.client.CreateThread(ctx, &assistants.ThreadCreateRequest{
		Messages: []assistants.ThreadMessage{
			{
				Role: "user",
				Content: []assistants.MessageContent{
					{Type: "text", Text: attachmentPrompt},
				},
				Attachments: attachments,
			},
		},
	})
	if err != nil {
		return nil, err
	}

	threadID := gjson.GetBytes(threadBody, "id").String()
	if threadID == "" {
		return nil, core.NewProtocolError("threads API response did not include a thread id")
	}

	runReq := &assistants.RunCreateRequest{AssistantID: s.cfg.AssistantID}
	if len(req.Metadata) > 0 {
		runReq.Metadata = req.Metadata
	}
	if format := schema.ResponseFormat(profile); format != nil {
		runReq.ResponseFormat = format
	}
	instructions := strings.TrimSpace(req.Instructions)
	if instructions == "" {
		instructions = defaultRunInstructions
	}
	runReq.Instructions = instructions

	runBody, err := s.client.CreateRun(ctx, threadID, runReq)
	if err != nil {
		return nil, err
	}

	runID := gjson.GetBytes(runBody, "id").String()
	if runID == "" {
		return nil, core.NewProtocolError("runs API response did not include a run id")
	}

	status := gjson.GetBytes(runBody, "status").String()
	if status == "" {
		status = core.RunStatusQueued
	}

	startedAt := time.Now().UTC()
	if created := gjson.GetBytes(runBody, "created_at"); created.Type == gjson.Number {
		startedAt = time.Unix(created.Int(), 0).UTC()
	}

	assistantID := gjson.GetBytes(runBody, "assistant_id").String()
	if assistantID == "" {
		assistantID = s.cfg.AssistantID
	}

	echoedMetadata := req.Metadata
	if echoedMetadata == nil {
		echoedMetadata = map[string]string{}
	}

	result := &core.RunResult{
		RunID:         runID,
		Status:        status,
		ThreadID:      threadID,
		StartedAt:     startedAt,
		DashboardURL:  gjson.GetBytes(runBody, "dashboard_url").String(),
		AssistantID:   assistantID,
		SchemaProfile: profile,
		Metadata:      echoedMetadata,
	}

	slog.Info("agent run started",
		"run_id", result.RunID,
		"thread_id", result.ThreadID,
		"status", result.Status,
		"files", len(req.FileIDs))

	s.recorder.RecordRun(&metadata.RunRecord{
		RunID:         result.RunID,
		ThreadID:      result.ThreadID,
		AssistantID:   result.AssistantID,
		Status:        result.Status,
		SchemaProfile: result.SchemaProfile,
		Metadata:      req.Metadata,
		StartedAt:     result.StartedAt,
	})

	return result, nil
}
