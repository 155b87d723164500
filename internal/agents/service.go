// Package agents coordinates file uploads and agent run creation against
// the external provider, logging metadata for each accepted operation.
package agents

import (
	"agentgw/config"
	"agentgw/internal/assistants"
	"agentgw/internal/metadata"
)

const (
	// attachmentPrompt seeds the thread's single user message.
	attachmentPrompt = "Please review the attached spreadsheets. Follow the run instructions to generate the required financial summaries."

	// defaultRunInstructions is sent when the caller supplies no instructions.
	defaultRunInstructions = "Read the uploaded spreadsheets and produce the structured JSON outputs defined by the schema."
)

// Service is the orchestration layer for upload and run workflows.
// Dependencies are injected at construction; there is no shared mutable
// state, so a single Service serves concurrent requests without locking.
type Service struct {
	cfg      config.OpenAIConfig
	client   *assistants.Client
	recorder metadata.Recorder
}

// New creates a new Service. A nil recorder disables metadata logging.
func New(cfg config.OpenAIConfig, client *assistants.Client, recorder metadata.Recorder) *Service {
	if recorder == nil {
		recorder = metadata.NoopRecorder{}
	}
	return &Service{
		cfg:      cfg,
		client:   client,
		recorder: recorder,
	}
}
