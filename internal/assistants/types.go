package assistants

// Wire types for the external provider's Threads/Runs API. Only the
// request side is modeled; responses are returned as raw JSON and the
// callers extract the handful of fields they need.

// ThreadCreateRequest creates a thread seeded with one or more messages.
type ThreadCreateRequest struct {
	Messages []ThreadMessage `json:"messages"`
}

// ThreadMessage is a single message inside a thread.
type ThreadMessage struct {
	Role        string           `json:"role"`
	Content     []MessageContent `json:"content"`
	Attachments []Attachment     `json:"attachments,omitempty"`
}

// MessageContent is one content block of a message.
type MessageContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Attachment references a previously uploaded file.
type Attachment struct {
	FileID string `json:"file_id"`
}

// RunCreateRequest starts a run against a thread.
type RunCreateRequest struct {
	AssistantID    string            `json:"assistant_id"`
	Metadata       map[string]string `json:"metadata,omitempty"`
	ResponseFormat map[string]any    `json:"response_format,omitempty"`
	Instructions   string            `json:"instructions,omitempty"`
}
