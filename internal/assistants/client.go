// Package assistants provides the HTTP client for the external provider's
// Files and Threads/Runs APIs.
//
// The client performs request building, authentication, and the error
// classification the orchestration layer depends on: non-2xx responses
// become upstream status errors carrying a truncated body, transport
// failures become connectivity errors. Successful bodies are returned raw.
package assistants

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"agentgw/internal/core"
	"agentgw/internal/httpclient"
	"agentgw/internal/observability"
)

const (
	// betaHeader opts requests into the provider's assistants API surface.
	betaHeader = "assistants=v2"

	uploadPurpose = "assistants"
)

// Config holds configuration for the assistants client
type Config struct {
	// BaseURL is the API base URL, without a trailing slash
	BaseURL string

	// APIKey is the bearer credential
	APIKey string

	// Timeout bounds each attempt (default: 60s)
	Timeout time.Duration

	// ConnectRetries is the number of extra attempts after a network-level
	// failure. Non-2xx responses are never retried. Default 0: a single
	// failed attempt surfaces immediately.
	ConnectRetries int

	// InitialBackoff is the delay before the first connectivity retry,
	// doubled per attempt (default: 1s)
	InitialBackoff time.Duration
}

// Client is an HTTP client for the external provider
type Client struct {
	httpClient *http.Client
	cfg        Config
}

// New creates a new assistants client
func New(cfg Config) *Client {
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 1 * time.Second
	}
	return &Client{
		httpClient: httpclient.NewWithTimeout(cfg.Timeout),
		cfg:        cfg,
	}
}

// NewWithHTTPClient creates a new assistants client with a custom HTTP client.
// If httpClient is nil, http.DefaultClient is used.
func NewWithHTTPClient(httpClient *http.Client, cfg Config) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 1 * time.Second
	}
	return &Client{
		httpClient: httpClient,
		cfg:        cfg,
	}
}

// BaseURL returns the configured base URL
func (c *Client) BaseURL() string {
	return c.cfg.BaseURL
}

// UploadFile uploads file content to POST /files with purpose=assistants
// and returns the raw response body.
func (c *Client) UploadFile(ctx context.Context, filename, contentType string, content []byte) ([]byte, error) {
	body, formContentType, err := buildMultipart(filename, contentType, content)
	if err != nil {
		return nil, core.NewInvalidRequestError("failed to encode upload form: "+err.Error(), err)
	}

	return c.do(ctx, "files API", func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/files", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", formContentType)
		c.setHeaders(req)
		return req, nil
	})
}

// CreateThread creates a conversation thread seeded with the given messages
// via POST /threads and returns the raw response body.
func (c *Client) CreateThread(ctx context.Context, req *ThreadCreateRequest) ([]byte, error) {
	return c.postJSON(ctx, "threads API", "/threads", req)
}

// CreateRun starts a run against an existing thread via
// POST /threads/{id}/runs and returns the raw response body.
func (c *Client) CreateRun(ctx context.Context, threadID string, req *RunCreateRequest) ([]byte, error) {
	return c.postJSON(ctx, "runs API", "/threads/"+threadID+"/runs", req)
}

// setHeaders sets the authentication headers required by the provider
func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("OpenAI-Beta", betaHeader)
}

func (c *Client) postJSON(ctx context.Context, endpointName, endpoint string, body any) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, core.NewInvalidRequestError("failed to marshal request: "+err.Error(), err)
	}

	return c.do(ctx, endpointName, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+endpoint, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		c.setHeaders(req)
		return req, nil
	})
}

// do executes the request, retrying connectivity failures only when
// configured. The request is rebuilt per attempt so the body reader is
// fresh each time.
func (c *Client) do(ctx context.Context, endpointName string, build func() (*http.Request, error)) ([]byte, error) {
	maxAttempts := c.cfg.ConnectRetries + 1
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			backoff := c.cfg.InitialBackoff << (attempt - 1)
			select {
			case <-ctx.Done():
				return nil, core.NewConnectivityError(endpointName, ctx.Err())
			case <-time.After(backoff):
			}
		}

		req, err := build()
		if err != nil {
			return nil, core.NewInvalidRequestError("failed to build request: "+err.Error(), err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = core.NewConnectivityError(endpointName, err)
			observability.UpstreamRequests.WithLabelValues(endpointName, "connectivity_error").Inc()
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			lastErr = core.NewConnectivityError(endpointName, readErr)
			observability.UpstreamRequests.WithLabelValues(endpointName, "connectivity_error").Inc()
			continue
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			observability.UpstreamRequests.WithLabelValues(endpointName, "upstream_status_error").Inc()
			return nil, core.NewUpstreamStatusError(endpointName, resp.StatusCode, body)
		}

		observability.UpstreamRequests.WithLabelValues(endpointName, "ok").Inc()
		return body, nil
	}

	return nil, lastErr
}

// buildMultipart encodes the upload form: the purpose field plus the file
// part carrying the caller-supplied content type.
func buildMultipart(filename, contentType string, content []byte) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := w.WriteField("purpose", uploadPurpose); err != nil {
		return nil, "", err
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, escapeQuotes(filename)))
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(content); err != nil {
		return nil, "", err
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
