// Package server provides HTTP handlers and server setup for the
// accounting agents gateway.
package server

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"agentgw/internal/core"
)

// allowedUploadTypes are the spreadsheet content types accepted by the
// upload endpoint.
var allowedUploadTypes = map[string]struct{}{
	"text/csv":                 {},
	"application/vnd.ms-excel": {},
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": {},
}

// AgentService is the orchestration surface the handlers depend on.
type AgentService interface {
	UploadSource(ctx context.Context, src io.Reader, filename, contentType, provider string) (*core.UploadResult, error)
	StartRun(ctx context.Context, req *core.RunRequest) (*core.RunResult, error)
}

// RunStatusUpdater applies out-of-band run status changes to the metadata
// store. Satisfied by metadata.Store.
type RunStatusUpdater interface {
	UpdateRunStatus(ctx context.Context, runID, status string) error
}

// Handler holds the HTTP handlers
type Handler struct {
	service     AgentService
	environment string
	runStatus   RunStatusUpdater
}

// NewHandler creates a new handler. runStatus may be nil when metadata
// persistence is disabled; the status hook then reports 503.
func NewHandler(service AgentService, environment string, runStatus RunStatusUpdater) *Handler {
	return &Handler{
		service:     service,
		environment: environment,
		runStatus:   runStatus,
	}
}

// Health handles GET /health
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":      "ok",
		"environment": h.environment,
	})
}

// Upload handles POST /api/uploads
func (h *Handler) Upload(c echo.Context) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return handleError(c, core.NewInvalidRequestError("missing file field: "+err.Error(), err))
	}

	contentType := fileHeader.Header.Get("Content-Type")
	if _, ok := allowedUploadTypes[contentType]; !ok {
		return handleError(c, core.NewInvalidRequestErrorWithStatus(
			http.StatusUnsupportedMediaType, "Only CSV or XLSX files are supported.", nil))
	}

	src, err := fileHeader.Open()
	if err != nil {
		return handleError(c, core.NewInvalidRequestError("failed to open uploaded file: "+err.Error(), err))
	}
	defer func() {
		_ = src.Close() //nolint:errcheck
	}()

	provider := c.FormValue("provider")
	if provider == "" {
		provider = c.QueryParam("provider")
	}

	result, err := h.service.UploadSource(c.Request().Context(), src, fileHeader.Filename, contentType, provider)
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(http.StatusCreated, result)
}

// CreateRun handles POST /api/runs
func (h *Handler) CreateRun(c echo.Context) error {
	var req core.RunRequest
	if err := c.Bind(&req); err != nil {
		return handleError(c, core.NewInvalidRequestError("invalid request body: "+err.Error(), err))
	}

	if len(req.FileIDs) == 0 {
		return handleError(c, core.NewInvalidRequestError("file_ids must contain at least one entry", nil))
	}

	result, err := h.service.StartRun(c.Request().Context(), &req)
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(http.StatusOK, result)
}

// UpdateRunStatus handles PUT /api/runs/:run_id/status. This is the only
// write path that mutates a persisted run after creation.
func (h *Handler) UpdateRunStatus(c echo.Context) error {
	var req struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		return handleError(c, core.NewInvalidRequestError("invalid request body: "+err.Error(), err))
	}

	if !core.ValidRunStatus(req.Status) {
		return handleError(c, core.NewInvalidRequestError("unknown run status: "+req.Status, nil))
	}

	if h.runStatus == nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]any{
			"error": map[string]any{
				"type":    "configuration_error",
				"message": "metadata persistence is disabled",
			},
		})
	}

	if err := h.runStatus.UpdateRunStatus(c.Request().Context(), c.Param("run_id"), req.Status); err != nil {
		return handleError(c, err)
	}

	return c.NoContent(http.StatusNoContent)
}

// handleError converts gateway errors to appropriate HTTP responses
func handleError(c echo.Context, err error) error {
	var gatewayErr *core.GatewayError
	if errors.As(err, &gatewayErr) {
		return c.JSON(gatewayErr.HTTPStatusCode(), gatewayErr.ToJSON())
	}

	return c.JSON(http.StatusInternalServerError, map[string]any{
		"error": map[string]any{
			"type":    "internal_error",
			"message": "an unexpected error occurred",
		},
	})
}
