// Package main is the entry point for the accounting agents gateway.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lmittmann/tint"

	"agentgw/config"
	"agentgw/internal/agents"
	"agentgw/internal/assistants"
	"agentgw/internal/metadata"
	"agentgw/internal/server"
)

func main() {
	// Load configuration first so the log handler can follow it
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	setupLogging(cfg.LogFormat)

	slog.Info("starting agentgw", "environment", cfg.Environment)

	if cfg.OpenAI.APIKey == "" {
		// Not fatal: requests fail with a configuration error instead,
		// so the health endpoint stays usable.
		slog.Warn("OPENAI_API_KEY not set - upload and run requests will be rejected")
	}
	if cfg.OpenAI.AssistantID == "" {
		slog.Warn("OPENAI_ASSISTANT_ID not set - run requests will be rejected")
	}

	// Initialize metadata persistence
	metadataResult, err := metadata.New(context.Background(), cfg)
	if err != nil {
		slog.Error("failed to initialize metadata store", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := metadataResult.Close(); err != nil {
			slog.Error("metadata close error", "error", err)
		}
	}()

	if cfg.Metadata.Enabled {
		slog.Info("metadata persistence enabled",
			"storage_type", cfg.Storage.Type,
			"buffer_size", cfg.Metadata.BufferSize,
		)
	} else {
		slog.Info("metadata persistence disabled")
	}

	// Assemble the orchestration layer
	client := assistants.New(assistants.Config{
		BaseURL:        cfg.OpenAI.BaseURL,
		APIKey:         cfg.OpenAI.APIKey,
		Timeout:        cfg.OpenAI.Timeout,
		ConnectRetries: cfg.OpenAI.ConnectRetries,
	})
	service := agents.New(cfg.OpenAI, client, metadataResult.Recorder)

	// Create and start server
	serverCfg := &server.Config{
		Environment:      cfg.Environment,
		CORSAllowOrigins: cfg.Server.CORSAllowOrigins,
		MetricsEnabled:   cfg.Metrics.Enabled,
		MetricsEndpoint:  cfg.Metrics.Endpoint,
		BodySizeLimit:    cfg.Server.BodySizeLimit,
	}
	var runStatus server.RunStatusUpdater
	if metadataResult.Store != nil {
		runStatus = metadataResult.Store
	}
	srv := server.New(service, runStatus, serverCfg)

	// Handle graceful shutdown
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		slog.Info("shutting down server...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	addr := ":" + cfg.Server.Port
	slog.Info("starting server", "address", addr)
	if err := srv.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped")
}

// setupLogging installs the default slog handler: JSON for deployments,
// tint for readable local output.
func setupLogging(format string) {
	var handler slog.Handler
	switch format {
	case "pretty":
		handler = tint.NewHandler(os.Stdout, &tint.Options{
			TimeFormat: time.Kitchen,
		})
	default:
		handler = slog.NewJSONHandler(os.Stdout, nil)
	}
	slog.SetDefault(slog.New(handler))
}
