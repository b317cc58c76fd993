package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	mcpSdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/paperbase/paperbase/internal/app"
	"github.com/paperbase/paperbase/internal/config"
	"github.com/paperbase/paperbase/internal/mcp"
)

// runMCP starts the MCP server on stdio transport.
// Stdout carries JSON-RPC, so all logging goes to stderr.
func runMCP() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err = cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := slog.Default()
	logger.Info("starting MCP server", "version", Version, "backend", cfg.Backend)

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	// The agent bridge is optional: without a running HTTP server the
	// knowledge tools still work, only knowledge_base_agent is omitted.
	var bridge *mcp.Bridge
	if cfg.AgentURL != "" {
		bridge, err = mcp.NewBridge(mcp.BridgeConfig{
			BaseURL: cfg.AgentURL,
			App:     cfg.AgentApp,
			UserID:  cfg.AgentUserID,
			Session: cfg.AgentSession,
		}, logger)
		if err != nil {
			logger.Warn("agent bridge unavailable", "error", err)
			bridge = nil
		}
	}

	mcpServer, err := mcp.NewServer(mcp.Config{
		Name:    "paperbase",
		Version: Version,
		Logger:  logger,
		Service: a.Service,
		Bridge:  bridge,
	})
	if err != nil {
		return fmt.Errorf("creating MCP server: %w", err)
	}

	logger.Info("MCP server ready", "transport", "stdio")

	if err := mcpServer.Run(ctx, &mcpSdk.StdioTransport{}); err != nil {
		return fmt.Errorf("MCP server: %w", err)
	}
	return nil
}
