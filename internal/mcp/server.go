// Package mcp exposes the knowledge base as a Model Context Protocol
// server over stdio, so external MCP clients (editors, other agents) can
// query and extend the same knowledge the local agents use.
package mcp

import (
	"context"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/paperbase/paperbase/internal/kb"
	"github.com/paperbase/paperbase/internal/log"
)

// Config holds MCP server configuration.
type Config struct {
	Name    string
	Version string
	Logger  log.Logger

	// Service is the knowledge base façade. Required.
	Service *kb.Service

	// Bridge forwards ask_agent calls to a running agent API. Optional;
	// nil leaves the ask_agent tool unregistered.
	Bridge *Bridge
}

// Server wraps the MCP SDK server and the knowledge base.
type Server struct {
	mcpServer *mcpsdk.Server
	service   *kb.Service
	bridge    *Bridge
	logger    log.Logger
}

// NewServer creates an MCP server with all tools registered.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("server name is required")
	}
	if cfg.Version == "" {
		return nil, fmt.Errorf("server version is required")
	}
	if cfg.Service == nil {
		return nil, fmt.Errorf("knowledge base service is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	mcpServer := mcpsdk.NewServer(&mcpsdk.Implementation{
		Name:    cfg.Name,
		Version: cfg.Version,
	}, nil)

	s := &Server{
		mcpServer: mcpServer,
		service:   cfg.Service,
		bridge:    cfg.Bridge,
		logger:    logger,
	}

	if err := s.registerTools(); err != nil {
		return nil, fmt.Errorf("registering tools: %w", err)
	}
	return s, nil
}

// Run starts the MCP server on the given transport. Blocks until the
// transport closes or ctx is canceled.
func (s *Server) Run(ctx context.Context, transport mcpsdk.Transport) error {
	s.logger.Info("mcp server starting")
	return s.mcpServer.Run(ctx, transport)
}

func (s *Server) registerTools() error {
	if err := s.registerGreetings(); err != nil {
		return err
	}
	if err := s.registerKnowledge(); err != nil {
		return err
	}
	if s.bridge != nil {
		if err := s.registerAskAgent(); err != nil {
			return err
		}
	}
	return nil
}

// GreetInput names the person to greet.
type GreetInput struct {
	Name string `json:"name" jsonschema:"Name of the person to greet"`
}

// registerGreetings registers the greet and bye handshake tools clients
// use to verify the server is alive.
func (s *Server) registerGreetings() error {
	greetSchema, err := jsonschema.For[GreetInput](nil)
	if err != nil {
		return fmt.Errorf("creating greet schema: %w", err)
	}

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "greet",
		Description: "Greet a user by name.",
		InputSchema: greetSchema,
	}, func(ctx context.Context, req *mcpsdk.CallToolRequest, in GreetInput) (*mcpsdk.CallToolResult, any, error) {
		name := in.Name
		if name == "" {
			name = "there"
		}
		return textResult(fmt.Sprintf("Hello, %s!", name)), nil, nil
	})

	byeSchema, err := jsonschema.For[GreetInput](nil)
	if err != nil {
		return fmt.Errorf("creating bye schema: %w", err)
	}

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "bye",
		Description: "Say goodbye to a user by name.",
		InputSchema: byeSchema,
	}, func(ctx context.Context, req *mcpsdk.CallToolRequest, in GreetInput) (*mcpsdk.CallToolResult, any, error) {
		name := in.Name
		if name == "" {
			name = "there"
		}
		return textResult(fmt.Sprintf("Goodbye, %s!", name)), nil, nil
	})

	return nil
}

// textResult builds a plain text tool result.
func textResult(text string) *mcpsdk.CallToolResult {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: text}},
	}
}

// errorResult builds a tool result flagged as an error. Used for expected
// domain failures; transport errors propagate as Go errors instead.
func errorResult(text string) *mcpsdk.CallToolResult {
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: text}},
		IsError: true,
	}
}
