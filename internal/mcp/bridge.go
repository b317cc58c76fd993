package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/google/uuid"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/paperbase/paperbase/internal/log"
)

// ErrBridgeFailed indicates the agent API could not serve the request.
var ErrBridgeFailed = errors.New("agent bridge request failed")

// Bridge forwards questions to a running agent API over HTTP. The MCP
// process has no model access of its own; delegation happens by creating
// a session and posting a run request, the same protocol the API serves.
type Bridge struct {
	baseURL string
	app     string
	userID  string
	session string
	http    *http.Client
	logger  log.Logger
}

// BridgeConfig configures the agent bridge.
type BridgeConfig struct {
	// BaseURL is the agent API address, e.g. http://127.0.0.1:3400.
	BaseURL string

	// App is the application name in runner paths.
	App string

	// UserID identifies this MCP process to the runner. Defaults to a
	// generated ID.
	UserID string

	// Session pins the session name, letting a restarted bridge resume
	// an existing conversation. Defaults to a generated ID.
	Session string

	// HTTPClient overrides the default client. Used by tests.
	HTTPClient *http.Client
}

// NewBridge creates a bridge. Each bridge keeps one session for its
// lifetime so the agent sees a continuous conversation.
func NewBridge(cfg BridgeConfig, logger log.Logger) (*Bridge, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("agent API base URL is required")
	}
	if cfg.App == "" {
		cfg.App = "knowledge_base"
	}
	if cfg.UserID == "" {
		cfg.UserID = "mcp_" + uuid.New().String()[:8]
	}
	if cfg.Session == "" {
		cfg.Session = "s_" + uuid.New().String()[:8]
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 5 * time.Minute}
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Bridge{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		app:     cfg.App,
		userID:  cfg.UserID,
		session: cfg.Session,
		http:    cfg.HTTPClient,
		logger:  logger,
	}, nil
}

// Ask creates the session if needed and runs one agent turn.
func (b *Bridge) Ask(ctx context.Context, query string) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", errors.New("query must not be empty")
	}

	if err := b.ensureSession(ctx); err != nil {
		return "", err
	}

	payload := map[string]any{
		"app_name":   b.app,
		"user_id":    b.userID,
		"session_id": b.session,
		"new_message": map[string]any{
			"role":  "user",
			"parts": []map[string]string{{"text": query}},
		},
	}
	body, err := b.post(ctx, "/run", payload)
	if err != nil {
		return "", err
	}

	var events []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	}
	if err := json.Unmarshal(body, &events); err != nil {
		return "", fmt.Errorf("decoding run response: %w", err)
	}
	if len(events) == 0 {
		return "", fmt.Errorf("%w: empty event list", ErrBridgeFailed)
	}

	// The final event carries the agent's answer.
	last := events[len(events)-1]
	var sb strings.Builder
	for _, part := range last.Content.Parts {
		sb.WriteString(part.Text)
	}
	return sb.String(), nil
}

func (b *Bridge) ensureSession(ctx context.Context) error {
	path := fmt.Sprintf("/apps/%s/users/%s/sessions/%s", b.app, b.userID, b.session)
	if _, err := b.post(ctx, path, struct{}{}); err != nil {
		return fmt.Errorf("creating agent session: %w", err)
	}
	return nil
}

func (b *Bridge) post(ctx context.Context, path string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBridgeFailed, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		b.logger.Warn("agent bridge request failed", "path", path, "status", resp.StatusCode)
		return nil, fmt.Errorf("%w: %s returned %d", ErrBridgeFailed, path, resp.StatusCode)
	}
	return body, nil
}

// AskAgentInput carries a question for the knowledge base agent.
type AskAgentInput struct {
	Query string `json:"query" jsonschema:"Question or task for the knowledge base agent"`
}

// registerAskAgent registers the ask_agent delegation tool.
func (s *Server) registerAskAgent() error {
	schema, err := jsonschema.For[AskAgentInput](nil)
	if err != nil {
		return fmt.Errorf("creating ask_agent schema: %w", err)
	}

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "knowledge_base_agent",
		Description: "Ask the knowledge base agent team a question. The agents can search stored papers, research new ones and save knowledge.",
		InputSchema: schema,
	}, func(ctx context.Context, req *mcpsdk.CallToolRequest, in AskAgentInput) (*mcpsdk.CallToolResult, any, error) {
		answer, err := s.bridge.Ask(ctx, in.Query)
		if err != nil {
			return errorResult(fmt.Sprintf("agent request failed: %v", err)), nil, nil
		}
		return textResult(answer), nil, nil
	})
	return nil
}
