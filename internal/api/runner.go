package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/paperbase/paperbase/internal/agent"
)

// AgentExecutor runs the master agent for one user turn. Implemented by
// the agent runner; tests substitute a stub.
type AgentExecutor interface {
	Ask(ctx context.Context, query string) (string, error)
}

// runnerHandler serves the agent runner bridge: session creation and run
// requests in the shape external MCP clients send them.
type runnerHandler struct {
	executor AgentExecutor
	logger   *slog.Logger

	mu       sync.Mutex
	sessions map[string]sessionInfo
}

type sessionInfo struct {
	App     string    `json:"app_name"`
	UserID  string    `json:"user_id"`
	Created time.Time `json:"created_at"`
}

func newRunnerHandler(executor AgentExecutor, logger *slog.Logger) *runnerHandler {
	return &runnerHandler{
		executor: executor,
		logger:   logger,
		sessions: make(map[string]sessionInfo),
	}
}

func sessionKey(app, user, session string) string {
	return app + "/" + user + "/" + session
}

// createSession handles POST /apps/{app}/users/{user}/sessions/{session}.
// Creating an existing session is idempotent.
func (h *runnerHandler) createSession(w http.ResponseWriter, r *http.Request) {
	app := r.PathValue("app")
	user := r.PathValue("user")
	session := r.PathValue("session")
	if app == "" || user == "" || session == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "app, user and session are required")
		return
	}

	h.mu.Lock()
	key := sessionKey(app, user, session)
	info, exists := h.sessions[key]
	if !exists {
		info = sessionInfo{App: app, UserID: user, Created: time.Now().UTC()}
		h.sessions[key] = info
	}
	h.mu.Unlock()

	h.logger.Debug("session ready", "app", app, "user", user, "session", session, "existed", exists)
	writeJSON(w, http.StatusOK, map[string]any{
		"id":        session,
		"app_name":  info.App,
		"user_id":   info.UserID,
		"created_at": info.Created,
	})
}

type runPart struct {
	Text string `json:"text"`
}

type runMessage struct {
	Role  string    `json:"role"`
	Parts []runPart `json:"parts"`
}

type runRequest struct {
	AppName    string     `json:"app_name"`
	UserID     string     `json:"user_id"`
	SessionID  string     `json:"session_id"`
	NewMessage runMessage `json:"new_message"`
}

type runEvent struct {
	Author  string     `json:"author"`
	Content runMessage `json:"content"`
}

// run handles POST /run: one master agent turn for an existing session.
func (h *runnerHandler) run(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if !decodeBody(w, r, &req) {
		return
	}

	h.mu.Lock()
	_, exists := h.sessions[sessionKey(req.AppName, req.UserID, req.SessionID)]
	h.mu.Unlock()
	if !exists {
		writeError(w, http.StatusNotFound, "session_not_found", "session does not exist")
		return
	}

	var sb strings.Builder
	for _, part := range req.NewMessage.Parts {
		sb.WriteString(part.Text)
	}
	query := strings.TrimSpace(sb.String())
	if query == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "new_message has no text")
		return
	}

	answer, err := h.executor.Ask(r.Context(), query)
	switch {
	case errors.Is(err, agent.ErrBlocked):
		h.logger.Warn("agent run blocked", "app", req.AppName, "session", req.SessionID, "error", err)
		writeError(w, http.StatusForbidden, "input_blocked", "input rejected by the safety screen")
		return
	case err != nil:
		h.logger.Error("agent run failed", "app", req.AppName, "session", req.SessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "run_failed", "agent run failed")
		return
	}

	writeJSON(w, http.StatusOK, []runEvent{
		{
			Author: "master",
			Content: runMessage{
				Role:  "model",
				Parts: []runPart{{Text: answer}},
			},
		},
	})
}
