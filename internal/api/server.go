// Package api is the JSON HTTP surface of the knowledge base: the
// /api/v1 knowledge endpoints plus the agent runner bridge used by
// external MCP clients.
package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/paperbase/paperbase/internal/kb"
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger    *slog.Logger
	Service   *kb.Service      // Required
	Executor  AgentExecutor    // Optional: nil disables the /run bridge
	Readiness ReadinessChecker // Optional: nil makes /ready unconditional

	TrustProxy bool // Trust X-Real-IP/X-Forwarded-For headers (behind reverse proxy)
	RateBurst  int  // Rate limiter burst size per IP (0 = default 60)
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates a new API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Service == nil {
		return nil, errors.New("knowledge base service is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	kh := &knowledgeHandler{service: cfg.Service, logger: logger}

	mux := http.NewServeMux()

	// Knowledge base
	mux.HandleFunc("POST /api/v1/query", kh.query)
	mux.HandleFunc("POST /api/v1/knowledge", kh.save)
	mux.HandleFunc("GET /api/v1/features", kh.listFeatures)
	mux.HandleFunc("GET /api/v1/markdown", kh.getMarkdown)
	mux.HandleFunc("POST /api/v1/markdown", kh.saveMarkdown)
	mux.HandleFunc("DELETE /api/v1/markdown", kh.deleteMarkdown)
	mux.HandleFunc("GET /api/v1/features-list", kh.getFeaturesList)
	mux.HandleFunc("POST /api/v1/features-list", kh.updateFeaturesList)

	// Agent runner bridge (optional — only registered when an executor exists)
	if cfg.Executor != nil {
		rh := newRunnerHandler(cfg.Executor, logger)
		mux.HandleFunc("POST /apps/{app}/users/{user}/sessions/{session}", rh.createSession)
		mux.HandleFunc("POST /run", rh.run)
	}

	// Rate limiter: per-IP token bucket (1 token/sec refill)
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	rl := newRateLimiter(1.0, burst)

	// Build middleware stack (outermost first):
	//   Recovery → RequestID → Logging → RateLimit → Routes
	// RequestID must be before Logging so request_id is available in log attributes.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	inner := handler
	final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setSecurityHeaders(w)
		inner.ServeHTTP(w, r)
	})

	// Use a top-level mux to separate health probes from middleware stack
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health)
	topMux.Handle("GET /ready", readiness(cfg.Readiness))
	topMux.Handle("/", final)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
