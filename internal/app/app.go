// Package app wires the application together: configuration, Genkit,
// the knowledge graph backend, the knowledge base service, tools and
// agents. Both the serve and mcp commands start from Setup.
package app

import (
	"context"
	"time"

	"github.com/firebase/genkit/go/genkit"

	"github.com/paperbase/paperbase/internal/agent"
	"github.com/paperbase/paperbase/internal/api"
	"github.com/paperbase/paperbase/internal/config"
	"github.com/paperbase/paperbase/internal/graphiti"
	"github.com/paperbase/paperbase/internal/kb"
	"github.com/paperbase/paperbase/internal/log"
)

// App holds every initialized component.
type App struct {
	Config *config.Config
	Logger log.Logger
	Genkit *genkit.Genkit

	// Service is the knowledge base façade.
	Service *kb.Service

	// Runner executes agents; Guard screens raw input and Master is the
	// orchestrating agent.
	Runner *agent.Runner
	Guard  *agent.Agent
	Master *agent.Agent

	// Readiness probes the active knowledge graph backend.
	Readiness api.ReadinessChecker

	// graphStore is set when the graphiti backend is active; its driver
	// needs an explicit close.
	graphStore *graphiti.Store

	cancel context.CancelFunc
}

// Close releases all resources. Safe to call on a partially built App.
func (a *App) Close() error {
	if a.cancel != nil {
		a.cancel()
	}
	if a.graphStore != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.graphStore.Close(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Ask screens the raw input through the guard agent, then runs one
// master agent turn. Satisfies api.AgentExecutor.
func (a *App) Ask(ctx context.Context, query string) (string, error) {
	if err := a.Runner.Screen(ctx, a.Guard, query); err != nil {
		return "", err
	}
	return a.Runner.Execute(ctx, a.Master, query)
}
