package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/compat_oai/openai"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/firebase/genkit/go/plugins/ollama"

	"github.com/paperbase/paperbase/internal/agent"
	"github.com/paperbase/paperbase/internal/api"
	"github.com/paperbase/paperbase/internal/config"
	"github.com/paperbase/paperbase/internal/features"
	"github.com/paperbase/paperbase/internal/graphiti"
	"github.com/paperbase/paperbase/internal/kb"
	"github.com/paperbase/paperbase/internal/lightrag"
	"github.com/paperbase/paperbase/internal/log"
	"github.com/paperbase/paperbase/internal/markdown"
	"github.com/paperbase/paperbase/internal/papers"
	"github.com/paperbase/paperbase/internal/tools"
)

// Setup creates and initializes the application.
// Returns an App with embedded cleanup — call Close() to release.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	if cfg == nil {
		return nil, errors.New("configuration is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	a := &App{Config: cfg, Logger: logger}

	// On error, clean up everything already initialized
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	g, err := provideGenkit(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	graph, err := provideGraph(cfg, logger, a)
	if err != nil {
		return nil, err
	}

	store, err := markdown.NewStore(cfg.MarkdownRoot, logger)
	if err != nil {
		return nil, fmt.Errorf("creating markdown store: %w", err)
	}

	generator := features.NewGenkitGenerator(g, modelName(cfg), generationConfig(cfg))
	featuresList, err := features.NewManager(cfg.FeaturesPath, generator, logger)
	if err != nil {
		return nil, fmt.Errorf("creating features manager: %w", err)
	}

	service, err := kb.NewService(graph, store, featuresList, logger)
	if err != nil {
		return nil, fmt.Errorf("creating knowledge base service: %w", err)
	}
	a.Service = service

	if err := provideAgents(a); err != nil {
		return nil, err
	}

	_, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	return a, nil
}

// generationConfig maps the configured sampling knobs onto Genkit's
// common generation config, shared by every model call.
func generationConfig(cfg *config.Config) *ai.GenerationCommonConfig {
	return &ai.GenerationCommonConfig{
		Temperature:     float64(cfg.Temperature),
		MaxOutputTokens: cfg.MaxTokens,
	}
}

// modelName prefixes the configured model with its Genkit provider
// namespace.
func modelName(cfg *config.Config) string {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return "openai/" + cfg.ModelName
	case config.ProviderOllama:
		return "ollama/" + cfg.ModelName
	default:
		return "googleai/" + cfg.ModelName
	}
}

// provideGenkit initializes Genkit with the configured AI provider.
// Supports gemini (default), ollama, and openai providers.
func provideGenkit(ctx context.Context, cfg *config.Config, logger log.Logger) (*genkit.Genkit, error) {
	var g *genkit.Genkit

	switch cfg.Provider {
	case config.ProviderOllama:
		ollamaPlugin := &ollama.Ollama{ServerAddress: cfg.OllamaHost}
		g = genkit.Init(ctx, genkit.WithPlugins(ollamaPlugin))
		if g == nil {
			return nil, errors.New("initializing genkit with ollama provider")
		}
		// Ollama requires explicit model registration (no auto-discovery)
		ollamaPlugin.DefineModel(g, ollama.ModelDefinition{
			Name: cfg.ModelName,
			Type: "chat",
		}, nil)
		logger.Info("initialized Genkit with ollama provider",
			"model", cfg.ModelName, "host", cfg.OllamaHost)

	case config.ProviderOpenAI:
		g = genkit.Init(ctx, genkit.WithPlugins(&openai.OpenAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with openai provider")
		}
		logger.Info("initialized Genkit with openai provider", "model", cfg.ModelName)

	default: // "gemini"
		g = genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
		if g == nil {
			return nil, errors.New("initializing genkit with gemini provider")
		}
		logger.Info("initialized Genkit with gemini provider", "model", cfg.ModelName)
	}

	return g, nil
}

// provideGraph creates the configured knowledge graph backend and wires
// its readiness probe into the App.
func provideGraph(cfg *config.Config, logger log.Logger, a *App) (kb.Graph, error) {
	switch cfg.Backend {
	case config.BackendGraphiti:
		store, err := graphiti.NewStore(cfg.Neo4jURI, cfg.Neo4jUser, cfg.Neo4jPassword,
			graphiti.Options{
				Limit:    cfg.SearchLimit,
				MinScore: cfg.SearchMinScore,
				Mode:     cfg.SearchMode,
			}, logger)
		if err != nil {
			return nil, fmt.Errorf("creating graphiti store: %w", err)
		}
		a.graphStore = store
		a.Readiness = store
		return store, nil

	default: // lightrag
		var opts []lightrag.Option
		if cfg.LightRAGAPIKey != "" {
			opts = append(opts, lightrag.WithAPIKey(cfg.LightRAGAPIKey))
		}
		client, err := lightrag.NewClient(cfg.LightRAGURL, logger, opts...)
		if err != nil {
			return nil, fmt.Errorf("creating lightrag client: %w", err)
		}
		a.Readiness = client
		return client, nil
	}
}

// provideAgents registers the tool sets and builds the agent team.
func provideAgents(a *App) error {
	logger := a.Logger
	cfg := a.Config

	kt, err := tools.NewKnowledge(a.Service, logger)
	if err != nil {
		return fmt.Errorf("creating knowledge tools: %w", err)
	}

	sets := agent.ToolSets{
		Knowledge: kt.Register(a.Genkit),
	}

	// Graph inspection tools exist only on the graphiti backend.
	if a.graphStore != nil {
		gt, err := tools.NewGraph(a.graphStore, logger)
		if err != nil {
			return fmt.Errorf("creating graph tools: %w", err)
		}
		sets.Graph = gt.Register(a.Genkit)
	}

	pt, err := tools.NewPapers(papers.NewArxivClient(nil, logger), papers.NewPageFetcher(nil, logger), logger)
	if err != nil {
		return fmt.Errorf("creating paper tools: %w", err)
	}
	sets.Papers = pt.Register(a.Genkit)

	runner, err := agent.NewRunner(a.Genkit, modelName(cfg), generationConfig(cfg), logger)
	if err != nil {
		return fmt.Errorf("creating agent runner: %w", err)
	}
	a.Runner = runner
	a.Guard = agent.NewGuard()

	specialists := []*agent.Agent{
		agent.NewContextAnalyzer(),
		agent.NewRetriever(sets),
		agent.NewResearcher(sets),
		agent.NewKnowledgeBase(sets),
	}
	askTools := make([]ai.ToolRef, 0, len(specialists))
	for _, sp := range specialists {
		askTools = append(askTools, runner.DefineAgentTool(sp))
	}
	a.Master = agent.NewMaster(askTools)

	logger.Info("agents ready",
		"specialists", len(specialists),
		"knowledge_tools", len(sets.Knowledge),
		"graph_tools", len(sets.Graph),
		"paper_tools", len(sets.Papers),
	)
	return nil
}

var _ api.AgentExecutor = (*App)(nil)
