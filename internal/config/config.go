// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.paperbase/config.yaml or ./config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - Graph: knowledge graph backend selection (lightrag or graphiti)
//   - LightRAG: remote RAG server address and API key
//   - Neo4j: graph database connection for the graphiti backend
//   - Markdown: root path for the Markdown knowledge files
//   - AI: provider, model and generation parameters for agents
//   - Serve: HTTP API settings (rate burst, trust proxy)
//
// Validation is fail-fast: Load returns an error before any component
// receives a half-valid configuration. Sensitive values (passwords, API
// keys) are never logged.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

var (
	// ErrConfigNil indicates the configuration is nil.
	ErrConfigNil = errors.New("configuration is nil")

	// ErrInvalidBackend indicates an unsupported knowledge graph backend.
	ErrInvalidBackend = errors.New("unsupported knowledge graph backend")

	// ErrInvalidServerURL indicates the LightRAG server URL is invalid.
	ErrInvalidServerURL = errors.New("invalid LightRAG server URL")

	// ErrInvalidNeo4jURI indicates the Neo4j URI is invalid.
	ErrInvalidNeo4jURI = errors.New("invalid Neo4j URI")

	// ErrMissingNeo4jCredentials indicates Neo4j user or password is unset.
	ErrMissingNeo4jCredentials = errors.New("missing Neo4j credentials")

	// ErrInvalidMarkdownRoot indicates the Markdown root path is invalid.
	ErrInvalidMarkdownRoot = errors.New("invalid markdown root path")

	// ErrInvalidModelName indicates the model name is invalid.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidTemperature indicates the temperature value is out of range.
	ErrInvalidTemperature = errors.New("invalid temperature")

	// ErrInvalidMaxTokens indicates the max tokens value is out of range.
	ErrInvalidMaxTokens = errors.New("invalid max tokens")

	// ErrInvalidProvider indicates the AI provider is not supported.
	ErrInvalidProvider = errors.New("invalid provider")

	// ErrInvalidSearchLimit indicates the graph search limit is out of range.
	ErrInvalidSearchLimit = errors.New("invalid graph search limit")

	// ErrInvalidSearchMinScore indicates the reranker min score is out of range.
	ErrInvalidSearchMinScore = errors.New("invalid graph search min score")

	// ErrInvalidSearchMode indicates an unknown graphiti search mode.
	ErrInvalidSearchMode = errors.New("invalid graph search mode")
)

// Knowledge graph backend identifiers used in Config.Backend.
const (
	BackendLightRAG = "lightrag"
	BackendGraphiti = "graphiti"
)

// AI provider identifiers used in Config.Provider.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

// Graphiti search modes (result blending strategies).
const (
	SearchModeDeep  = "deep"
	SearchModeBroad = "broad"
)

// Config stores application configuration.
// SECURITY: sensitive fields (Neo4jPassword, LightRAGAPIKey) must never be
// written to logs; pass the struct around, not its formatted value.
type Config struct {
	// Knowledge graph backend: "lightrag" (default) or "graphiti"
	Backend string `mapstructure:"backend"`

	// LightRAG server configuration
	LightRAGURL    string `mapstructure:"lightrag_url"`
	LightRAGAPIKey string `mapstructure:"lightrag_api_key"` // SENSITIVE

	// Neo4j configuration (graphiti backend)
	Neo4jURI      string `mapstructure:"neo4j_uri"`
	Neo4jUser     string `mapstructure:"neo4j_user"`
	Neo4jPassword string `mapstructure:"neo4j_password"` // SENSITIVE

	// Graphiti search tuning
	SearchLimit    int     `mapstructure:"search_limit"`
	SearchMinScore float64 `mapstructure:"search_min_score"`
	SearchMode     string  `mapstructure:"search_mode"` // "deep" or "broad"

	// Markdown storage
	MarkdownRoot string `mapstructure:"markdown_root"`

	// Features list (mermaid diagram)
	FeaturesPath string `mapstructure:"features_path"`

	// AI provider and model configuration
	Provider    string  `mapstructure:"provider"`
	ModelName   string  `mapstructure:"model_name"`
	Temperature float32 `mapstructure:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	OllamaHost  string  `mapstructure:"ollama_host"`

	// Agent runner bridge (MCP ask_agent tool)
	AgentURL     string `mapstructure:"agent_url"`
	AgentApp     string `mapstructure:"agent_app"`
	AgentUserID  string `mapstructure:"agent_user_id"`
	AgentSession string `mapstructure:"agent_session"`

	// Serve mode
	TrustProxy bool `mapstructure:"trust_proxy"`
	RateBurst  int  `mapstructure:"rate_burst"`
}

// Load loads configuration.
// Priority: environment variables > configuration file > default values.
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}

	configDir := filepath.Join(home, ".paperbase")
	if err := os.MkdirAll(configDir, 0o750); err != nil {
		return nil, fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is fine; defaults apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using defaults",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(v *viper.Viper) {
	// Backend defaults
	v.SetDefault("backend", BackendLightRAG)
	v.SetDefault("lightrag_url", "http://localhost:9621")

	// Neo4j defaults
	v.SetDefault("neo4j_uri", "bolt://localhost:7687")
	v.SetDefault("neo4j_user", "neo4j")

	// Graphiti search defaults
	v.SetDefault("search_limit", 50)
	v.SetDefault("search_min_score", 0.2)
	v.SetDefault("search_mode", SearchModeBroad)

	// Storage defaults
	v.SetDefault("markdown_root", "kb_markdown_files")
	v.SetDefault("features_path", filepath.Join("inputs", "features_list.md"))

	// AI defaults
	v.SetDefault("provider", ProviderGemini)
	v.SetDefault("model_name", "gemini-2.5-flash")
	v.SetDefault("temperature", 0.7)
	v.SetDefault("max_tokens", 2048)
	v.SetDefault("ollama_host", "http://localhost:11434")

	// Agent bridge defaults (matches the local serve address)
	v.SetDefault("agent_url", "http://127.0.0.1:3400")
	v.SetDefault("agent_app", "knowledge_base")
	v.SetDefault("agent_user_id", "u_local")
	v.SetDefault("agent_session", "s_local")

	// Serve defaults
	v.SetDefault("trust_proxy", false)
	v.SetDefault("rate_burst", 60)
}

// bindEnvVariables binds environment variables explicitly.
// GEMINI_API_KEY and OPENAI_API_KEY are read directly by the Genkit
// provider plugins, not via viper.
func bindEnvVariables(v *viper.Viper) {
	// Hardcoded keys cannot fail to bind; a panic here is a bug.
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("backend", "PAPERBASE_BACKEND")
	mustBind("lightrag_url", "LIGHTRAG_URL")
	mustBind("lightrag_api_key", "LIGHTRAG_API_KEY")
	mustBind("neo4j_uri", "NEO4J_URI")
	mustBind("neo4j_user", "NEO4J_USER")
	mustBind("neo4j_password", "NEO4J_PASSWORD")
	mustBind("markdown_root", "MARKDOWN_ROOT_PATH")
	mustBind("features_path", "FEATURES_LIST_PATH")
	mustBind("provider", "PAPERBASE_PROVIDER")
	mustBind("model_name", "PAPERBASE_MODEL_NAME")
	mustBind("ollama_host", "PAPERBASE_OLLAMA_HOST")
	mustBind("agent_url", "PAPERBASE_AGENT_URL")
	mustBind("trust_proxy", "PAPERBASE_TRUST_PROXY")
	mustBind("rate_burst", "PAPERBASE_RATE_BURST")
}
