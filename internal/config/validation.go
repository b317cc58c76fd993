package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validate checks the configuration for correctness. It returns the first
// error found so startup fails before any component sees a bad value.
func (c *Config) Validate() error {
	if c == nil {
		return ErrConfigNil
	}

	switch c.Backend {
	case BackendLightRAG:
		if err := validateHTTPURL(c.LightRAGURL); err != nil {
			return fmt.Errorf("%w: %q: %v", ErrInvalidServerURL, c.LightRAGURL, err)
		}
	case BackendGraphiti:
		if err := validateNeo4jURI(c.Neo4jURI); err != nil {
			return fmt.Errorf("%w: %q: %v", ErrInvalidNeo4jURI, c.Neo4jURI, err)
		}
		if c.Neo4jUser == "" || c.Neo4jPassword == "" {
			return ErrMissingNeo4jCredentials
		}
		if c.SearchLimit < 1 || c.SearchLimit > 1000 {
			return fmt.Errorf("%w: %d (must be 1-1000)", ErrInvalidSearchLimit, c.SearchLimit)
		}
		if c.SearchMinScore < 0 || c.SearchMinScore > 1 {
			return fmt.Errorf("%w: %g (must be 0-1)", ErrInvalidSearchMinScore, c.SearchMinScore)
		}
		if c.SearchMode != SearchModeDeep && c.SearchMode != SearchModeBroad {
			return fmt.Errorf("%w: %q", ErrInvalidSearchMode, c.SearchMode)
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidBackend, c.Backend)
	}

	if strings.TrimSpace(c.MarkdownRoot) == "" {
		return ErrInvalidMarkdownRoot
	}

	switch c.Provider {
	case ProviderGemini, ProviderOpenAI, ProviderOllama:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidProvider, c.Provider)
	}

	if strings.TrimSpace(c.ModelName) == "" {
		return ErrInvalidModelName
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("%w: %g (must be 0-2)", ErrInvalidTemperature, c.Temperature)
	}
	if c.MaxTokens < 1 || c.MaxTokens > 1_000_000 {
		return fmt.Errorf("%w: %d (must be 1-1000000)", ErrInvalidMaxTokens, c.MaxTokens)
	}

	return nil
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}

func validateNeo4jURI(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	switch u.Scheme {
	case "bolt", "bolt+s", "neo4j", "neo4j+s":
	default:
		return fmt.Errorf("scheme must be bolt or neo4j, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("missing host")
	}
	return nil
}
