// Package kb implements the knowledge base service: a façade over the
// knowledge graph backend, the Markdown file store and the features list.
// Every surface of the application (agents, MCP tools, HTTP API) goes
// through this package rather than touching the backends directly.
package kb

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/paperbase/paperbase/internal/log"
	"github.com/paperbase/paperbase/internal/markdown"
)

var (
	// ErrEmptyQuery indicates an empty query string.
	ErrEmptyQuery = errors.New("query must not be empty")

	// ErrEmptyText indicates empty text passed to Save.
	ErrEmptyText = errors.New("text must not be empty")

	// ErrEmptyFeature indicates a missing feature name.
	ErrEmptyFeature = errors.New("feature name must not be empty")

	// ErrEmptyDescription indicates a missing feature description.
	ErrEmptyDescription = errors.New("feature description must not be empty")

	// ErrInvalidMode indicates an unsupported query mode.
	ErrInvalidMode = errors.New("invalid query mode")

	// ErrInvalidKind indicates an unsupported markdown knowledge kind.
	ErrInvalidKind = errors.New("invalid knowledge kind")
)

// Defaults applied by Save when the caller leaves the fields empty.
const (
	DefaultTeam    = "Project_Manager"
	DefaultFeature = "general"
)

// MarkdownStore persists per-feature Markdown knowledge files.
type MarkdownStore interface {
	Save(feature, kind, sourceID, content string) (string, error)
	Get(feature, kind string) (string, error)
	Delete(feature, kind string) error
	ListFeatures() ([]markdown.Feature, error)
}

// FeaturesList maintains the project features overview diagram.
type FeaturesList interface {
	Read() (string, error)
	Update(ctx context.Context, change string) (string, error)
}

// Service is the knowledge base façade.
type Service struct {
	graph    Graph
	store    MarkdownStore
	features FeaturesList
	logger   log.Logger
}

// NewService creates the knowledge base service. graph and store are
// required; features may be nil when no features list is configured, in
// which case the features list operations return an error.
func NewService(graph Graph, store MarkdownStore, features FeaturesList, logger log.Logger) (*Service, error) {
	if graph == nil {
		return nil, errors.New("graph backend is required")
	}
	if store == nil {
		return nil, errors.New("markdown store is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Service{graph: graph, store: store, features: features, logger: logger}, nil
}

// Query answers a natural-language question against the knowledge graph.
// mode defaults to "hybrid" when empty. Transient backend failures are
// retried; the returned QueryResponse carries an error status instead of a
// Go error when the backend itself reported a failure.
func (s *Service) Query(ctx context.Context, query, mode string) (QueryResponse, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return QueryResponse{}, ErrEmptyQuery
	}
	if mode == "" {
		mode = ModeHybrid
	}
	if !validMode(mode) {
		return QueryResponse{}, fmt.Errorf("%w: %q", ErrInvalidMode, mode)
	}

	var resp QueryResponse
	err := withRetry(ctx, func() error {
		var qerr error
		resp, qerr = s.graph.Query(ctx, query, mode)
		return qerr
	})
	if err != nil {
		s.logger.Error("knowledge graph query failed", "mode", mode, "error", err)
		return QueryResponse{Status: "error", ErrorMessage: err.Error()}, err
	}

	s.logger.Debug("knowledge graph query answered", "mode", mode, "chars", len(resp.Response))
	return resp, nil
}

// SaveRequest describes one piece of knowledge to persist. By default the
// text goes to both the knowledge graph and the Markdown store; the Skip
// flags turn either destination off.
type SaveRequest struct {
	// Text is the knowledge content. Required.
	Text string

	// Team tags the graph entry. Defaults to DefaultTeam.
	Team string

	// Feature is the "/"-separated feature path for the Markdown file.
	// Defaults to DefaultFeature.
	Feature string

	// Kind is "business" or "technical". Defaults to "business".
	Kind string

	// SourceID names the Markdown file (ticket or paper ID) instead of
	// the kind. Optional.
	SourceID string

	// SkipMarkdown leaves the Markdown store untouched.
	SkipMarkdown bool

	// SkipGraph leaves the knowledge graph untouched.
	SkipGraph bool
}

// Save dispatches one piece of knowledge to the configured backends: the
// graph entry is tagged with the team, the Markdown file lands under the
// feature path. Graph failures are retried; a failure in either backend
// fails the save.
func (s *Service) Save(ctx context.Context, req SaveRequest) (InsertResponse, error) {
	if strings.TrimSpace(req.Text) == "" {
		return InsertResponse{}, ErrEmptyText
	}
	if strings.TrimSpace(req.Team) == "" {
		req.Team = DefaultTeam
	}
	if strings.TrimSpace(req.Feature) == "" {
		req.Feature = DefaultFeature
	}
	if req.Kind == "" {
		req.Kind = KindBusiness
	}
	if err := validateKind(req.Kind); err != nil {
		return InsertResponse{}, err
	}

	resp := InsertResponse{Status: "success"}
	if !req.SkipGraph {
		text := fmt.Sprintf("[team: %s]\n%s", req.Team, req.Text)
		err := withRetry(ctx, func() error {
			var ierr error
			resp, ierr = s.graph.Insert(ctx, text)
			return ierr
		})
		if err != nil {
			s.logger.Error("knowledge graph insert failed", "feature", req.Feature, "error", err)
			return InsertResponse{Status: "failure", Message: err.Error()}, err
		}
	}

	if !req.SkipMarkdown {
		path, err := s.store.Save(req.Feature, req.Kind, req.SourceID, req.Text)
		if err != nil {
			s.logger.Error("markdown save failed", "feature", req.Feature, "error", err)
			return InsertResponse{Status: "failure", Message: err.Error()},
				fmt.Errorf("saving markdown knowledge: %w", err)
		}
		s.logger.Debug("markdown knowledge written", "path", path)
	}

	s.logger.Info("knowledge saved",
		"team", req.Team, "feature", req.Feature, "kind", req.Kind,
		"graph", !req.SkipGraph, "markdown", !req.SkipMarkdown, "chars", len(req.Text))
	return resp, nil
}

// SaveMarkdown writes a Markdown knowledge file for a feature without
// touching the graph. kind must be "business" or "technical"; sourceID
// optionally names the file. Returns the path of the written file.
func (s *Service) SaveMarkdown(feature, kind, sourceID, content string) (string, error) {
	if err := validateKind(kind); err != nil {
		return "", err
	}
	path, err := s.store.Save(feature, kind, sourceID, content)
	if err != nil {
		return "", fmt.Errorf("saving markdown knowledge: %w", err)
	}
	s.logger.Info("markdown knowledge saved", "feature", feature, "kind", kind, "path", path)
	return path, nil
}

// GetMarkdown reads a feature's Markdown knowledge file. kind defaults to
// "business" when empty.
func (s *Service) GetMarkdown(feature, kind string) (string, error) {
	if kind == "" {
		kind = KindBusiness
	}
	if err := validateKind(kind); err != nil {
		return "", err
	}
	content, err := s.store.Get(feature, kind)
	if err != nil {
		return "", fmt.Errorf("reading markdown knowledge: %w", err)
	}
	return content, nil
}

// DeleteMarkdown removes a feature's Markdown knowledge file, or the whole
// feature when kind is empty. Emptied directories are pruned.
func (s *Service) DeleteMarkdown(feature, kind string) error {
	if kind != "" {
		if err := validateKind(kind); err != nil {
			return err
		}
	}
	if err := s.store.Delete(feature, kind); err != nil {
		return fmt.Errorf("deleting markdown knowledge: %w", err)
	}
	s.logger.Info("markdown knowledge deleted", "feature", feature, "kind", kind)
	return nil
}

// ListFeatures returns the features that have Markdown knowledge files,
// with the knowledge kinds available for each.
func (s *Service) ListFeatures() ([]markdown.Feature, error) {
	features, err := s.store.ListFeatures()
	if err != nil {
		return nil, fmt.Errorf("listing features: %w", err)
	}
	return features, nil
}

// GetFeaturesList returns the current features overview diagram.
func (s *Service) GetFeaturesList() (string, error) {
	if s.features == nil {
		return "", errors.New("features list not configured")
	}
	content, err := s.features.Read()
	if err != nil {
		return "", fmt.Errorf("reading features list: %w", err)
	}
	return content, nil
}

// UpdateFeaturesList merges a feature into the overview diagram and, on
// success, records the feature info in the knowledge base so it becomes
// queryable. Returns the updated diagram.
func (s *Service) UpdateFeaturesList(ctx context.Context, name, description, parent string) (string, error) {
	if s.features == nil {
		return "", errors.New("features list not configured")
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrEmptyFeature
	}
	description = strings.TrimSpace(description)
	if description == "" {
		return "", ErrEmptyDescription
	}

	change := fmt.Sprintf("Add or update feature %q: %s.", name, description)
	if parent != "" {
		change += fmt.Sprintf(" Place it under the %q node.", parent)
	} else {
		change += " Place it at the root level."
	}

	updated, err := s.features.Update(ctx, change)
	if err != nil {
		return "", fmt.Errorf("updating features list: %w", err)
	}

	parentLabel := parent
	if parentLabel == "" {
		parentLabel = "Root level"
	}
	info := fmt.Sprintf("Feature Name: %s\nDescription: %s\nParent: %s\n", name, description, parentLabel)
	if _, err := s.Save(ctx, SaveRequest{Text: info, Feature: name, Kind: KindBusiness}); err != nil {
		// The diagram is already updated; a failed knowledge save must
		// not roll that back.
		s.logger.Warn("recording feature info in knowledge base failed", "feature", name, "error", err)
	}

	s.logger.Info("features list updated", "feature", name, "chars", len(updated))
	return updated, nil
}

func validMode(mode string) bool {
	switch mode {
	case ModeLocal, ModeGlobal, ModeHybrid, ModeNaive, ModeMix, ModeBypass:
		return true
	}
	return false
}

func validateKind(kind string) error {
	if kind != KindBusiness && kind != KindTechnical {
		return fmt.Errorf("%w: %q (must be %q or %q)", ErrInvalidKind, kind, KindBusiness, KindTechnical)
	}
	return nil
}
