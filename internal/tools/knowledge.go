// Package tools exposes the knowledge base, the graph and the paper
// fetchers as model-callable tools.
package tools

import (
	"errors"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/paperbase/paperbase/internal/kb"
	"github.com/paperbase/paperbase/internal/log"
	"github.com/paperbase/paperbase/internal/markdown"
)

// Knowledge base tool names.
const (
	ToolQueryKnowledge     = "query_knowledge"
	ToolSaveKnowledge      = "save_knowledge"
	ToolSaveMarkdown       = "save_markdown_knowledge"
	ToolGetMarkdown        = "get_markdown_knowledge"
	ToolDeleteMarkdown     = "delete_markdown_knowledge"
	ToolListFeatures       = "list_features"
	ToolGetFeaturesList    = "get_features_list"
	ToolUpdateFeaturesList = "update_features_list"
)

// Knowledge wires the knowledge base service into model-callable tools.
type Knowledge struct {
	service *kb.Service
	logger  log.Logger
}

// NewKnowledge creates the knowledge tool set.
func NewKnowledge(service *kb.Service, logger log.Logger) (*Knowledge, error) {
	if service == nil {
		return nil, errors.New("knowledge base service is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Knowledge{service: service, logger: logger}, nil
}

// QueryInput asks the knowledge graph a question.
type QueryInput struct {
	Query string `json:"query" jsonschema_description:"Natural-language question for the knowledge base"`
	Mode  string `json:"mode,omitempty" jsonschema_description:"Query mode: local, global, hybrid, naive, mix or bypass. Defaults to hybrid"`
}

// SaveInput stores knowledge in the graph and the Markdown store.
type SaveInput struct {
	Text     string `json:"text" jsonschema_description:"Text to store in the knowledge base"`
	Team     string `json:"team,omitempty" jsonschema_description:"Team the knowledge belongs to. Defaults to Project_Manager"`
	Feature  string `json:"feature" jsonschema_description:"Feature the knowledge belongs to. Use / for sub-features, e.g. billing/invoices"`
	Kind     string `json:"kind,omitempty" jsonschema_description:"Knowledge kind: business or technical. Defaults to business"`
	SourceID string `json:"source_id,omitempty" jsonschema_description:"Ticket or paper ID to name the Markdown file after"`
}

// MarkdownInput addresses a feature's Markdown knowledge file.
type MarkdownInput struct {
	Feature string `json:"feature" jsonschema_description:"Feature name the knowledge belongs to"`
	Kind    string `json:"kind,omitempty" jsonschema_description:"Knowledge kind: business or technical. Defaults to business"`
}

// MarkdownDeleteInput addresses Markdown knowledge to remove.
type MarkdownDeleteInput struct {
	Feature string `json:"feature" jsonschema_description:"Feature name the knowledge belongs to"`
	Kind    string `json:"kind,omitempty" jsonschema_description:"Knowledge kind: business or technical. Leave empty to delete the whole feature"`
}

// MarkdownSaveInput writes a feature's Markdown knowledge file.
type MarkdownSaveInput struct {
	Feature  string `json:"feature" jsonschema_description:"Feature name the knowledge belongs to"`
	Kind     string `json:"kind" jsonschema_description:"Knowledge kind: business or technical"`
	SourceID string `json:"source_id,omitempty" jsonschema_description:"Ticket or paper ID to name the file after"`
	Content  string `json:"content" jsonschema_description:"Markdown content to store"`
}

// FeatureUpdateInput describes a feature for the overview diagram.
type FeatureUpdateInput struct {
	Name        string `json:"name" jsonschema_description:"Feature name"`
	Description string `json:"description" jsonschema_description:"One or two sentences describing the feature"`
	Parent      string `json:"parent,omitempty" jsonschema_description:"Parent node in the diagram. Leave empty for root level"`
}

// Register defines every knowledge tool on the Genkit instance and
// returns the tool references for agent wiring.
func (k *Knowledge) Register(g *genkit.Genkit) []ai.ToolRef {
	queryTool := genkit.DefineTool(g, ToolQueryKnowledge,
		"Query the scientific paper knowledge base with a natural-language question.",
		func(ctx *ai.ToolContext, input QueryInput) (string, error) {
			resp, err := k.service.Query(ctx.Context, input.Query, input.Mode)
			if err != nil {
				return "", err
			}
			return resp.Response, nil
		})

	saveTool := genkit.DefineTool(g, ToolSaveKnowledge,
		"Save knowledge into the graph and as a Markdown file under the feature. The feature is required; kind must be business or technical.",
		func(ctx *ai.ToolContext, input SaveInput) (string, error) {
			if strings.TrimSpace(input.Feature) == "" {
				return "", kb.ErrEmptyFeature
			}
			resp, err := k.service.Save(ctx.Context, kb.SaveRequest{
				Text:     input.Text,
				Team:     input.Team,
				Feature:  input.Feature,
				Kind:     normalizeKind(input.Kind),
				SourceID: input.SourceID,
			})
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%s: %s", resp.Status, resp.Message), nil
		})

	saveMarkdownTool := genkit.DefineTool(g, ToolSaveMarkdown,
		"Save Markdown knowledge for a feature. Kind must be business or technical.",
		func(ctx *ai.ToolContext, input MarkdownSaveInput) (string, error) {
			path, err := k.service.SaveMarkdown(input.Feature, normalizeKind(input.Kind), input.SourceID, input.Content)
			if err != nil {
				return "", err
			}
			return "saved to " + path, nil
		})

	getMarkdownTool := genkit.DefineTool(g, ToolGetMarkdown,
		"Read the Markdown knowledge file for a feature.",
		func(ctx *ai.ToolContext, input MarkdownInput) (string, error) {
			return k.service.GetMarkdown(input.Feature, normalizeKind(input.Kind))
		})

	deleteMarkdownTool := genkit.DefineTool(g, ToolDeleteMarkdown,
		"Delete Markdown knowledge for a feature. Without a kind the whole feature is removed.",
		func(ctx *ai.ToolContext, input MarkdownDeleteInput) (string, error) {
			if err := k.service.DeleteMarkdown(input.Feature, normalizeKind(input.Kind)); err != nil {
				return "", err
			}
			return "deleted", nil
		})

	listFeaturesTool := genkit.DefineTool(g, ToolListFeatures,
		"List the features that have Markdown knowledge files, with the knowledge kinds available for each.",
		func(ctx *ai.ToolContext, _ struct{}) ([]markdown.Feature, error) {
			return k.service.ListFeatures()
		})

	getFeaturesListTool := genkit.DefineTool(g, ToolGetFeaturesList,
		"Read the project features overview diagram.",
		func(ctx *ai.ToolContext, _ struct{}) (string, error) {
			return k.service.GetFeaturesList()
		})

	updateFeaturesListTool := genkit.DefineTool(g, ToolUpdateFeaturesList,
		"Add or update a feature in the project overview diagram and record it in the knowledge base.",
		func(ctx *ai.ToolContext, input FeatureUpdateInput) (string, error) {
			return k.service.UpdateFeaturesList(ctx.Context, input.Name, input.Description, input.Parent)
		})

	return []ai.ToolRef{
		queryTool, saveTool, saveMarkdownTool, getMarkdownTool,
		deleteMarkdownTool, listFeaturesTool, getFeaturesListTool,
		updateFeaturesListTool,
	}
}

// normalizeKind lowercases and trims a knowledge kind so model-produced
// variants like "Business" still validate.
func normalizeKind(kind string) string {
	return strings.ToLower(strings.TrimSpace(kind))
}
