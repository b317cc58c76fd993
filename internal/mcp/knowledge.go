package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/paperbase/paperbase/internal/kb"
)

// QueryKnowledgeInput asks the knowledge base a question.
type QueryKnowledgeInput struct {
	Query string `json:"query" jsonschema:"Natural-language question for the knowledge base"`
	Mode  string `json:"mode,omitempty" jsonschema:"Query mode: local, global, hybrid, naive, mix or bypass. Defaults to hybrid"`
}

// SaveKnowledgeInput stores knowledge in the graph and as a Markdown file.
type SaveKnowledgeInput struct {
	Text     string `json:"text" jsonschema:"Text to store in the knowledge base"`
	Team     string `json:"team,omitempty" jsonschema:"Team the knowledge belongs to. Defaults to Project_Manager"`
	Feature  string `json:"feature" jsonschema:"Feature the knowledge belongs to. Use / for sub-features"`
	Kind     string `json:"kind,omitempty" jsonschema:"Knowledge kind: business or technical. Defaults to business"`
	SourceID string `json:"source_id,omitempty" jsonschema:"Ticket or paper ID to name the Markdown file after"`
}

// MarkdownKnowledgeInput addresses a feature's markdown file.
type MarkdownKnowledgeInput struct {
	Feature string `json:"feature" jsonschema:"Feature name the knowledge belongs to"`
	Kind    string `json:"kind,omitempty" jsonschema:"Knowledge kind: business or technical. Defaults to business"`
}

// UpdateFeaturesInput describes a feature for the overview diagram.
type UpdateFeaturesInput struct {
	Name        string `json:"name" jsonschema:"Feature name"`
	Description string `json:"description" jsonschema:"One or two sentences describing the feature"`
	Parent      string `json:"parent,omitempty" jsonschema:"Parent node in the diagram. Leave empty for root level"`
}

// registerKnowledge registers the knowledge base tools.
func (s *Server) registerKnowledge() error {
	querySchema, err := jsonschema.For[QueryKnowledgeInput](nil)
	if err != nil {
		return fmt.Errorf("creating query schema: %w", err)
	}
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "query_knowledge",
		Description: "Query the scientific paper knowledge base with a natural-language question.",
		InputSchema: querySchema,
	}, func(ctx context.Context, req *mcpsdk.CallToolRequest, in QueryKnowledgeInput) (*mcpsdk.CallToolResult, any, error) {
		resp, err := s.service.Query(ctx, in.Query, in.Mode)
		if err != nil {
			return errorResult(fmt.Sprintf("query failed: %v", err)), nil, nil
		}
		return textResult(resp.Response), nil, nil
	})

	saveSchema, err := jsonschema.For[SaveKnowledgeInput](nil)
	if err != nil {
		return fmt.Errorf("creating save schema: %w", err)
	}
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "save_knowledge",
		Description: "Save knowledge into the graph and as a Markdown file under the feature. Kind must be business or technical.",
		InputSchema: saveSchema,
	}, func(ctx context.Context, req *mcpsdk.CallToolRequest, in SaveKnowledgeInput) (*mcpsdk.CallToolResult, any, error) {
		if strings.TrimSpace(in.Feature) == "" {
			return errorResult("save failed: feature is required"), nil, nil
		}
		resp, err := s.service.Save(ctx, kb.SaveRequest{
			Text:     in.Text,
			Team:     in.Team,
			Feature:  in.Feature,
			Kind:     strings.ToLower(strings.TrimSpace(in.Kind)),
			SourceID: in.SourceID,
		})
		if err != nil {
			return errorResult(fmt.Sprintf("save failed: %v", err)), nil, nil
		}
		return textResult(fmt.Sprintf("%s: %s", resp.Status, resp.Message)), nil, nil
	})

	listSchema, err := jsonschema.For[struct{}](nil)
	if err != nil {
		return fmt.Errorf("creating list schema: %w", err)
	}
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "list_features",
		Description: "List the features that have markdown knowledge files, with the knowledge kinds available for each.",
		InputSchema: listSchema,
	}, func(ctx context.Context, req *mcpsdk.CallToolRequest, _ struct{}) (*mcpsdk.CallToolResult, any, error) {
		features, err := s.service.ListFeatures()
		if err != nil {
			return errorResult(fmt.Sprintf("listing features failed: %v", err)), nil, nil
		}
		if len(features) == 0 {
			return textResult("No features have markdown knowledge yet."), nil, nil
		}
		lines := make([]string, 0, len(features))
		for _, f := range features {
			if len(f.Kinds) == 0 {
				lines = append(lines, f.Name)
				continue
			}
			lines = append(lines, fmt.Sprintf("%s (%s)", f.Name, strings.Join(f.Kinds, ", ")))
		}
		return textResult(strings.Join(lines, "\n")), nil, nil
	})

	markdownSchema, err := jsonschema.For[MarkdownKnowledgeInput](nil)
	if err != nil {
		return fmt.Errorf("creating markdown schema: %w", err)
	}
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "get_markdown_knowledge",
		Description: "Read the markdown knowledge file for a feature. Kind is business or technical.",
		InputSchema: markdownSchema,
	}, func(ctx context.Context, req *mcpsdk.CallToolRequest, in MarkdownKnowledgeInput) (*mcpsdk.CallToolResult, any, error) {
		content, err := s.service.GetMarkdown(in.Feature, strings.ToLower(in.Kind))
		if err != nil {
			return errorResult(fmt.Sprintf("reading markdown failed: %v", err)), nil, nil
		}
		return textResult(content), nil, nil
	})

	featuresListSchema, err := jsonschema.For[struct{}](nil)
	if err != nil {
		return fmt.Errorf("creating features list schema: %w", err)
	}
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "get_features_list",
		Description: "Read the project features overview diagram.",
		InputSchema: featuresListSchema,
	}, func(ctx context.Context, req *mcpsdk.CallToolRequest, _ struct{}) (*mcpsdk.CallToolResult, any, error) {
		content, err := s.service.GetFeaturesList()
		if err != nil {
			return errorResult(fmt.Sprintf("reading features list failed: %v", err)), nil, nil
		}
		return textResult(content), nil, nil
	})

	updateSchema, err := jsonschema.For[UpdateFeaturesInput](nil)
	if err != nil {
		return fmt.Errorf("creating update schema: %w", err)
	}
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "update_features_list",
		Description: "Add or update a feature in the project overview diagram and record it in the knowledge base.",
		InputSchema: updateSchema,
	}, func(ctx context.Context, req *mcpsdk.CallToolRequest, in UpdateFeaturesInput) (*mcpsdk.CallToolResult, any, error) {
		diagram, err := s.service.UpdateFeaturesList(ctx, in.Name, in.Description, in.Parent)
		if err != nil {
			return errorResult(fmt.Sprintf("updating features list failed: %v", err)), nil, nil
		}
		return textResult(diagram), nil, nil
	})

	return nil
}
