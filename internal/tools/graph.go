package tools

import (
	"context"
	"errors"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/paperbase/paperbase/internal/log"
)

// Graph inspection tool names.
const (
	ToolGraphSchema = "get_graph_schema"
	ToolCypherQuery = "run_cypher_query"
)

// GraphReader answers schema and read-only Cypher requests. Implemented
// by the graphiti store.
type GraphReader interface {
	Schema(ctx context.Context) (string, error)
	ReadQuery(ctx context.Context, query string, params map[string]any) (string, error)
}

// Graph wires graph inspection into model-callable tools.
type Graph struct {
	reader GraphReader
	logger log.Logger
}

// NewGraph creates the graph tool set.
func NewGraph(reader GraphReader, logger log.Logger) (*Graph, error) {
	if reader == nil {
		return nil, errors.New("graph reader is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Graph{reader: reader, logger: logger}, nil
}

// CypherInput carries a read-only Cypher query.
type CypherInput struct {
	Query string `json:"query" jsonschema_description:"Read-only Cypher query. Write clauses are rejected"`
}

// Register defines the graph tools and returns their references.
func (t *Graph) Register(g *genkit.Genkit) []ai.ToolRef {
	schemaTool := genkit.DefineTool(g, ToolGraphSchema,
		"Inspect the knowledge graph schema: node labels, relationship types and how they connect.",
		func(ctx *ai.ToolContext, _ struct{}) (string, error) {
			return t.reader.Schema(ctx.Context)
		})

	cypherTool := genkit.DefineTool(g, ToolCypherQuery,
		"Run a read-only Cypher query against the knowledge graph and get the rows as JSON.",
		func(ctx *ai.ToolContext, input CypherInput) (string, error) {
			return t.reader.ReadQuery(ctx.Context, input.Query, nil)
		})

	return []ai.ToolRef{schemaTool, cypherTool}
}
