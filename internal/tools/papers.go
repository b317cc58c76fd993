package tools

import (
	"errors"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/paperbase/paperbase/internal/log"
	"github.com/paperbase/paperbase/internal/papers"
)

// Paper retrieval tool names.
const (
	ToolSearchPapers   = "search_papers"
	ToolFetchPaperPage = "fetch_paper_page"
)

// Papers wires the arXiv client and the page fetcher into tools.
type Papers struct {
	arxiv   *papers.ArxivClient
	fetcher *papers.PageFetcher
	logger  log.Logger
}

// NewPapers creates the paper retrieval tool set.
func NewPapers(arxiv *papers.ArxivClient, fetcher *papers.PageFetcher, logger log.Logger) (*Papers, error) {
	if arxiv == nil {
		return nil, errors.New("arxiv client is required")
	}
	if fetcher == nil {
		return nil, errors.New("page fetcher is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Papers{arxiv: arxiv, fetcher: fetcher, logger: logger}, nil
}

// SearchPapersInput searches arXiv.
type SearchPapersInput struct {
	Query string `json:"query" jsonschema_description:"Free-text search query for arXiv"`
	Limit int    `json:"limit,omitempty" jsonschema_description:"Maximum number of results, 1-50. Defaults to 10"`
}

// FetchPageInput downloads one paper page.
type FetchPageInput struct {
	URL string `json:"url" jsonschema_description:"HTTP or HTTPS URL of the paper page to fetch"`
}

// Register defines the paper tools and returns their references.
func (t *Papers) Register(g *genkit.Genkit) []ai.ToolRef {
	searchTool := genkit.DefineTool(g, ToolSearchPapers,
		"Search arXiv for scientific papers matching a query.",
		func(ctx *ai.ToolContext, input SearchPapersInput) ([]papers.Paper, error) {
			return t.arxiv.Search(ctx.Context, input.Query, input.Limit)
		})

	fetchTool := genkit.DefineTool(g, ToolFetchPaperPage,
		"Fetch a paper's web page and extract its readable text and citation metadata.",
		func(ctx *ai.ToolContext, input FetchPageInput) (papers.Page, error) {
			return t.fetcher.Fetch(ctx.Context, input.URL)
		})

	return []ai.ToolRef{searchTool, fetchTool}
}
