// Package papers fetches scientific paper metadata and content from the
// open web: the arXiv Atom API for search and a readability extractor for
// arbitrary paper pages.
package papers

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/paperbase/paperbase/internal/log"
)

// ErrArxivError indicates a failed arXiv API request.
var ErrArxivError = errors.New("arxiv request failed")

const (
	arxivBaseURL   = "http://export.arxiv.org/api/query"
	defaultResults = 10
	maxResults     = 50
)

// Paper is one arXiv search hit.
type Paper struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Summary   string    `json:"summary"`
	Authors   []string  `json:"authors"`
	Published time.Time `json:"published"`
	PDFURL    string    `json:"pdf_url,omitempty"`
	Category  string    `json:"category,omitempty"`
}

// ArxivClient searches the arXiv Atom API.
type ArxivClient struct {
	baseURL string
	http    *http.Client
	logger  log.Logger
}

// NewArxivClient creates a client. hc may be nil; baseURL overrides are
// for tests.
func NewArxivClient(hc *http.Client, logger log.Logger) *ArxivClient {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &ArxivClient{baseURL: arxivBaseURL, http: hc, logger: logger}
}

// Search queries arXiv for papers matching the free-text query.
func (c *ArxivClient) Search(ctx context.Context, query string, limit int) ([]Paper, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.New("query must not be empty")
	}
	if limit <= 0 {
		limit = defaultResults
	}
	if limit > maxResults {
		limit = maxResults
	}

	params := url.Values{}
	params.Set("search_query", "all:"+query)
	params.Set("start", "0")
	params.Set("max_results", strconv.Itoa(limit))
	params.Set("sortBy", "relevance")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("building arxiv request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrArxivError, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrArxivError, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("reading arxiv response: %w", err)
	}

	papers, err := parseAtomFeed(body)
	if err != nil {
		return nil, err
	}
	c.logger.Debug("arxiv search finished", "query", query, "hits", len(papers))
	return papers, nil
}

// Atom feed shapes, limited to the fields we use.

type atomFeed struct {
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID        string       `xml:"id"`
	Title     string       `xml:"title"`
	Summary   string       `xml:"summary"`
	Published string       `xml:"published"`
	Authors   []atomAuthor `xml:"author"`
	Links     []atomLink   `xml:"link"`
	Category  atomCategory `xml:"primary_category"`
}

type atomAuthor struct {
	Name string `xml:"name"`
}

type atomLink struct {
	Href  string `xml:"href,attr"`
	Title string `xml:"title,attr"`
	Type  string `xml:"type,attr"`
}

type atomCategory struct {
	Term string `xml:"term,attr"`
}

func parseAtomFeed(data []byte) ([]Paper, error) {
	var feed atomFeed
	if err := xml.Unmarshal(data, &feed); err != nil {
		return nil, fmt.Errorf("parsing arxiv feed: %w", err)
	}

	papers := make([]Paper, 0, len(feed.Entries))
	for _, entry := range feed.Entries {
		p := Paper{
			ID:       entry.ID,
			Title:    collapseWhitespace(entry.Title),
			Summary:  collapseWhitespace(entry.Summary),
			Category: entry.Category.Term,
		}
		for _, a := range entry.Authors {
			p.Authors = append(p.Authors, a.Name)
		}
		for _, l := range entry.Links {
			if l.Title == "pdf" || l.Type == "application/pdf" {
				p.PDFURL = l.Href
				break
			}
		}
		if t, err := time.Parse(time.RFC3339, entry.Published); err == nil {
			p.Published = t
		}
		papers = append(papers, p)
	}
	return papers, nil
}

// collapseWhitespace normalizes the newline-wrapped text arXiv returns.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
