package papers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"github.com/paperbase/paperbase/internal/log"
)

// ErrFetchFailed indicates the paper page could not be retrieved.
var ErrFetchFailed = errors.New("fetching paper page failed")

// Page is the extracted content of a paper's web page. Citation holds the
// Highwire Press citation_* meta tags publishers embed for indexers.
type Page struct {
	URL      string            `json:"url"`
	Title    string            `json:"title"`
	Byline   string            `json:"byline,omitempty"`
	Excerpt  string            `json:"excerpt,omitempty"`
	Text     string            `json:"text"`
	Citation map[string]string `json:"citation,omitempty"`
}

// PageFetcher downloads paper pages and extracts their readable content.
type PageFetcher struct {
	http   *http.Client
	logger log.Logger
}

// NewPageFetcher creates a fetcher. hc may be nil.
func NewPageFetcher(hc *http.Client, logger log.Logger) *PageFetcher {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &PageFetcher{http: hc, logger: logger}
}

// Fetch downloads rawURL and returns its readable text plus any citation
// metadata found in the page head.
func (f *PageFetcher) Fetch(ctx context.Context, rawURL string) (Page, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Page{}, fmt.Errorf("invalid page URL %q", rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Page{}, fmt.Errorf("building page request: %w", err)
	}
	req.Header.Set("Accept", "text/html")

	resp, err := f.http.Do(req)
	if err != nil {
		return Page{}, fmt.Errorf("%w: %w", ErrFetchFailed, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		return Page{}, fmt.Errorf("%w: status %d", ErrFetchFailed, resp.StatusCode)
	}

	// 8 MiB cap; paper landing pages are small, PDFs belong elsewhere.
	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return Page{}, fmt.Errorf("reading page: %w", err)
	}

	article, err := readability.FromReader(bytes.NewReader(body), u)
	if err != nil {
		return Page{}, fmt.Errorf("extracting readable content: %w", err)
	}

	page := Page{
		URL:     rawURL,
		Title:   article.Title,
		Byline:  article.Byline,
		Excerpt: article.Excerpt,
		Text:    strings.TrimSpace(article.TextContent),
	}
	page.Citation = extractCitationMeta(bytes.NewReader(body))

	f.logger.Debug("paper page fetched",
		"url", rawURL, "chars", len(page.Text), "citation_tags", len(page.Citation))
	return page, nil
}

// extractCitationMeta collects Highwire citation_* meta tags. Repeated
// tags (citation_author appears once per author) are joined with "; ".
func extractCitationMeta(r io.Reader) map[string]string {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil
	}

	meta := map[string]string{}
	doc.Find(`meta[name^="citation_"]`).Each(func(_ int, sel *goquery.Selection) {
		name, _ := sel.Attr("name")
		content, _ := sel.Attr("content")
		name = strings.TrimPrefix(name, "citation_")
		if name == "" || content == "" {
			return
		}
		if existing, ok := meta[name]; ok {
			meta[name] = existing + "; " + content
			return
		}
		meta[name] = content
	})

	if len(meta) == 0 {
		return nil
	}
	return meta
}
