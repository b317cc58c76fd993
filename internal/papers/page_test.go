package papers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/paperbase/paperbase/internal/log"
)

const samplePage = `<!DOCTYPE html>
<html>
<head>
  <title>Attention Is All You Need | Example Journal</title>
  <meta name="citation_title" content="Attention Is All You Need">
  <meta name="citation_author" content="Ashish Vaswani">
  <meta name="citation_author" content="Noam Shazeer">
  <meta name="citation_publication_date" content="2017/06/12">
  <meta name="citation_doi" content="10.48550/arXiv.1706.03762">
  <meta name="description" content="not a citation tag">
</head>
<body>
  <article>
    <h1>Attention Is All You Need</h1>
    <p>The dominant sequence transduction models are based on complex recurrent
    or convolutional neural networks that include an encoder and a decoder.
    The best performing models also connect the encoder and decoder through an
    attention mechanism. We propose a new simple network architecture, the
    Transformer, based solely on attention mechanisms, dispensing with
    recurrence and convolutions entirely.</p>
    <p>Experiments on two machine translation tasks show these models to be
    superior in quality while being more parallelizable and requiring
    significantly less time to train.</p>
  </article>
</body>
</html>`

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(samplePage))
	}))
	t.Cleanup(srv.Close)

	f := NewPageFetcher(srv.Client(), log.NewNop())
	page, err := f.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch() error: %v", err)
	}

	if !strings.Contains(page.Text, "Transformer") {
		t.Errorf("Text missing article body: %q", page.Text)
	}
	if page.Citation["title"] != "Attention Is All You Need" {
		t.Errorf("citation title = %q", page.Citation["title"])
	}
	if page.Citation["author"] != "Ashish Vaswani; Noam Shazeer" {
		t.Errorf("citation authors = %q (repeated tags should join)", page.Citation["author"])
	}
	if page.Citation["doi"] != "10.48550/arXiv.1706.03762" {
		t.Errorf("citation doi = %q", page.Citation["doi"])
	}
	if _, exists := page.Citation["description"]; exists {
		t.Error("non-citation meta tags should be ignored")
	}
}

func TestFetchRejectsBadURL(t *testing.T) {
	f := NewPageFetcher(nil, log.NewNop())
	for _, raw := range []string{"", "ftp://host/x", "not a url", "file:///etc/passwd"} {
		if _, err := f.Fetch(context.Background(), raw); err == nil {
			t.Errorf("Fetch(%q) should fail", raw)
		}
	}
}

func TestFetchNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	t.Cleanup(srv.Close)

	f := NewPageFetcher(srv.Client(), log.NewNop())
	if _, err := f.Fetch(context.Background(), srv.URL); err == nil {
		t.Fatal("Fetch() should fail on 404")
	}
}

func TestExtractCitationMetaEmpty(t *testing.T) {
	meta := extractCitationMeta(strings.NewReader("<html><head></head><body></body></html>"))
	if meta != nil {
		t.Errorf("extractCitationMeta() = %v, want nil", meta)
	}
}
