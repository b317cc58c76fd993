package lightrag

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/paperbase/paperbase/internal/log"
)

func newTestClient(t *testing.T, handler http.Handler, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(srv.URL, log.NewNop(), opts...)
	if err != nil {
		t.Fatalf("NewClient() error: %v", err)
	}
	return c
}

func TestNewClientRejectsBadURL(t *testing.T) {
	for _, raw := range []string{"", "not a url", "ftp://host", "http://"} {
		if _, err := NewClient(raw, log.NewNop()); err == nil {
			t.Errorf("NewClient(%q) should fail", raw)
		}
	}
}

func TestQuery(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/query" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var req struct {
			Query string `json:"query"`
			Mode  string `json:"mode"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		if req.Query != "what is BERT?" || req.Mode != "hybrid" {
			t.Errorf("request = %+v", req)
		}
		json.NewEncoder(w).Encode(map[string]string{"response": "a language model"})
	})

	c := newTestClient(t, handler)
	resp, err := c.Query(context.Background(), "what is BERT?", "hybrid")
	if err != nil {
		t.Fatalf("Query() error: %v", err)
	}
	if resp.Response != "a language model" {
		t.Errorf("Response = %q", resp.Response)
	}
	if resp.Status != "success" {
		t.Errorf("Status = %q, want success", resp.Status)
	}
}

func TestQuerySendsBearerToken(t *testing.T) {
	var gotAuth string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(map[string]string{"response": "ok"})
	})

	c := newTestClient(t, handler, WithAPIKey("sk-test"))
	if _, err := c.Query(context.Background(), "q", "hybrid"); err != nil {
		t.Fatalf("Query() error: %v", err)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("Authorization = %q, want Bearer sk-test", gotAuth)
	}
}

func TestQueryUnauthorized(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	c := newTestClient(t, handler)
	if _, err := c.Query(context.Background(), "q", "hybrid"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("Query() error = %v, want %v", err, ErrUnauthorized)
	}
}

func TestQueryServerError(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "index rebuilding", http.StatusServiceUnavailable)
	})

	c := newTestClient(t, handler)
	if _, err := c.Query(context.Background(), "q", "hybrid"); !errors.Is(err, ErrServerError) {
		t.Fatalf("Query() error = %v, want %v", err, ErrServerError)
	}
}

func TestInsert(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/documents/text" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var req struct {
			Text string `json:"text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		if req.Text != "paper abstract" {
			t.Errorf("text = %q", req.Text)
		}
		json.NewEncoder(w).Encode(map[string]string{
			"status":  "success",
			"message": "document enqueued",
		})
	})

	c := newTestClient(t, handler)
	resp, err := c.Insert(context.Background(), "paper abstract")
	if err != nil {
		t.Fatalf("Insert() error: %v", err)
	}
	if resp.Status != "success" || resp.Message != "document enqueued" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestHealth(t *testing.T) {
	healthy := true
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if !healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	})

	c := newTestClient(t, handler)
	if err := c.Health(context.Background()); err != nil {
		t.Fatalf("Health() error: %v", err)
	}

	healthy = false
	if err := c.Health(context.Background()); !errors.Is(err, ErrServerError) {
		t.Fatalf("Health() error = %v, want %v", err, ErrServerError)
	}
}
