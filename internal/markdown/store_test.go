package markdown

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/paperbase/paperbase/internal/log"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir(), log.NewNop())
	if err != nil {
		t.Fatalf("NewStore() error: %v", err)
	}
	s.now = func() time.Time {
		return time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	}
	return s
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "User Auth", want: "user_auth"},
		{in: "User-Auth Flow", want: "user_auth_flow"},
		{in: "GraphQL (v2)!", want: "graphql_v2"},
		{in: "  padded  ", want: "padded"},
		{in: "rate-limit 2.0", want: "rate_limit_20"},
		{in: "!!!", wantErr: true},
		{in: "", wantErr: true},
		{in: "   ", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := sanitizeName(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidFeature) {
					t.Fatalf("sanitizeName(%q) error = %v, want %v", tt.in, err, ErrInvalidFeature)
				}
				return
			}
			if err != nil {
				t.Fatalf("sanitizeName(%q) error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("sanitizeName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSanitizeFeaturePath(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "auth", want: "auth"},
		{in: "product/epic feature", want: filepath.Join("product", "epic_feature")},
		{in: "Product/Project/Epic/My Feature", want: filepath.Join("product", "project", "epic", "my_feature")},
		{in: "a//b", want: filepath.Join("a", "b")},
		{in: "../escape", wantErr: true},
		{in: "/", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := sanitizeFeaturePath(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidFeature) {
					t.Fatalf("sanitizeFeaturePath(%q) error = %v, want %v", tt.in, err, ErrInvalidFeature)
				}
				return
			}
			if err != nil {
				t.Fatalf("sanitizeFeaturePath(%q) error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("sanitizeFeaturePath(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestSaveAndGet(t *testing.T) {
	s := newTestStore(t)

	path, err := s.Save("User Auth", "technical", "", "# Auth\nJWT tokens.")
	if err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if want := filepath.Join(s.root, "user_auth", "technical.md"); path != want {
		t.Errorf("path = %q, want %q", path, want)
	}

	// On disk the file carries the front matter header.
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{
		"---\n",
		"feature: User Auth\n",
		"type: technical\n",
		"last_updated: 2026-08-30T12:00:00Z\n",
	} {
		if !strings.Contains(string(raw), want) {
			t.Errorf("file missing %q:\n%s", want, raw)
		}
	}

	// Get strips the header and returns only the content.
	content, err := s.Get("user auth", "technical")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if content != "# Auth\nJWT tokens." {
		t.Errorf("Get() = %q, want content without front matter", content)
	}
}

func TestSaveFeatureHierarchy(t *testing.T) {
	s := newTestStore(t)

	path, err := s.Save("product/epic feature", "technical", "", "layered")
	if err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if want := filepath.Join(s.root, "product", "epic_feature", "technical.md"); path != want {
		t.Errorf("path = %q, want nested %q", path, want)
	}

	content, err := s.Get("product/epic feature", "technical")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if content != "layered" {
		t.Errorf("Get() = %q, want %q", content, "layered")
	}
}

func TestSaveWithSourceID(t *testing.T) {
	s := newTestStore(t)

	path, err := s.Save("auth", "business", "PROJ-142", "ticket notes")
	if err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if want := filepath.Join(s.root, "auth", "proj_142.md"); path != want {
		t.Errorf("path = %q, want %q", path, want)
	}
}

func TestSaveOverwrites(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.Save("auth", "business", "", "v1"); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if _, err := s.Save("auth", "business", "", "v2"); err != nil {
		t.Fatalf("Save() overwrite error: %v", err)
	}

	content, err := s.Get("auth", "business")
	if err != nil {
		t.Fatalf("Get() error: %v", err)
	}
	if content != "v2" {
		t.Errorf("content = %q, want %q", content, "v2")
	}
}

func TestSaveRejectsEmptyContent(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Save("auth", "business", "", "  \n"); !errors.Is(err, ErrEmptyContent) {
		t.Fatalf("Save() error = %v, want %v", err, ErrEmptyContent)
	}
}

func TestGetNotFound(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Get("missing", "technical"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get() error = %v, want %v", err, ErrNotFound)
	}
}

func TestDeletePrunesEmptyDirectory(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.Save("auth", "business", "", "b"); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if _, err := s.Save("auth", "technical", "", "t"); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	if err := s.Delete("auth", "business"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	// One file left, directory must survive.
	if _, err := os.Stat(filepath.Join(s.root, "auth")); err != nil {
		t.Fatalf("feature dir should still exist: %v", err)
	}

	if err := s.Delete("auth", "technical"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(s.root, "auth")); !os.IsNotExist(err) {
		t.Errorf("feature dir should be pruned, stat err = %v", err)
	}
}

func TestDeleteWholeFeature(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.Save("product/search", "business", "", "b"); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if _, err := s.Save("product/search", "technical", "", "t"); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	// Empty kind removes the whole feature directory and prunes the
	// emptied parent.
	if err := s.Delete("product/search", ""); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(s.root, "product", "search")); !os.IsNotExist(err) {
		t.Errorf("feature dir should be gone, stat err = %v", err)
	}
	if _, err := os.Stat(filepath.Join(s.root, "product")); !os.IsNotExist(err) {
		t.Errorf("parent dir should be pruned, stat err = %v", err)
	}
}

func TestDeleteNotFound(t *testing.T) {
	s := newTestStore(t)
	if err := s.Delete("ghost", "business"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Delete() error = %v, want %v", err, ErrNotFound)
	}
	if err := s.Delete("ghost", ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Delete() whole feature error = %v, want %v", err, ErrNotFound)
	}
}

func TestListFeatures(t *testing.T) {
	s := newTestStore(t)

	if got, err := s.ListFeatures(); err != nil || len(got) != 0 {
		t.Fatalf("ListFeatures() on empty store = %v, %v", got, err)
	}

	if _, err := s.Save("auth", "business", "", "b"); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if _, err := s.Save("auth", "technical", "", "t"); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if _, err := s.Save("product/search", "business", "", "b"); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if _, err := s.Save("billing", "business", "PROJ-7", "ticket"); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	// Empty directories are ignored.
	if err := os.MkdirAll(filepath.Join(s.root, "empty_dir"), 0o750); err != nil {
		t.Fatal(err)
	}

	got, err := s.ListFeatures()
	if err != nil {
		t.Fatalf("ListFeatures() error: %v", err)
	}

	want := []Feature{
		{Name: "auth", Kinds: []string{"business", "technical"}},
		{Name: "billing", Kinds: nil},
		{Name: "product/search", Kinds: []string{"business"}},
	}
	if len(got) != len(want) {
		t.Fatalf("ListFeatures() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i].Name != want[i].Name {
			t.Errorf("ListFeatures()[%d].Name = %q, want %q", i, got[i].Name, want[i].Name)
		}
		if strings.Join(got[i].Kinds, ",") != strings.Join(want[i].Kinds, ",") {
			t.Errorf("ListFeatures()[%d].Kinds = %v, want %v", i, got[i].Kinds, want[i].Kinds)
		}
	}
}
