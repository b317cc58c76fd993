// Package markdown stores per-feature knowledge as Markdown files on disk.
// A feature is a "/"-separated path (product/epic/feature); each segment
// becomes a sanitized directory, holding one file per knowledge kind or
// per source:
//
//	<root>/<product>/<epic>/<feature>/business.md
//	<root>/<product>/<epic>/<feature>/<source_id>.md
//
// Files carry a YAML front matter header recording the feature name, the
// kind and the last update time. The header is internal to the store: Get
// strips it before returning content.
package markdown

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/paperbase/paperbase/internal/log"
)

var (
	// ErrNotFound indicates the requested knowledge file does not exist.
	ErrNotFound = errors.New("markdown knowledge not found")

	// ErrInvalidFeature indicates the feature path is empty after
	// sanitization.
	ErrInvalidFeature = errors.New("invalid feature name")

	// ErrEmptyContent indicates empty content passed to Save.
	ErrEmptyContent = errors.New("content must not be empty")
)

var (
	invalidChars = regexp.MustCompile(`[^\w\s-]`)
	separators   = regexp.MustCompile(`[-\s]+`)
	frontMatter  = regexp.MustCompile(`(?s)^---\n.*?---\n\n`)
)

// Feature describes one feature directory and the knowledge kinds it holds.
type Feature struct {
	Name  string   `json:"feature"`
	Kinds []string `json:"knowledge_types"`
}

// Store persists Markdown knowledge files under a root directory.
type Store struct {
	root   string
	logger log.Logger

	// now is replaceable for tests.
	now func() time.Time
}

// NewStore creates a store rooted at dir, creating the directory if needed.
func NewStore(dir string, logger log.Logger) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("markdown root directory is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating markdown root: %w", err)
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Store{root: dir, logger: logger, now: time.Now}, nil
}

// Save writes (or overwrites) a knowledge file under the feature path,
// prefixing the content with a front matter header. The file is named
// after sourceID when given (ticket or paper ID), otherwise after the
// kind. Returns the file path.
func (s *Store) Save(feature, kind, sourceID, content string) (string, error) {
	featureDir, err := sanitizeFeaturePath(feature)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(content) == "" {
		return "", ErrEmptyContent
	}

	dir := filepath.Join(s.root, featureDir)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("creating feature directory: %w", err)
	}

	header := fmt.Sprintf("---\nfeature: %s\ntype: %s\nlast_updated: %s\n---\n\n",
		feature, kind, s.now().UTC().Format(time.RFC3339))

	fileName := kind + ".md"
	if sourceID != "" {
		stem, err := sanitizeName(sourceID)
		if err != nil {
			return "", fmt.Errorf("invalid source id %q: %w", sourceID, err)
		}
		fileName = stem + ".md"
	}

	path := filepath.Join(dir, fileName)
	if err := os.WriteFile(path, []byte(header+content), 0o640); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}

	s.logger.Debug("markdown file written", "path", path)
	return path, nil
}

// Get reads the knowledge file for a feature and kind. The front matter
// header is stripped, so callers receive only the stored content.
func (s *Store) Get(feature, kind string) (string, error) {
	featureDir, err := sanitizeFeaturePath(feature)
	if err != nil {
		return "", err
	}

	path := filepath.Join(s.root, featureDir, kind+".md")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: feature %q kind %q", ErrNotFound, feature, kind)
		}
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return frontMatter.ReplaceAllString(string(data), ""), nil
}

// Delete removes the knowledge file for a feature and kind. An empty kind
// removes the feature's whole directory tree. Emptied parent directories
// are pruned up to the store root.
func (s *Store) Delete(feature, kind string) error {
	featureDir, err := sanitizeFeaturePath(feature)
	if err != nil {
		return err
	}
	dir := filepath.Join(s.root, featureDir)

	if kind == "" {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			return fmt.Errorf("%w: feature %q", ErrNotFound, feature)
		}
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("removing %s: %w", dir, err)
		}
		s.pruneEmptyDirs(filepath.Dir(dir))
		s.logger.Debug("feature directory removed", "dir", dir)
		return nil
	}

	path := filepath.Join(dir, kind+".md")
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: feature %q kind %q", ErrNotFound, feature, kind)
		}
		return fmt.Errorf("removing %s: %w", path, err)
	}
	s.pruneEmptyDirs(dir)

	s.logger.Debug("markdown file removed", "path", path)
	return nil
}

// pruneEmptyDirs removes dir and its parents while they are empty,
// stopping at the store root.
func (s *Store) pruneEmptyDirs(dir string) {
	root := filepath.Clean(s.root)
	for dir != root && strings.HasPrefix(dir, root) {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := os.Remove(dir); err != nil {
			s.logger.Warn("pruning empty directory failed", "dir", dir, "error", err)
			return
		}
		dir = filepath.Dir(dir)
	}
}

// ListFeatures walks the store and returns every feature path that holds
// at least one knowledge file, with the kinds available for each, sorted
// by feature path.
func (s *Store) ListFeatures() ([]Feature, error) {
	var features []Feature

	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() || path == s.root {
			return err
		}

		entries, err := os.ReadDir(path)
		if err != nil {
			return err
		}
		hasFiles := false
		var kinds []string
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
				continue
			}
			hasFiles = true
			switch e.Name() {
			case "business.md":
				kinds = append(kinds, "business")
			case "technical.md":
				kinds = append(kinds, "technical")
			}
		}
		if !hasFiles {
			return nil
		}

		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return err
		}
		sort.Strings(kinds)
		features = append(features, Feature{Name: filepath.ToSlash(rel), Kinds: kinds})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking markdown root: %w", err)
	}

	sort.Slice(features, func(i, j int) bool { return features[i].Name < features[j].Name })
	return features, nil
}

// sanitizeFeaturePath sanitizes each "/"-separated segment of a feature
// path so hierarchies like product/epic/feature map onto nested
// directories.
func sanitizeFeaturePath(feature string) (string, error) {
	segments := make([]string, 0, 4)
	for _, part := range strings.Split(feature, "/") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		name, err := sanitizeName(part)
		if err != nil {
			return "", err
		}
		segments = append(segments, name)
	}
	if len(segments) == 0 {
		return "", fmt.Errorf("%w: %q", ErrInvalidFeature, feature)
	}
	return filepath.Join(segments...), nil
}

// sanitizeName turns a free-form name into a safe directory or file name:
// punctuation is stripped, runs of spaces and hyphens collapse to a single
// underscore, and the result is lowercased.
func sanitizeName(name string) (string, error) {
	clean := invalidChars.ReplaceAllString(name, "")
	clean = separators.ReplaceAllString(strings.TrimSpace(clean), "_")
	clean = strings.ToLower(clean)
	if clean == "" || clean == "_" {
		return "", fmt.Errorf("%w: %q", ErrInvalidFeature, name)
	}
	return clean, nil
}
