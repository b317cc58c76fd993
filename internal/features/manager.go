// Package features maintains the project features overview: a Markdown
// file holding a single mermaid diagram of every known feature. Updates go
// through a model call that merges a described change into the current
// diagram, and the file is guarded by an advisory lock so concurrent
// agents cannot interleave writes.
package features

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/gofrs/flock"

	"github.com/paperbase/paperbase/internal/log"
)

var (
	// ErrNoDiagram indicates the model response contained no mermaid block.
	ErrNoDiagram = errors.New("no mermaid diagram in model response")

	// ErrLockTimeout indicates the features file lock could not be acquired.
	ErrLockTimeout = errors.New("features file is locked by another process")
)

const lockTimeout = 10 * time.Second

// emptyDiagram seeds a features file that does not exist yet.
const emptyDiagram = "```mermaid\nmindmap\n  root((Features))\n```\n"

var mermaidBlock = regexp.MustCompile("(?s)```mermaid\\s*\\n(.*?)```")

// Generator produces text from a prompt. Satisfied by GenkitGenerator;
// tests substitute a stub.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// GenkitGenerator generates text through a Genkit model.
type GenkitGenerator struct {
	g         *genkit.Genkit
	model     string
	genConfig *ai.GenerationCommonConfig
}

// NewGenkitGenerator wraps a Genkit instance and model name. genConfig
// tunes sampling; nil leaves the provider defaults.
func NewGenkitGenerator(g *genkit.Genkit, model string, genConfig *ai.GenerationCommonConfig) *GenkitGenerator {
	return &GenkitGenerator{g: g, model: model, genConfig: genConfig}
}

// Generate runs a single completion.
func (gg *GenkitGenerator) Generate(ctx context.Context, system, prompt string) (string, error) {
	opts := []ai.GenerateOption{
		ai.WithModelName(gg.model),
		ai.WithSystem(system),
		ai.WithPrompt(prompt),
	}
	if gg.genConfig != nil {
		opts = append(opts, ai.WithConfig(gg.genConfig))
	}
	resp, err := genkit.Generate(ctx, gg.g, opts...)
	if err != nil {
		return "", fmt.Errorf("generating: %w", err)
	}
	return resp.Text(), nil
}

// Manager reads and updates the features overview file.
type Manager struct {
	path      string
	generator Generator
	logger    log.Logger
}

// NewManager creates a manager for the features file at path.
func NewManager(path string, generator Generator, logger log.Logger) (*Manager, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("features file path is required")
	}
	if generator == nil {
		return nil, errors.New("generator is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Manager{path: path, generator: generator, logger: logger}, nil
}

// Read returns the current features file content, or the empty diagram if
// the file does not exist yet.
func (m *Manager) Read() (string, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return emptyDiagram, nil
		}
		return "", fmt.Errorf("reading features file: %w", err)
	}
	return string(data), nil
}

const updateSystem = `You maintain a mermaid mindmap of a software project's features.
Given the current diagram and a described change, output the complete
updated diagram in a single fenced mermaid code block. Preserve every
existing node unless the change removes it. Output only the code block.`

// Update merges the described change into the diagram through the model
// and writes the result back under an advisory file lock.
func (m *Manager) Update(ctx context.Context, change string) (string, error) {
	lock := flock.New(m.path + ".lock")
	lockCtx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()

	locked, err := lock.TryLockContext(lockCtx, 200*time.Millisecond)
	if err != nil || !locked {
		return "", fmt.Errorf("%w: %s", ErrLockTimeout, m.path)
	}
	defer lock.Unlock() //nolint:errcheck

	current, err := m.Read()
	if err != nil {
		return "", err
	}

	prompt := fmt.Sprintf("Current diagram:\n\n%s\n\nChange to apply:\n%s", current, change)
	raw, err := m.generator.Generate(ctx, updateSystem, prompt)
	if err != nil {
		return "", fmt.Errorf("merging features change: %w", err)
	}

	diagram, err := extractMermaid(raw)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(m.path), 0o750); err != nil {
		return "", fmt.Errorf("creating features directory: %w", err)
	}
	if err := os.WriteFile(m.path, []byte(diagram), 0o640); err != nil {
		return "", fmt.Errorf("writing features file: %w", err)
	}

	m.logger.Info("features list updated", "path", m.path, "chars", len(diagram))
	return diagram, nil
}

// extractMermaid pulls the first fenced mermaid block out of a model
// response and re-fences it, discarding any surrounding prose.
func extractMermaid(raw string) (string, error) {
	match := mermaidBlock.FindStringSubmatch(raw)
	if match == nil {
		return "", fmt.Errorf("%w: %q", ErrNoDiagram, truncate(raw, 120))
	}
	body := strings.TrimRight(match[1], "\n")
	return "```mermaid\n" + body + "\n```\n", nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
