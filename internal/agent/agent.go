// Package agent defines the assistant's agents: small declarative units
// of name, instruction and tools, executed through Genkit. The master
// agent reaches the specialists through ask_<name> tools, so delegation
// is an ordinary tool call from the model's point of view.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"

	"github.com/paperbase/paperbase/internal/log"
)

var (
	// ErrEmptyQuery indicates an empty query passed to Execute.
	ErrEmptyQuery = errors.New("query must not be empty")

	// ErrBlocked indicates the guard agent rejected the input.
	ErrBlocked = errors.New("input blocked by guard")
)

// Agent is a declarative agent definition.
type Agent struct {
	// Name identifies the agent. Used to derive its ask_<name> tool.
	Name string

	// Description tells the master agent when to delegate here.
	Description string

	// Instruction is the system prompt.
	Instruction string

	// Model overrides the default model when set.
	Model string

	// Tools are the tool references available to this agent.
	Tools []ai.ToolRef
}

// Runner executes agents against a Genkit instance.
type Runner struct {
	g            *genkit.Genkit
	defaultModel string
	genConfig    *ai.GenerationCommonConfig
	logger       log.Logger
}

// NewRunner creates an agent runner. genConfig tunes sampling for every
// agent turn; nil leaves the provider defaults.
func NewRunner(g *genkit.Genkit, defaultModel string, genConfig *ai.GenerationCommonConfig, logger log.Logger) (*Runner, error) {
	if g == nil {
		return nil, errors.New("genkit instance is required")
	}
	if strings.TrimSpace(defaultModel) == "" {
		return nil, errors.New("default model is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Runner{g: g, defaultModel: defaultModel, genConfig: genConfig, logger: logger}, nil
}

// Execute runs one agent turn and returns the final text.
func (r *Runner) Execute(ctx context.Context, agent *Agent, query string) (string, error) {
	if agent == nil {
		return "", errors.New("agent is required")
	}
	if strings.TrimSpace(query) == "" {
		return "", ErrEmptyQuery
	}

	model := agent.Model
	if model == "" {
		model = r.defaultModel
	}

	r.logger.Debug("executing agent", "agent", agent.Name, "model", model, "tools", len(agent.Tools))

	opts := []ai.GenerateOption{
		ai.WithModelName(model),
		ai.WithSystem(agent.Instruction),
		ai.WithPrompt(query),
		ai.WithTools(agent.Tools...),
	}
	if r.genConfig != nil {
		opts = append(opts, ai.WithConfig(r.genConfig))
	}

	resp, err := genkit.Generate(ctx, r.g, opts...)
	if err != nil {
		return "", fmt.Errorf("agent %s: %w", agent.Name, err)
	}
	return resp.Text(), nil
}

// Screen runs the guard agent over raw user input. Returns ErrBlocked
// when the verdict is anything but SAFE.
func (r *Runner) Screen(ctx context.Context, guard *Agent, query string) error {
	verdict, err := r.Execute(ctx, guard, query)
	if err != nil {
		return fmt.Errorf("screening input: %w", err)
	}
	return checkVerdict(verdict)
}

// checkVerdict interprets a guard verdict. Only a response starting with
// the SAFE token passes; everything else, including an empty response,
// blocks the input.
func checkVerdict(verdict string) error {
	v := strings.TrimSpace(verdict)
	if strings.HasPrefix(v, guardVerdictSafe) {
		return nil
	}
	detail := strings.TrimSpace(strings.TrimPrefix(v, "UNSAFE:"))
	if detail == "" {
		detail = "no verdict"
	}
	return fmt.Errorf("%w: %s", ErrBlocked, detail)
}

// DefineAgentTool wraps an agent as an ask_<name> tool so another agent
// can delegate to it.
func (r *Runner) DefineAgentTool(agent *Agent) ai.ToolRef {
	return genkit.DefineTool(r.g, "ask_"+agent.Name, agent.Description,
		func(toolCtx *ai.ToolContext, input AskInput) (string, error) {
			return r.Execute(toolCtx.Context, agent, input.Query)
		})
}

// AskInput is the payload of every ask_<name> delegation tool.
type AskInput struct {
	Query string `json:"query" jsonschema_description:"The question or task to hand to this agent"`
}
