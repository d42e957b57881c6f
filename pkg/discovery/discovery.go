// Package discovery implements the requirements-discovery agent. It handles
// six analysis task types (requirements gathering, stakeholder analysis,
// scope definition, risk identification, constraint analysis and success
// criteria definition), prompting a completion provider where text analysis
// is needed and persisting every finding as long-term agent memory.
package discovery

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jllopis/ergon/pkg/agent"
	"github.com/jllopis/ergon/pkg/core"
	"github.com/jllopis/ergon/pkg/llm"
	"github.com/jllopis/ergon/pkg/memory"
)

const systemPrompt = "You are a project discovery specialist. You elicit requirements, " +
	"map stakeholders and define project scope. Answer with concise, numbered or bulleted lists."

// Config carries the discovery-specific settings.
type Config struct {
	// Model is passed through to the completion provider.
	Model string
	// MaxStakeholders caps the stakeholder map size.
	MaxStakeholders int
	// RequirementCategories defines the buckets used to group requirements.
	RequirementCategories []string
	// AnalysisDepth tunes prompt verbosity ("summary" or "detailed").
	AnalysisDepth string
}

func (c *Config) applyDefaults() {
	if c.MaxStakeholders <= 0 {
		c.MaxStakeholders = 20
	}
	if len(c.RequirementCategories) == 0 {
		c.RequirementCategories = []string{"functional", "non_functional", "business", "technical", "regulatory"}
	}
	if c.AnalysisDepth == "" {
		c.AnalysisDepth = "detailed"
	}
}

// Agent is the discovery agent. It embeds the base agent runtime and routes
// tasks to per-type handlers.
type Agent struct {
	*agent.Base

	provider llm.Provider
	cfg      Config
	handlers map[string]func(ctx context.Context, task *core.Task) core.TaskResult
}

// New creates a discovery agent backed by the given completion provider.
// Additional agent options (store, logger, metrics) are applied after the
// discovery defaults and may override them.
func New(provider llm.Provider, cfg Config, opts ...agent.Option) (*Agent, error) {
	if provider == nil {
		return nil, fmt.Errorf("discovery agent requires a completion provider")
	}
	cfg.applyDefaults()

	a := &Agent{provider: provider, cfg: cfg}
	a.handlers = map[string]func(ctx context.Context, task *core.Task) core.TaskResult{
		"requirements_gathering": a.gatherRequirements,
		"stakeholder_analysis":   a.analyzeStakeholders,
		"scope_definition":       a.defineScope,
		"risk_identification":    a.identifyRisks,
		"constraint_analysis":    a.analyzeConstraints,
		"success_criteria":       a.defineSuccessCriteria,
	}

	options := []agent.Option{
		agent.WithDescription("Specialized agent for requirements gathering and project discovery"),
		agent.WithCapabilities(
			core.CapabilityRequirementsAnalysis,
			core.CapabilityResearch,
			core.CapabilityCommunication,
		),
		agent.WithHandler(a.route),
	}
	options = append(options, opts...)

	base, err := agent.New("Discovery Agent", "discovery", options...)
	if err != nil {
		return nil, err
	}
	a.Base = base
	return a, nil
}

// Tasks returns the task types this agent handles.
func (a *Agent) Tasks() []string {
	types := make([]string, 0, len(a.handlers))
	for t := range a.handlers {
		types = append(types, t)
	}
	return types
}

// route dispatches a task to its handler. An unknown task type is a reported
// failure, not a fault.
func (a *Agent) route(ctx context.Context, task *core.Task) core.TaskResult {
	handler, ok := a.handlers[task.Type]
	if !ok {
		return core.NewFailureResult(
			fmt.Sprintf("unknown discovery task type: %s", task.Type),
			map[string]any{"task_type": task.Type},
		)
	}
	return handler(ctx, task)
}

// complete runs a one-shot prompt through the provider. Callers treat a
// returned error as a degraded (empty) analysis, never as a task failure.
func (a *Agent) complete(ctx context.Context, prompt string) (string, error) {
	text, err := llm.Complete(ctx, a.provider, llm.CompletionRequest{
		Model:        a.cfg.Model,
		Prompt:       prompt,
		SystemPrompt: systemPrompt,
	})
	if err != nil {
		return "", agent.WrapProviderError(err, a.cfg.Model)
	}
	return text, nil
}

// remember persists a structured finding as a long-term memory entry.
func (a *Agent) remember(ctx context.Context, contextType string, content any, importance float64) {
	if _, err := a.Store().Store(ctx, contextType, content,
		memory.WithType(memory.TypeLongTerm),
		memory.WithImportance(importance),
	); err != nil {
		a.Logger().WarnContext(ctx, "discovery.memory.store_error",
			slog.String("agent_id", a.ID()),
			slog.String("context_type", contextType),
			slog.Any("error", err),
		)
	}
}
