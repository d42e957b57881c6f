package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jllopis/ergon/pkg/core"
	"github.com/jllopis/ergon/pkg/memory"
)

// Deliverable groups requirements into a named project output.
type Deliverable struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Type         string   `json:"type"`
	Requirements []string `json:"requirements"`
}

// ScopeRisk is a scope-related risk noted during scope definition.
type ScopeRisk struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Probability string `json:"probability"`
	Impact      string `json:"impact"`
}

// ScopeDefinition is the result payload of a scope_definition task.
type ScopeDefinition struct {
	InScope         []string       `json:"in_scope"`
	OutOfScope      []string       `json:"out_of_scope"`
	Assumptions     []string       `json:"assumptions"`
	Constraints     []Constraint   `json:"constraints"`
	Deliverables    []Deliverable  `json:"deliverables"`
	SuccessCriteria []string       `json:"success_criteria"`
	Timeline        map[string]any `json:"timeline"`
	Budget          map[string]any `json:"budget"`
	Risks           []ScopeRisk    `json:"risks"`
	CreatedAt       time.Time      `json:"created_at"`
}

func (a *Agent) defineScope(ctx context.Context, task *core.Task) core.TaskResult {
	a.Logger().InfoContext(ctx, "discovery.scope.start",
		slog.String("agent_id", a.ID()), slog.String("task_id", task.ID))

	requirements := requirementsFrom(task.Data["requirements"])
	if len(requirements) == 0 {
		requirements = a.requirementsFromMemory(ctx)
	}
	constraints := constraintsFrom(task.Data["constraints"])

	scope := ScopeDefinition{
		InScope:         inScope(requirements),
		OutOfScope:      outOfScope(requirements, constraints),
		Assumptions:     scopeAssumptions(),
		Constraints:     constraints,
		Deliverables:    deliverables(requirements),
		SuccessCriteria: scopeSuccessCriteria(requirements),
		Timeline:        mapField(task.Data, "timeline"),
		Budget:          mapField(task.Data, "budget"),
		Risks:           scopeRisks(),
		CreatedAt:       time.Now().UTC(),
	}

	a.remember(ctx, "scope_definition", scope, 0.9)

	return core.NewSuccessResult(scope, map[string]any{"task_type": "scope_definition"})
}

// requirementsFromMemory recovers the latest gathered requirements when the
// task carries none, flattening the stored per-category grouping.
func (a *Agent) requirementsFromMemory(ctx context.Context) []Requirement {
	entries, err := a.Store().Get(ctx,
		memory.WithContextType("requirements_gathering"),
		memory.WithLimit(1),
	)
	if err != nil || len(entries) == 0 {
		return nil
	}

	var content struct {
		Requirements map[string][]Requirement `json:"requirements"`
	}
	if err := json.Unmarshal([]byte(entries[0].Content), &content); err != nil {
		a.Logger().WarnContext(ctx, "discovery.scope.memory_decode_error",
			slog.String("agent_id", a.ID()), slog.Any("error", err))
		return nil
	}

	var flat []Requirement
	for _, category := range content.Requirements {
		flat = append(flat, category...)
	}
	return flat
}

func inScope(requirements []Requirement) []string {
	var in []string
	for _, req := range requirements {
		if req.Priority == "high" || req.Priority == "medium" {
			in = append(in, req.Description)
		}
	}
	return in
}

func outOfScope(requirements []Requirement, constraints []Constraint) []string {
	var out []string
	for _, req := range requirements {
		if req.Priority == "low" {
			out = append(out, fmt.Sprintf("Low priority: %s", req.Description))
		}
	}
	for _, c := range constraints {
		if c.Type == "exclusion" {
			out = append(out, c.Description)
		}
	}
	return out
}

func scopeAssumptions() []string {
	return []string{
		"Stakeholders will be available for regular feedback",
		"Required resources will be allocated as planned",
		"External dependencies will be delivered on time",
		"Technical requirements are feasible with current technology",
	}
}

func deliverables(requirements []Requirement) []Deliverable {
	var out []Deliverable

	var functional []string
	for _, req := range requirements {
		if req.Category == "functional" {
			functional = append(functional, req.ID)
		}
	}
	if len(functional) > 0 {
		out = append(out, Deliverable{
			Name:         "Core Application",
			Description:  "Main application functionality",
			Type:         "software",
			Requirements: functional,
		})
	}

	var docs []string
	for _, req := range requirements {
		if strings.Contains(strings.ToLower(req.Description), "documentation") {
			docs = append(docs, req.ID)
		}
	}
	if len(docs) > 0 {
		out = append(out, Deliverable{
			Name:         "Documentation",
			Description:  "User and technical documentation",
			Type:         "documentation",
			Requirements: docs,
		})
	}

	return out
}

func scopeSuccessCriteria(requirements []Requirement) []string {
	var criteria []string
	for _, req := range requirements {
		if req.Priority == "high" {
			criteria = append(criteria, fmt.Sprintf("Successfully implement: %s", req.Description))
		}
	}
	return criteria
}

func scopeRisks() []ScopeRisk {
	return []ScopeRisk{
		{
			Type:        "scope_creep",
			Description: "Requirements may expand beyond initial scope",
			Probability: "medium",
			Impact:      "high",
		},
		{
			Type:        "requirement_changes",
			Description: "Stakeholders may change requirements during development",
			Probability: "medium",
			Impact:      "medium",
		},
	}
}
