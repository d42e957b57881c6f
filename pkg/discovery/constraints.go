package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jllopis/ergon/pkg/core"
)

// Constraint describes a limitation imposed on the project.
type Constraint struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Severity    string `json:"severity,omitempty"`
}

// AnalyzedConstraint is a constraint annotated with its impact analysis.
type AnalyzedConstraint struct {
	Constraint
	ID          string    `json:"id"`
	ImpactAreas []string  `json:"impact_areas"`
	Mitigations []string  `json:"mitigation_strategies"`
	CreatedAt   time.Time `json:"created_at"`
}

// ConstraintSummary aggregates counts for an analysis report.
type ConstraintSummary struct {
	TotalConstraints    int      `json:"total_constraints"`
	Categories          []string `json:"categories"`
	CriticalConstraints int      `json:"critical_constraints"`
}

// ConstraintReport is the result payload of a constraint_analysis task.
type ConstraintReport struct {
	Constraints map[string][]AnalyzedConstraint `json:"constraints"`
	Summary     ConstraintSummary               `json:"summary"`
}

// constraintImpacts maps a constraint type to the project areas it touches.
var constraintImpacts = map[string][]string{
	"budget":     {"resource allocation", "scope", "quality"},
	"timeline":   {"scope", "resource allocation", "quality"},
	"technology": {"architecture", "development approach", "integration"},
	"regulatory": {"compliance", "security", "documentation"},
	"resource":   {"timeline", "scope", "quality"},
}

// constraintMitigations maps a constraint type to standard counter-strategies.
var constraintMitigations = map[string][]string{
	"budget":     {"Prioritize high-value features", "Consider phased delivery", "Optimize resource allocation"},
	"timeline":   {"Reduce scope", "Increase resources", "Parallel development"},
	"technology": {"Evaluate alternatives", "Plan integration carefully", "Prototype early"},
	"regulatory": {"Engage compliance early", "Regular reviews", "Expert consultation"},
	"resource":   {"Cross-training", "External contractors", "Scope adjustment"},
}

func (a *Agent) analyzeConstraints(ctx context.Context, task *core.Task) core.TaskResult {
	a.Logger().InfoContext(ctx, "discovery.constraints.start",
		slog.String("agent_id", a.ID()), slog.String("task_id", task.ID))

	constraints := constraintsFrom(task.Data["constraints"])
	constraints = append(constraints, baselineConstraints()...)

	categorized, categories := categorizeConstraints(constraints)
	analyzed := analyzeConstraintImpacts(categorized)

	critical := 0
	for _, c := range constraints {
		if c.Severity == "high" {
			critical++
		}
	}

	a.remember(ctx, "constraint_analysis", map[string]any{
		"constraints": analyzed,
		"categories":  categories,
		"total_count": len(constraints),
	}, 0.7)

	return core.NewSuccessResult(ConstraintReport{
		Constraints: analyzed,
		Summary: ConstraintSummary{
			TotalConstraints:    len(constraints),
			Categories:          categories,
			CriticalConstraints: critical,
		},
	}, map[string]any{"task_type": "constraint_analysis"})
}

// baselineConstraints are assumed for every project in addition to whatever
// the task supplies.
func baselineConstraints() []Constraint {
	return []Constraint{
		{
			Type:        "budget",
			Description: "Project must be completed within allocated budget",
			Severity:    "high",
		},
		{
			Type:        "timeline",
			Description: "Project has fixed delivery deadline",
			Severity:    "high",
		},
		{
			Type:        "technology",
			Description: "Must use existing technology stack",
			Severity:    "medium",
		},
	}
}

// categorizeConstraints buckets constraints by type and reports the category
// list in first-seen order. A constraint without a type lands in "other".
func categorizeConstraints(constraints []Constraint) (map[string][]Constraint, []string) {
	categorized := make(map[string][]Constraint)
	var categories []string
	for _, c := range constraints {
		t := c.Type
		if t == "" {
			t = "other"
		}
		if _, ok := categorized[t]; !ok {
			categories = append(categories, t)
		}
		categorized[t] = append(categorized[t], c)
	}
	return categorized, categories
}

// analyzeConstraintImpacts annotates each constraint with its impact areas
// and mitigation strategies, numbering ids within each category.
func analyzeConstraintImpacts(categorized map[string][]Constraint) map[string][]AnalyzedConstraint {
	analyzed := make(map[string][]AnalyzedConstraint, len(categorized))
	now := time.Now().UTC()
	for category, constraints := range categorized {
		analyzed[category] = []AnalyzedConstraint{}
		for _, c := range constraints {
			analyzed[category] = append(analyzed[category], AnalyzedConstraint{
				Constraint:  c,
				ID:          fmt.Sprintf("CON-%03d", len(analyzed[category])+1),
				ImpactAreas: impactAreas(c.Type),
				Mitigations: mitigationStrategies(c.Type),
				CreatedAt:   now,
			})
		}
	}
	return analyzed
}

func impactAreas(constraintType string) []string {
	if areas, ok := constraintImpacts[constraintType]; ok {
		return areas
	}
	return []string{"unknown"}
}

func mitigationStrategies(constraintType string) []string {
	if strategies, ok := constraintMitigations[constraintType]; ok {
		return strategies
	}
	return []string{"Monitor closely", "Regular review"}
}
