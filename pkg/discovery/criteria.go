package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jllopis/ergon/pkg/core"
)

// Criterion is a single success criterion with its measurement approach.
type Criterion struct {
	ID                 string `json:"id"`
	Description        string `json:"description"`
	Measurement        string `json:"measurement"`
	Target             string `json:"target"`
	Measurable         bool   `json:"measurable"`
	RelatedRequirement string `json:"related_requirement,omitempty"`
	StakeholderID      string `json:"stakeholder_id,omitempty"`
}

// SuccessCriteria groups criteria by class. It is the result payload of a
// success_criteria task.
type SuccessCriteria struct {
	Functional  []Criterion `json:"functional"`
	Business    []Criterion `json:"business"`
	Stakeholder []Criterion `json:"stakeholder"`
	Technical   []Criterion `json:"technical"`
	Quality     []Criterion `json:"quality"`
}

func (a *Agent) defineSuccessCriteria(ctx context.Context, task *core.Task) core.TaskResult {
	a.Logger().InfoContext(ctx, "discovery.criteria.start",
		slog.String("agent_id", a.ID()), slog.String("task_id", task.ID))

	requirements := requirementsFrom(task.Data["requirements"])
	stakeholders := stakeholdersFrom(task.Data["stakeholders"])

	criteria := SuccessCriteria{
		Functional:  functionalCriteria(requirements),
		Business:    businessCriteria(),
		Stakeholder: stakeholderCriteria(stakeholders),
		Technical:   technicalCriteria(),
		Quality:     qualityCriteria(),
	}

	a.remember(ctx, "success_criteria", criteria, 0.9)

	return core.NewSuccessResult(criteria, map[string]any{"task_type": "success_criteria"})
}

func functionalCriteria(requirements []Requirement) []Criterion {
	var criteria []Criterion
	for _, req := range requirements {
		if req.Category != "functional" {
			continue
		}
		if req.Priority != "high" && req.Priority != "medium" {
			continue
		}
		criteria = append(criteria, markMeasurable(Criterion{
			ID:                 fmt.Sprintf("FC-%03d", len(criteria)+1),
			Description:        fmt.Sprintf("Successfully implement: %s", req.Description),
			Measurement:        "Feature is implemented and tested",
			Target:             "100% of high priority functional requirements",
			RelatedRequirement: req.ID,
		}))
	}
	return criteria
}

func businessCriteria() []Criterion {
	return markAllMeasurable([]Criterion{
		{
			ID:          "BC-001",
			Description: "Project delivered on time and within budget",
			Measurement: "Timeline and budget adherence",
			Target:      "Within 10% of planned timeline and budget",
		},
		{
			ID:          "BC-002",
			Description: "Stakeholder satisfaction achieved",
			Measurement: "Stakeholder feedback scores",
			Target:      "Average satisfaction score of at least 4.0/5.0",
		},
	})
}

func stakeholderCriteria(stakeholders []Stakeholder) []Criterion {
	var criteria []Criterion
	for _, s := range stakeholders {
		if s.Influence != "high" {
			continue
		}
		name := s.Name
		if name == "" {
			name = "stakeholder"
		}
		criteria = append(criteria, markMeasurable(Criterion{
			ID:            fmt.Sprintf("SC-%03d", len(criteria)+1),
			Description:   fmt.Sprintf("Meet requirements of %s", name),
			Measurement:   "Stakeholder acceptance",
			Target:        "Formal acceptance from key stakeholder",
			StakeholderID: s.ID,
		}))
	}
	return criteria
}

func technicalCriteria() []Criterion {
	return markAllMeasurable([]Criterion{
		{
			ID:          "TC-001",
			Description: "System performance meets requirements",
			Measurement: "Performance testing results",
			Target:      "Response time under 2 seconds for 95% of requests",
		},
		{
			ID:          "TC-002",
			Description: "System reliability achieved",
			Measurement: "Uptime monitoring",
			Target:      "99.9% uptime",
		},
		{
			ID:          "TC-003",
			Description: "Security requirements met",
			Measurement: "Security audit results",
			Target:      "No critical security vulnerabilities",
		},
	})
}

func qualityCriteria() []Criterion {
	return markAllMeasurable([]Criterion{
		{
			ID:          "QC-001",
			Description: "Code quality standards met",
			Measurement: "Code review and static analysis",
			Target:      "Code coverage of at least 80%, no critical code smells",
		},
		{
			ID:          "QC-002",
			Description: "Documentation completeness",
			Measurement: "Documentation review",
			Target:      "All user and technical documentation complete",
		},
		{
			ID:          "QC-003",
			Description: "Testing coverage achieved",
			Measurement: "Test execution results",
			Target:      "All test cases pass, coverage of at least 80%",
		},
	})
}

// markMeasurable flags a criterion measurable when its target names a
// concrete figure (a digit or percentage).
func markMeasurable(c Criterion) Criterion {
	c.Measurable = strings.ContainsAny(c.Target, "0123456789%")
	return c
}

func markAllMeasurable(criteria []Criterion) []Criterion {
	for i := range criteria {
		criteria[i] = markMeasurable(criteria[i])
	}
	return criteria
}
