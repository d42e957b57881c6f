package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/jllopis/ergon/pkg/core"
)

// Requirement is a single identified requirement.
type Requirement struct {
	ID                  string    `json:"id"`
	Description         string    `json:"description"`
	Category            string    `json:"category"`
	Priority            string    `json:"priority"`
	Status              string    `json:"status"`
	Source              string    `json:"source,omitempty"`
	StakeholderRole     string    `json:"stakeholder_role,omitempty"`
	StakeholderPriority string    `json:"stakeholder_priority,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
}

// RequirementsSummary aggregates counts for a gathering report.
type RequirementsSummary struct {
	TotalRequirements int      `json:"total_requirements"`
	Categories        []string `json:"categories"`
	HighPriorityCount int      `json:"high_priority_count"`
}

// RequirementsReport is the result payload of a requirements_gathering task.
// Requirements are grouped by category and sorted by descending priority.
type RequirementsReport struct {
	Requirements map[string][]Requirement `json:"requirements"`
	Summary      RequirementsSummary      `json:"summary"`
}

const maxDocumentChars = 2000

func (a *Agent) gatherRequirements(ctx context.Context, task *core.Task) core.TaskResult {
	description := stringField(task.Data, "project_description")
	a.Logger().InfoContext(ctx, "discovery.requirements.start",
		slog.String("agent_id", a.ID()), slog.String("task_id", task.ID))

	requirements := a.requirementsFromDescription(ctx, description)

	for _, input := range mapSlice(task.Data["stakeholder_input"]) {
		text := stringField(input, "input")
		if text == "" {
			continue
		}
		role := stringOr(input, "role", "unknown")
		priority := stringOr(input, "priority", "medium")
		requirements = append(requirements, a.requirementsFromStakeholder(ctx, text, role, priority)...)
	}

	for _, doc := range stringSlice(task.Data["existing_documentation"]) {
		requirements = append(requirements, a.requirementsFromDocument(ctx, doc)...)
	}

	categorized := a.categorize(requirements)
	prioritized := prioritize(categorized)
	categories := append([]string(nil), a.cfg.RequirementCategories...)

	a.remember(ctx, "requirements_gathering", map[string]any{
		"requirements":        prioritized,
		"categories":          categories,
		"total_count":         len(requirements),
		"project_description": description,
	}, 0.9)

	return core.NewSuccessResult(RequirementsReport{
		Requirements: prioritized,
		Summary: RequirementsSummary{
			TotalRequirements: len(requirements),
			Categories:        categories,
			HighPriorityCount: countPriority(requirements, "high"),
		},
	}, map[string]any{"task_type": "requirements_gathering"})
}

func (a *Agent) requirementsFromDescription(ctx context.Context, description string) []Requirement {
	if description == "" {
		return nil
	}
	prompt := fmt.Sprintf(`Analyze the following project description and extract specific requirements:

Project Description:
%s

Please identify:
1. Functional requirements (what the system should do)
2. Non-functional requirements (performance, security, usability)
3. Business requirements (goals, constraints, success criteria)
4. Technical requirements (platforms, technologies, integrations)

Format each requirement as a clear, testable statement.`, description)

	response, err := a.complete(ctx, prompt)
	if err != nil {
		a.Logger().WarnContext(ctx, "discovery.requirements.provider_error",
			slog.String("agent_id", a.ID()), slog.Any("error", err))
		return nil
	}
	return parseRequirements(response)
}

func (a *Agent) requirementsFromStakeholder(ctx context.Context, input, role, priority string) []Requirement {
	prompt := fmt.Sprintf(`Extract specific requirements from the following stakeholder input:

Stakeholder Role: %s
Input: %s

Consider the stakeholder's perspective and expertise when interpreting their input.
Extract clear, actionable requirements that reflect their needs and concerns.`, role, input)

	response, err := a.complete(ctx, prompt)
	if err != nil {
		a.Logger().WarnContext(ctx, "discovery.requirements.provider_error",
			slog.String("agent_id", a.ID()), slog.String("role", role), slog.Any("error", err))
		return nil
	}

	requirements := parseRequirements(response)
	for i := range requirements {
		requirements[i].StakeholderRole = role
		requirements[i].StakeholderPriority = priority
	}
	return requirements
}

func (a *Agent) requirementsFromDocument(ctx context.Context, document string) []Requirement {
	if len(document) > maxDocumentChars {
		document = document[:maxDocumentChars]
	}
	prompt := fmt.Sprintf(`Analyze the following document and extract any explicit or implicit requirements:

Document:
%s

Look for:
- Stated requirements or specifications
- Implied functionality from descriptions
- Constraints or limitations mentioned
- Success criteria or acceptance conditions`, document)

	response, err := a.complete(ctx, prompt)
	if err != nil {
		a.Logger().WarnContext(ctx, "discovery.requirements.provider_error",
			slog.String("agent_id", a.ID()), slog.Any("error", err))
		return nil
	}

	requirements := parseRequirements(response)
	for i := range requirements {
		requirements[i].Source = "documentation"
	}
	return requirements
}

// parseRequirements segments completion text into requirement records.
// A line opening with a numbered bullet (1. through 9.) or a - or * bullet
// starts a new record; any other non-empty line continues the previous
// description. Best-effort segmentation, not a parser.
func parseRequirements(response string) []Requirement {
	var requirements []Requirement
	var current *Requirement
	now := time.Now().UTC()

	for _, raw := range strings.Split(response, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		if startsRecord(line) {
			if current != nil {
				requirements = append(requirements, *current)
			}
			current = &Requirement{
				ID:          fmt.Sprintf("REQ-%03d", len(requirements)+1),
				Description: line,
				Category:    "functional",
				Priority:    "medium",
				Status:      "identified",
				CreatedAt:   now,
			}
			continue
		}
		if current != nil {
			current.Description += " " + line
		}
	}
	if current != nil {
		requirements = append(requirements, *current)
	}
	return requirements
}

func startsRecord(line string) bool {
	if strings.HasPrefix(line, "-") || strings.HasPrefix(line, "*") {
		return true
	}
	return len(line) >= 2 && line[0] >= '1' && line[0] <= '9' && line[1] == '.'
}

// categorize groups requirements into the configured category buckets.
// Every configured category is present in the result, even when empty;
// an unknown category falls back to functional.
func (a *Agent) categorize(requirements []Requirement) map[string][]Requirement {
	categorized := make(map[string][]Requirement, len(a.cfg.RequirementCategories))
	for _, category := range a.cfg.RequirementCategories {
		categorized[category] = []Requirement{}
	}
	for _, req := range requirements {
		if _, ok := categorized[req.Category]; ok {
			categorized[req.Category] = append(categorized[req.Category], req)
		} else {
			categorized["functional"] = append(categorized["functional"], req)
		}
	}
	return categorized
}

// prioritize sorts each category bucket by descending priority, preserving
// insertion order within a priority band.
func prioritize(categorized map[string][]Requirement) map[string][]Requirement {
	for category, requirements := range categorized {
		sorted := append([]Requirement(nil), requirements...)
		sort.SliceStable(sorted, func(i, j int) bool {
			return priorityRank(sorted[i].Priority) > priorityRank(sorted[j].Priority)
		})
		categorized[category] = sorted
	}
	return categorized
}

func priorityRank(priority string) int {
	switch priority {
	case "high":
		return 3
	case "low":
		return 1
	default:
		return 2
	}
}

func countPriority(requirements []Requirement, priority string) int {
	n := 0
	for _, req := range requirements {
		if req.Priority == priority {
			n++
		}
	}
	return n
}
