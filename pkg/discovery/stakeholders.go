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

// Stakeholder is a mapped project stakeholder.
type Stakeholder struct {
	ID            string    `json:"id,omitempty"`
	Name          string    `json:"name"`
	Role          string    `json:"role"`
	Type          string    `json:"type"`
	Influence     string    `json:"influence"`
	Interest      string    `json:"interest"`
	Concerns      []string  `json:"concerns"`
	Requirements  []string  `json:"requirements"`
	Communication string    `json:"communication_preference,omitempty"`
	CreatedAt     time.Time `json:"created_at,omitempty"`
}

// StakeholderSummary aggregates counts for an analysis report.
type StakeholderSummary struct {
	TotalStakeholders int      `json:"total_stakeholders"`
	KeyStakeholders   int      `json:"key_stakeholders"`
	StakeholderTypes  []string `json:"stakeholder_types"`
}

// StakeholderReport is the result payload of a stakeholder_analysis task.
type StakeholderReport struct {
	StakeholderMap []Stakeholder      `json:"stakeholder_map"`
	Summary        StakeholderSummary `json:"summary"`
}

func (a *Agent) analyzeStakeholders(ctx context.Context, task *core.Task) core.TaskResult {
	description := stringField(task.Data, "project_description")
	a.Logger().InfoContext(ctx, "discovery.stakeholders.start",
		slog.String("agent_id", a.ID()), slog.String("task_id", task.ID))

	known := stakeholdersFrom(task.Data["known_stakeholders"])
	identified := a.stakeholdersFromDescription(ctx, description)

	all := append(known, identified...)
	if len(all) > a.cfg.MaxStakeholders {
		all = all[:a.cfg.MaxStakeholders]
	}

	mapped := buildStakeholderMap(all)
	key := keyStakeholders(mapped)

	a.remember(ctx, "stakeholder_analysis", map[string]any{
		"stakeholders":     mapped,
		"total_count":      len(all),
		"key_stakeholders": key,
	}, 0.8)

	return core.NewSuccessResult(StakeholderReport{
		StakeholderMap: mapped,
		Summary: StakeholderSummary{
			TotalStakeholders: len(all),
			KeyStakeholders:   len(key),
			StakeholderTypes:  stakeholderTypes(mapped),
		},
	}, map[string]any{"task_type": "stakeholder_analysis"})
}

func (a *Agent) stakeholdersFromDescription(ctx context.Context, description string) []Stakeholder {
	if description == "" {
		return nil
	}
	prompt := fmt.Sprintf(`Based on the following project description, identify all potential stakeholders:

Project Description:
%s

For each stakeholder, provide:
- Name/Role
- Type (internal/external, primary/secondary)
- Interest in the project
- Influence level (high/medium/low)
- Potential concerns or requirements`, description)

	response, err := a.complete(ctx, prompt)
	if err != nil {
		a.Logger().WarnContext(ctx, "discovery.stakeholders.provider_error",
			slog.String("agent_id", a.ID()), slog.Any("error", err))
		return nil
	}
	return parseStakeholders(response)
}

// parseStakeholders segments completion text into stakeholder records.
// A line mentioning "stakeholder", "role:" or "name:" opens a new record
// with the line as its name. Best-effort segmentation, not a parser.
func parseStakeholders(response string) []Stakeholder {
	var stakeholders []Stakeholder
	for _, raw := range strings.Split(response, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)
		if strings.Contains(lower, "stakeholder") ||
			strings.Contains(lower, "role:") ||
			strings.Contains(lower, "name:") {
			stakeholders = append(stakeholders, Stakeholder{
				Name:      line,
				Type:      "unknown",
				Influence: "medium",
				Interest:  "medium",
			})
		}
	}
	return stakeholders
}

// buildStakeholderMap assigns sequential SH ids and fills neutral defaults.
func buildStakeholderMap(stakeholders []Stakeholder) []Stakeholder {
	mapped := make([]Stakeholder, 0, len(stakeholders))
	now := time.Now().UTC()
	for _, s := range stakeholders {
		s.ID = fmt.Sprintf("SH-%03d", len(mapped)+1)
		if s.Name == "" {
			s.Name = "Unknown"
		}
		if s.Role == "" {
			s.Role = "Unknown"
		}
		if s.Type == "" {
			s.Type = "unknown"
		}
		if s.Influence == "" {
			s.Influence = "medium"
		}
		if s.Interest == "" {
			s.Interest = "medium"
		}
		if s.Communication == "" {
			s.Communication = "email"
		}
		if s.Concerns == nil {
			s.Concerns = []string{}
		}
		if s.Requirements == nil {
			s.Requirements = []string{}
		}
		s.CreatedAt = now
		mapped = append(mapped, s)
	}
	return mapped
}

func keyStakeholders(stakeholders []Stakeholder) []Stakeholder {
	var key []Stakeholder
	for _, s := range stakeholders {
		if s.Influence == "high" {
			key = append(key, s)
		}
	}
	return key
}

func stakeholderTypes(stakeholders []Stakeholder) []string {
	seen := make(map[string]struct{}, len(stakeholders))
	var types []string
	for _, s := range stakeholders {
		if _, ok := seen[s.Type]; ok {
			continue
		}
		seen[s.Type] = struct{}{}
		types = append(types, s.Type)
	}
	sort.Strings(types)
	return types
}
