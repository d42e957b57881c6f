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

// Risk is an identified project risk with its assessed level.
type Risk struct {
	ID                 string    `json:"id"`
	Category           string    `json:"category"`
	Description        string    `json:"description"`
	Probability        string    `json:"probability"`
	Impact             string    `json:"impact"`
	RiskLevel          string    `json:"risk_level,omitempty"`
	RelatedRequirement string    `json:"related_requirement,omitempty"`
	CreatedAt          time.Time `json:"created_at,omitempty"`
}

// RiskSummary aggregates counts for an identification report.
type RiskSummary struct {
	TotalRisks     int      `json:"total_risks"`
	HighRiskCount  int      `json:"high_risk_count"`
	RiskCategories []string `json:"risk_categories"`
}

// RiskReport is the result payload of a risk_identification task.
type RiskReport struct {
	Risks   []Risk      `json:"risks"`
	Summary RiskSummary `json:"summary"`
}

// technicalRiskKeywords flags requirements with inherent technical complexity.
var technicalRiskKeywords = []string{"integration", "api", "database", "performance", "security"}

var riskCategories = []string{"technical", "business", "resource", "timeline"}

func (a *Agent) identifyRisks(ctx context.Context, task *core.Task) core.TaskResult {
	a.Logger().InfoContext(ctx, "discovery.risks.start",
		slog.String("agent_id", a.ID()), slog.String("task_id", task.ID))

	requirements := requirementsFrom(task.Data["requirements"])
	constraints := constraintsFrom(task.Data["constraints"])

	var risks []Risk
	risks = append(risks, technicalRisks(requirements)...)
	risks = append(risks, businessRisks()...)
	risks = append(risks, resourceRisks(constraints)...)
	risks = append(risks, timelineRisks()...)

	assessed := assessRisks(risks)
	high := countRiskLevel(assessed, "high")

	a.remember(ctx, "risk_identification", map[string]any{
		"risks":           assessed,
		"risk_categories": riskCategories,
		"high_risk_count": high,
	}, 0.8)

	return core.NewSuccessResult(RiskReport{
		Risks: assessed,
		Summary: RiskSummary{
			TotalRisks:     len(assessed),
			HighRiskCount:  high,
			RiskCategories: riskCategories,
		},
	}, map[string]any{"task_type": "risk_identification"})
}

func technicalRisks(requirements []Requirement) []Risk {
	var risks []Risk
	for _, req := range requirements {
		description := strings.ToLower(req.Description)
		for _, keyword := range technicalRiskKeywords {
			if strings.Contains(description, keyword) {
				risks = append(risks, Risk{
					ID:                 fmt.Sprintf("TECH-%03d", len(risks)+1),
					Category:           "technical",
					Description:        fmt.Sprintf("Technical complexity in: %s", req.Description),
					Probability:        "medium",
					Impact:             "medium",
					RelatedRequirement: req.ID,
				})
				break
			}
		}
	}
	return risks
}

func businessRisks() []Risk {
	return []Risk{
		{
			ID:          "BUS-001",
			Category:    "business",
			Description: "Market conditions may change during development",
			Probability: "low",
			Impact:      "high",
		},
		{
			ID:          "BUS-002",
			Category:    "business",
			Description: "Stakeholder priorities may shift",
			Probability: "medium",
			Impact:      "medium",
		},
	}
}

func resourceRisks(constraints []Constraint) []Risk {
	var risks []Risk
	for _, c := range constraints {
		switch c.Type {
		case "budget", "timeline", "resources":
			risks = append(risks, Risk{
				ID:          fmt.Sprintf("RES-%03d", len(risks)+1),
				Category:    "resource",
				Description: fmt.Sprintf("Resource constraint: %s", c.Description),
				Probability: "medium",
				Impact:      "high",
			})
		}
	}
	return risks
}

func timelineRisks() []Risk {
	return []Risk{
		{
			ID:          "TIME-001",
			Category:    "timeline",
			Description: "Complex requirements may take longer than estimated",
			Probability: "medium",
			Impact:      "medium",
		},
	}
}

// riskMatrix maps (probability, impact) to a risk level.
var riskMatrix = map[[2]string]string{
	{"high", "high"}:     "critical",
	{"high", "medium"}:   "high",
	{"high", "low"}:      "medium",
	{"medium", "high"}:   "high",
	{"medium", "medium"}: "medium",
	{"medium", "low"}:    "low",
	{"low", "high"}:      "medium",
	{"low", "medium"}:    "low",
	{"low", "low"}:       "low",
}

// assessRisks derives each risk's level from the matrix and orders the set
// by descending severity, preserving insertion order within a band.
func assessRisks(risks []Risk) []Risk {
	now := time.Now().UTC()
	for i := range risks {
		level, ok := riskMatrix[[2]string{risks[i].Probability, risks[i].Impact}]
		if !ok {
			level = "medium"
		}
		risks[i].RiskLevel = level
		risks[i].CreatedAt = now
	}
	sort.SliceStable(risks, func(i, j int) bool {
		return riskRank(risks[i].RiskLevel) > riskRank(risks[j].RiskLevel)
	})
	return risks
}

func riskRank(level string) int {
	switch level {
	case "critical":
		return 4
	case "high":
		return 3
	case "low":
		return 1
	default:
		return 2
	}
}

func countRiskLevel(risks []Risk, level string) int {
	n := 0
	for _, r := range risks {
		if r.RiskLevel == level {
			n++
		}
	}
	return n
}
