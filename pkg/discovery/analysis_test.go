package discovery

import (
	"context"
	"testing"

	"github.com/jllopis/ergon/pkg/core"
	"github.com/jllopis/ergon/pkg/llm"
)

func TestAnalyzeStakeholders(t *testing.T) {
	provider := llm.NewScriptedMockProvider("",
		"Stakeholder: End users\nRole: Support team\nsome filler text\nName: Data privacy officer")
	a := newDiscoveryAgent(t, provider, Config{})
	ctx := context.Background()

	result := a.ExecuteTask(ctx, core.NewTask("stakeholder_analysis", map[string]any{
		"project_description": "Customer portal relaunch",
		"known_stakeholders": []Stakeholder{
			{Name: "CTO", Influence: "high"},
		},
	}))
	if !result.Success {
		t.Fatalf("task failed: %q", result.Error)
	}

	report, ok := result.Result.(StakeholderReport)
	if !ok {
		t.Fatalf("result type: %T", result.Result)
	}
	if report.Summary.TotalStakeholders != 4 {
		t.Errorf("total: %d", report.Summary.TotalStakeholders)
	}
	if report.Summary.KeyStakeholders != 1 {
		t.Errorf("key stakeholders: %d", report.Summary.KeyStakeholders)
	}

	first := report.StakeholderMap[0]
	if first.ID != "SH-001" || first.Name != "CTO" {
		t.Errorf("first mapped stakeholder: %+v", first)
	}
	if first.Role != "Unknown" || first.Communication != "email" || first.Interest != "medium" {
		t.Errorf("defaults not applied: %+v", first)
	}
	if len(report.StakeholderMap) != 4 || report.StakeholderMap[3].ID != "SH-004" {
		t.Errorf("sequential ids: %+v", report.StakeholderMap)
	}
}

func TestStakeholderCap(t *testing.T) {
	a := newDiscoveryAgent(t, llm.NewScriptedMockProvider(""), Config{MaxStakeholders: 2})
	ctx := context.Background()

	result := a.ExecuteTask(ctx, core.NewTask("stakeholder_analysis", map[string]any{
		"known_stakeholders": []Stakeholder{
			{Name: "A"}, {Name: "B"}, {Name: "C"},
		},
	}))
	if !result.Success {
		t.Fatalf("task failed: %q", result.Error)
	}
	report := result.Result.(StakeholderReport)
	if report.Summary.TotalStakeholders != 2 || len(report.StakeholderMap) != 2 {
		t.Errorf("cap not applied: %+v", report.Summary)
	}
}

func TestParseStakeholders(t *testing.T) {
	stakeholders := parseStakeholders("NAME: Alice\nrandom note\nThe main Stakeholder group is finance\nrole: reviewer")
	if len(stakeholders) != 3 {
		t.Fatalf("got %d stakeholders", len(stakeholders))
	}
	if stakeholders[0].Name != "NAME: Alice" {
		t.Errorf("line capture: %q", stakeholders[0].Name)
	}
	if stakeholders[0].Influence != "medium" || stakeholders[0].Type != "unknown" {
		t.Errorf("parse defaults: %+v", stakeholders[0])
	}
}

func TestDefineScope(t *testing.T) {
	a := newDiscoveryAgent(t, llm.NewScriptedMockProvider(""), Config{})
	ctx := context.Background()

	result := a.ExecuteTask(ctx, core.NewTask("scope_definition", map[string]any{
		"requirements": []Requirement{
			{ID: "REQ-001", Description: "User login", Category: "functional", Priority: "high"},
			{ID: "REQ-002", Description: "Admin documentation portal", Category: "functional", Priority: "medium"},
			{ID: "REQ-003", Description: "Dark theme", Category: "functional", Priority: "low"},
		},
		"constraints": []Constraint{
			{Type: "exclusion", Description: "No mobile app in phase one"},
		},
		"timeline": map[string]any{"end": "2026-12-31"},
	}))
	if !result.Success {
		t.Fatalf("task failed: %q", result.Error)
	}

	scope, ok := result.Result.(ScopeDefinition)
	if !ok {
		t.Fatalf("result type: %T", result.Result)
	}
	if len(scope.InScope) != 2 {
		t.Errorf("in scope: %v", scope.InScope)
	}
	if len(scope.OutOfScope) != 2 {
		t.Fatalf("out of scope: %v", scope.OutOfScope)
	}
	if scope.OutOfScope[0] != "Low priority: Dark theme" || scope.OutOfScope[1] != "No mobile app in phase one" {
		t.Errorf("out of scope content: %v", scope.OutOfScope)
	}
	if len(scope.Assumptions) != 4 || len(scope.Risks) != 2 {
		t.Errorf("fixed sections: %d assumptions, %d risks", len(scope.Assumptions), len(scope.Risks))
	}
	if scope.Timeline["end"] != "2026-12-31" {
		t.Errorf("timeline passthrough: %v", scope.Timeline)
	}

	if len(scope.Deliverables) != 2 {
		t.Fatalf("deliverables: %+v", scope.Deliverables)
	}
	if scope.Deliverables[0].Name != "Core Application" || len(scope.Deliverables[0].Requirements) != 3 {
		t.Errorf("core deliverable: %+v", scope.Deliverables[0])
	}
	if scope.Deliverables[1].Name != "Documentation" || scope.Deliverables[1].Requirements[0] != "REQ-002" {
		t.Errorf("documentation deliverable: %+v", scope.Deliverables[1])
	}
	if len(scope.SuccessCriteria) != 1 || scope.SuccessCriteria[0] != "Successfully implement: User login" {
		t.Errorf("success criteria: %v", scope.SuccessCriteria)
	}
}

func TestDefineScopeReadsRequirementsFromMemory(t *testing.T) {
	a := newDiscoveryAgent(t, llm.NewScriptedMockProvider("", "1. Integrate with the payments api"), Config{})
	ctx := context.Background()

	gather := a.ExecuteTask(ctx, core.NewTask("requirements_gathering", map[string]any{
		"project_description": "Checkout revamp",
	}))
	if !gather.Success {
		t.Fatalf("gathering failed: %q", gather.Error)
	}

	result := a.ExecuteTask(ctx, core.NewTask("scope_definition", map[string]any{}))
	if !result.Success {
		t.Fatalf("scope failed: %q", result.Error)
	}
	scope := result.Result.(ScopeDefinition)
	if len(scope.InScope) != 1 || scope.InScope[0] != "1. Integrate with the payments api" {
		t.Errorf("memory fallback: %v", scope.InScope)
	}
}

func TestRiskMatrix(t *testing.T) {
	cases := []struct {
		probability, impact, want string
	}{
		{"high", "high", "critical"},
		{"high", "medium", "high"},
		{"high", "low", "medium"},
		{"medium", "high", "high"},
		{"medium", "medium", "medium"},
		{"medium", "low", "low"},
		{"low", "high", "medium"},
		{"low", "medium", "low"},
		{"low", "low", "low"},
		{"", "", "medium"},
	}
	for _, tc := range cases {
		assessed := assessRisks([]Risk{{Probability: tc.probability, Impact: tc.impact}})
		if assessed[0].RiskLevel != tc.want {
			t.Errorf("(%s,%s): got %s, want %s", tc.probability, tc.impact, assessed[0].RiskLevel, tc.want)
		}
		if assessed[0].CreatedAt.IsZero() {
			t.Error("assessment timestamp missing")
		}
	}
}

func TestIdentifyRisks(t *testing.T) {
	a := newDiscoveryAgent(t, llm.NewScriptedMockProvider(""), Config{})
	ctx := context.Background()

	result := a.ExecuteTask(ctx, core.NewTask("risk_identification", map[string]any{
		"requirements": []Requirement{
			{ID: "REQ-001", Description: "Connect to the billing API"},
			{ID: "REQ-002", Description: "Render marketing pages"},
		},
		"constraints": []Constraint{
			{Type: "budget", Description: "Fixed annual budget"},
		},
	}))
	if !result.Success {
		t.Fatalf("task failed: %q", result.Error)
	}

	report, ok := result.Result.(RiskReport)
	if !ok {
		t.Fatalf("result type: %T", result.Result)
	}
	// TECH-001 from the API keyword, BUS-001/002 and TIME-001 baselines,
	// RES-001 from the budget constraint.
	if report.Summary.TotalRisks != 5 {
		t.Fatalf("total risks: %d", report.Summary.TotalRisks)
	}
	if report.Summary.HighRiskCount != 1 {
		t.Errorf("high risk count: %d", report.Summary.HighRiskCount)
	}

	first := report.Risks[0]
	if first.ID != "RES-001" || first.RiskLevel != "high" {
		t.Errorf("severity ordering: first risk %+v", first)
	}

	var tech *Risk
	for i := range report.Risks {
		if report.Risks[i].ID == "TECH-001" {
			tech = &report.Risks[i]
		}
	}
	if tech == nil {
		t.Fatal("technical risk not identified")
	}
	if tech.RelatedRequirement != "REQ-001" {
		t.Errorf("related requirement: %s", tech.RelatedRequirement)
	}
}

func TestAnalyzeConstraints(t *testing.T) {
	a := newDiscoveryAgent(t, llm.NewScriptedMockProvider(""), Config{})
	ctx := context.Background()

	result := a.ExecuteTask(ctx, core.NewTask("constraint_analysis", map[string]any{
		"constraints": []Constraint{
			{Type: "regulatory", Description: "GDPR compliance required", Severity: "high"},
		},
	}))
	if !result.Success {
		t.Fatalf("task failed: %q", result.Error)
	}

	report, ok := result.Result.(ConstraintReport)
	if !ok {
		t.Fatalf("result type: %T", result.Result)
	}
	// One supplied constraint plus three baselines.
	if report.Summary.TotalConstraints != 4 {
		t.Errorf("total: %d", report.Summary.TotalConstraints)
	}
	wantCategories := []string{"regulatory", "budget", "timeline", "technology"}
	if len(report.Summary.Categories) != len(wantCategories) {
		t.Fatalf("categories: %v", report.Summary.Categories)
	}
	for i, want := range wantCategories {
		if report.Summary.Categories[i] != want {
			t.Fatalf("category order: got %v, want %v", report.Summary.Categories, wantCategories)
		}
	}
	if report.Summary.CriticalConstraints != 3 {
		t.Errorf("critical count: %d", report.Summary.CriticalConstraints)
	}

	regulatory := report.Constraints["regulatory"]
	if len(regulatory) != 1 || regulatory[0].ID != "CON-001" {
		t.Fatalf("regulatory bucket: %+v", regulatory)
	}
	wantImpacts := []string{"compliance", "security", "documentation"}
	for i, want := range wantImpacts {
		if regulatory[0].ImpactAreas[i] != want {
			t.Errorf("impact areas: %v", regulatory[0].ImpactAreas)
		}
	}
	if len(regulatory[0].Mitigations) != 3 {
		t.Errorf("mitigations: %v", regulatory[0].Mitigations)
	}
}

func TestConstraintLookupDefaults(t *testing.T) {
	if got := impactAreas("weather"); len(got) != 1 || got[0] != "unknown" {
		t.Errorf("impact default: %v", got)
	}
	got := mitigationStrategies("weather")
	if len(got) != 2 || got[0] != "Monitor closely" {
		t.Errorf("mitigation default: %v", got)
	}
}

func TestDefineSuccessCriteria(t *testing.T) {
	a := newDiscoveryAgent(t, llm.NewScriptedMockProvider(""), Config{})
	ctx := context.Background()

	result := a.ExecuteTask(ctx, core.NewTask("success_criteria", map[string]any{
		"requirements": []Requirement{
			{ID: "REQ-001", Description: "User login", Category: "functional", Priority: "high"},
			{ID: "REQ-002", Description: "Dark theme", Category: "functional", Priority: "low"},
			{ID: "REQ-003", Description: "Quarterly reports", Category: "business", Priority: "high"},
			{ID: "REQ-004", Description: "Audit trail", Category: "functional", Priority: "medium"},
		},
		"stakeholders": []Stakeholder{
			{ID: "SH-007", Name: "CTO", Influence: "high"},
			{ID: "SH-008", Name: "Intern", Influence: "low"},
		},
	}))
	if !result.Success {
		t.Fatalf("task failed: %q", result.Error)
	}

	criteria, ok := result.Result.(SuccessCriteria)
	if !ok {
		t.Fatalf("result type: %T", result.Result)
	}
	if len(criteria.Functional) != 2 {
		t.Fatalf("functional criteria: %+v", criteria.Functional)
	}
	if criteria.Functional[0].ID != "FC-001" || criteria.Functional[0].RelatedRequirement != "REQ-001" {
		t.Errorf("first functional criterion: %+v", criteria.Functional[0])
	}
	if len(criteria.Stakeholder) != 1 || criteria.Stakeholder[0].StakeholderID != "SH-007" {
		t.Errorf("stakeholder criteria: %+v", criteria.Stakeholder)
	}
	if criteria.Stakeholder[0].Description != "Meet requirements of CTO" {
		t.Errorf("stakeholder criterion text: %q", criteria.Stakeholder[0].Description)
	}
	if len(criteria.Business) != 2 || len(criteria.Technical) != 3 || len(criteria.Quality) != 3 {
		t.Errorf("fixed criteria classes: %d/%d/%d",
			len(criteria.Business), len(criteria.Technical), len(criteria.Quality))
	}

	// Targets naming a figure are measurable; prose-only targets are not.
	byID := map[string]Criterion{}
	for _, c := range criteria.Technical {
		byID[c.ID] = c
	}
	if !byID["TC-001"].Measurable {
		t.Error("TC-001 names a figure and must be measurable")
	}
	if byID["TC-003"].Measurable {
		t.Error("TC-003 is prose-only and must not be measurable")
	}
}
