package discovery

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/jllopis/ergon/pkg/core"
	"github.com/jllopis/ergon/pkg/llm"
	"github.com/jllopis/ergon/pkg/memory"
)

func newDiscoveryAgent(t *testing.T, provider llm.Provider, cfg Config) *Agent {
	t.Helper()
	a, err := New(provider, cfg)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return a
}

func TestNewValidation(t *testing.T) {
	if _, err := New(nil, Config{}); err == nil {
		t.Error("nil provider should fail")
	}

	a := newDiscoveryAgent(t, llm.NewScriptedMockProvider(""), Config{})
	if a.Name() != "Discovery Agent" || a.Type() != "discovery" {
		t.Errorf("identity: %s/%s", a.Name(), a.Type())
	}
	for _, cap := range []core.Capability{
		core.CapabilityRequirementsAnalysis,
		core.CapabilityResearch,
		core.CapabilityCommunication,
	} {
		if !a.HasCapability(cap) {
			t.Errorf("missing capability %s", cap)
		}
	}
	if a.cfg.MaxStakeholders != 20 {
		t.Errorf("default max stakeholders: %d", a.cfg.MaxStakeholders)
	}
	if len(a.cfg.RequirementCategories) != 5 {
		t.Errorf("default categories: %v", a.cfg.RequirementCategories)
	}
	if a.cfg.AnalysisDepth != "detailed" {
		t.Errorf("default depth: %s", a.cfg.AnalysisDepth)
	}
	if len(a.Tasks()) != 6 {
		t.Errorf("task types: %v", a.Tasks())
	}
}

func TestUnknownTaskType(t *testing.T) {
	a := newDiscoveryAgent(t, llm.NewScriptedMockProvider(""), Config{})
	ctx := context.Background()

	result := a.ExecuteTask(ctx, core.NewTask("deploy_to_prod", nil))
	if result.Success {
		t.Fatal("unknown task type must report failure")
	}
	if !strings.Contains(result.Error, "unknown discovery task type") {
		t.Errorf("error: %q", result.Error)
	}
	if a.State() != core.StateIdle {
		t.Errorf("agent must return to idle: %s", a.State())
	}
	if a.StatusInfo().TasksFailed != 1 {
		t.Error("unknown type counts as a failed task")
	}
}

func TestProviderFailureDegrades(t *testing.T) {
	provider := llm.NewScriptedMockProvider("")
	provider.Err = fmt.Errorf("429 rate limited")
	a := newDiscoveryAgent(t, provider, Config{})
	ctx := context.Background()

	result := a.ExecuteTask(ctx, core.NewTask("requirements_gathering", map[string]any{
		"project_description": "Build an invoicing platform",
	}))
	if !result.Success {
		t.Fatalf("provider failure must degrade, not fail the task: %q", result.Error)
	}
	report, ok := result.Result.(RequirementsReport)
	if !ok {
		t.Fatalf("result type: %T", result.Result)
	}
	if report.Summary.TotalRequirements != 0 {
		t.Errorf("degraded run should carry no requirements: %d", report.Summary.TotalRequirements)
	}
}

func TestFindingsPersistedLongTerm(t *testing.T) {
	a := newDiscoveryAgent(t, llm.NewScriptedMockProvider("", "1. Support user accounts"), Config{})
	ctx := context.Background()

	result := a.ExecuteTask(ctx, core.NewTask("requirements_gathering", map[string]any{
		"project_description": "Build an invoicing platform",
	}))
	if !result.Success {
		t.Fatalf("task failed: %q", result.Error)
	}

	entries, err := a.Store().Get(ctx, memory.WithContextType("requirements_gathering"))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("finding not persisted: %d entries", len(entries))
	}
	if entries[0].Type != memory.TypeLongTerm {
		t.Errorf("memory tier: %s", entries[0].Type)
	}
	if entries[0].Importance != 0.9 {
		t.Errorf("importance: %v", entries[0].Importance)
	}
}
