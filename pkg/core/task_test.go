package core

import "testing"

func TestNewTask(t *testing.T) {
	task := NewTask("requirements_gathering", map[string]any{"project_description": "demo"})
	if task.ID == "" {
		t.Fatalf("expected generated task id")
	}
	if task.Type != "requirements_gathering" {
		t.Fatalf("expected task type to be preserved")
	}
	if task.CreatedAt.IsZero() {
		t.Fatalf("expected creation timestamp")
	}

	task.WithContext(map[string]any{"phase": "discovery"}).WithCapability(CapabilityRequirementsAnalysis)
	if task.Context["phase"] != "discovery" {
		t.Fatalf("expected context to be attached")
	}
	if task.Capability != CapabilityRequirementsAnalysis {
		t.Fatalf("expected capability to be attached")
	}
}

func TestTaskResults(t *testing.T) {
	ok := NewSuccessResult(map[string]any{"requirements": 3}, map[string]any{"agent_id": "a1"})
	if !ok.Success {
		t.Fatalf("expected success result")
	}
	if ok.Error != "" {
		t.Fatalf("expected empty error on success")
	}
	if ok.CompletedAt.IsZero() {
		t.Fatalf("expected completion timestamp")
	}

	failed := NewFailureResult("agent busy", map[string]any{"state": "busy"})
	if failed.Success {
		t.Fatalf("expected failure result")
	}
	if failed.Error != "agent busy" {
		t.Fatalf("expected error description, got %q", failed.Error)
	}
}

func TestStateHelpers(t *testing.T) {
	if !StateIdle.Available() {
		t.Fatalf("idle must be available")
	}
	for _, s := range []AgentState{StateBusy, StateThinking, StateCommunicating, StateError, StateOffline} {
		if s.Available() {
			t.Fatalf("state %s must not be available", s)
		}
	}
	if !StateOffline.Terminal() {
		t.Fatalf("offline must be terminal")
	}
	if StateIdle.Terminal() {
		t.Fatalf("idle must not be terminal")
	}
}

func TestHasCapability(t *testing.T) {
	caps := []Capability{CapabilityRequirementsAnalysis, CapabilityResearch}
	if !HasCapability(caps, CapabilityResearch) {
		t.Fatalf("expected research capability")
	}
	if HasCapability(caps, CapabilityDeployment) {
		t.Fatalf("did not expect deployment capability")
	}
}
