package mcp

import (
	"strings"
	"testing"

	eerrors "github.com/jllopis/ergon/pkg/errors"
	"github.com/jllopis/ergon/pkg/runtime"
)

func TestNewRequiresPool(t *testing.T) {
	_, err := New(nil)
	if err == nil {
		t.Fatal("expected error for nil pool")
	}
	ee := eerrors.AsErgonError(err)
	if ee == nil || ee.Code != eerrors.CodeInvalidInput {
		t.Errorf("expected CodeInvalidInput, got %v", err)
	}
}

func TestNewRegistersInspectionTools(t *testing.T) {
	srv, err := New(runtime.NewPool())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	want := []string{"agent_status", "memory_stats", "memory_recent", "memory_search"}
	if len(srv.tools) != len(want) {
		t.Fatalf("registered %d tools, want %d", len(srv.tools), len(want))
	}
	for i, name := range want {
		def := srv.tools[i].Definition()
		if def.Name != name {
			t.Errorf("tool %d: got %q, want %q", i, def.Name, name)
		}
		if def.Description == "" {
			t.Errorf("tool %q has no description", name)
		}
	}
}

func TestSearchToolSchema(t *testing.T) {
	def := (&searchTool{}).Definition()

	props := def.InputSchema.Properties
	for _, key := range []string{"agent_id", "query", "limit"} {
		if _, ok := props[key]; !ok {
			t.Errorf("missing %q parameter", key)
		}
	}

	required := strings.Join(def.InputSchema.Required, ",")
	if !strings.Contains(required, "agent_id") || !strings.Contains(required, "query") {
		t.Errorf("agent_id and query must be required, got %q", required)
	}
	if strings.Contains(required, "limit") {
		t.Error("limit must be optional")
	}
}

func TestRecentToolSchema(t *testing.T) {
	def := (&recentTool{}).Definition()

	props := def.InputSchema.Properties
	for _, key := range []string{"agent_id", "context_type", "limit"} {
		if _, ok := props[key]; !ok {
			t.Errorf("missing %q parameter", key)
		}
	}

	required := strings.Join(def.InputSchema.Required, ",")
	if !strings.Contains(required, "agent_id") {
		t.Errorf("agent_id must be required, got %q", required)
	}
	if strings.Contains(required, "context_type") {
		t.Error("context_type must be optional")
	}
}
