package qdrant

import (
	"testing"
	"time"

	"github.com/jllopis/ergon/pkg/memory"
	pb "github.com/qdrant/go-client/qdrant"
)

func TestEntryPayloadRoundTrip(t *testing.T) {
	e := memory.NewEntry("task_execution", "deployed payment service",
		memory.TypeLongTerm, 0.85, map[string]any{"task_id": "T1"})

	payload := entryPayload("agent-1", e)
	if payload["agent_id"].GetStringValue() != "agent-1" {
		t.Errorf("agent_id: %v", payload["agent_id"])
	}

	got := entryFromPayload(e.ID, payload)
	if got == nil {
		t.Fatal("payload should rebuild an entry")
	}
	if got.ID != e.ID {
		t.Errorf("id: got %s, want %s", got.ID, e.ID)
	}
	if got.Content != e.Content {
		t.Errorf("content: got %q", got.Content)
	}
	if got.Type != memory.TypeLongTerm || got.ContextType != "task_execution" {
		t.Errorf("classification lost: type=%s context=%s", got.Type, got.ContextType)
	}
	if got.Importance != 0.85 {
		t.Errorf("importance: got %v", got.Importance)
	}
	if got.Metadata["task_id"] != "T1" {
		t.Errorf("metadata lost: %v", got.Metadata)
	}
	// The payload keeps millisecond precision.
	if got.CreatedAt.UnixMilli() != e.CreatedAt.UnixMilli() {
		t.Errorf("created_at drifted: got %v, want %v", got.CreatedAt, e.CreatedAt)
	}
}

func TestEntryFromPayloadEmpty(t *testing.T) {
	if entryFromPayload("id", nil) != nil {
		t.Error("nil payload should not rebuild an entry")
	}
	if entryFromPayload("id", map[string]*pb.Value{}) != nil {
		t.Error("empty payload should not rebuild an entry")
	}
}

func TestSearchFilterAlwaysScopesAgent(t *testing.T) {
	filter := searchFilter("agent-1", memory.Filter{})
	if len(filter.Must) != 1 {
		t.Fatalf("expected only the agent condition, got %d", len(filter.Must))
	}
	field := filter.Must[0].GetField()
	if field.GetKey() != "agent_id" || field.GetMatch().GetKeyword() != "agent-1" {
		t.Errorf("agent condition wrong: %v", field)
	}
}

func TestSearchFilterConditions(t *testing.T) {
	cutoff := time.Now()
	filter := searchFilter("agent-1", memory.Filter{
		ContextType:   "communication",
		Type:          memory.TypeEpisodic,
		MinImportance: 0.7,
		OlderThan:     cutoff,
	})
	if len(filter.Must) != 5 {
		t.Fatalf("expected 5 conditions, got %d", len(filter.Must))
	}

	byKey := map[string]*pb.FieldCondition{}
	for _, cond := range filter.Must {
		field := cond.GetField()
		if field == nil {
			t.Fatal("non-field condition in filter")
		}
		byKey[field.GetKey()] = field
	}

	if byKey["context_type"].GetMatch().GetKeyword() != "communication" {
		t.Errorf("context condition: %v", byKey["context_type"])
	}
	if byKey["memory_type"].GetMatch().GetKeyword() != "episodic" {
		t.Errorf("type condition: %v", byKey["memory_type"])
	}
	if gte := byKey["importance"].GetRange().GetGte(); gte != 0.7 {
		t.Errorf("importance range: got %v", gte)
	}
	if lt := byKey["created_at"].GetRange().GetLt(); lt != float64(cutoff.UnixMilli()) {
		t.Errorf("created_at range: got %v", lt)
	}
}
