package memory

import (
	"context"
	"testing"
	"time"
)

func TestFilterMatches(t *testing.T) {
	now := time.Now()
	e := &Entry{
		ID:          "e1",
		Content:     "x",
		Type:        TypeLongTerm,
		ContextType: "task_execution",
		Importance:  0.6,
		CreatedAt:   now.Add(-48 * time.Hour),
	}

	tests := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"empty filter matches everything", Filter{}, true},
		{"context match", Filter{ContextType: "task_execution"}, true},
		{"context mismatch", Filter{ContextType: "communication"}, false},
		{"type match", Filter{Type: TypeLongTerm}, true},
		{"type mismatch", Filter{Type: TypeWorking}, false},
		{"importance at threshold", Filter{MinImportance: 0.6}, true},
		{"importance below threshold", Filter{MinImportance: 0.7}, false},
		{"older than cutoff", Filter{OlderThan: now.Add(-24 * time.Hour)}, true},
		{"newer than cutoff", Filter{OlderThan: now.Add(-72 * time.Hour)}, false},
		{"all conditions", Filter{ContextType: "task_execution", Type: TypeLongTerm, MinImportance: 0.5}, true},
		{"one condition fails", Filter{ContextType: "task_execution", Type: TypeWorking}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Matches(e); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestInMemoryRecordStore(t *testing.T) {
	rs := NewInMemoryRecordStore()
	ctx := context.Background()

	older := NewEntry("obs", "older", TypeShortTerm, 0.5, nil)
	older.CreatedAt = time.Now().Add(-time.Hour)
	newer := NewEntry("obs", "newer", TypeShortTerm, 0.5, nil)

	if err := rs.Upsert(ctx, "agent-1", older); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if err := rs.Upsert(ctx, "agent-1", newer); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if err := rs.Upsert(ctx, "agent-2", NewEntry("obs", "other agent", TypeShortTerm, 0.5, nil)); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	rows, err := rs.Query(ctx, "agent-1", Filter{}, 0)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("agent isolation broken: got %d rows", len(rows))
	}
	if rows[0].Content != "newer" || rows[1].Content != "older" {
		t.Errorf("ordering wrong: [%s, %s]", rows[0].Content, rows[1].Content)
	}

	limited, err := rs.Query(ctx, "agent-1", Filter{}, 1)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if len(limited) != 1 || limited[0].Content != "newer" {
		t.Errorf("limit should keep the newest row")
	}

	n, err := rs.Count(ctx, "agent-1")
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Count = %d, want 2", n)
	}

	if err := rs.Delete(ctx, "agent-1", []string{older.ID, "never-existed"}); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if n, _ := rs.Count(ctx, "agent-1"); n != 1 {
		t.Errorf("after delete: Count = %d, want 1", n)
	}
}

func TestInMemoryRecordStoreClonesRows(t *testing.T) {
	rs := NewInMemoryRecordStore()
	ctx := context.Background()

	e := NewEntry("obs", "original", TypeShortTerm, 0.5, map[string]any{"k": "v"})
	if err := rs.Upsert(ctx, "agent-1", e); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	// Mutating the caller's entry after upsert must not affect stored rows.
	e.Content = "mutated"
	e.Metadata["k"] = "changed"

	rows, err := rs.Query(ctx, "agent-1", Filter{}, 0)
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if rows[0].Content != "original" || rows[0].Metadata["k"] != "v" {
		t.Errorf("stored row shares memory with caller: %+v", rows[0])
	}

	// Mutating a queried row must not affect subsequent queries.
	rows[0].Content = "tampered"
	again, _ := rs.Query(ctx, "agent-1", Filter{}, 0)
	if again[0].Content != "original" {
		t.Error("queried rows share memory with the store")
	}
}
