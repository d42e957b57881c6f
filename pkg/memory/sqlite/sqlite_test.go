package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/jllopis/ergon/pkg/memory"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "memory.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestUpsertAndQueryRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	e := memory.NewEntry("task_execution", map[string]any{"task_id": "T1"},
		memory.TypeLongTerm, 0.9, map[string]any{"source": "test"})
	if err := store.Upsert(ctx, "agent-1", e); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	rows, err := store.Query(ctx, "agent-1", memory.Filter{}, 0)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	got := rows[0]
	if got.ID != e.ID {
		t.Errorf("id: got %s, want %s", got.ID, e.ID)
	}
	if got.Type != memory.TypeLongTerm || got.ContextType != "task_execution" {
		t.Errorf("fields lost: type=%s context=%s", got.Type, got.ContextType)
	}
	if got.Importance != 0.9 {
		t.Errorf("importance: got %v", got.Importance)
	}
	if got.Metadata["source"] != "test" {
		t.Errorf("metadata lost: %v", got.Metadata)
	}
	if !got.CreatedAt.Equal(e.CreatedAt) {
		t.Errorf("created_at drifted: got %v, want %v", got.CreatedAt, e.CreatedAt)
	}
}

func TestUpsertReplacesExistingRow(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	e := memory.NewEntry("obs", "first", memory.TypeShortTerm, 0.5, nil)
	if err := store.Upsert(ctx, "agent-1", e); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	e.Content = "second"
	e.AccessCount = 3
	if err := store.Upsert(ctx, "agent-1", e); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	rows, err := store.Query(ctx, "agent-1", memory.Filter{}, 0)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("upsert duplicated the row: %d rows", len(rows))
	}
	if rows[0].Content != "second" || rows[0].AccessCount != 3 {
		t.Errorf("row not replaced: %+v", rows[0])
	}
}

func TestQueryFilters(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	seed := func(ctxType string, tier memory.Type, importance float64, age time.Duration) *memory.Entry {
		t.Helper()
		e := memory.NewEntry(ctxType, "entry", tier, importance, nil)
		e.CreatedAt = now.Add(-age)
		if err := store.Upsert(ctx, "agent-1", e); err != nil {
			t.Fatalf("upsert: %v", err)
		}
		return e
	}

	seed("task_execution", memory.TypeShortTerm, 0.3, time.Minute)
	longterm := seed("task_execution", memory.TypeLongTerm, 0.8, time.Hour)
	seed("communication", memory.TypeLongTerm, 0.6, 48*time.Hour)

	byType, err := store.Query(ctx, "agent-1", memory.Filter{Type: memory.TypeLongTerm}, 0)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(byType) != 2 {
		t.Errorf("type filter: got %d rows, want 2", len(byType))
	}

	byContext, err := store.Query(ctx, "agent-1", memory.Filter{ContextType: "task_execution"}, 0)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(byContext) != 2 {
		t.Errorf("context filter: got %d rows, want 2", len(byContext))
	}

	combined, err := store.Query(ctx, "agent-1", memory.Filter{
		ContextType: "task_execution",
		Type:        memory.TypeLongTerm,
	}, 0)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(combined) != 1 || combined[0].ID != longterm.ID {
		t.Errorf("combined filter: got %d rows", len(combined))
	}

	important, err := store.Query(ctx, "agent-1", memory.Filter{MinImportance: 0.6}, 0)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(important) != 2 {
		t.Errorf("importance filter: got %d rows, want 2", len(important))
	}

	old, err := store.Query(ctx, "agent-1", memory.Filter{OlderThan: now.Add(-24 * time.Hour)}, 0)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(old) != 1 || old[0].ContextType != "communication" {
		t.Errorf("age filter: got %d rows", len(old))
	}
}

func TestQueryOrderingAndLimit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	for i, age := range []time.Duration{3 * time.Hour, time.Hour, 2 * time.Hour} {
		e := memory.NewEntry("seq", i, memory.TypeShortTerm, 0.5, nil)
		e.CreatedAt = now.Add(-age)
		if err := store.Upsert(ctx, "agent-1", e); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}

	rows, err := store.Query(ctx, "agent-1", memory.Filter{}, 0)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0].Content != "1" || rows[1].Content != "2" || rows[2].Content != "0" {
		t.Errorf("not newest-first: [%s, %s, %s]", rows[0].Content, rows[1].Content, rows[2].Content)
	}

	limited, err := store.Query(ctx, "agent-1", memory.Filter{}, 2)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(limited) != 2 || limited[0].Content != "1" {
		t.Errorf("limit should keep the newest rows, got %d", len(limited))
	}
}

func TestDeleteIgnoresUnknownIDs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	keep := memory.NewEntry("obs", "keep", memory.TypeShortTerm, 0.5, nil)
	drop := memory.NewEntry("obs", "drop", memory.TypeShortTerm, 0.5, nil)
	for _, e := range []*memory.Entry{keep, drop} {
		if err := store.Upsert(ctx, "agent-1", e); err != nil {
			t.Fatalf("upsert: %v", err)
		}
	}

	if err := store.Delete(ctx, "agent-1", []string{drop.ID, "never-existed"}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.Delete(ctx, "agent-1", nil); err != nil {
		t.Fatalf("empty delete: %v", err)
	}

	rows, err := store.Query(ctx, "agent-1", memory.Filter{}, 0)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != keep.ID {
		t.Errorf("wrong rows left: %d", len(rows))
	}
}

func TestAgentIsolation(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	mine := memory.NewEntry("obs", "mine", memory.TypeShortTerm, 0.5, nil)
	theirs := memory.NewEntry("obs", "theirs", memory.TypeShortTerm, 0.5, nil)
	if err := store.Upsert(ctx, "agent-1", mine); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := store.Upsert(ctx, "agent-2", theirs); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	// Deleting with the wrong agent id must not touch the row.
	if err := store.Delete(ctx, "agent-1", []string{theirs.ID}); err != nil {
		t.Fatalf("delete: %v", err)
	}

	n, err := store.Count(ctx, "agent-2")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Errorf("agent-2 count: got %d, want 1", n)
	}

	rows, err := store.Query(ctx, "agent-1", memory.Filter{}, 0)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(rows) != 1 || rows[0].Content != "mine" {
		t.Errorf("agent-1 sees foreign rows: %d", len(rows))
	}
}
