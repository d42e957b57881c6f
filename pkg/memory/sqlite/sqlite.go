// Package sqlite provides a SQLite-backed durable record store for agent
// memory. It uses the pure-Go modernc.org/sqlite driver, so binaries stay
// CGO-free.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jllopis/ergon/pkg/memory"

	_ "modernc.org/sqlite"
)

const entryTable = "ergon_memory_entries"

// Store persists memory entries in a SQLite database. It implements
// memory.RecordStore.
type Store struct {
	db *sql.DB
}

// New creates a SQLite-backed record store on an existing handle and ensures
// schema.
func New(db *sql.DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	if err := ensureSchema(db); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Open opens (or creates) the database at path and ensures schema. Use
// ":memory:" for an ephemeral store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store, err := New(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func ensureSchema(db *sql.DB) error {
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			agent_id TEXT NOT NULL,
			memory_type TEXT NOT NULL,
			context_type TEXT NOT NULL,
			importance REAL NOT NULL,
			created_at INTEGER NOT NULL,
			entry_json BLOB NOT NULL
		);`, entryTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_agent ON %s(agent_id);`, entryTable, entryTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_type ON %s(memory_type);`, entryTable, entryTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_context ON %s(context_type);`, entryTable, entryTable),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_created ON %s(created_at);`, entryTable, entryTable),
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Upsert inserts the entry or replaces the stored row with the same id.
func (s *Store) Upsert(ctx context.Context, agentID string, e *memory.Entry) error {
	if e == nil {
		return fmt.Errorf("entry is nil")
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal entry %s: %w", e.ID, err)
	}
	_, err = s.db.ExecContext(ctx, fmt.Sprintf(`INSERT INTO %s
		(id, agent_id, memory_type, context_type, importance, created_at, entry_json)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			agent_id = excluded.agent_id,
			memory_type = excluded.memory_type,
			context_type = excluded.context_type,
			importance = excluded.importance,
			created_at = excluded.created_at,
			entry_json = excluded.entry_json`, entryTable),
		e.ID, agentID, string(e.Type), e.ContextType, e.Importance, e.CreatedAt.UnixNano(), payload)
	return err
}

// Query returns the agent's entries matching the filter, newest first.
// A limit of zero or less returns all matching rows.
func (s *Store) Query(ctx context.Context, agentID string, f memory.Filter, limit int) ([]*memory.Entry, error) {
	where, args := buildFilter(agentID, f)
	query := fmt.Sprintf("SELECT entry_json FROM %s%s ORDER BY created_at DESC, id ASC", entryTable, where)
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*memory.Entry
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var e memory.Entry
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, fmt.Errorf("decode stored entry: %w", err)
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// Delete removes the given entry ids for the agent. Unknown ids are ignored.
func (s *Store) Delete(ctx context.Context, agentID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(ids)), ", ")
	args := make([]any, 0, len(ids)+1)
	args = append(args, agentID)
	for _, id := range ids {
		args = append(args, id)
	}
	_, err := s.db.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE agent_id = ? AND id IN (%s)", entryTable, placeholders),
		args...)
	return err
}

// Count returns the number of stored entries for the agent.
func (s *Store) Count(ctx context.Context, agentID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE agent_id = ?", entryTable),
		agentID).Scan(&n)
	return n, err
}

func buildFilter(agentID string, f memory.Filter) (string, []any) {
	clauses := []string{"agent_id = ?"}
	args := []any{agentID}
	if f.ContextType != "" {
		clauses = append(clauses, "context_type = ?")
		args = append(args, f.ContextType)
	}
	if f.Type != "" {
		clauses = append(clauses, "memory_type = ?")
		args = append(args, string(f.Type))
	}
	if !f.OlderThan.IsZero() {
		clauses = append(clauses, "created_at < ?")
		args = append(args, f.OlderThan.UnixNano())
	}
	if f.MinImportance > 0 {
		clauses = append(clauses, "importance >= ?")
		args = append(args, f.MinImportance)
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

var _ memory.RecordStore = (*Store)(nil)
