// Copyright 2026 © The Ergon Authors
// SPDX-License-Identifier: Apache-2.0

package workflow

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteAuditStore persists audit events in SQLite via the pure-Go driver.
type SQLiteAuditStore struct {
	db *sql.DB
}

// NewSQLiteAuditStore creates an audit store on an existing handle and
// ensures schema.
func NewSQLiteAuditStore(db *sql.DB) (*SQLiteAuditStore, error) {
	if db == nil {
		return nil, fmt.Errorf("db is nil")
	}
	if err := ensureAuditSchema(db); err != nil {
		return nil, err
	}
	return &SQLiteAuditStore{db: db}, nil
}

// OpenSQLiteAuditStore opens (or creates) the database at path and ensures
// schema. Use ":memory:" for an ephemeral store.
func OpenSQLiteAuditStore(path string) (*SQLiteAuditStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store, err := NewSQLiteAuditStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database handle.
func (s *SQLiteAuditStore) Close() error {
	return s.db.Close()
}

// Record stores a single audit event.
func (s *SQLiteAuditStore) Record(ctx context.Context, event AuditEvent) error {
	output, err := encodeAuditOutput(event.Output)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO workflow_audit_events (
			workflow_id, run_id, step_id, task_type, agent_id, status,
			output_json, error_text, started_at, finished_at, duration_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		event.WorkflowID,
		event.RunID,
		event.StepID,
		event.TaskType,
		event.AgentID,
		event.Status,
		string(output),
		event.Error,
		normalizeAuditTime(event.StartedAt),
		normalizeAuditTime(event.FinishedAt),
		event.Duration.Milliseconds(),
	)
	return err
}

// List returns audit events matching the filter, oldest first.
func (s *SQLiteAuditStore) List(ctx context.Context, filter AuditFilter) ([]AuditEvent, error) {
	query := `
		SELECT workflow_id, run_id, step_id, task_type, agent_id, status,
			output_json, error_text, started_at, finished_at, duration_ms
		FROM workflow_audit_events
	`
	var args []any
	where := ""
	addFilter := func(clause string, value any) {
		if where == "" {
			where = " WHERE " + clause
		} else {
			where += " AND " + clause
		}
		args = append(args, value)
	}
	if filter.WorkflowID != "" {
		addFilter("workflow_id = ?", filter.WorkflowID)
	}
	if filter.RunID != "" {
		addFilter("run_id = ?", filter.RunID)
	}
	if filter.StepID != "" {
		addFilter("step_id = ?", filter.StepID)
	}
	if filter.Status != "" {
		addFilter("status = ?", filter.Status)
	}
	query += where + " ORDER BY started_at ASC, rowid ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []AuditEvent
	for rows.Next() {
		var (
			event      AuditEvent
			outputJSON string
			started    sql.NullTime
			finished   sql.NullTime
			durationMS int64
		)
		if err := rows.Scan(
			&event.WorkflowID,
			&event.RunID,
			&event.StepID,
			&event.TaskType,
			&event.AgentID,
			&event.Status,
			&outputJSON,
			&event.Error,
			&started,
			&finished,
			&durationMS,
		); err != nil {
			return nil, err
		}
		if outputJSON != "" {
			if out, err := decodeAuditOutput([]byte(outputJSON)); err == nil {
				event.Output = out
			}
		}
		if started.Valid {
			event.StartedAt = started.Time
		}
		if finished.Valid {
			event.FinishedAt = finished.Time
		}
		event.Duration = time.Duration(durationMS) * time.Millisecond
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

func ensureAuditSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS workflow_audit_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			workflow_id TEXT NOT NULL,
			run_id TEXT,
			step_id TEXT NOT NULL,
			task_type TEXT,
			agent_id TEXT,
			status TEXT NOT NULL,
			output_json TEXT,
			error_text TEXT,
			started_at TIMESTAMP,
			finished_at TIMESTAMP,
			duration_ms INTEGER
		);
		CREATE INDEX IF NOT EXISTS idx_workflow_audit_workflow ON workflow_audit_events(workflow_id);
		CREATE INDEX IF NOT EXISTS idx_workflow_audit_run ON workflow_audit_events(run_id);
		CREATE INDEX IF NOT EXISTS idx_workflow_audit_status ON workflow_audit_events(status);
	`)
	return err
}
