package memory

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Filter narrows record-store queries. Zero-valued fields pass all entries
// on that axis; filters combine conjunctively.
type Filter struct {
	ContextType   string
	Type          Type
	OlderThan     time.Time
	MinImportance float64
}

// Matches reports whether the entry satisfies every set filter field.
func (f Filter) Matches(e *Entry) bool {
	if f.ContextType != "" && e.ContextType != f.ContextType {
		return false
	}
	if f.Type != "" && e.Type != f.Type {
		return false
	}
	if !f.OlderThan.IsZero() && !e.CreatedAt.Before(f.OlderThan) {
		return false
	}
	if f.MinImportance > 0 && e.Importance < f.MinImportance {
		return false
	}
	return true
}

// RecordStore is the durable collaborator behind a Store. Implementations
// persist entries per agent; the Store treats every call as best-effort and
// degrades to cache-only operation when calls fail.
type RecordStore interface {
	// Upsert inserts or replaces an entry for the agent.
	Upsert(ctx context.Context, agentID string, e *Entry) error
	// Query returns up to limit entries matching the filter, newest first.
	Query(ctx context.Context, agentID string, f Filter, limit int) ([]*Entry, error)
	// Delete removes the identified entries. Unknown ids are ignored.
	Delete(ctx context.Context, agentID string, ids []string) error
	// Count returns the number of entries held for the agent.
	Count(ctx context.Context, agentID string) (int, error)
}

// InMemoryRecordStore is a RecordStore kept entirely in process. It backs
// tests and single-process deployments that want durable-store semantics
// without a database file.
type InMemoryRecordStore struct {
	mu   sync.RWMutex
	data map[string]map[string]*Entry // agentID -> entry id -> entry
}

// NewInMemoryRecordStore creates an empty in-process record store.
func NewInMemoryRecordStore() *InMemoryRecordStore {
	return &InMemoryRecordStore{data: make(map[string]map[string]*Entry)}
}

func (s *InMemoryRecordStore) Upsert(_ context.Context, agentID string, e *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	agent, ok := s.data[agentID]
	if !ok {
		agent = make(map[string]*Entry)
		s.data[agentID] = agent
	}
	agent[e.ID] = e.clone()
	return nil
}

func (s *InMemoryRecordStore) Query(_ context.Context, agentID string, f Filter, limit int) ([]*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Entry
	for _, e := range s.data[agentID] {
		if f.Matches(e) {
			out = append(out, e.clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryRecordStore) Delete(_ context.Context, agentID string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	agent := s.data[agentID]
	for _, id := range ids {
		delete(agent, id)
	}
	return nil
}

func (s *InMemoryRecordStore) Count(_ context.Context, agentID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data[agentID]), nil
}
