// Package memory provides the tiered, importance-weighted context store
// owned by each agent, with optional durable and vector-search backends.
package memory

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Type classifies the expected lifespan and purpose of an entry.
type Type string

const (
	TypeShortTerm Type = "short_term"
	TypeLongTerm  Type = "long_term"
	TypeWorking   Type = "working"
	TypeEpisodic  Type = "episodic"
	TypeSemantic  Type = "semantic"
)

// Types lists all memory tiers.
func Types() []Type {
	return []Type{TypeShortTerm, TypeLongTerm, TypeWorking, TypeEpisodic, TypeSemantic}
}

// Entry is a single unit of agent context. Entries are owned by exactly one
// Store; after construction only the access accounting fields mutate.
type Entry struct {
	ID           string         `json:"id"`
	Content      string         `json:"content"`
	Type         Type           `json:"memory_type"`
	ContextType  string         `json:"context_type"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	Importance   float64        `json:"importance"`
	CreatedAt    time.Time      `json:"created_at"`
	AccessCount  int            `json:"access_count"`
	LastAccessed time.Time      `json:"last_accessed"`
}

// NewEntry constructs an entry with a fresh id, normalized content, and
// importance clamped to [0,1].
func NewEntry(contextType string, content any, memType Type, importance float64, metadata map[string]any) *Entry {
	now := time.Now()
	return &Entry{
		ID:           uuid.NewString(),
		Content:      normalizeContent(content),
		Type:         memType,
		ContextType:  contextType,
		Metadata:     metadata,
		Importance:   clampImportance(importance),
		CreatedAt:    now,
		LastAccessed: now,
	}
}

// Touch records a read: increments AccessCount and updates LastAccessed.
func (e *Entry) Touch() {
	e.AccessCount++
	e.LastAccessed = time.Now()
}

// clone returns a copy safe to hand to callers while the store keeps
// mutating the original's access accounting.
func (e *Entry) clone() *Entry {
	c := *e
	if e.Metadata != nil {
		c.Metadata = make(map[string]any, len(e.Metadata))
		for k, v := range e.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

// normalizeContent renders arbitrary content as text. Strings pass through,
// everything else is JSON encoded.
func normalizeContent(content any) string {
	switch v := content.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	}
}

func clampImportance(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
