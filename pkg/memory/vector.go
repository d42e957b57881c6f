package memory

import "context"

// Scored is a vector-index hit: the entry id, the similarity score reported
// by the index, and the entry reconstructed from the index payload when the
// backend stores enough of it.
type Scored struct {
	ID    string
	Score float32
	Entry *Entry
}

// VectorIndex is the optional semantic-search collaborator. Absence or
// failure of the index never breaks a Store operation; the Store falls back
// to substring matching over its cache.
type VectorIndex interface {
	// Index adds or refreshes the entry in the index.
	Index(ctx context.Context, agentID string, e *Entry) error
	// Search returns up to limit entries semantically close to the query,
	// restricted by the filter, best match first.
	Search(ctx context.Context, agentID, query string, f Filter, limit int) ([]Scored, error)
	// Remove drops the identified entries from the index.
	Remove(ctx context.Context, agentID string, ids []string) error
}

// Embedder converts text to vectors for a VectorIndex implementation.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// SearchResult pairs an entry with its similarity score.
type SearchResult struct {
	Entry      *Entry  `json:"entry"`
	Similarity float32 `json:"similarity"`
}
