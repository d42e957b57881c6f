package memory

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jllopis/ergon/pkg/errors"
	"github.com/jllopis/ergon/pkg/telemetry"
)

// CleanupPolicy bounds the store. Interval is how often the opportunistic
// cleanup check fires (0 checks on every store call). A cap of 0 disables
// that cap; MaxAge 0 disables the age purge.
type CleanupPolicy struct {
	Interval     time.Duration
	ShortTermCap int
	WorkingCap   int
	MaxAge       time.Duration
}

// DefaultCleanupPolicy returns the standard retention policy: 24h check
// interval, 100 short-term entries, 50 working entries, 7 day max age.
func DefaultCleanupPolicy() CleanupPolicy {
	return CleanupPolicy{
		Interval:     24 * time.Hour,
		ShortTermCap: 100,
		WorkingCap:   50,
		MaxAge:       7 * 24 * time.Hour,
	}
}

// Stats summarizes a store's contents.
type Stats struct {
	AgentID      string         `json:"agent_id"`
	Total        int            `json:"total"`
	ByType       map[Type]int   `json:"by_type"`
	ByContext    map[string]int `json:"by_context"`
	DurableCount int            `json:"durable_count,omitempty"`
}

// Store is the tiered context store owned by a single agent. The local cache
// always works; durable and vector collaborators are optional and every
// remote failure degrades to cache-only behavior instead of surfacing to the
// local path.
type Store struct {
	agentID string
	logger  *slog.Logger
	metrics *telemetry.AgentMetrics
	policy  CleanupPolicy
	records RecordStore
	index   VectorIndex

	mu          sync.RWMutex
	cache       map[string]*Entry
	lastCleanup time.Time
	closed      bool
}

// Option configures a Store at construction.
type Option func(*Store)

// WithRecordStore attaches the durable collaborator.
func WithRecordStore(rs RecordStore) Option {
	return func(s *Store) { s.records = rs }
}

// WithVectorIndex attaches the semantic-search collaborator.
func WithVectorIndex(vi VectorIndex) Option {
	return func(s *Store) { s.index = vi }
}

// WithCleanupPolicy overrides the default retention policy.
func WithCleanupPolicy(p CleanupPolicy) Option {
	return func(s *Store) { s.policy = p }
}

// WithLogger sets the logger used for degradation and cleanup events.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics attaches telemetry instruments for store/eviction counters.
func WithMetrics(m *telemetry.AgentMetrics) Option {
	return func(s *Store) { s.metrics = m }
}

// NewStore creates a store for the given agent. Without options it runs
// cache-only with the default cleanup policy.
func NewStore(agentID string, opts ...Option) *Store {
	s := &Store{
		agentID:     agentID,
		logger:      slog.Default(),
		policy:      DefaultCleanupPolicy(),
		cache:       make(map[string]*Entry),
		lastCleanup: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AgentID returns the owning agent's id.
func (s *Store) AgentID() string { return s.agentID }

// StoreOption adjusts a single Store call.
type StoreOption func(*storeParams)

type storeParams struct {
	memType    Type
	importance float64
	metadata   map[string]any
}

// WithType selects the memory tier (default short-term).
func WithType(t Type) StoreOption {
	return func(p *storeParams) { p.memType = t }
}

// WithImportance sets the retention weight (default 0.5, clamped to [0,1]).
func WithImportance(v float64) StoreOption {
	return func(p *storeParams) { p.importance = v }
}

// WithMetadata attaches free-form metadata to the entry.
func WithMetadata(m map[string]any) StoreOption {
	return func(p *storeParams) { p.metadata = m }
}

// Store records content under the given context tag and returns the entry id.
// The entry is always cached locally first; a durable-collaborator failure is
// reported through the returned error but the entry stays cached, so callers
// may treat the error as advisory.
func (s *Store) Store(ctx context.Context, contextType string, content any, opts ...StoreOption) (string, error) {
	params := storeParams{memType: TypeShortTerm, importance: 0.5}
	for _, opt := range opts {
		opt(&params)
	}
	e := NewEntry(contextType, content, params.memType, params.importance, params.metadata)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", errors.New(errors.CodeMemoryError, "store is closed", nil)
	}
	s.cache[e.ID] = e
	s.mu.Unlock()

	s.metrics.RecordMemoryStored(ctx, s.agentID, string(e.Type))

	var storeErr error
	if s.records != nil {
		if err := s.records.Upsert(ctx, s.agentID, e); err != nil {
			s.logger.WarnContext(ctx, "memory.store.durable_failed",
				"agent_id", s.agentID, "entry_id", e.ID, "error", err)
			storeErr = errors.New(errors.CodeMemoryError, "durable store upsert failed", err).
				WithContext("entry_id", e.ID).
				WithRecoverable(true)
		}
	}
	if s.index != nil {
		if err := s.index.Index(ctx, s.agentID, e); err != nil {
			s.logger.WarnContext(ctx, "memory.store.index_failed",
				"agent_id", s.agentID, "entry_id", e.ID, "error", err)
		}
	}

	s.maybeCleanup(ctx)
	return e.ID, storeErr
}

// QueryOption narrows Get, SemanticSearch, and Clear calls.
type QueryOption func(*queryOpts)

type queryOpts struct {
	contextType   string
	memType       Type
	limit         int
	minImportance float64
	olderThan     time.Duration
}

// WithContextType filters by context tag.
func WithContextType(ct string) QueryOption {
	return func(q *queryOpts) { q.contextType = ct }
}

// WithMemoryType filters by tier.
func WithMemoryType(t Type) QueryOption {
	return func(q *queryOpts) { q.memType = t }
}

// WithLimit caps the result count (Get defaults to 50, SemanticSearch to 10).
func WithLimit(n int) QueryOption {
	return func(q *queryOpts) { q.limit = n }
}

// WithMinImportance drops entries below the threshold.
func WithMinImportance(v float64) QueryOption {
	return func(q *queryOpts) { q.minImportance = v }
}

// WithOlderThan restricts Clear to entries created before now minus d.
func WithOlderThan(d time.Duration) QueryOption {
	return func(q *queryOpts) { q.olderThan = d }
}

func (q queryOpts) filter() Filter {
	f := Filter{
		ContextType:   q.contextType,
		Type:          q.memType,
		MinImportance: q.minImportance,
	}
	if q.olderThan > 0 {
		f.OlderThan = time.Now().Add(-q.olderThan)
	}
	return f
}

// Get returns matching entries, most recent first, merged and deduplicated
// across the cache and the durable collaborator. Each returned entry has its
// access accounting updated (a read side effect).
func (s *Store) Get(ctx context.Context, opts ...QueryOption) ([]*Entry, error) {
	q := queryOpts{limit: 50}
	for _, opt := range opts {
		opt(&q)
	}
	f := q.filter()

	// Remote fetch happens outside the cache lock.
	var remote []*Entry
	if s.records != nil {
		fetched, err := s.records.Query(ctx, s.agentID, f, q.limit)
		if err != nil {
			s.logger.WarnContext(ctx, "memory.get.durable_failed",
				"agent_id", s.agentID, "error", err)
		} else {
			remote = fetched
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, errors.New(errors.CodeMemoryError, "store is closed", nil)
	}

	seen := make(map[string]bool, len(s.cache))
	var merged []*Entry
	for _, e := range s.cache {
		if f.Matches(e) {
			merged = append(merged, e)
			seen[e.ID] = true
		}
	}
	for _, e := range remote {
		if !seen[e.ID] && f.Matches(e) {
			merged = append(merged, e)
			seen[e.ID] = true
		}
	}

	sortByRecency(merged)
	if q.limit > 0 && len(merged) > q.limit {
		merged = merged[:q.limit]
	}

	out := make([]*Entry, len(merged))
	for i, e := range merged {
		e.Touch()
		out[i] = e.clone()
	}
	return out, nil
}

// SemanticSearch returns entries relevant to the query, best match first.
// With a vector index attached the index supplies the similarity scores; on
// index absence or failure the store falls back to a case-insensitive
// substring match over its cache with a fixed similarity of 0.5. Degraded
// paths return empty or partial results rather than an error.
func (s *Store) SemanticSearch(ctx context.Context, query string, opts ...QueryOption) ([]SearchResult, error) {
	q := queryOpts{limit: 10}
	for _, opt := range opts {
		opt(&q)
	}
	f := q.filter()

	if s.index != nil {
		hits, err := s.index.Search(ctx, s.agentID, query, f, q.limit)
		if err == nil {
			return s.resolveHits(hits)
		}
		s.logger.WarnContext(ctx, "memory.search.index_failed",
			"agent_id", s.agentID, "error", err)
	}
	return s.substringSearch(query, f, q.limit)
}

func (s *Store) resolveHits(hits []Scored) ([]SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errors.New(errors.CodeMemoryError, "store is closed", nil)
	}

	var out []SearchResult
	for _, hit := range hits {
		if e, ok := s.cache[hit.ID]; ok {
			out = append(out, SearchResult{Entry: e.clone(), Similarity: hit.Score})
			continue
		}
		if hit.Entry != nil {
			out = append(out, SearchResult{Entry: hit.Entry, Similarity: hit.Score})
		}
	}
	return out, nil
}

const fallbackSimilarity = 0.5

func (s *Store) substringSearch(query string, f Filter, limit int) ([]SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errors.New(errors.CodeMemoryError, "store is closed", nil)
	}

	needle := strings.ToLower(query)
	var matched []*Entry
	for _, e := range s.cache {
		if f.Matches(e) && strings.Contains(strings.ToLower(e.Content), needle) {
			matched = append(matched, e)
		}
	}
	sortByRecency(matched)
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}

	out := make([]SearchResult, len(matched))
	for i, e := range matched {
		out[i] = SearchResult{Entry: e.clone(), Similarity: fallbackSimilarity}
	}
	return out, nil
}

// Clear removes entries matching the conjunctive filters from the cache, the
// durable store, and the vector index, and returns the count of unique
// entries removed. Remote failures are logged; the local removal stands.
func (s *Store) Clear(ctx context.Context, opts ...QueryOption) (int, error) {
	var q queryOpts
	for _, opt := range opts {
		opt(&q)
	}
	f := q.filter()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, errors.New(errors.CodeMemoryError, "store is closed", nil)
	}
	removed := make(map[string]bool)
	var ids []string
	for id, e := range s.cache {
		if f.Matches(e) {
			delete(s.cache, id)
			removed[id] = true
			ids = append(ids, id)
		}
	}
	s.mu.Unlock()

	if s.records != nil {
		// Durable-only rows match the same filter.
		if rows, err := s.records.Query(ctx, s.agentID, f, 0); err != nil {
			s.logger.WarnContext(ctx, "memory.clear.durable_query_failed",
				"agent_id", s.agentID, "error", err)
		} else {
			for _, e := range rows {
				if !removed[e.ID] {
					removed[e.ID] = true
					ids = append(ids, e.ID)
				}
			}
		}
		if len(ids) > 0 {
			if err := s.records.Delete(ctx, s.agentID, ids); err != nil {
				s.logger.WarnContext(ctx, "memory.clear.durable_delete_failed",
					"agent_id", s.agentID, "error", err)
			}
		}
	}
	if s.index != nil && len(ids) > 0 {
		if err := s.index.Remove(ctx, s.agentID, ids); err != nil {
			s.logger.WarnContext(ctx, "memory.clear.index_failed",
				"agent_id", s.agentID, "error", err)
		}
	}
	return len(removed), nil
}

// Stats reports entry counts by tier and context tag. The durable count is
// best-effort and stays zero when the collaborator is absent or failing.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	s.mu.RLock()
	st := Stats{
		AgentID:   s.agentID,
		Total:     len(s.cache),
		ByType:    make(map[Type]int),
		ByContext: make(map[string]int),
	}
	for _, e := range s.cache {
		st.ByType[e.Type]++
		st.ByContext[e.ContextType]++
	}
	s.mu.RUnlock()

	if s.records != nil {
		if n, err := s.records.Count(ctx, s.agentID); err != nil {
			s.logger.WarnContext(ctx, "memory.stats.durable_failed",
				"agent_id", s.agentID, "error", err)
		} else {
			st.DurableCount = n
		}
	}
	return st, nil
}

// Close releases local state. Idempotent; the durable collaborator's own
// lifecycle (for example the sql.DB) belongs to whoever opened it.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.cache = make(map[string]*Entry)
	s.logger.Debug("memory.store.closed", "agent_id", s.agentID)
	return nil
}

type eviction struct {
	id     string
	tier   Type
	reason string
}

// maybeCleanup runs the retention passes when the policy interval has
// elapsed. Eviction is silent to callers but logged and counted.
func (s *Store) maybeCleanup(ctx context.Context) {
	s.mu.Lock()
	if s.closed || time.Since(s.lastCleanup) < s.policy.Interval {
		s.mu.Unlock()
		return
	}
	s.lastCleanup = time.Now()
	evicted := s.evictLocked()
	s.mu.Unlock()

	s.finishCleanup(ctx, evicted)
}

// Sweep forces the retention passes regardless of the policy interval and
// reports how many entries were evicted. Background maintenance calls this;
// regular stores trigger the same passes implicitly.
func (s *Store) Sweep(ctx context.Context) (int, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, errors.New(errors.CodeMemoryError, "store is closed", nil)
	}
	s.lastCleanup = time.Now()
	evicted := s.evictLocked()
	s.mu.Unlock()

	s.finishCleanup(ctx, evicted)
	return len(evicted), nil
}

// finishCleanup records metrics for evictions and propagates removals to the
// durable and vector collaborators.
func (s *Store) finishCleanup(ctx context.Context, evicted []eviction) {
	if len(evicted) == 0 {
		return
	}

	counts := make(map[Type]map[string]int64)
	ids := make([]string, 0, len(evicted))
	for _, ev := range evicted {
		ids = append(ids, ev.id)
		if counts[ev.tier] == nil {
			counts[ev.tier] = make(map[string]int64)
		}
		counts[ev.tier][ev.reason]++
	}
	for tier, reasons := range counts {
		for reason, n := range reasons {
			s.metrics.RecordMemoryEvicted(ctx, s.agentID, string(tier), reason, n)
		}
	}
	s.logger.InfoContext(ctx, "memory.cleanup",
		"agent_id", s.agentID, "evicted", len(evicted))

	if s.records != nil {
		if err := s.records.Delete(ctx, s.agentID, ids); err != nil {
			s.logger.WarnContext(ctx, "memory.cleanup.durable_failed",
				"agent_id", s.agentID, "error", err)
		}
	}
	if s.index != nil {
		if err := s.index.Remove(ctx, s.agentID, ids); err != nil {
			s.logger.WarnContext(ctx, "memory.cleanup.index_failed",
				"agent_id", s.agentID, "error", err)
		}
	}
}

// evictLocked applies the three retention passes and returns what was
// dropped. Caller holds the write lock.
func (s *Store) evictLocked() []eviction {
	var out []eviction

	if keep := s.policy.ShortTermCap; keep > 0 {
		short := s.ofTypeLocked(TypeShortTerm)
		if len(short) > keep {
			sortByRetention(short)
			for _, e := range short[keep:] {
				delete(s.cache, e.ID)
				out = append(out, eviction{e.ID, TypeShortTerm, "cap"})
			}
		}
	}

	if keep := s.policy.WorkingCap; keep > 0 {
		working := s.ofTypeLocked(TypeWorking)
		if len(working) > keep {
			sortByRecency(working)
			for _, e := range working[keep:] {
				delete(s.cache, e.ID)
				out = append(out, eviction{e.ID, TypeWorking, "cap"})
			}
		}
	}

	if s.policy.MaxAge > 0 {
		cutoff := time.Now().Add(-s.policy.MaxAge)
		for id, e := range s.cache {
			if e.CreatedAt.Before(cutoff) {
				delete(s.cache, id)
				out = append(out, eviction{id, e.Type, "age"})
			}
		}
	}
	return out
}

func (s *Store) ofTypeLocked(t Type) []*Entry {
	var out []*Entry
	for _, e := range s.cache {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// sortByRecency orders newest first, ties broken by id for determinism.
func sortByRecency(entries []*Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.After(entries[j].CreatedAt)
		}
		return entries[i].ID < entries[j].ID
	})
}

// sortByRetention orders by importance then recency, both descending.
func sortByRetention(entries []*Entry) {
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Importance != entries[j].Importance {
			return entries[i].Importance > entries[j].Importance
		}
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.After(entries[j].CreatedAt)
		}
		return entries[i].ID < entries[j].ID
	})
}
