// Package qdrant provides a Qdrant-backed vector index for semantic memory
// search. Entries are embedded on write and mirrored as points whose payload
// carries enough of the entry to rebuild it when the agent's local cache no
// longer holds the id.
package qdrant

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/jllopis/ergon/pkg/memory"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const defaultCollection = "ergon_memories"

// Index stores entry embeddings as points in a single Qdrant collection,
// scoped per agent through an agent_id payload field. It implements
// memory.VectorIndex.
type Index struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	embedder    memory.Embedder
	collection  string
	threshold   float32

	mu    sync.Mutex
	ready bool
}

// Option configures an Index.
type Option func(*Index)

// WithCollection overrides the default collection name.
func WithCollection(name string) Option {
	return func(x *Index) {
		if name != "" {
			x.collection = name
		}
	}
}

// WithScoreThreshold drops search hits scoring below min similarity.
func WithScoreThreshold(min float32) Option {
	return func(x *Index) { x.threshold = min }
}

// New connects to a Qdrant instance and returns an index that embeds text
// with the given embedder. The collection is created lazily on first write,
// once the embedding dimension is known.
func New(addr string, embedder memory.Embedder, opts ...Option) (*Index, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is nil")
	}
	conn, err := grpc.Dial(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("did not connect: %v", err)
	}
	x := &Index{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		embedder:    embedder,
		collection:  defaultCollection,
	}
	for _, opt := range opts {
		opt(x)
	}
	return x, nil
}

// Close releases the underlying gRPC connection.
func (x *Index) Close() error {
	return x.conn.Close()
}

func (x *Index) ensureCollection(ctx context.Context, dim uint64) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.ready {
		return nil
	}
	_, err := x.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: x.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     dim,
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		// Create fails when the collection already exists. Probe before
		// giving up.
		if _, gerr := x.collections.Get(ctx, &pb.GetCollectionInfoRequest{CollectionName: x.collection}); gerr != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}
	}
	x.ready = true
	return nil
}

// Index embeds the entry content and upserts it as a point keyed by the
// entry id, replacing any previous version.
func (x *Index) Index(ctx context.Context, agentID string, e *memory.Entry) error {
	if e == nil {
		return fmt.Errorf("entry is nil")
	}
	vector, err := x.embedder.Embed(ctx, e.Content)
	if err != nil {
		return fmt.Errorf("embed entry %s: %w", e.ID, err)
	}
	if err := x.ensureCollection(ctx, uint64(len(vector))); err != nil {
		return err
	}

	_, err = x.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: x.collection,
		Points: []*pb.PointStruct{{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: e.ID},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: vector},
				},
			},
			Payload: entryPayload(agentID, e),
		}},
	})
	if err != nil {
		return fmt.Errorf("failed to upsert points: %w", err)
	}
	return nil
}

// Search embeds the query and returns the best-scoring points for the agent,
// constrained by the filter. Each hit carries an entry rebuilt from the point
// payload.
func (x *Index) Search(ctx context.Context, agentID, query string, f memory.Filter, limit int) ([]memory.Scored, error) {
	vector, err := x.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if limit <= 0 {
		limit = 10
	}

	req := &pb.SearchPoints{
		CollectionName: x.collection,
		Vector:         vector,
		Limit:          uint64(limit),
		Filter:         searchFilter(agentID, f),
		WithPayload: &pb.WithPayloadSelector{
			SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true},
		},
	}
	if x.threshold > 0 {
		threshold := x.threshold
		req.ScoreThreshold = &threshold
	}

	resp, err := x.points.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to search points: %w", err)
	}

	out := make([]memory.Scored, 0, len(resp.Result))
	for _, r := range resp.Result {
		id := r.Id.GetUuid()
		if id == "" {
			id = fmt.Sprintf("%d", r.Id.GetNum())
		}
		out = append(out, memory.Scored{
			ID:    id,
			Score: r.Score,
			Entry: entryFromPayload(id, r.Payload),
		})
	}
	return out, nil
}

// Remove deletes the points for the given entry ids. Unknown ids are ignored
// by Qdrant.
func (x *Index) Remove(ctx context.Context, agentID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	points := make([]*pb.PointId, len(ids))
	for i, id := range ids {
		points[i] = &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: id}}
	}
	_, err := x.points.Delete(ctx, &pb.DeletePoints{
		CollectionName: x.collection,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Points{
				Points: &pb.PointsIdsList{Ids: points},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete points: %w", err)
	}
	return nil
}

func searchFilter(agentID string, f memory.Filter) *pb.Filter {
	must := []*pb.Condition{keywordCondition("agent_id", agentID)}
	if f.ContextType != "" {
		must = append(must, keywordCondition("context_type", f.ContextType))
	}
	if f.Type != "" {
		must = append(must, keywordCondition("memory_type", string(f.Type)))
	}
	if f.MinImportance > 0 {
		gte := f.MinImportance
		must = append(must, &pb.Condition{
			ConditionOneOf: &pb.Condition_Field{
				Field: &pb.FieldCondition{
					Key:   "importance",
					Range: &pb.Range{Gte: &gte},
				},
			},
		})
	}
	if !f.OlderThan.IsZero() {
		lt := float64(f.OlderThan.UnixMilli())
		must = append(must, &pb.Condition{
			ConditionOneOf: &pb.Condition_Field{
				Field: &pb.FieldCondition{
					Key:   "created_at",
					Range: &pb.Range{Lt: &lt},
				},
			},
		})
	}
	return &pb.Filter{Must: must}
}

func keywordCondition(key, value string) *pb.Condition {
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{
				Key:   key,
				Match: &pb.Match{MatchValue: &pb.Match_Keyword{Keyword: value}},
			},
		},
	}
}

func entryPayload(agentID string, e *memory.Entry) map[string]*pb.Value {
	payload := map[string]*pb.Value{
		"agent_id":     stringValue(agentID),
		"memory_type":  stringValue(string(e.Type)),
		"context_type": stringValue(e.ContextType),
		"content":      stringValue(e.Content),
		"importance":   {Kind: &pb.Value_DoubleValue{DoubleValue: e.Importance}},
		"created_at":   {Kind: &pb.Value_IntegerValue{IntegerValue: e.CreatedAt.UnixMilli()}},
	}
	if len(e.Metadata) > 0 {
		if raw, err := json.Marshal(e.Metadata); err == nil {
			payload["metadata"] = stringValue(string(raw))
		}
	}
	return payload
}

func entryFromPayload(id string, payload map[string]*pb.Value) *memory.Entry {
	if len(payload) == 0 {
		return nil
	}
	e := &memory.Entry{ID: id}
	if v := payload["content"]; v != nil {
		e.Content = v.GetStringValue()
	}
	if v := payload["context_type"]; v != nil {
		e.ContextType = v.GetStringValue()
	}
	if v := payload["memory_type"]; v != nil {
		e.Type = memory.Type(v.GetStringValue())
	}
	if v := payload["importance"]; v != nil {
		e.Importance = v.GetDoubleValue()
	}
	if v := payload["created_at"]; v != nil {
		e.CreatedAt = time.UnixMilli(v.GetIntegerValue())
	}
	if v := payload["metadata"]; v != nil && v.GetStringValue() != "" {
		meta := map[string]any{}
		if err := json.Unmarshal([]byte(v.GetStringValue()), &meta); err == nil {
			e.Metadata = meta
		}
	}
	if e.Content == "" && e.ContextType == "" {
		return nil
	}
	e.LastAccessed = e.CreatedAt
	return e
}

func stringValue(v string) *pb.Value {
	return &pb.Value{Kind: &pb.Value_StringValue{StringValue: v}}
}

var _ memory.VectorIndex = (*Index)(nil)
