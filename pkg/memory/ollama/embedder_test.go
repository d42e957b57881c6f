package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestEmbed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embeddings" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		var req embeddingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "nomic-embed-text" {
			t.Errorf("model: got %s", req.Model)
		}
		if req.Prompt != "hello world" {
			t.Errorf("prompt: got %q", req.Prompt)
		}
		json.NewEncoder(w).Encode(embeddingResponse{Embedding: []float64{0.1, -0.2, 0.3}})
	}))
	defer server.Close()

	emb := NewEmbedder(server.URL, "")
	vec, err := emb.Embed(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	if len(vec) != 3 {
		t.Fatalf("expected 3 dimensions, got %d", len(vec))
	}
	if vec[0] != 0.1 || vec[1] != -0.2 || vec[2] != 0.3 {
		t.Errorf("vector values drifted: %v", vec)
	}
}

func TestEmbedServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	emb := NewEmbedder(server.URL, "missing-model")
	if _, err := emb.Embed(context.Background(), "text"); err == nil {
		t.Fatal("expected error on non-200 response")
	}
}

func TestEmbedEmptyVector(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(embeddingResponse{})
	}))
	defer server.Close()

	emb := NewEmbedder(server.URL, "")
	if _, err := emb.Embed(context.Background(), "text"); err == nil {
		t.Fatal("expected error on empty embedding")
	}
}
