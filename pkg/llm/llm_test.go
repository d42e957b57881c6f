package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMockProvider(t *testing.T) {
	mock := &MockProvider{Response: "Hello world"}
	resp, err := mock.Chat(context.Background(), ChatRequest{
		Messages: []Message{{Role: RoleUser, Content: "Hi"}},
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if resp.Content != "Hello world" {
		t.Errorf("Expected 'Hello world', got '%s'", resp.Content)
	}
}

func TestScriptedMockProvider(t *testing.T) {
	mock := NewScriptedMockProvider("test-model", "first", "second")

	resp, err := mock.Chat(context.Background(), ChatRequest{})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if resp.Content != "first" {
		t.Errorf("Expected 'first', got '%s'", resp.Content)
	}
	if mock.PeekNext() != "second" {
		t.Errorf("Expected 'second' queued, got '%s'", mock.PeekNext())
	}

	if _, err := mock.Chat(context.Background(), ChatRequest{}); err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if _, err := mock.Chat(context.Background(), ChatRequest{}); err == nil {
		t.Error("Expected error when responses exhausted")
	}
	if mock.CallCount != 3 {
		t.Errorf("Expected 3 calls, got %d", mock.CallCount)
	}
}

func TestComplete(t *testing.T) {
	var captured ChatRequest
	mock := &MockProvider{
		ChatFunc: func(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
			captured = req
			return &ChatResponse{Content: "done"}, nil
		},
	}

	text, err := Complete(context.Background(), mock, CompletionRequest{
		Model:        "test-model",
		Prompt:       "analyze this",
		SystemPrompt: "you are an analyst",
		Temperature:  0.2,
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if text != "done" {
		t.Errorf("Expected 'done', got '%s'", text)
	}
	if len(captured.Messages) != 2 {
		t.Fatalf("Expected 2 messages, got %d", len(captured.Messages))
	}
	if captured.Messages[0].Role != RoleSystem {
		t.Errorf("Expected system message first, got %s", captured.Messages[0].Role)
	}
	if captured.Messages[1].Role != RoleUser || captured.Messages[1].Content != "analyze this" {
		t.Errorf("Unexpected user message: %+v", captured.Messages[1])
	}
}

func TestCompleteWithoutSystemPrompt(t *testing.T) {
	var captured ChatRequest
	mock := &MockProvider{
		ChatFunc: func(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
			captured = req
			return &ChatResponse{Content: "ok"}, nil
		},
	}

	if _, err := Complete(context.Background(), mock, CompletionRequest{Prompt: "hello"}); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if len(captured.Messages) != 1 {
		t.Fatalf("Expected 1 message, got %d", len(captured.Messages))
	}
	if captured.Messages[0].Role != RoleUser {
		t.Errorf("Expected user message, got %s", captured.Messages[0].Role)
	}
}

func TestCompleteEmptyPrompt(t *testing.T) {
	mock := &MockProvider{Response: "never"}
	if _, err := Complete(context.Background(), mock, CompletionRequest{Prompt: "   "}); err == nil {
		t.Error("Expected error for empty prompt")
	}
}

func TestOllamaChat(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}

		var req ollamaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}
		if req.Stream {
			t.Error("Expected non-streaming request")
		}
		if req.Model != "test-model" {
			t.Errorf("Expected model 'test-model', got '%s'", req.Model)
		}

		json.NewEncoder(w).Encode(ollamaResponse{
			Message:         Message{Role: RoleAssistant, Content: "response text"},
			Done:            true,
			EvalCount:       5,
			PromptEvalCount: 7,
		})
	}))
	defer server.Close()

	provider := NewOllama(server.URL)
	resp, err := provider.Chat(context.Background(), ChatRequest{
		Model:    "test-model",
		Messages: []Message{{Role: RoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("Chat failed: %v", err)
	}
	if resp.Content != "response text" {
		t.Errorf("Expected 'response text', got '%s'", resp.Content)
	}
	if resp.Usage.TotalTokens != 12 {
		t.Errorf("Expected 12 total tokens, got %d", resp.Usage.TotalTokens)
	}
}

func TestOllamaChatServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	provider := NewOllama(server.URL)
	if _, err := provider.Chat(context.Background(), ChatRequest{Model: "missing"}); err == nil {
		t.Error("Expected error for server failure")
	}
}
