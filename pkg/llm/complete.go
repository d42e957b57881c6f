package llm

import (
	"context"
	"fmt"
	"strings"
)

// CompletionRequest describes a single-turn prompt.
type CompletionRequest struct {
	Model        string
	Prompt       string
	SystemPrompt string
	Temperature  float64
}

// Complete sends a one-shot prompt through a chat provider and returns the
// assistant text. The system prompt, when set, is sent as the first message.
func Complete(ctx context.Context, p Provider, req CompletionRequest) (string, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return "", fmt.Errorf("completion prompt is empty")
	}

	messages := make([]Message, 0, 2)
	if req.SystemPrompt != "" {
		messages = append(messages, Message{Role: RoleSystem, Content: req.SystemPrompt})
	}
	messages = append(messages, Message{Role: RoleUser, Content: req.Prompt})

	resp, err := p.Chat(ctx, ChatRequest{
		Model:       req.Model,
		Messages:    messages,
		Temperature: req.Temperature,
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}
