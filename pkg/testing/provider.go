// Copyright 2026 © The Ergon Authors
// SPDX-License-Identifier: Apache-2.0

package testing

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/jllopis/ergon/pkg/llm"
)

// ScriptedResponse is one provider turn. Match restricts the turn to
// requests it returns true for; a turn without Match answers whatever
// request reaches its queue position.
type ScriptedResponse struct {
	Content string
	Error   error
	Usage   llm.Usage
	Match   func(req llm.ChatRequest) bool
}

type keyedResponse struct {
	key  string
	resp ScriptedResponse
}

// ScriptedProvider is an llm.Provider for tests. Keyed responses answer any
// request mentioning their key and are reusable; ordered responses are
// consumed one per call. Every request is captured for later inspection.
// Safe for concurrent use.
type ScriptedProvider struct {
	mu       sync.Mutex
	queue    []ScriptedResponse
	next     int
	keyed    []keyedResponse
	requests []llm.ChatRequest
	fallback error
	onChat   func(req llm.ChatRequest) (*llm.ChatResponse, error)
}

// NewScriptedProvider builds an empty provider; Chat fails until responses
// are scripted.
func NewScriptedProvider() *ScriptedProvider {
	return &ScriptedProvider{}
}

// AddResponse queues an ordered content response.
func (p *ScriptedProvider) AddResponse(content string) *ScriptedProvider {
	return p.Add(ScriptedResponse{Content: content})
}

// AddError queues an ordered error response.
func (p *ScriptedProvider) AddError(err error) *ScriptedProvider {
	return p.Add(ScriptedResponse{Error: err})
}

// Add queues a fully specified ordered response.
func (p *ScriptedProvider) Add(resp ScriptedResponse) *ScriptedProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queue = append(p.queue, resp)
	return p
}

// RespondTo registers a keyed response: any request whose messages mention
// key gets content. Keyed responses are checked before the ordered queue,
// in registration order, and are never consumed.
func (p *ScriptedProvider) RespondTo(key, content string) *ScriptedProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keyed = append(p.keyed, keyedResponse{key: key, resp: ScriptedResponse{Content: content}})
	return p
}

// FailWith sets the error returned once the ordered queue is exhausted.
// Without it an exhausted provider reports how many calls it served.
func (p *ScriptedProvider) FailWith(err error) *ScriptedProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fallback = err
	return p
}

// WithChatFunc routes every request through fn, bypassing all scripting.
// Requests are still captured.
func (p *ScriptedProvider) WithChatFunc(fn func(req llm.ChatRequest) (*llm.ChatResponse, error)) *ScriptedProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onChat = fn
	return p
}

// Chat implements llm.Provider.
func (p *ScriptedProvider) Chat(_ context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.requests = append(p.requests, req)

	if p.onChat != nil {
		return p.onChat(req)
	}

	text := requestText(req)
	for _, k := range p.keyed {
		if strings.Contains(text, k.key) {
			return k.resp.response()
		}
	}

	for p.next < len(p.queue) {
		resp := p.queue[p.next]
		p.next++
		if resp.Match != nil && !resp.Match(req) {
			continue
		}
		return resp.response()
	}

	if p.fallback != nil {
		return nil, p.fallback
	}
	return nil, fmt.Errorf("scripted provider exhausted after %d calls", len(p.requests))
}

func (r ScriptedResponse) response() (*llm.ChatResponse, error) {
	if r.Error != nil {
		return nil, r.Error
	}
	return &llm.ChatResponse{Content: r.Content, Usage: r.Usage}, nil
}

// requestText concatenates all message contents for keyed matching.
func requestText(req llm.ChatRequest) string {
	parts := make([]string, 0, len(req.Messages))
	for _, msg := range req.Messages {
		parts = append(parts, msg.Content)
	}
	return strings.Join(parts, "\n")
}

// CallCount returns the number of Chat calls served so far.
func (p *ScriptedProvider) CallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.requests)
}

// Requests returns a copy of every captured request.
func (p *ScriptedProvider) Requests() []llm.ChatRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]llm.ChatRequest, len(p.requests))
	copy(out, p.requests)
	return out
}

// LastRequest returns the most recent request, or nil before the first call.
func (p *ScriptedProvider) LastRequest() *llm.ChatRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.requests) == 0 {
		return nil
	}
	req := p.requests[len(p.requests)-1]
	return &req
}

// Reset rewinds the ordered queue and clears captured requests. Keyed
// responses and the fallback error survive.
func (p *ScriptedProvider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.next = 0
	p.requests = p.requests[:0]
}
