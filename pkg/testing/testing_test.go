// Copyright 2026 © The Ergon Authors
// SPDX-License-Identifier: Apache-2.0

package testing

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jllopis/ergon/pkg/agent"
	"github.com/jllopis/ergon/pkg/core"
	"github.com/jllopis/ergon/pkg/llm"
	"github.com/jllopis/ergon/pkg/workflow"
)

var (
	_ llm.Provider      = (*ScriptedProvider)(nil)
	_ core.EventEmitter = (*EventCollector)(nil)
)

func userRequest(content string) llm.ChatRequest {
	return llm.ChatRequest{
		Model:    "test-model",
		Messages: []llm.Message{{Role: llm.RoleUser, Content: content}},
	}
}

func TestScriptedProviderOrdered(t *testing.T) {
	p := NewScriptedProvider().
		AddResponse("first").
		AddResponse("second").
		AddError(errors.New("provider down"))

	ctx := context.Background()
	for i, want := range []string{"first", "second"} {
		resp, err := p.Chat(ctx, userRequest("hello"))
		if err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
		if resp.Content != want {
			t.Errorf("call %d: got %q, want %q", i, resp.Content, want)
		}
	}

	if _, err := p.Chat(ctx, userRequest("hello")); err == nil || !strings.Contains(err.Error(), "provider down") {
		t.Errorf("third call should return scripted error, got %v", err)
	}
	if _, err := p.Chat(ctx, userRequest("hello")); err == nil || !strings.Contains(err.Error(), "exhausted") {
		t.Errorf("exhausted queue should fail, got %v", err)
	}
	if p.CallCount() != 4 {
		t.Errorf("call count: got %d, want 4", p.CallCount())
	}
}

func TestScriptedProviderKeyed(t *testing.T) {
	p := NewScriptedProvider().
		RespondTo("weather", "it is sunny").
		AddResponse("fallback answer")

	ctx := context.Background()
	resp, err := p.Chat(ctx, userRequest("what is the weather today?"))
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Content != "it is sunny" {
		t.Errorf("keyed response: got %q", resp.Content)
	}

	// Keyed responses are reusable.
	resp, err = p.Chat(ctx, userRequest("weather again please"))
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Content != "it is sunny" {
		t.Errorf("keyed reuse: got %q", resp.Content)
	}

	// Non-matching requests fall through to the ordered queue.
	resp, err = p.Chat(ctx, userRequest("what time is it?"))
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Content != "fallback answer" {
		t.Errorf("ordered fallback: got %q", resp.Content)
	}
}

func TestScriptedProviderMatch(t *testing.T) {
	p := NewScriptedProvider().
		Add(ScriptedResponse{
			Content: "for planners only",
			Match: func(req llm.ChatRequest) bool {
				return strings.Contains(requestText(req), "plan")
			},
		}).
		AddResponse("generic")

	resp, err := p.Chat(context.Background(), userRequest("say hi"))
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if resp.Content != "generic" {
		t.Errorf("non-matching request should skip to next turn, got %q", resp.Content)
	}
}

func TestScriptedProviderCapture(t *testing.T) {
	p := NewScriptedProvider().FailWith(errors.New("always down"))

	if p.LastRequest() != nil {
		t.Error("LastRequest before any call should be nil")
	}

	ctx := context.Background()
	if _, err := p.Chat(ctx, userRequest("one")); err == nil {
		t.Fatal("expected fallback error")
	}
	if _, err := p.Chat(ctx, userRequest("two")); err == nil {
		t.Fatal("expected fallback error")
	}

	reqs := p.Requests()
	if len(reqs) != 2 || reqs[0].Messages[0].Content != "one" {
		t.Errorf("captured requests: %+v", reqs)
	}
	if last := p.LastRequest(); last == nil || last.Messages[0].Content != "two" {
		t.Errorf("LastRequest: %+v", last)
	}

	p.Reset()
	if p.CallCount() != 0 {
		t.Errorf("Reset should clear captures, count %d", p.CallCount())
	}
}

func newScenarioAgent(t *testing.T) *agent.Base {
	t.Helper()
	a, err := agent.New("scenario-worker", "worker",
		agent.WithHandler(func(_ context.Context, task *core.Task) core.TaskResult {
			if task.Type == "explode" {
				return core.NewFailureResult("boom: handler rejected task", nil)
			}
			return core.NewSuccessResult("handled "+task.Type, map[string]any{"task_type": task.Type})
		}),
	)
	if err != nil {
		t.Fatalf("agent.New: %v", err)
	}
	return a
}

func TestScenarioRunAndAssert(t *testing.T) {
	a := newScenarioAgent(t)

	setupRan := false
	NewScenario("mixed outcomes").
		WithSetup(func() error { setupRan = true; return nil }).
		AddTask(core.NewTask("analyze", nil)).
		AddTask(core.NewTask("explode", nil)).
		AddTask(core.NewTask("summarize", nil)).
		ExpectSucceeded(0).
		ExpectFailed(1, Contains("boom")).
		ExpectResult(2, HasPrefix("handled")).
		ExpectFinalState(core.StateIdle).
		ExpectTasksCompleted(2).
		ExpectTasksFailed(1).
		ExpectMaxDuration(10 * time.Second).
		Run(t, a).
		Assert(t)

	if !setupRan {
		t.Error("setup function did not run")
	}
}

func TestScenarioAllSucceeded(t *testing.T) {
	a := newScenarioAgent(t)

	result := NewScenario("clean run").
		WithTasks(core.NewTask("a", nil), core.NewTask("b", nil)).
		ExpectAllSucceeded().
		Run(t, a)
	result.Assert(t)

	if len(result.Results) != 2 {
		t.Fatalf("results: got %d, want 2", len(result.Results))
	}
	if result.Duration <= 0 {
		t.Error("duration should be positive")
	}
}

func TestExpectationFailureMessages(t *testing.T) {
	r := &ScenarioResult{
		Results: []core.TaskResult{core.NewFailureResult("no provider", nil)},
		Status:  core.StatusInfo{State: core.StateIdle},
	}

	if err := (&allSucceededExpectation{}).Check(r); err == nil {
		t.Error("all-succeeded over a failure should error")
	}
	if err := (&taskOutcomeExpectation{index: 5, success: true}).Check(r); err == nil || !strings.Contains(err.Error(), "out of range") {
		t.Errorf("out-of-range index: got %v", err)
	}
	if err := (&finalStateExpectation{state: core.StateBusy}).Check(r); err == nil {
		t.Error("wrong final state should error")
	}
	if err := (&taskOutcomeExpectation{index: 0, success: false, matcher: Contains("no provider")}).Check(r); err != nil {
		t.Errorf("matching failure: %v", err)
	}
}

func TestEventCollector(t *testing.T) {
	collector := NewEventCollector()
	a, err := agent.New("emitter", "worker",
		agent.WithEventEmitter(collector),
		agent.WithHandler(func(_ context.Context, task *core.Task) core.TaskResult {
			return core.NewSuccessResult(task.Type, nil)
		}),
	)
	if err != nil {
		t.Fatalf("agent.New: %v", err)
	}

	a.ExecuteTask(context.Background(), core.NewTask("observe", nil))

	if !collector.Has(core.EventTaskStarted) || !collector.Has(core.EventTaskCompleted) {
		t.Errorf("missing task lifecycle events: %v", collector.EventTypes())
	}
	if collector.CountOf(core.EventStateChange) < 2 {
		t.Errorf("expected idle->busy and busy->idle state changes: %v", collector.EventTypes())
	}
	if collector.Has(core.EventTaskFailed) {
		t.Error("no failure event expected")
	}

	collector.Reset()
	if collector.Count() != 0 {
		t.Errorf("Reset should clear events, count %d", collector.Count())
	}
}

func TestMatchers(t *testing.T) {
	tests := []struct {
		name    string
		matcher StringMatcher
		input   string
		want    bool
	}{
		{"contains hit", Contains("ell"), "hello", true},
		{"contains miss", Contains("xyz"), "hello", false},
		{"equals hit", Equals("hello"), "hello", true},
		{"equals miss", Equals("hello"), "hello world", false},
		{"regex hit", Regex(`^h.*o$`), "hello", true},
		{"regex bad pattern", Regex(`([`), "anything", false},
		{"prefix hit", HasPrefix("he"), "hello", true},
		{"suffix miss", HasSuffix("he"), "hello", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.matcher.Match(tt.input); got != tt.want {
				t.Errorf("%s on %q: got %v, want %v", tt.matcher.Description(), tt.input, got, tt.want)
			}
		})
	}
}

func TestTaskResultAssertions(t *testing.T) {
	ok := core.NewSuccessResult("analysis complete", map[string]any{"agent_id": "a-1"})
	AssertResult(t, ok).
		Succeeded().
		ResultContains("complete").
		HasMetadata("agent_id").
		MetadataEquals("agent_id", "a-1")

	bad := core.NewFailureResult("provider exploded", nil)
	AssertResult(t, bad).Failed().ErrorContains("exploded")
}

func TestRequestAssertions(t *testing.T) {
	req := &llm.ChatRequest{
		Model: "qwen2.5",
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: "you are a requirements analyst"},
			{Role: llm.RoleUser, Content: "gather requirements for the portal"},
		},
	}
	AssertRequest(t, req).
		HasModel("qwen2.5").
		HasMessageCount(2).
		HasSystemMessage("analyst").
		HasUserMessage("portal")
}

func TestAuditAssertions(t *testing.T) {
	store := workflow.NewMemoryAuditStore()
	ctx := context.Background()
	events := []workflow.AuditEvent{
		{WorkflowID: "wf-1", RunID: "run-1", StepID: "a", Status: workflow.StatusStarted},
		{WorkflowID: "wf-1", RunID: "run-1", StepID: "a", Status: workflow.StatusCompleted},
		{WorkflowID: "wf-1", RunID: "run-1", StepID: "b", Status: workflow.StatusFailed, Error: "boom"},
	}
	for _, ev := range events {
		if err := store.Record(ctx, ev); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	AssertAudit(t, store).
		HasEvents(3).
		StepStatus("a", workflow.StatusCompleted).
		StepStatus("b", workflow.StatusFailed).
		StatusCount(workflow.StatusStarted, 1).
		RunRecorded("run-1")
}
