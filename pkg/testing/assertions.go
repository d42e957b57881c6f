// Copyright 2026 © The Ergon Authors
// SPDX-License-Identifier: Apache-2.0

package testing

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/jllopis/ergon/pkg/core"
	"github.com/jllopis/ergon/pkg/llm"
	"github.com/jllopis/ergon/pkg/workflow"
)

// TaskResultAssertions provides fluent checks over a single task result.
type TaskResultAssertions struct {
	t   *testing.T
	res core.TaskResult
}

// AssertResult creates assertions for the given task result.
func AssertResult(t *testing.T, res core.TaskResult) *TaskResultAssertions {
	t.Helper()
	return &TaskResultAssertions{t: t, res: res}
}

// Succeeded asserts the task reported success.
func (a *TaskResultAssertions) Succeeded() *TaskResultAssertions {
	a.t.Helper()
	if !a.res.Success {
		a.t.Errorf("expected success, got failure: %s", a.res.Error)
	}
	return a
}

// Failed asserts the task reported failure.
func (a *TaskResultAssertions) Failed() *TaskResultAssertions {
	a.t.Helper()
	if a.res.Success {
		a.t.Error("expected failure, got success")
	}
	return a
}

// ErrorContains asserts the failure message contains substr.
func (a *TaskResultAssertions) ErrorContains(substr string) *TaskResultAssertions {
	a.t.Helper()
	if !strings.Contains(a.res.Error, substr) {
		a.t.Errorf("error %q does not contain %q", a.res.Error, substr)
	}
	return a
}

// ResultContains asserts the result, rendered with fmt.Sprint, contains substr.
func (a *TaskResultAssertions) ResultContains(substr string) *TaskResultAssertions {
	a.t.Helper()
	rendered := fmt.Sprint(a.res.Result)
	if !strings.Contains(rendered, substr) {
		a.t.Errorf("result %q does not contain %q", rendered, substr)
	}
	return a
}

// HasMetadata asserts a metadata key is present.
func (a *TaskResultAssertions) HasMetadata(key string) *TaskResultAssertions {
	a.t.Helper()
	if _, ok := a.res.Metadata[key]; !ok {
		a.t.Errorf("metadata key %q not present", key)
	}
	return a
}

// MetadataEquals asserts a metadata key holds the given value.
func (a *TaskResultAssertions) MetadataEquals(key string, want any) *TaskResultAssertions {
	a.t.Helper()
	got, ok := a.res.Metadata[key]
	if !ok {
		a.t.Errorf("metadata key %q not present", key)
		return a
	}
	if got != want {
		a.t.Errorf("metadata %q: got %v, want %v", key, got, want)
	}
	return a
}

// RequestAssertions provides fluent checks over a captured provider request.
type RequestAssertions struct {
	t   *testing.T
	req *llm.ChatRequest
}

// AssertRequest creates assertions for the given request. A nil request
// fails immediately.
func AssertRequest(t *testing.T, req *llm.ChatRequest) *RequestAssertions {
	t.Helper()
	if req == nil {
		t.Fatal("request is nil")
	}
	return &RequestAssertions{t: t, req: req}
}

// HasModel asserts the request uses the given model.
func (r *RequestAssertions) HasModel(model string) *RequestAssertions {
	r.t.Helper()
	if r.req.Model != model {
		r.t.Errorf("expected model %q, got %q", model, r.req.Model)
	}
	return r
}

// HasMessageCount asserts the number of messages in the request.
func (r *RequestAssertions) HasMessageCount(count int) *RequestAssertions {
	r.t.Helper()
	if len(r.req.Messages) != count {
		r.t.Errorf("expected %d messages, got %d", count, len(r.req.Messages))
	}
	return r
}

// HasSystemMessage asserts a system message exists containing the substring.
func (r *RequestAssertions) HasSystemMessage(contains string) *RequestAssertions {
	r.t.Helper()
	return r.hasMessage(llm.RoleSystem, contains)
}

// HasUserMessage asserts a user message exists containing the substring.
func (r *RequestAssertions) HasUserMessage(contains string) *RequestAssertions {
	r.t.Helper()
	return r.hasMessage(llm.RoleUser, contains)
}

func (r *RequestAssertions) hasMessage(role llm.Role, contains string) *RequestAssertions {
	r.t.Helper()
	for _, msg := range r.req.Messages {
		if msg.Role == role && strings.Contains(msg.Content, contains) {
			return r
		}
	}
	r.t.Errorf("no %s message containing %q found", role, contains)
	return r
}

// AuditAssertions provides fluent checks over a workflow audit store.
type AuditAssertions struct {
	t     *testing.T
	store workflow.AuditStore
}

// AssertAudit creates assertions for the given audit store.
func AssertAudit(t *testing.T, store workflow.AuditStore) *AuditAssertions {
	t.Helper()
	if store == nil {
		t.Fatal("audit store is nil")
	}
	return &AuditAssertions{t: t, store: store}
}

func (a *AuditAssertions) list(filter workflow.AuditFilter) []workflow.AuditEvent {
	a.t.Helper()
	events, err := a.store.List(context.Background(), filter)
	if err != nil {
		a.t.Fatalf("audit list failed: %v", err)
	}
	return events
}

// HasEvents asserts the store holds exactly n events in total.
func (a *AuditAssertions) HasEvents(n int) *AuditAssertions {
	a.t.Helper()
	if got := len(a.list(workflow.AuditFilter{})); got != n {
		a.t.Errorf("audit events: got %d, want %d", got, n)
	}
	return a
}

// StepStatus asserts at least one event for stepID carries the status.
func (a *AuditAssertions) StepStatus(stepID, status string) *AuditAssertions {
	a.t.Helper()
	if len(a.list(workflow.AuditFilter{StepID: stepID, Status: status})) == 0 {
		a.t.Errorf("no audit event for step %q with status %q", stepID, status)
	}
	return a
}

// StatusCount asserts exactly n events carry the status.
func (a *AuditAssertions) StatusCount(status string, n int) *AuditAssertions {
	a.t.Helper()
	if got := len(a.list(workflow.AuditFilter{Status: status})); got != n {
		a.t.Errorf("audit events with status %q: got %d, want %d", status, got, n)
	}
	return a
}

// RunRecorded asserts the run left at least one audit event.
func (a *AuditAssertions) RunRecorded(runID string) *AuditAssertions {
	a.t.Helper()
	if len(a.list(workflow.AuditFilter{RunID: runID})) == 0 {
		a.t.Errorf("no audit events recorded for run %q", runID)
	}
	return a
}

// Quick assertion functions for common patterns

// RequireNoError fails the test immediately if err is not nil.
func RequireNoError(t *testing.T, err error, msg string) {
	t.Helper()
	if err != nil {
		t.Fatalf("%s: %v", msg, err)
	}
}

// RequireEqual fails the test immediately if values are not equal.
func RequireEqual(t *testing.T, expected, actual any, msg string) {
	t.Helper()
	if expected != actual {
		t.Fatalf("%s: expected %v, got %v", msg, expected, actual)
	}
}

// RequireNotNil fails the test immediately if value is nil.
func RequireNotNil(t *testing.T, value any, msg string) {
	t.Helper()
	if value == nil {
		t.Fatalf("%s: expected non-nil value", msg)
	}
}
