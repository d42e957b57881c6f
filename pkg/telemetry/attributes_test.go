// Copyright 2026 © The Ergon Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestAgentAttributes(t *testing.T) {
	attrs := AgentAttributes("agent-1", "analyst", "discovery", "idle")

	expected := map[string]any{
		AttrAgentID:    "agent-1",
		AttrAgentName:  "analyst",
		AttrAgentType:  "discovery",
		AttrAgentState: "idle",
	}

	assertAttributes(t, attrs, expected)
}

func TestTaskAttributes(t *testing.T) {
	attrs := TaskAttributes("task-123", "requirements_analysis", "requirements_analysis")

	expected := map[string]any{
		AttrTaskID:         "task-123",
		AttrTaskType:       "requirements_analysis",
		AttrTaskCapability: "requirements_analysis",
	}

	assertAttributes(t, attrs, expected)
}

func TestTaskResultAttributes(t *testing.T) {
	attrs := TaskResultAttributes(true, 250.5)

	expected := map[string]any{
		AttrTaskSuccess:    true,
		AttrTaskDurationMs: 250.5,
	}

	assertAttributes(t, attrs, expected)
}

func TestMemoryAttributes(t *testing.T) {
	attrs := MemoryAttributes("semantic", 0.9, 3, true)

	expected := map[string]any{
		AttrMemoryTier:       "semantic",
		AttrMemoryImportance: 0.9,
		AttrMemoryRetrieved:  3,
		AttrMemoryStored:     true,
	}

	assertAttributes(t, attrs, expected)
}

func TestMessageAttributes(t *testing.T) {
	attrs := MessageAttributes("msg-1", "agent_to_agent", "planner", "coder")

	expected := map[string]any{
		AttrMessageID:        "msg-1",
		AttrMessageType:      "agent_to_agent",
		AttrMessageSender:    "planner",
		AttrMessageRecipient: "coder",
	}

	assertAttributes(t, attrs, expected)
}

func TestWorkflowAttributes(t *testing.T) {
	attrs := WorkflowAttributes("project-discovery", 2, 5)

	expected := map[string]any{
		AttrWorkflowName:       "project-discovery",
		AttrWorkflowStep:       2,
		AttrWorkflowStepsTotal: 5,
	}

	assertAttributes(t, attrs, expected)
}

func TestLLMAttributes(t *testing.T) {
	attrs := LLMAttributes("qwen2.5-coder", "ollama", 3)

	expected := map[string]any{
		AttrLLMModel:    "qwen2.5-coder",
		AttrLLMProvider: "ollama",
		AttrLLMMessages: 3,
	}

	assertAttributes(t, attrs, expected)
}

func TestLLMUsageAttributes(t *testing.T) {
	attrs := LLMUsageAttributes(120, 48, 830.0, "stop")

	expected := map[string]any{
		AttrLLMTokensInput:  120,
		AttrLLMTokensOutput: 48,
		AttrLLMTokensTotal:  168,
		AttrLLMDurationMs:   830.0,
		AttrLLMFinishReason: "stop",
	}

	assertAttributes(t, attrs, expected)
}

// assertAttributes checks that expected key-value pairs exist in attrs
func assertAttributes(t *testing.T, attrs []attribute.KeyValue, expected map[string]any) {
	t.Helper()

	found := make(map[string]attribute.KeyValue)
	for _, attr := range attrs {
		found[string(attr.Key)] = attr
	}

	for key, expectedVal := range expected {
		attr, ok := found[key]
		if !ok {
			t.Errorf("missing attribute %s", key)
			continue
		}

		var actualVal any
		switch attr.Value.Type() {
		case attribute.STRING:
			actualVal = attr.Value.AsString()
		case attribute.INT64:
			actualVal = int(attr.Value.AsInt64())
		case attribute.FLOAT64:
			actualVal = attr.Value.AsFloat64()
		case attribute.BOOL:
			actualVal = attr.Value.AsBool()
		}

		if actualVal != expectedVal {
			t.Errorf("attribute %s: got %v, want %v", key, actualVal, expectedVal)
		}
	}
}
