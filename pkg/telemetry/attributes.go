// Copyright 2026 © The Ergon Authors
// SPDX-License-Identifier: Apache-2.0

// Package telemetry provides OpenTelemetry integration with rich attributes
// for agent observability.
package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Semantic conventions for Ergon agent telemetry.
// These follow OpenTelemetry naming conventions where applicable.
const (
	// Agent attributes
	AttrAgentID    = "ergon.agent.id"
	AttrAgentName  = "ergon.agent.name"
	AttrAgentType  = "ergon.agent.type"
	AttrAgentState = "ergon.agent.state"
	AttrAgentRunID = "ergon.agent.run_id"

	// Task attributes
	AttrTaskID         = "ergon.task.id"
	AttrTaskType       = "ergon.task.type"
	AttrTaskCapability = "ergon.task.capability"
	AttrTaskSuccess    = "ergon.task.success"
	AttrTaskDurationMs = "ergon.task.duration_ms"

	// Memory attributes
	AttrMemoryTier       = "ergon.memory.tier"
	AttrMemoryImportance = "ergon.memory.importance"
	AttrMemoryRetrieved  = "ergon.memory.retrieved_count"
	AttrMemoryStored     = "ergon.memory.stored"
	AttrMemoryBackend    = "ergon.memory.backend"

	// Message attributes
	AttrMessageID        = "ergon.message.id"
	AttrMessageType      = "ergon.message.type"
	AttrMessageSender    = "ergon.message.sender"
	AttrMessageRecipient = "ergon.message.recipient"

	// Workflow attributes
	AttrWorkflowName       = "ergon.workflow.name"
	AttrWorkflowStep       = "ergon.workflow.step"
	AttrWorkflowStepsTotal = "ergon.workflow.steps_total"

	// LLM attributes (extending standard gen_ai conventions)
	AttrLLMModel        = "gen_ai.request.model"
	AttrLLMProvider     = "gen_ai.system"
	AttrLLMMessages     = "gen_ai.request.messages"
	AttrLLMTokensInput  = "gen_ai.usage.input_tokens"
	AttrLLMTokensOutput = "gen_ai.usage.output_tokens"
	AttrLLMTokensTotal  = "gen_ai.usage.total_tokens"
	AttrLLMDurationMs   = "gen_ai.duration_ms"
	AttrLLMFinishReason = "gen_ai.finish_reason"

	// Event attributes
	AttrEventType    = "ergon.event.type"
	AttrEventPayload = "ergon.event.payload"
)

// AgentAttributes returns common attributes for agent spans.
func AgentAttributes(agentID, name, agentType, state string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrAgentID, agentID),
	}
	if name != "" {
		attrs = append(attrs, attribute.String(AttrAgentName, name))
	}
	if agentType != "" {
		attrs = append(attrs, attribute.String(AttrAgentType, agentType))
	}
	if state != "" {
		attrs = append(attrs, attribute.String(AttrAgentState, state))
	}
	return attrs
}

// TaskAttributes returns attributes for task execution spans.
func TaskAttributes(taskID, taskType, capability string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{}
	if taskID != "" {
		attrs = append(attrs, attribute.String(AttrTaskID, taskID))
	}
	if taskType != "" {
		attrs = append(attrs, attribute.String(AttrTaskType, taskType))
	}
	if capability != "" {
		attrs = append(attrs, attribute.String(AttrTaskCapability, capability))
	}
	return attrs
}

// TaskResultAttributes returns attributes for a completed task.
func TaskResultAttributes(success bool, durationMs float64) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.Bool(AttrTaskSuccess, success),
	}
	if durationMs > 0 {
		attrs = append(attrs, attribute.Float64(AttrTaskDurationMs, durationMs))
	}
	return attrs
}

// MemoryAttributes returns attributes for memory operations.
func MemoryAttributes(tier string, importance float64, retrieved int, stored bool) []attribute.KeyValue {
	attrs := []attribute.KeyValue{}
	if tier != "" {
		attrs = append(attrs, attribute.String(AttrMemoryTier, tier))
	}
	if importance > 0 {
		attrs = append(attrs, attribute.Float64(AttrMemoryImportance, importance))
	}
	if retrieved > 0 {
		attrs = append(attrs, attribute.Int(AttrMemoryRetrieved, retrieved))
	}
	if stored {
		attrs = append(attrs, attribute.Bool(AttrMemoryStored, stored))
	}
	return attrs
}

// MessageAttributes returns attributes for messaging spans.
func MessageAttributes(msgID, msgType, sender, recipient string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrMessageType, msgType),
	}
	if msgID != "" {
		attrs = append(attrs, attribute.String(AttrMessageID, msgID))
	}
	if sender != "" {
		attrs = append(attrs, attribute.String(AttrMessageSender, sender))
	}
	if recipient != "" {
		attrs = append(attrs, attribute.String(AttrMessageRecipient, recipient))
	}
	return attrs
}

// WorkflowAttributes returns attributes for workflow step spans.
func WorkflowAttributes(name string, step, total int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrWorkflowName, name),
	}
	if step > 0 {
		attrs = append(attrs, attribute.Int(AttrWorkflowStep, step))
	}
	if total > 0 {
		attrs = append(attrs, attribute.Int(AttrWorkflowStepsTotal, total))
	}
	return attrs
}

// LLMAttributes returns attributes for LLM call spans.
func LLMAttributes(model, provider string, msgCount int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrLLMModel, model),
		attribute.Int(AttrLLMMessages, msgCount),
	}
	if provider != "" {
		attrs = append(attrs, attribute.String(AttrLLMProvider, provider))
	}
	return attrs
}

// LLMUsageAttributes returns token usage attributes.
func LLMUsageAttributes(inputTokens, outputTokens int, durationMs float64, finishReason string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{}
	if inputTokens > 0 {
		attrs = append(attrs, attribute.Int(AttrLLMTokensInput, inputTokens))
	}
	if outputTokens > 0 {
		attrs = append(attrs, attribute.Int(AttrLLMTokensOutput, outputTokens))
	}
	if inputTokens > 0 || outputTokens > 0 {
		attrs = append(attrs, attribute.Int(AttrLLMTokensTotal, inputTokens+outputTokens))
	}
	if durationMs > 0 {
		attrs = append(attrs, attribute.Float64(AttrLLMDurationMs, durationMs))
	}
	if finishReason != "" {
		attrs = append(attrs, attribute.String(AttrLLMFinishReason, finishReason))
	}
	return attrs
}
