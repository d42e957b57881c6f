// SPDX-License-Identifier: Apache-2.0
// Package errors provides typed error handling with rich context for Ergon.
// See docs/ERROR_HANDLING.md for strategy and examples.
package errors

import (
	"encoding/json"
	"fmt"
)

// ErrorCode classifies Ergon errors for monitoring and recovery.
type ErrorCode string

const (
	// CodeInternal indicates an unexpected fault inside the core. Faults with
	// this code are always caught at the task-execution boundary and converted
	// into a failed TaskResult.
	CodeInternal ErrorCode = "INTERNAL_ERROR"

	// CodeInvalidInput indicates the input was invalid.
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// CodeUnavailable indicates an agent rejected an operation because of its
	// current state (e.g. busy with another task). Reported, never fatal.
	CodeUnavailable ErrorCode = "AGENT_UNAVAILABLE"

	// CodeContextLost indicates context was lost (e.g., cancelled mid-retry).
	CodeContextLost ErrorCode = "CONTEXT_LOST"

	// CodeTimeout indicates an operation exceeded its time limit.
	CodeTimeout ErrorCode = "TIMEOUT"

	// CodeRateLimit indicates rate limiting was triggered by a provider.
	CodeRateLimit ErrorCode = "RATE_LIMITED"

	// CodeNotFound indicates a resource was not found.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// CodeMemoryError indicates a memory subsystem error. Remote-store
	// failures carry this code and are recovered to cache-only operation.
	CodeMemoryError ErrorCode = "MEMORY_ERROR"

	// CodeLLMError indicates a completion provider error. Handlers treat it
	// as recoverable and degrade to empty results.
	CodeLLMError ErrorCode = "LLM_ERROR"

	// CodeConfiguration indicates missing or invalid required configuration.
	// Fatal at construction time, never retried.
	CodeConfiguration ErrorCode = "CONFIGURATION_ERROR"
)

// ErgonError is a typed error with rich context for observability.
// It implements the error interface and can be unwrapped with errors.As().
type ErgonError struct {
	Code        ErrorCode
	Message     string
	Err         error
	Context     map[string]interface{}
	Attributes  map[string]string
	Recoverable bool
	StatusCode  int // classification for transport adapters (MCP, HTTP providers)
}

// Error implements the error interface.
func (e *ErgonError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements errors.Unwrap for error chain traversal.
func (e *ErgonError) Unwrap() error {
	return e.Err
}

// MarshalJSON implements json.Marshaler for structured logging.
func (e *ErgonError) MarshalJSON() ([]byte, error) {
	type Alias ErgonError
	return json.Marshal(&struct {
		Message     string `json:"message"`
		Code        string `json:"code"`
		Err         string `json:"error,omitempty"`
		Recoverable bool   `json:"recoverable"`
		*Alias
	}{
		Message:     e.Error(),
		Code:        string(e.Code),
		Err:         fmt.Sprintf("%v", e.Err),
		Recoverable: e.Recoverable,
		Alias:       (*Alias)(e),
	})
}

// New creates a new ErgonError with the given code, message, and cause.
func New(code ErrorCode, msg string, cause error) *ErgonError {
	return &ErgonError{
		Code:       code,
		Message:    msg,
		Err:        cause,
		Context:    make(map[string]interface{}),
		Attributes: make(map[string]string),
		StatusCode: codeToStatusCode(code),
	}
}

// WithContext adds a key-value pair to the error context.
// Returns the error for method chaining.
func (e *ErgonError) WithContext(key string, value interface{}) *ErgonError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithAttribute adds a string attribute for OTEL traces.
// Returns the error for method chaining.
func (e *ErgonError) WithAttribute(key, value string) *ErgonError {
	if e.Attributes == nil {
		e.Attributes = make(map[string]string)
	}
	e.Attributes[key] = value
	return e
}

// WithRecoverable sets whether the error can be recovered from.
// Returns the error for method chaining.
func (e *ErgonError) WithRecoverable(recoverable bool) *ErgonError {
	e.Recoverable = recoverable
	return e
}

// AsErgonError attempts to convert an error to an ErgonError.
// Returns the error as ErgonError if it is one, or wraps it otherwise.
func AsErgonError(err error) *ErgonError {
	if err == nil {
		return nil
	}
	if ee, ok := err.(*ErgonError); ok {
		return ee
	}
	// Wrap unknown error as internal
	return New(CodeInternal, "wrapped error", err)
}

// RecoverableString returns "true" or "false" as a string for observability.
func (e *ErgonError) RecoverableString() string {
	if e.Recoverable {
		return "true"
	}
	return "false"
}

// codeToStatusCode maps error codes to HTTP-style status codes.
func codeToStatusCode(code ErrorCode) int {
	switch code {
	case CodeNotFound:
		return 404 // NOT_FOUND
	case CodeInvalidInput:
		return 400 // INVALID_ARGUMENT
	case CodeTimeout:
		return 408 // DEADLINE_EXCEEDED
	case CodeRateLimit:
		return 429 // RESOURCE_EXHAUSTED
	case CodeUnavailable:
		return 503 // UNAVAILABLE
	default:
		return 500 // INTERNAL
	}
}
