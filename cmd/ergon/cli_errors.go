// Copyright 2026 © The Ergon Authors
// SPDX-License-Identifier: Apache-2.0

// Package main implements the Ergon CLI.
package main

import (
	"fmt"
	"os"

	"github.com/jllopis/ergon/pkg/errors"
)

// CLIError wraps ErgonError with CLI-specific formatting and hints.
type CLIError struct {
	*errors.ErgonError
	Hint string
}

// NewCLIError creates a new CLI error.
func NewCLIError(ee *errors.ErgonError, hint string) *CLIError {
	return &CLIError{
		ErgonError: ee,
		Hint:       hint,
	}
}

// Error returns the formatted error message with hints.
func (e *CLIError) Error() string {
	if e.ErgonError == nil {
		return "unknown error"
	}

	msg := e.ErgonError.Error()
	if e.Hint != "" {
		msg += "\n  Hint: " + e.Hint
	}
	return msg
}

// PrintError prints the error with appropriate formatting.
func (e *CLIError) PrintError(json bool) {
	if json {
		fmt.Fprintf(os.Stderr, `{"error":{"code":"%s","message":"%s","hint":"%s"}}%s`,
			e.ErgonError.Code,
			e.ErgonError.Message,
			e.Hint,
			"\n")
		return
	}

	fmt.Fprintf(os.Stderr, "Error [%s]: %s\n", e.ErgonError.Code, e.ErgonError.Message)
	if e.Hint != "" {
		fmt.Fprintf(os.Stderr, "  Hint: %s\n", e.Hint)
	}
}

// NewConfigError creates a configuration error with CLI hints.
func NewConfigError(err error, configPath string) *CLIError {
	ee := errors.New(errors.CodeConfiguration, "configuration error", err).
		WithContext("config_path", configPath).
		WithRecoverable(false)

	hint := "check your configuration file syntax, or run 'ergon init' to scaffold one"
	if configPath != "" {
		hint = fmt.Sprintf("check %s for syntax errors", configPath)
	}
	return NewCLIError(ee, hint)
}

// NewWorkflowError creates a workflow file error with CLI hints.
func NewWorkflowError(err error, path string) *CLIError {
	ee := errors.New(errors.CodeInvalidInput, "workflow error", err).
		WithContext("workflow_path", path).
		WithRecoverable(false)
	return NewCLIError(ee, fmt.Sprintf("check %s against 'ergon validate %s'", path, path))
}

// NewUsageError creates an invalid usage error with CLI hints.
func NewUsageError(msg string) *CLIError {
	ee := errors.New(errors.CodeInvalidInput, msg, nil).
		WithRecoverable(false)
	return NewCLIError(ee, "run 'ergon help' for usage information")
}
