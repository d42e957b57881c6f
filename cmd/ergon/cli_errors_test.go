// Copyright 2026 © The Ergon Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"strings"
	"testing"

	"github.com/jllopis/ergon/pkg/errors"
)

func TestCLIErrorMessage(t *testing.T) {
	ee := errors.New(errors.CodeInvalidInput, "bad flag", nil)
	err := NewCLIError(ee, "try --help")

	msg := err.Error()
	if !strings.Contains(msg, "bad flag") {
		t.Errorf("message should contain the cause, got %q", msg)
	}
	if !strings.Contains(msg, "Hint: try --help") {
		t.Errorf("message should contain the hint, got %q", msg)
	}
}

func TestCLIErrorWithoutHint(t *testing.T) {
	ee := errors.New(errors.CodeInternal, "boom", nil)
	err := NewCLIError(ee, "")

	if strings.Contains(err.Error(), "Hint") {
		t.Errorf("message without hint should not mention one, got %q", err.Error())
	}
}

func TestNewConfigError(t *testing.T) {
	cause := fmt.Errorf("yaml: line 3: mapping values")
	err := NewConfigError(cause, "custom.yaml")

	if err.ErgonError.Code != errors.CodeConfiguration {
		t.Errorf("expected code %s, got %s", errors.CodeConfiguration, err.ErgonError.Code)
	}
	if !strings.Contains(err.Hint, "custom.yaml") {
		t.Errorf("hint should name the file, got %q", err.Hint)
	}
	if err.ErgonError.Context["config_path"] != "custom.yaml" {
		t.Errorf("context should carry the path, got %v", err.ErgonError.Context)
	}
}

func TestNewConfigErrorWithoutPath(t *testing.T) {
	err := NewConfigError(fmt.Errorf("boom"), "")
	if !strings.Contains(err.Hint, "ergon init") {
		t.Errorf("hint without a path should suggest init, got %q", err.Hint)
	}
}

func TestNewWorkflowError(t *testing.T) {
	err := NewWorkflowError(fmt.Errorf("no steps"), "pipeline.yaml")

	if err.ErgonError.Code != errors.CodeInvalidInput {
		t.Errorf("expected code %s, got %s", errors.CodeInvalidInput, err.ErgonError.Code)
	}
	if !strings.Contains(err.Hint, "pipeline.yaml") {
		t.Errorf("hint should name the file, got %q", err.Hint)
	}
}

func TestNewUsageError(t *testing.T) {
	err := NewUsageError("unknown command \"frobnicate\"")

	if err.ErgonError.Code != errors.CodeInvalidInput {
		t.Errorf("expected code %s, got %s", errors.CodeInvalidInput, err.ErgonError.Code)
	}
	if !strings.Contains(err.Hint, "ergon help") {
		t.Errorf("hint should point at help, got %q", err.Hint)
	}
}
