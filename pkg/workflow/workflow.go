// Copyright 2026 © The Ergon Authors
// SPDX-License-Identifier: Apache-2.0

// Package workflow runs YAML-defined sequential pipelines over an agent
// pool. A workflow names ordered steps; each step becomes a task dispatched
// to a capable agent, with prior step summaries carried in the task context
// and every outcome recorded in an audit store.
package workflow

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jllopis/ergon/pkg/core"
)

// Workflow defines an ordered pipeline executed over the pool.
type Workflow struct {
	ID          string `json:"id" yaml:"id"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Steps       []Step `json:"steps" yaml:"steps"`
}

// Step is one unit of the pipeline. Input becomes the task's data;
// Capability constrains which agents may take it.
type Step struct {
	ID         string          `json:"id" yaml:"id"`
	TaskType   string          `json:"task_type" yaml:"task_type"`
	Capability core.Capability `json:"capability,omitempty" yaml:"capability,omitempty"`
	Input      map[string]any  `json:"input,omitempty" yaml:"input,omitempty"`
	Timeout    Duration        `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// Validate ensures the workflow is well-formed for execution.
func (w *Workflow) Validate() error {
	if w == nil {
		return fmt.Errorf("workflow is nil")
	}
	if strings.TrimSpace(w.ID) == "" {
		return fmt.Errorf("workflow id is required")
	}
	if len(w.Steps) == 0 {
		return fmt.Errorf("workflow %q has no steps", w.ID)
	}

	seen := make(map[string]bool, len(w.Steps))
	for i, step := range w.Steps {
		if step.ID == "" {
			return fmt.Errorf("step %d missing id", i)
		}
		if seen[step.ID] {
			return fmt.Errorf("duplicate step id %q", step.ID)
		}
		seen[step.ID] = true
		if step.TaskType == "" {
			return fmt.Errorf("step %q missing task_type", step.ID)
		}
		if step.Timeout < 0 {
			return fmt.Errorf("step %q has a negative timeout", step.ID)
		}
	}
	return nil
}

// Duration is a time.Duration that marshals as a "30s" style string in both
// YAML and JSON.
type Duration time.Duration

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// String formats the duration in time.Duration notation.
func (d Duration) String() string { return time.Duration(d).String() }

// UnmarshalYAML parses a duration string node.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return fmt.Errorf("timeout must be a duration string: %w", err)
	}
	return d.parse(raw)
}

// MarshalYAML emits the duration string.
func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

// UnmarshalJSON parses a duration string value.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("timeout must be a duration string: %w", err)
	}
	return d.parse(raw)
}

// MarshalJSON emits the duration string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) parse(raw string) error {
	if strings.TrimSpace(raw) == "" {
		*d = 0
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}
