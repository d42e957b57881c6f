// Copyright 2026 © The Ergon Authors
// SPDX-License-Identifier: Apache-2.0

package workflow

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// ParseJSON loads a workflow from JSON and validates it.
func ParseJSON(data []byte) (*Workflow, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty JSON payload")
	}
	var wf Workflow
	if err := json.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("parse json workflow: %w", err)
	}
	if err := wf.Validate(); err != nil {
		return nil, err
	}
	return &wf, nil
}

// ParseYAML loads a workflow from YAML and validates it.
func ParseYAML(data []byte) (*Workflow, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty YAML payload")
	}
	var wf Workflow
	if err := yaml.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("parse yaml workflow: %w", err)
	}
	if err := wf.Validate(); err != nil {
		return nil, err
	}
	return &wf, nil
}

// MarshalJSON serializes a workflow to JSON. Use pretty for indented output.
func MarshalJSON(wf *Workflow, pretty bool) ([]byte, error) {
	if wf == nil {
		return nil, fmt.Errorf("workflow is nil")
	}
	if err := wf.Validate(); err != nil {
		return nil, err
	}
	if pretty {
		return json.MarshalIndent(wf, "", "  ")
	}
	return json.Marshal(wf)
}

// MarshalYAML serializes a workflow to YAML.
func MarshalYAML(wf *Workflow) ([]byte, error) {
	if wf == nil {
		return nil, fmt.Errorf("workflow is nil")
	}
	if err := wf.Validate(); err != nil {
		return nil, err
	}
	return yaml.Marshal(wf)
}
