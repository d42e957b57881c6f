// Copyright 2026 © The Ergon Authors
// SPDX-License-Identifier: Apache-2.0

package workflow

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Load reads a workflow definition from a YAML or JSON file.
func Load(path string) (*Workflow, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("workflow path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return ParseJSON(data)
	case ".yaml", ".yml":
		return ParseYAML(data)
	default:
		return parseAuto(data)
	}
}

func parseAuto(data []byte) (*Workflow, error) {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "{") {
		if wf, err := ParseJSON(data); err == nil {
			return wf, nil
		}
	}
	if wf, err := ParseYAML(data); err == nil {
		return wf, nil
	}
	if wf, err := ParseJSON(data); err == nil {
		return wf, nil
	}
	return nil, fmt.Errorf("unsupported workflow format")
}
