// Copyright 2026 © The Ergon Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jllopis/ergon/pkg/config"
	"github.com/jllopis/ergon/pkg/core"
	"github.com/jllopis/ergon/pkg/discovery"
	"github.com/jllopis/ergon/pkg/llm"
	memsqlite "github.com/jllopis/ergon/pkg/memory/sqlite"
	"github.com/jllopis/ergon/pkg/workflow"
)

type validateResult struct {
	Config    checkResult   `json:"config"`
	LLM       checkResult   `json:"llm"`
	Memory    []checkResult `json:"memory"`
	Telemetry checkResult   `json:"telemetry"`
	Workflows []checkResult `json:"workflows"`
	Overall   string        `json:"overall"`
}

type checkResult struct {
	Name    string `json:"name"`
	Status  string `json:"status"` // "ok", "warn", "error", "skip"
	Message string `json:"message,omitempty"`
}

func runValidate(ctx context.Context, flags globalFlags, args []string) {
	result := validateResult{
		Memory:    []checkResult{},
		Workflows: []checkResult{},
	}
	hasError := false
	hasWarn := false

	// 1. Validate config loading
	cfg, err := config.LoadWithCLI(flags.ConfigArgs)
	if err == nil {
		err = cfg.Validate()
	}
	if err != nil {
		result.Config = checkResult{
			Name:    "config",
			Status:  "error",
			Message: fmt.Sprintf("%v", err),
		}
		hasError = true
		cfg = nil
	} else {
		result.Config = checkResult{
			Name:   "config",
			Status: "ok",
		}
	}

	// 2. Validate LLM provider
	if cfg != nil {
		result.LLM = validateLLM(cfg)
		if result.LLM.Status == "error" {
			hasError = true
		} else if result.LLM.Status == "warn" {
			hasWarn = true
		}
	} else {
		result.LLM = checkResult{Name: "llm", Status: "skip", Message: "config not loaded"}
	}

	// 3. Validate memory backends
	if cfg != nil {
		result.Memory = validateMemory(cfg)
		for _, r := range result.Memory {
			if r.Status == "error" {
				hasError = true
			} else if r.Status == "warn" {
				hasWarn = true
			}
		}
	}

	// 4. Validate telemetry exporter
	if cfg != nil {
		result.Telemetry = validateTelemetry(cfg)
		if result.Telemetry.Status == "error" {
			hasError = true
		} else if result.Telemetry.Status == "warn" {
			hasWarn = true
		}
	} else {
		result.Telemetry = checkResult{Name: "telemetry", Status: "skip", Message: "config not loaded"}
	}

	// 5. Validate workflow files
	result.Workflows = validateWorkflows(args)
	for _, r := range result.Workflows {
		if r.Status == "error" {
			hasError = true
		} else if r.Status == "warn" {
			hasWarn = true
		}
	}

	// Overall status
	if hasError {
		result.Overall = "error"
	} else if hasWarn {
		result.Overall = "warn"
	} else {
		result.Overall = "ok"
	}

	// Output
	if flags.JSON {
		printJSON(result)
		if hasError {
			os.Exit(1)
		}
		return
	}

	printValidateResult(result)

	if hasError {
		os.Exit(1)
	}
}

func validateLLM(cfg *config.Config) checkResult {
	switch strings.ToLower(cfg.LLM.Provider) {
	case "", "ollama":
		baseURL := cfg.LLM.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		if err := pingOllama(baseURL); err != nil {
			return checkResult{
				Name:    "llm",
				Status:  "error",
				Message: fmt.Sprintf("ollama not reachable at %s: %v", baseURL, err),
			}
		}
		if cfg.LLM.Model == "" {
			return checkResult{
				Name:    "llm",
				Status:  "warn",
				Message: "ollama reachable but no model configured",
			}
		}
		return checkResult{
			Name:    "llm",
			Status:  "ok",
			Message: fmt.Sprintf("ollama (%s)", cfg.LLM.Model),
		}

	case "openai", "anthropic":
		if cfg.LLM.APIKey == "" {
			return checkResult{
				Name:    "llm",
				Status:  "error",
				Message: fmt.Sprintf("%s configured but no api_key set", cfg.LLM.Provider),
			}
		}
		return checkResult{
			Name:    "llm",
			Status:  "warn",
			Message: fmt.Sprintf("%s ships as the nested module providers/%s; 'ergon run' supports ollama and mock", cfg.LLM.Provider, cfg.LLM.Provider),
		}

	case "mock":
		return checkResult{
			Name:    "llm",
			Status:  "ok",
			Message: "mock provider",
		}

	default:
		return checkResult{
			Name:    "llm",
			Status:  "warn",
			Message: fmt.Sprintf("unknown provider %q", cfg.LLM.Provider),
		}
	}
}

func validateMemory(cfg *config.Config) []checkResult {
	results := []checkResult{}

	switch cfg.Memory.Store {
	case "inmemory", "none", "":
		results = append(results, checkResult{
			Name:    "memory",
			Status:  "ok",
			Message: storeLabel(cfg.Memory.Store),
		})
	case "sqlite":
		results = append(results, sqliteFileCheck("memory", cfg.Memory.SQLitePath))
	default:
		results = append(results, checkResult{
			Name:    "memory",
			Status:  "error",
			Message: fmt.Sprintf("unknown store %q", cfg.Memory.Store),
		})
	}

	if cfg.Memory.Vector.Enabled {
		if checkTCP(cfg.Memory.Vector.QdrantAddr) {
			results = append(results, checkResult{
				Name:    "memory:qdrant",
				Status:  "ok",
				Message: cfg.Memory.Vector.QdrantAddr,
			})
		} else {
			results = append(results, checkResult{
				Name:    "memory:qdrant",
				Status:  "error",
				Message: fmt.Sprintf("qdrant not reachable at %s", cfg.Memory.Vector.QdrantAddr),
			})
		}
		if err := pingOllama(cfg.Memory.Vector.EmbedderBaseURL); err != nil {
			results = append(results, checkResult{
				Name:    "memory:embedder",
				Status:  "warn",
				Message: fmt.Sprintf("embedder not reachable at %s: %v", cfg.Memory.Vector.EmbedderBaseURL, err),
			})
		} else {
			results = append(results, checkResult{
				Name:    "memory:embedder",
				Status:  "ok",
				Message: fmt.Sprintf("ollama (%s)", cfg.Memory.Vector.EmbedderModel),
			})
		}
	}

	if cfg.Workflow.AuditPath != "" {
		results = append(results, sqliteFileCheck("audit", cfg.Workflow.AuditPath))
	}

	return results
}

func storeLabel(store string) string {
	switch store {
	case "none":
		return "cache-only (no durable records)"
	case "":
		return "inmemory"
	default:
		return store
	}
}

// sqliteFileCheck opens an existing database to verify it, and only checks
// the parent directory when the file does not exist yet, so validate never
// creates files.
func sqliteFileCheck(name, path string) checkResult {
	if strings.TrimSpace(path) == "" {
		return checkResult{Name: name, Status: "error", Message: "sqlite store needs a path"}
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		dir := filepath.Dir(path)
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			return checkResult{
				Name:    name,
				Status:  "error",
				Message: fmt.Sprintf("directory %s does not exist", dir),
			}
		}
		return checkResult{
			Name:    name,
			Status:  "ok",
			Message: fmt.Sprintf("sqlite (%s, will be created)", path),
		}
	}
	store, err := memsqlite.Open(path)
	if err != nil {
		return checkResult{
			Name:    name,
			Status:  "error",
			Message: fmt.Sprintf("cannot open %s: %v", path, err),
		}
	}
	_ = store.Close()
	return checkResult{
		Name:    name,
		Status:  "ok",
		Message: fmt.Sprintf("sqlite (%s)", path),
	}
}

func validateTelemetry(cfg *config.Config) checkResult {
	switch cfg.Telemetry.Exporter {
	case "", "stdout":
		return checkResult{Name: "telemetry", Status: "ok", Message: "stdout exporter"}
	case "none":
		return checkResult{Name: "telemetry", Status: "ok", Message: "disabled"}
	case "otlp":
		if !checkTCP(cfg.Telemetry.OTLPEndpoint) {
			return checkResult{
				Name:    "telemetry",
				Status:  "warn",
				Message: fmt.Sprintf("otlp endpoint %s not reachable", cfg.Telemetry.OTLPEndpoint),
			}
		}
		return checkResult{Name: "telemetry", Status: "ok", Message: fmt.Sprintf("otlp (%s)", cfg.Telemetry.OTLPEndpoint)}
	default:
		return checkResult{
			Name:    "telemetry",
			Status:  "error",
			Message: fmt.Sprintf("unknown exporter %q", cfg.Telemetry.Exporter),
		}
	}
}

// validateWorkflows checks explicit paths, or the default candidates when
// none are given. Steps are checked against what the discovery agent
// actually handles, so a workflow that parses but could never dispatch
// still gets flagged.
func validateWorkflows(paths []string) []checkResult {
	results := []checkResult{}

	if len(paths) == 0 {
		for _, candidate := range []string{"discovery.yaml", "workflow.yaml"} {
			if _, err := os.Stat(candidate); err == nil {
				paths = append(paths, candidate)
			}
		}
	}
	if len(paths) == 0 {
		builtin := workflow.DiscoveryScaffold()
		return append(results, checkResult{
			Name:    "workflow",
			Status:  "ok",
			Message: fmt.Sprintf("no files found, built-in discovery pipeline (%d steps)", len(builtin.Steps)),
		})
	}

	served, caps := discoveryProfile()
	for _, path := range paths {
		name := fmt.Sprintf("workflow:%s", path)
		wf, err := workflow.Load(path)
		if err != nil {
			results = append(results, checkResult{
				Name:    name,
				Status:  "error",
				Message: fmt.Sprintf("%v", err),
			})
			continue
		}

		warned := false
		for _, step := range wf.Steps {
			if warning := checkStep(step, served, caps); warning != "" {
				results = append(results, checkResult{
					Name:    name,
					Status:  "warn",
					Message: warning,
				})
				warned = true
				break
			}
		}
		if !warned {
			results = append(results, checkResult{
				Name:    name,
				Status:  "ok",
				Message: fmt.Sprintf("%d steps", len(wf.Steps)),
			})
		}
	}
	return results
}

// discoveryProfile builds a throwaway discovery agent to read its real
// handler table and capabilities instead of maintaining parallel lists here.
func discoveryProfile() (map[string]bool, []core.Capability) {
	disc, err := discovery.New(&llm.MockProvider{}, discovery.Config{})
	if err != nil {
		return nil, nil
	}
	served := make(map[string]bool)
	for _, taskType := range disc.Tasks() {
		served[taskType] = true
	}
	return served, disc.Capabilities()
}

func checkStep(step workflow.Step, served map[string]bool, caps []core.Capability) string {
	if served != nil && !served[step.TaskType] {
		return fmt.Sprintf("step %s: task type %q not handled by the discovery agent", step.ID, step.TaskType)
	}
	if step.Capability != "" && caps != nil && !core.HasCapability(caps, step.Capability) {
		return fmt.Sprintf("step %s: capability %q is not served by the discovery agent", step.ID, step.Capability)
	}
	return ""
}

func printValidateResult(result validateResult) {
	statusIcon := map[string]string{
		"ok":    "✓",
		"warn":  "⚠",
		"error": "✗",
		"skip":  "○",
	}

	fmt.Println("Ergon Configuration Validation")
	fmt.Println("==============================")
	fmt.Println()

	printCheck(statusIcon, result.Config)
	printCheck(statusIcon, result.LLM)
	for _, r := range result.Memory {
		printCheck(statusIcon, r)
	}
	printCheck(statusIcon, result.Telemetry)
	for _, r := range result.Workflows {
		printCheck(statusIcon, r)
	}

	fmt.Println()
	switch result.Overall {
	case "ok":
		fmt.Println("✓ All checks passed")
	case "warn":
		fmt.Println("⚠ Validation completed with warnings")
	case "error":
		fmt.Println("✗ Validation failed")
	}
}

func printCheck(icons map[string]string, r checkResult) {
	icon := icons[r.Status]
	if r.Message != "" {
		fmt.Printf("%s %s: %s\n", icon, r.Name, r.Message)
	} else {
		fmt.Printf("%s %s\n", icon, r.Name)
	}
}
