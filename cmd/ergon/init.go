// Copyright 2026 © The Ergon Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jllopis/ergon/pkg/workflow"
)

type initOptions struct {
	Provider string
	Vector   bool
	Force    bool
}

func runInit(global globalFlags, args []string) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)

	provider := fs.String("provider", "ollama", "Default LLM provider: ollama, mock, openai, anthropic")
	vector := fs.Bool("vector", false, "Include qdrant vector search configuration")
	force := fs.Bool("force", false, "Overwrite existing files")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: ergon init [directory] [flags]

Scaffold an agent project: ergon.yaml plus a discovery workflow.

Arguments:
  directory    Target directory (default: current directory)

Flags:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  ergon init
  ergon init my-agent --provider ollama --vector
  ergon init my-agent --provider anthropic
`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	dir := "."
	if fs.NArg() > 0 {
		dir = fs.Arg(0)
	}

	validProviders := map[string]bool{
		"ollama":    true,
		"mock":      true,
		"openai":    true,
		"anthropic": true,
	}
	if !validProviders[*provider] {
		fmt.Fprintf(os.Stderr, "Error: invalid --provider %q. Valid options: ollama, mock, openai, anthropic\n", *provider)
		os.Exit(1)
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid directory path: %v\n", err)
		os.Exit(1)
	}

	written, err := scaffoldProject(absDir, initOptions{
		Provider: *provider,
		Vector:   *vector,
		Force:    *force,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Initialized Ergon project in %s\n", dir)
	for _, path := range written {
		fmt.Printf("  wrote %s\n", filepath.Base(path))
	}
	fmt.Println()
	fmt.Println("Next steps:")
	if *provider == "openai" || *provider == "anthropic" {
		fmt.Println("  # add your api key to ergon.yaml (llm.api_key)")
	}
	if dir != "." {
		fmt.Printf("  cd %s\n", dir)
	}
	fmt.Println("  ergon validate")
	fmt.Println("  ergon run --description \"your project description\"")
}

// scaffoldProject writes ergon.yaml and discovery.yaml into dir. Existing
// files are left alone unless Force is set.
func scaffoldProject(dir string, opts initOptions) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create %s: %w", dir, err)
	}

	files := []struct {
		name    string
		content string
	}{
		{"ergon.yaml", renderConfig(opts)},
		{"discovery.yaml", workflow.DiscoveryScaffoldYAML},
	}

	written := make([]string, 0, len(files))
	for _, f := range files {
		path := filepath.Join(dir, f.name)
		if _, err := os.Stat(path); err == nil && !opts.Force {
			return nil, fmt.Errorf("%s already exists, use --force to overwrite", f.name)
		}
		if err := os.WriteFile(path, []byte(f.content), 0o644); err != nil {
			return nil, fmt.Errorf("cannot write %s: %w", path, err)
		}
		written = append(written, path)
	}
	return written, nil
}

// renderConfig produces an ergon.yaml for the chosen provider. Keys mirror
// the config package; commented lines show the defaults they would override.
func renderConfig(opts initOptions) string {
	var b strings.Builder

	b.WriteString(`log:
  level: info
  format: text

agent:
  name: ergon-agent
  type: discovery

`)

	switch opts.Provider {
	case "ollama":
		b.WriteString(`llm:
  provider: ollama
  model: qwen2.5-coder:7b-instruct-q5_K_M
  base_url: http://localhost:11434
  temperature: 0.7

`)
	case "mock":
		b.WriteString(`llm:
  provider: mock

`)
	case "openai":
		b.WriteString(`llm:
  provider: openai
  model: gpt-5-mini
  # add your key here or pass --set llm.api_key=...
  api_key: ""

`)
	case "anthropic":
		b.WriteString(`llm:
  provider: anthropic
  model: claude-sonnet-4-20250514
  # add your key here or pass --set llm.api_key=...
  api_key: ""

`)
	}

	b.WriteString(`memory:
  store: sqlite
  sqlite_path: ergon-memory.db
  # short_term_cap: 100
  # working_cap: 50
  # cleanup_interval_hours: 24
  # max_age_days: 7
`)

	if opts.Vector {
		b.WriteString(`  vector:
    enabled: true
    qdrant_addr: localhost:6334
    collection_prefix: agent
    embedder_provider: ollama
    embedder_base_url: http://localhost:11434
    embedder_model: nomic-embed-text
`)
	}

	b.WriteString(`
telemetry:
  exporter: stdout
  # exporter: otlp
  # otlp_endpoint: localhost:4317
  # otlp_insecure: true

workflow:
  # audit_path: ergon-audit.db

mcp:
  enabled: true
`)

	return b.String()
}
