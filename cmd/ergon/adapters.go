// Copyright 2026 © The Ergon Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
)

// Adapter describes an available provider/backend in Ergon.
type Adapter struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Description string   `json:"description"`
	ConfigKeys  []string `json:"config_keys,omitempty"`
	Docs        string   `json:"docs,omitempty"`
}

// adaptersRegistry is the catalog of known adapters.
var adaptersRegistry = []Adapter{
	// LLM Providers
	{
		Name:        "ollama",
		Type:        "llm",
		Description: "Local LLM inference with Ollama",
		ConfigKeys:  []string{"llm.provider=ollama", "llm.base_url", "llm.model", "llm.temperature"},
		Docs:        "https://ollama.ai",
	},
	{
		Name:        "openai",
		Type:        "llm",
		Description: "OpenAI models via the official SDK (nested module providers/openai)",
		ConfigKeys:  []string{"llm.provider=openai", "llm.api_key", "llm.model"},
		Docs:        "providers/openai",
	},
	{
		Name:        "anthropic",
		Type:        "llm",
		Description: "Anthropic Claude models via the official SDK (nested module providers/anthropic)",
		ConfigKeys:  []string{"llm.provider=anthropic", "llm.api_key", "llm.model"},
		Docs:        "providers/anthropic",
	},
	{
		Name:        "mock",
		Type:        "llm",
		Description: "Mock LLM for testing (returns canned responses)",
		ConfigKeys:  []string{"llm.provider=mock"},
		Docs:        "pkg/llm/mock.go",
	},

	// Memory Record Stores
	{
		Name:        "inmemory",
		Type:        "memory",
		Description: "In-memory record store (non-persistent)",
		ConfigKeys:  []string{"memory.store=inmemory", "memory.short_term_cap", "memory.working_cap"},
		Docs:        "pkg/memory/recordstore.go",
	},
	{
		Name:        "sqlite",
		Type:        "memory",
		Description: "SQLite record store for durable long-term memory",
		ConfigKeys:  []string{"memory.store=sqlite", "memory.sqlite_path"},
		Docs:        "pkg/memory/sqlite",
	},
	{
		Name:        "none",
		Type:        "memory",
		Description: "Cache-only tiers, no durable records",
		ConfigKeys:  []string{"memory.store=none"},
		Docs:        "pkg/memory/store.go",
	},

	// Vector Search
	{
		Name:        "qdrant",
		Type:        "vector",
		Description: "Qdrant vector index for semantic memory search",
		ConfigKeys:  []string{"memory.vector.enabled=true", "memory.vector.qdrant_addr", "memory.vector.collection_prefix"},
		Docs:        "https://qdrant.tech/documentation",
	},
	{
		Name:        "ollama-embed",
		Type:        "vector",
		Description: "Ollama embeddings backing the vector index",
		ConfigKeys:  []string{"memory.vector.embedder_base_url", "memory.vector.embedder_model"},
		Docs:        "pkg/memory/ollama",
	},

	// Workflow Audit
	{
		Name:        "audit-memory",
		Type:        "audit",
		Description: "In-memory workflow audit trail",
		ConfigKeys:  []string{"workflow.audit_path="},
		Docs:        "pkg/workflow/audit.go",
	},
	{
		Name:        "audit-sqlite",
		Type:        "audit",
		Description: "SQLite workflow audit trail surviving restarts",
		ConfigKeys:  []string{"workflow.audit_path"},
		Docs:        "pkg/workflow/audit_sqlite.go",
	},

	// MCP
	{
		Name:        "mcp-stdio",
		Type:        "mcp",
		Description: "Inspection server over MCP stdio ('ergon mcp')",
		ConfigKeys:  []string{"mcp.enabled", "memory.store", "workflow.audit_path"},
		Docs:        "https://modelcontextprotocol.io",
	},

	// Telemetry
	{
		Name:        "otel-stdout",
		Type:        "telemetry",
		Description: "OpenTelemetry export to stdout",
		ConfigKeys:  []string{"telemetry.exporter=stdout"},
		Docs:        "pkg/telemetry",
	},
	{
		Name:        "otel-otlp",
		Type:        "telemetry",
		Description: "OpenTelemetry export via OTLP/gRPC",
		ConfigKeys:  []string{"telemetry.exporter=otlp", "telemetry.otlp_endpoint", "telemetry.otlp_insecure"},
		Docs:        "pkg/telemetry",
	},
	{
		Name:        "otel-none",
		Type:        "telemetry",
		Description: "Telemetry disabled (spans and metrics dropped)",
		ConfigKeys:  []string{"telemetry.exporter=none"},
		Docs:        "pkg/telemetry",
	},
}

type adaptersListResult struct {
	Adapters []Adapter `json:"adapters"`
	Total    int       `json:"total"`
}

type adapterInfoResult struct {
	Adapter Adapter `json:"adapter"`
	Found   bool    `json:"found"`
}

func runAdapters(global globalFlags, args []string) {
	if len(args) == 0 {
		fatal(NewUsageError("usage: ergon adapters <list|info> [args]"))
	}

	switch args[0] {
	case "list":
		runAdaptersList(global, args[1:])
	case "info":
		runAdaptersInfo(global, args[1:])
	default:
		fatal(NewUsageError(fmt.Sprintf("unknown adapters subcommand %q; use list or info", args[0])))
	}
}

func runAdaptersList(global globalFlags, args []string) {
	fs := flag.NewFlagSet("adapters list", flag.ExitOnError)
	filterType := fs.String("type", "", "Filter by type: llm, memory, vector, audit, mcp, telemetry")
	if err := fs.Parse(args); err != nil {
		fatal(err)
	}

	adapters := adaptersRegistry
	if *filterType != "" {
		filtered := make([]Adapter, 0)
		for _, a := range adapters {
			if a.Type == *filterType {
				filtered = append(filtered, a)
			}
		}
		adapters = filtered
	}

	result := adaptersListResult{
		Adapters: adapters,
		Total:    len(adapters),
	}

	if global.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			fatal(err)
		}
		return
	}

	if len(adapters) == 0 {
		fmt.Println("No adapters found.")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tTYPE\tDESCRIPTION")
	fmt.Fprintln(w, "----\t----\t-----------")
	for _, a := range adapters {
		fmt.Fprintf(w, "%s\t%s\t%s\n", a.Name, a.Type, a.Description)
	}
	w.Flush()

	fmt.Printf("\nTotal: %d adapters\n", result.Total)
	fmt.Println("\nUse 'ergon adapters info <name>' for configuration details.")
}

func runAdaptersInfo(global globalFlags, args []string) {
	if len(args) == 0 {
		fatal(NewUsageError("usage: ergon adapters info <adapter-name>"))
	}

	name := args[0]
	var found *Adapter
	for _, a := range adaptersRegistry {
		if a.Name == name {
			found = &a
			break
		}
	}

	result := adapterInfoResult{
		Found: found != nil,
	}
	if found != nil {
		result.Adapter = *found
	}

	if global.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			fatal(err)
		}
		return
	}

	if found == nil {
		fmt.Printf("Adapter %q not found.\n", name)
		fmt.Println("\nAvailable adapters:")
		for _, a := range adaptersRegistry {
			fmt.Printf("  - %s (%s)\n", a.Name, a.Type)
		}
		os.Exit(1)
	}

	fmt.Printf("Adapter: %s\n", found.Name)
	fmt.Printf("Type: %s\n", found.Type)
	fmt.Printf("Description: %s\n", found.Description)
	fmt.Println()

	if len(found.ConfigKeys) > 0 {
		fmt.Println("Configuration:")
		for _, k := range found.ConfigKeys {
			fmt.Printf("  • %s\n", k)
		}
		fmt.Println()
	}

	if found.Docs != "" {
		fmt.Printf("Documentation: %s\n", found.Docs)
	}
}
