// Copyright 2026 © The Ergon Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/jllopis/ergon/pkg/agent"
	"github.com/jllopis/ergon/pkg/config"
	"github.com/jllopis/ergon/pkg/core"
	"github.com/jllopis/ergon/pkg/discovery"
	"github.com/jllopis/ergon/pkg/llm"
	"github.com/jllopis/ergon/pkg/memory"
	ollamaembed "github.com/jllopis/ergon/pkg/memory/ollama"
	"github.com/jllopis/ergon/pkg/memory/qdrant"
	memsqlite "github.com/jllopis/ergon/pkg/memory/sqlite"
	"github.com/jllopis/ergon/pkg/runtime"
	"github.com/jllopis/ergon/pkg/telemetry"
	"github.com/jllopis/ergon/pkg/workflow"
)

type taskRunResult struct {
	TaskID      string         `json:"task_id"`
	TaskType    string         `json:"task_type"`
	Success     bool           `json:"success"`
	Result      any            `json:"result,omitempty"`
	Error       string         `json:"error,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CompletedAt time.Time      `json:"completed_at"`
}

// runtimeParts is everything a run needs: the configured pool with the
// discovery agent registered, plus the audit store and teardown hooks.
type runtimeParts struct {
	cfg     *config.Config
	logger  *slog.Logger
	pool    *runtime.Pool
	agent   *discovery.Agent
	audit   workflow.AuditStore
	cleanup []func()
}

// Close runs teardown hooks in reverse registration order.
func (r *runtimeParts) Close() {
	for i := len(r.cleanup) - 1; i >= 0; i-- {
		r.cleanup[i]()
	}
}

func runRun(ctx context.Context, flags globalFlags, args []string) {
	cmd := flag.NewFlagSet("run", flag.ContinueOnError)
	workflowPath := cmd.String("workflow", "", "Workflow YAML/JSON file (default: built-in discovery pipeline)")
	taskType := cmd.String("task", "", "Run a single task of this type instead of a workflow")
	description := cmd.String("description", "", "Project description passed to every step")
	dataJSON := cmd.String("data", "", "JSON object merged into the task input")
	agentName := cmd.String("agent", "", "Agent name (default: agent.name from config)")
	noTelemetry := cmd.Bool("no-telemetry", false, "Disable telemetry output")
	watch := cmd.Bool("watch", false, "Watch the config file for changes and hot-reload")
	var inputs multiFlag
	cmd.Var(&inputs, "input", "Task input as key=value (repeatable)")
	if err := cmd.Parse(args); err != nil {
		fatal(err)
	}
	if *taskType != "" && *workflowPath != "" {
		fatal(NewUsageError("--task and --workflow are mutually exclusive"))
	}

	input, err := parseInputs(*description, *dataJSON, inputs)
	if err != nil {
		fatal(err)
	}

	parts, err := buildRuntime(ctx, flags, *agentName, *noTelemetry)
	if err != nil {
		fatal(err)
	}
	defer parts.Close()

	if *watch {
		if watcher := watchConfig(ctx, flags, parts.logger); watcher != nil {
			defer watcher.Stop()
		}
	}

	if !flags.JSON && isatty.IsTerminal(os.Stdout.Fd()) {
		printBanner(parts)
	}

	if *taskType != "" {
		runSingleTask(ctx, flags, parts, *taskType, input)
		return
	}

	wf, err := loadWorkflow(*workflowPath)
	if err != nil {
		fatal(err)
	}
	runWorkflow(ctx, flags, parts, wf, input)
}

// buildRuntime loads configuration and assembles the provider, memory
// backends, discovery agent, pool, and audit store.
func buildRuntime(ctx context.Context, flags globalFlags, agentName string, noTelemetry bool) (*runtimeParts, error) {
	cfg, err := config.LoadWithCLI(flags.ConfigArgs)
	if err != nil {
		return nil, NewConfigError(err, findConfigPath(flags.ConfigArgs))
	}
	if err := cfg.Validate(); err != nil {
		return nil, NewConfigError(err, findConfigPath(flags.ConfigArgs))
	}
	if agentName == "" {
		agentName = cfg.Agent.Name
	}

	logger := telemetry.ConfigureSlog(os.Stderr, cfg.Log.Level, cfg.Log.Format)

	parts := &runtimeParts{cfg: cfg, logger: logger}

	exporter := cfg.Telemetry.Exporter
	if noTelemetry {
		exporter = "none"
	}
	shutdown, err := telemetry.InitWithConfig(agentName, cliVersion, telemetry.Config{
		Exporter:     exporter,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure: cfg.Telemetry.OTLPInsecure,
		OTLPHeaders:  cfg.Telemetry.OTLPHeaders,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init telemetry: %w", err)
	}
	parts.cleanup = append(parts.cleanup, func() {
		if err := shutdown(context.Background()); err != nil {
			fmt.Fprintf(os.Stderr, "telemetry shutdown: %v\n", err)
		}
	})

	metrics, err := telemetry.NewAgentMetrics(ctx)
	if err != nil {
		logger.Warn("cli.metrics_disabled", slog.Any("error", err))
		metrics = nil
	}

	provider, err := buildProvider(cfg)
	if err != nil {
		parts.Close()
		return nil, err
	}

	store, err := buildMemoryStore(cfg, agentName, logger, metrics, parts)
	if err != nil {
		parts.Close()
		return nil, err
	}

	disc, err := discovery.New(provider, discovery.Config{Model: cfg.LLM.Model},
		agent.WithLogger(logger),
		agent.WithStore(store),
		agent.WithMetrics(metrics),
	)
	if err != nil {
		parts.Close()
		return nil, err
	}
	parts.agent = disc

	pool := runtime.NewPool(runtime.WithLogger(logger))
	if err := pool.Register(disc); err != nil {
		parts.Close()
		return nil, err
	}
	parts.pool = pool
	parts.cleanup = append(parts.cleanup, func() { pool.Shutdown(context.Background()) })

	parts.audit, err = buildAuditStore(cfg, parts)
	if err != nil {
		parts.Close()
		return nil, err
	}
	return parts, nil
}

// buildProvider maps llm config onto a completion provider. The openai and
// anthropic backends live in nested modules so applications can pick their
// SDKs; the CLI ships with ollama and mock.
func buildProvider(cfg *config.Config) (llm.Provider, error) {
	switch strings.ToLower(cfg.LLM.Provider) {
	case "", "ollama":
		baseURL := cfg.LLM.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost:11434"
		}
		return llm.NewOllama(baseURL), nil
	case "mock":
		return &llm.MockProvider{Response: "This is a mock response."}, nil
	case "openai", "anthropic":
		return nil, fmt.Errorf("llm provider %q ships as the nested module providers/%s; wire it in your own binary or use ollama",
			cfg.LLM.Provider, cfg.LLM.Provider)
	default:
		return nil, fmt.Errorf("unknown llm provider: %s", cfg.LLM.Provider)
	}
}

func buildMemoryStore(cfg *config.Config, agentName string, logger *slog.Logger, metrics *telemetry.AgentMetrics, parts *runtimeParts) (*memory.Store, error) {
	opts := []memory.Option{
		memory.WithLogger(logger),
		memory.WithMetrics(metrics),
		memory.WithCleanupPolicy(cleanupPolicyFromConfig(cfg.Memory)),
	}

	switch cfg.Memory.Store {
	case "inmemory":
		opts = append(opts, memory.WithRecordStore(memory.NewInMemoryRecordStore()))
	case "sqlite":
		records, err := memsqlite.Open(cfg.Memory.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open memory store %s: %w", cfg.Memory.SQLitePath, err)
		}
		parts.cleanup = append(parts.cleanup, func() { _ = records.Close() })
		opts = append(opts, memory.WithRecordStore(records))
	case "none":
		// Cache-only store.
	}

	if cfg.Memory.Vector.Enabled {
		embedder := ollamaembed.NewEmbedder(cfg.Memory.Vector.EmbedderBaseURL, cfg.Memory.Vector.EmbedderModel)
		index, err := qdrant.New(cfg.Memory.Vector.QdrantAddr, embedder,
			qdrant.WithCollection(cfg.Memory.Vector.CollectionPrefix+"_memories"),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to qdrant: %w", err)
		}
		parts.cleanup = append(parts.cleanup, func() { _ = index.Close() })
		opts = append(opts, memory.WithVectorIndex(index))
	}

	return memory.NewStore(agentName, opts...), nil
}

func cleanupPolicyFromConfig(cfg config.MemoryConfig) memory.CleanupPolicy {
	policy := memory.DefaultCleanupPolicy()
	if cfg.ShortTermCap > 0 {
		policy.ShortTermCap = cfg.ShortTermCap
	}
	if cfg.WorkingCap > 0 {
		policy.WorkingCap = cfg.WorkingCap
	}
	if cfg.CleanupIntervalHours > 0 {
		policy.Interval = time.Duration(cfg.CleanupIntervalHours) * time.Hour
	}
	if cfg.MaxAgeDays > 0 {
		policy.MaxAge = time.Duration(cfg.MaxAgeDays) * 24 * time.Hour
	}
	return policy
}

func buildAuditStore(cfg *config.Config, parts *runtimeParts) (workflow.AuditStore, error) {
	if cfg.Workflow.AuditPath == "" {
		return workflow.NewMemoryAuditStore(), nil
	}
	store, err := workflow.OpenSQLiteAuditStore(cfg.Workflow.AuditPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit store %s: %w", cfg.Workflow.AuditPath, err)
	}
	parts.cleanup = append(parts.cleanup, func() { _ = store.Close() })
	return store, nil
}

// parseInputs merges --data JSON, --description, and --input k=v pairs into
// a single task input map. Later sources win: data < description < inputs.
// --description feeds the project_description key the discovery handlers read.
func parseInputs(description, dataJSON string, inputs []string) (map[string]any, error) {
	out := map[string]any{}
	if strings.TrimSpace(dataJSON) != "" {
		if err := json.Unmarshal([]byte(dataJSON), &out); err != nil {
			return nil, fmt.Errorf("invalid --data: %w", err)
		}
	}
	if description != "" {
		out["project_description"] = description
	}
	for _, pair := range inputs {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("invalid --input %q, expected key=value", pair)
		}
		out[strings.TrimSpace(key)] = value
	}
	return out, nil
}

// loadWorkflow reads a workflow file, or falls back to the built-in
// discovery pipeline when no path is given.
func loadWorkflow(path string) (*workflow.Workflow, error) {
	if strings.TrimSpace(path) == "" || path == "discovery" {
		return workflow.DiscoveryScaffold(), nil
	}
	wf, err := workflow.Load(path)
	if err != nil {
		return nil, NewWorkflowError(err, path)
	}
	return wf, nil
}

// watchConfig hot-reloads the config file behind a ReloadableConfig. A
// reload does not rebuild already-constructed backends; it is visible to
// anything reading through the reloadable handle.
func watchConfig(ctx context.Context, flags globalFlags, logger *slog.Logger) *config.Watcher {
	path := findConfigPath(flags.ConfigArgs)
	if path == "" {
		fmt.Fprintln(os.Stderr, "Warning: --watch needs an explicit --config file")
		return nil
	}
	watcher, _, err := config.WatchConfig(ctx, path, config.WithWatchInterval(time.Second))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not watch config: %v\n", err)
		return nil
	}
	reloadable := config.NewReloadableConfig(watcher.Config())
	watcher.OnChange(func(newCfg *config.Config) {
		reloadable.Update(newCfg)
		logger.Info("cli.config_reloaded", slog.String("path", path))
	})
	return watcher
}

func printBanner(parts *runtimeParts) {
	status := parts.agent.StatusInfo()
	fmt.Printf("Ergon Agent: %s (%s)\n", status.Name, status.ID)
	fmt.Printf("LLM: %s (%s)\n", parts.cfg.LLM.Provider, parts.cfg.LLM.Model)
	fmt.Printf("Memory: %s", parts.cfg.Memory.Store)
	if parts.cfg.Memory.Vector.Enabled {
		fmt.Print(" + qdrant")
	}
	fmt.Println()
	fmt.Println()
}

func runSingleTask(ctx context.Context, flags globalFlags, parts *runtimeParts, taskType string, input map[string]any) {
	ctx, cancel := context.WithTimeout(ctx, flags.Timeout)
	defer cancel()

	task := core.NewTask(taskType, input)
	result, err := parts.pool.Dispatch(ctx, task)
	if err != nil {
		fatal(err)
	}

	if flags.JSON {
		printJSON(taskRunResult{
			TaskID:      task.ID,
			TaskType:    taskType,
			Success:     result.Success,
			Result:      result.Result,
			Error:       result.Error,
			Metadata:    result.Metadata,
			CompletedAt: result.CompletedAt,
		})
		if !result.Success {
			os.Exit(1)
		}
		return
	}

	if !result.Success {
		fmt.Fprintf(os.Stderr, "task %s failed: %s\n", taskType, result.Error)
		os.Exit(1)
	}
	printPayload(result.Result)
}

func runWorkflow(ctx context.Context, flags globalFlags, parts *runtimeParts, wf *workflow.Workflow, input map[string]any) {
	executor := workflow.NewExecutor(parts.pool,
		workflow.WithLogger(parts.logger),
		workflow.WithAuditStore(parts.audit),
	)

	result, err := executor.Run(ctx, wf, input)
	if err != nil {
		fatal(err)
	}

	if flags.JSON {
		printJSON(result)
		if !result.Success {
			os.Exit(1)
		}
		return
	}

	outcome := "success"
	if !result.Success {
		outcome = "failed"
	}
	fmt.Printf("Workflow %s (run %s): %s in %s\n\n",
		result.WorkflowID, result.RunID, outcome,
		result.FinishedAt.Sub(result.StartedAt).Round(time.Millisecond))

	writer := newTabWriter()
	writeRow(writer, "STEP", "STATUS", "AGENT", "DURATION", "ERROR")
	for _, step := range result.Steps {
		writeRow(writer, step.StepID, step.Status, step.AgentID,
			step.Duration.Round(time.Millisecond).String(), truncateString(step.Error, 60))
	}
	_ = writer.Flush()

	for _, step := range result.Steps {
		if step.Output == nil {
			continue
		}
		fmt.Printf("\n--- %s\n", step.StepID)
		printPayload(step.Output)
	}

	if !result.Success {
		os.Exit(1)
	}
}

// printPayload renders a handler result: strings verbatim, everything else
// as indented JSON.
func printPayload(payload any) {
	if s, ok := payload.(string); ok {
		fmt.Println(s)
		return
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		fmt.Printf("%v\n", payload)
		return
	}
	fmt.Println(string(data))
}
