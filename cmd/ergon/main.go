package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/jllopis/ergon/pkg/config"
)

const cliVersion = "0.1.0"

type globalFlags struct {
	ConfigArgs []string
	Timeout    time.Duration
	JSON       bool
	Help       bool
}

type statusResult struct {
	Version         string `json:"version"`
	AgentName       string `json:"agent_name"`
	AgentType       string `json:"agent_type"`
	LLMProvider     string `json:"llm_provider"`
	LLMModel        string `json:"llm_model"`
	LLMReachable    *bool  `json:"llm_reachable,omitempty"`
	MemoryStore     string `json:"memory_store"`
	SQLitePath      string `json:"sqlite_path,omitempty"`
	VectorEnabled   bool   `json:"vector_enabled"`
	QdrantReachable *bool  `json:"qdrant_reachable,omitempty"`
	Telemetry       string `json:"telemetry_exporter"`
	AuditPath       string `json:"audit_path,omitempty"`
	MCPEnabled      bool   `json:"mcp_enabled"`
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	global, args, err := parseGlobalFlags(os.Args[1:])
	if err != nil {
		fatal(err)
	}
	if global.Help || len(args) == 0 {
		printUsage()
		return
	}

	switch cmd := args[0]; cmd {
	case "run":
		runRun(ctx, global, args[1:])
	case "status":
		ensureNoArgs(args[1:])
		runStatus(global)
	case "init":
		runInit(global, args[1:])
	case "validate":
		runValidate(ctx, global, args[1:])
	case "adapters":
		runAdapters(global, args[1:])
	case "mcp":
		runMCP(ctx, global, args[1:])
	case "help":
		printUsage()
	case "version":
		printVersion()
	default:
		fatal(NewUsageError(fmt.Sprintf("unknown command %q", cmd)))
	}
}

func parseGlobalFlags(args []string) (globalFlags, []string, error) {
	flags := globalFlags{
		Timeout: 30 * time.Second,
	}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			return flags, args[i+1:], nil
		}
		if !strings.HasPrefix(arg, "-") {
			return flags, args[i:], nil
		}
		switch {
		case arg == "-h" || arg == "--help":
			flags.Help = true
			return flags, nil, nil
		case arg == "--json":
			flags.JSON = true
		case arg == "--config" || arg == "--profile" || arg == "--set":
			if i+1 >= len(args) {
				return flags, nil, fmt.Errorf("missing value for %s", arg)
			}
			flags.ConfigArgs = append(flags.ConfigArgs, arg, args[i+1])
			i++
		case strings.HasPrefix(arg, "--config="),
			strings.HasPrefix(arg, "--profile="),
			strings.HasPrefix(arg, "--set="):
			flags.ConfigArgs = append(flags.ConfigArgs, arg)
		case arg == "--timeout":
			if i+1 >= len(args) {
				return flags, nil, fmt.Errorf("missing value for --timeout")
			}
			value, err := time.ParseDuration(args[i+1])
			if err != nil {
				return flags, nil, fmt.Errorf("invalid --timeout: %w", err)
			}
			flags.Timeout = value
			i++
		case strings.HasPrefix(arg, "--timeout="):
			value, err := time.ParseDuration(strings.TrimPrefix(arg, "--timeout="))
			if err != nil {
				return flags, nil, fmt.Errorf("invalid --timeout: %w", err)
			}
			flags.Timeout = value
		default:
			return flags, nil, fmt.Errorf("unknown global flag %q", arg)
		}
	}
	return flags, nil, nil
}

func runStatus(flags globalFlags) {
	cfg, err := config.LoadWithCLI(flags.ConfigArgs)
	if err != nil {
		fatal(NewConfigError(err, findConfigPath(flags.ConfigArgs)))
	}

	result := gatherStatus(cfg)

	if flags.JSON {
		printJSON(result)
		return
	}

	fmt.Printf("Ergon CLI: %s\n", result.Version)
	fmt.Printf("Agent: %s (%s)\n", result.AgentName, result.AgentType)
	line := fmt.Sprintf("LLM: %s (%s)", result.LLMProvider, result.LLMModel)
	if result.LLMReachable != nil {
		line += fmt.Sprintf(" reachable=%t", *result.LLMReachable)
	}
	fmt.Println(line)
	mem := fmt.Sprintf("Memory: %s", result.MemoryStore)
	if result.SQLitePath != "" {
		mem += fmt.Sprintf(" (%s)", result.SQLitePath)
	}
	fmt.Println(mem)
	if result.VectorEnabled {
		reachable := false
		if result.QdrantReachable != nil {
			reachable = *result.QdrantReachable
		}
		fmt.Printf("Vector: qdrant (reachable=%t)\n", reachable)
	} else {
		fmt.Println("Vector: disabled")
	}
	fmt.Printf("Telemetry: %s\n", result.Telemetry)
	if result.AuditPath != "" {
		fmt.Printf("Audit: sqlite (%s)\n", result.AuditPath)
	} else {
		fmt.Println("Audit: in-memory")
	}
	if result.MCPEnabled {
		fmt.Println("MCP: enabled (ergon mcp)")
	} else {
		fmt.Println("MCP: disabled")
	}
}

func gatherStatus(cfg *config.Config) statusResult {
	result := statusResult{
		Version:       cliVersion,
		AgentName:     cfg.Agent.Name,
		AgentType:     cfg.Agent.Type,
		LLMProvider:   cfg.LLM.Provider,
		LLMModel:      cfg.LLM.Model,
		MemoryStore:   cfg.Memory.Store,
		VectorEnabled: cfg.Memory.Vector.Enabled,
		Telemetry:     cfg.Telemetry.Exporter,
		AuditPath:     cfg.Workflow.AuditPath,
		MCPEnabled:    cfg.MCP.Enabled,
	}
	if cfg.Memory.Store == "sqlite" {
		result.SQLitePath = cfg.Memory.SQLitePath
	}
	if cfg.LLM.Provider == "ollama" {
		reachable := checkHTTP(cfg.LLM.BaseURL)
		result.LLMReachable = &reachable
	}
	if cfg.Memory.Vector.Enabled {
		reachable := checkTCP(cfg.Memory.Vector.QdrantAddr)
		result.QdrantReachable = &reachable
	}
	return result
}

// findConfigPath extracts the config file path from CLI args, if any.
func findConfigPath(args []string) string {
	for i, arg := range args {
		if arg == "--config" && i+1 < len(args) {
			return args[i+1]
		}
		if strings.HasPrefix(arg, "--config=") {
			return strings.TrimPrefix(arg, "--config=")
		}
	}
	return ""
}

func checkTCP(addr string) bool {
	if strings.TrimSpace(addr) == "" {
		return false
	}
	conn, err := net.DialTimeout("tcp", addr, 500*time.Millisecond)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

func checkHTTP(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := parsed.Host
	if host == "" {
		host = parsed.Path
	}
	if host == "" {
		return false
	}
	if !strings.Contains(host, ":") {
		if parsed.Scheme == "https" {
			host += ":443"
		} else {
			host += ":80"
		}
	}
	return checkTCP(host)
}

// pingOllama checks whether an Ollama server answers on its tags endpoint.
func pingOllama(baseURL string) error {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(strings.TrimSuffix(baseURL, "/") + "/api/tags")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ollama returned status %d", resp.StatusCode)
	}
	return nil
}

func printJSON(value any) {
	payload, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		fatal(err)
	}
	fmt.Println(string(payload))
}

func newTabWriter() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
}

func writeRow(writer *tabwriter.Writer, cols ...string) {
	for i, col := range cols {
		cols[i] = normalizeCell(col)
	}
	fmt.Fprintln(writer, strings.Join(cols, "\t"))
}

func normalizeCell(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "-"
	}
	return strings.Join(strings.Fields(value), " ")
}

func truncateString(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

func printVersion() {
	fmt.Println(cliVersion)
}

func printUsage() {
	fmt.Println(`Ergon CLI

Usage:
  ergon [global flags] <command> [args]

Global flags:
  --config <path>      Path to ergon.yaml
  --profile <name>     Layer config.<name>.yaml over the base config
  --set key=value      Override config (repeatable)
  --timeout <dur>      Single-task execution timeout (default 30s)
  --json               JSON output

Commands:
  run [--workflow <path>] [--input k=v ...] [--data <json>] [--description <text>]
  run --task <type> [--input k=v ...]
  status
  init [directory] [--provider <name>] [--vector] [--force]
  validate [workflow.yaml ...]
  adapters list [--type <type>]
  adapters info <name>
  mcp
  version

Workflow steps carry their own timeouts; --timeout applies to --task runs.
Run 'ergon init' to scaffold ergon.yaml and a discovery workflow.`)
}

// fatal reports err on stderr and exits. CLI errors print with their code
// and hint; anything else prints as a plain message.
func fatal(err error) {
	var cliErr *CLIError
	if errors.As(err, &cliErr) {
		cliErr.PrintError(false)
	} else {
		fmt.Fprintln(os.Stderr, "Error: "+err.Error())
	}
	os.Exit(1)
}

func ensureNoArgs(args []string) {
	if len(args) > 0 {
		fatal(fmt.Errorf("unexpected args: %v", args))
	}
}

type multiFlag []string

func (m *multiFlag) String() string {
	return strings.Join(*m, ",")
}

func (m *multiFlag) Set(value string) error {
	*m = append(*m, value)
	return nil
}
