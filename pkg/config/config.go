// Package config loads Ergon configuration from defaults, YAML files, and
// the environment, in that order of precedence (later layers win).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/jllopis/ergon/pkg/errors"
)

type Config struct {
	Log       LogConfig       `koanf:"log"`
	Agent     AgentConfig     `koanf:"agent"`
	LLM       LLMConfig       `koanf:"llm"`
	Memory    MemoryConfig    `koanf:"memory"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Workflow  WorkflowConfig  `koanf:"workflow"`
	MCP       MCPConfig       `koanf:"mcp"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json, text
}

type AgentConfig struct {
	Name string `koanf:"name"`
	Type string `koanf:"type"`
}

type LLMConfig struct {
	Provider    string  `koanf:"provider"` // openai, anthropic, ollama, mock
	Model       string  `koanf:"model"`
	BaseURL     string  `koanf:"base_url"`
	APIKey      string  `koanf:"api_key"`
	Temperature float64 `koanf:"temperature"`
}

type MemoryConfig struct {
	// Store selects the durable record store: inmemory, sqlite, none.
	Store      string `koanf:"store"`
	SQLitePath string `koanf:"sqlite_path"`

	// Retention policy knobs; zero values fall back to the package defaults.
	ShortTermCap         int `koanf:"short_term_cap"`
	WorkingCap           int `koanf:"working_cap"`
	CleanupIntervalHours int `koanf:"cleanup_interval_hours"`
	MaxAgeDays           int `koanf:"max_age_days"`

	Vector VectorConfig `koanf:"vector"`
}

type VectorConfig struct {
	Enabled          bool   `koanf:"enabled"`
	QdrantAddr       string `koanf:"qdrant_addr"`
	CollectionPrefix string `koanf:"collection_prefix"`
	EmbedderProvider string `koanf:"embedder_provider"` // ollama
	EmbedderBaseURL  string `koanf:"embedder_base_url"`
	EmbedderModel    string `koanf:"embedder_model"`
}

type TelemetryConfig struct {
	Exporter     string            `koanf:"exporter"` // stdout, otlp, none
	OTLPEndpoint string            `koanf:"otlp_endpoint"`
	OTLPInsecure bool              `koanf:"otlp_insecure"`
	OTLPHeaders  map[string]string `koanf:"otlp_headers"`
	OTLPUser     string            `koanf:"otlp_user"`
	OTLPToken    string            `koanf:"otlp_token"`
}

type WorkflowConfig struct {
	// AuditPath is the sqlite file for the workflow audit trail.
	// Empty keeps the audit in memory.
	AuditPath string `koanf:"audit_path"`
}

type MCPConfig struct {
	// Enabled gates the MCP inspection server. Flipping it to false lets
	// an operator forbid `ergon mcp` on hosts where exposing agent state
	// over stdio is not wanted.
	Enabled bool `koanf:"enabled"`
}

func defaults(k *koanf.Koanf) {
	k.Set("log.level", "info")
	k.Set("log.format", "text")

	k.Set("agent.name", "ergon-agent")
	k.Set("agent.type", "base")

	k.Set("llm.provider", "ollama")
	k.Set("llm.model", "qwen2.5-coder:7b-instruct-q5_K_M")
	k.Set("llm.base_url", "http://localhost:11434")
	k.Set("llm.temperature", 0.7)

	k.Set("memory.store", "inmemory")
	k.Set("memory.sqlite_path", "ergon-memory.db")
	k.Set("memory.short_term_cap", 100)
	k.Set("memory.working_cap", 50)
	k.Set("memory.cleanup_interval_hours", 24)
	k.Set("memory.max_age_days", 7)

	k.Set("memory.vector.enabled", false)
	k.Set("memory.vector.qdrant_addr", "localhost:6334")
	k.Set("memory.vector.collection_prefix", "agent")
	k.Set("memory.vector.embedder_provider", "ollama")
	k.Set("memory.vector.embedder_base_url", "http://localhost:11434")
	k.Set("memory.vector.embedder_model", "nomic-embed-text")

	k.Set("telemetry.exporter", "stdout")

	k.Set("workflow.audit_path", "")

	k.Set("mcp.enabled", true)
}

// Load reads configuration from an optional YAML file and the ERGON_*
// environment (ERGON_LLM_PROVIDER -> llm.provider).
func Load(path string) (*Config, error) {
	return load(path, "", nil)
}

// LoadWithProfile layers a profile file (config.dev.yaml next to config.yaml)
// over the base configuration when it exists.
func LoadWithProfile(path, profile string) (*Config, error) {
	return load(path, profile, nil)
}

// LoadWithCLI parses --config, --profile (alias --env), and repeatable
// --set key=value arguments, then loads configuration with --set values
// taking the highest precedence.
func LoadWithCLI(args []string) (*Config, error) {
	var path, profile string
	var sets []string

	readValue := func(i *int, arg, name string) (string, error) {
		if eq := strings.IndexByte(arg, '='); eq >= 0 {
			return arg[eq+1:], nil
		}
		*i++
		if *i >= len(args) {
			return "", fmt.Errorf("missing value for %s", name)
		}
		return args[*i], nil
	}

	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--config" || strings.HasPrefix(arg, "--config="):
			v, err := readValue(&i, arg, "--config")
			if err != nil {
				return nil, err
			}
			path = v
		case arg == "--profile" || strings.HasPrefix(arg, "--profile="),
			arg == "--env" || strings.HasPrefix(arg, "--env="):
			v, err := readValue(&i, arg, "--profile")
			if err != nil {
				return nil, err
			}
			profile = v
		case arg == "--set" || strings.HasPrefix(arg, "--set="):
			v, err := readValue(&i, arg, "--set")
			if err != nil {
				return nil, err
			}
			sets = append(sets, v)
		}
	}

	return load(path, profile, sets)
}

func load(path, profile string, sets []string) (*Config, error) {
	k := koanf.New(".")
	defaults(k)

	// 1. Base file
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	// 2. Profile file layered over the base
	if profilePath := profileConfigPath(path, profile); profilePath != "" {
		if err := k.Load(file.Provider(profilePath), yaml.Parser()); err != nil {
			return nil, err
		}
	}

	// 3. ENV (ERGON_LLM_PROVIDER -> llm.provider)
	if err := k.Load(env.Provider("ERGON_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "ERGON_")), "_", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	// 4. --set overrides win over everything
	for _, set := range sets {
		key, value, ok := strings.Cut(set, "=")
		if !ok {
			return nil, fmt.Errorf("invalid --set %q, expected key=value", set)
		}
		k.Set(key, value)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// profileConfigPath resolves base "config.yaml" + profile "dev" to
// "config.dev.yaml" when that file exists, else "".
func profileConfigPath(base, profile string) string {
	if base == "" || profile == "" {
		return ""
	}
	dir := filepath.Dir(base)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(filepath.Base(base), ext)
	path := filepath.Join(dir, name+"."+profile+ext)
	if _, err := os.Stat(path); err != nil {
		return ""
	}
	return path
}

// Validate checks the configuration for gaps that would be fatal at
// construction time. Returns a CONFIGURATION_ERROR describing the first
// problem found.
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "openai", "anthropic":
		if c.LLM.APIKey == "" {
			return errors.New(errors.CodeConfiguration,
				fmt.Sprintf("llm provider %q requires llm.api_key", c.LLM.Provider), nil).
				WithContext("provider", c.LLM.Provider)
		}
	case "ollama":
		if c.LLM.BaseURL == "" {
			return errors.New(errors.CodeConfiguration, "llm provider ollama requires llm.base_url", nil)
		}
	case "mock":
		// Test provider needs no credentials.
	default:
		return errors.New(errors.CodeConfiguration,
			fmt.Sprintf("unknown llm provider %q", c.LLM.Provider), nil)
	}

	switch c.Memory.Store {
	case "inmemory", "none":
	case "sqlite":
		if c.Memory.SQLitePath == "" {
			return errors.New(errors.CodeConfiguration, "memory store sqlite requires memory.sqlite_path", nil)
		}
	default:
		return errors.New(errors.CodeConfiguration,
			fmt.Sprintf("unknown memory store %q", c.Memory.Store), nil)
	}

	if c.Memory.ShortTermCap < 0 || c.Memory.WorkingCap < 0 {
		return errors.New(errors.CodeConfiguration, "memory caps must not be negative", nil)
	}

	if c.Memory.Vector.Enabled {
		if c.Memory.Vector.QdrantAddr == "" {
			return errors.New(errors.CodeConfiguration, "vector memory requires memory.vector.qdrant_addr", nil)
		}
		if c.Memory.Vector.EmbedderModel == "" {
			return errors.New(errors.CodeConfiguration, "vector memory requires memory.vector.embedder_model", nil)
		}
	}

	switch c.Telemetry.Exporter {
	case "", "stdout", "none":
	case "otlp":
		if c.Telemetry.OTLPEndpoint == "" {
			return errors.New(errors.CodeConfiguration, "otlp exporter requires telemetry.otlp_endpoint", nil)
		}
	default:
		return errors.New(errors.CodeConfiguration,
			fmt.Sprintf("unknown telemetry exporter %q", c.Telemetry.Exporter), nil)
	}

	return nil
}
