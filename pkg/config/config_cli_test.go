package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadWithCLIProfile(t *testing.T) {
	tmpDir := t.TempDir()

	baseConfig := `
llm:
  provider: "ollama"
`
	basePath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(basePath, []byte(baseConfig), 0644); err != nil {
		t.Fatalf("failed to write base config: %v", err)
	}

	devConfig := `
llm:
  provider: "mock"
`
	devPath := filepath.Join(tmpDir, "config.dev.yaml")
	if err := os.WriteFile(devPath, []byte(devConfig), 0644); err != nil {
		t.Fatalf("failed to write dev config: %v", err)
	}

	tests := []struct {
		name         string
		args         []string
		wantProvider string
	}{
		{
			name:         "profile flag",
			args:         []string{"--config", basePath, "--profile", "dev"},
			wantProvider: "mock",
		},
		{
			name:         "env flag alias",
			args:         []string{"--config", basePath, "--env", "dev"},
			wantProvider: "mock",
		},
		{
			name:         "profile with equals",
			args:         []string{"--config=" + basePath, "--profile=dev"},
			wantProvider: "mock",
		},
		{
			name:         "env with equals",
			args:         []string{"--config=" + basePath, "--env=dev"},
			wantProvider: "mock",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := LoadWithCLI(tc.args)
			if err != nil {
				t.Fatalf("LoadWithCLI failed: %v", err)
			}

			if cfg.LLM.Provider != tc.wantProvider {
				t.Errorf("provider: got %s, want %s", cfg.LLM.Provider, tc.wantProvider)
			}
		})
	}
}

func TestLoadWithCLITelemetryHeaders(t *testing.T) {
	args := []string{
		"--set", "telemetry.exporter=otlp",
		"--set", "telemetry.otlp_endpoint=http://localhost:4317",
		"--set", "telemetry.otlp_headers.x-api-key=secret-token",
		"--set", "telemetry.otlp_headers.x-org-id=org-123",
	}

	cfg, err := LoadWithCLI(args)
	if err != nil {
		t.Fatalf("LoadWithCLI failed: %v", err)
	}

	if cfg.Telemetry.Exporter != "otlp" {
		t.Errorf("expected exporter otlp, got %s", cfg.Telemetry.Exporter)
	}
	if cfg.Telemetry.OTLPEndpoint != "http://localhost:4317" {
		t.Errorf("expected endpoint, got %s", cfg.Telemetry.OTLPEndpoint)
	}

	headers := cfg.Telemetry.OTLPHeaders
	if headers["x-api-key"] != "secret-token" {
		t.Errorf("expected x-api-key=secret-token, got %s", headers["x-api-key"])
	}
	if headers["x-org-id"] != "org-123" {
		t.Errorf("expected x-org-id=org-123, got %s", headers["x-org-id"])
	}
}

func TestLoadWithCLITelemetryBasicAuth(t *testing.T) {
	args := []string{
		"--set", "telemetry.exporter=otlp",
		"--set", "telemetry.otlp_user=admin",
		"--set", "telemetry.otlp_token=password123",
	}

	cfg, err := LoadWithCLI(args)
	if err != nil {
		t.Fatalf("LoadWithCLI failed: %v", err)
	}

	if cfg.Telemetry.OTLPUser != "admin" {
		t.Errorf("expected user admin, got %s", cfg.Telemetry.OTLPUser)
	}
	if cfg.Telemetry.OTLPToken != "password123" {
		t.Errorf("expected token password123, got %s", cfg.Telemetry.OTLPToken)
	}
}

func TestLoadWithCLISetOverridesFile(t *testing.T) {
	tmpDir := t.TempDir()

	baseConfig := `
llm:
  provider: "ollama"
  model: "llama3.1"
`
	basePath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(basePath, []byte(baseConfig), 0644); err != nil {
		t.Fatalf("failed to write base config: %v", err)
	}

	cfg, err := LoadWithCLI([]string{"--config", basePath, "--set", "llm.model=llama3.2"})
	if err != nil {
		t.Fatalf("LoadWithCLI failed: %v", err)
	}

	if cfg.LLM.Model != "llama3.2" {
		t.Errorf("expected --set to override file, got %s", cfg.LLM.Model)
	}
	if cfg.LLM.Provider != "ollama" {
		t.Errorf("expected file value retained, got %s", cfg.LLM.Provider)
	}
}
