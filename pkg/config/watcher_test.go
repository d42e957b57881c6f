// Copyright 2026 © The Ergon Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWatcherDetectsChanges(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	initial := `llm:
  provider: ollama
  model: test-model
`
	if err := os.WriteFile(configPath, []byte(initial), 0644); err != nil {
		t.Fatalf("failed to write initial config: %v", err)
	}

	watcher, err := NewWatcher([]string{configPath}, WithWatchInterval(50*time.Millisecond))
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}

	changes := make(chan *Config, 1)
	watcher.OnChange(func(cfg *Config) {
		changes <- cfg
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	watcher.Start(ctx)
	defer watcher.Stop()

	cfg := watcher.Config()
	if cfg.LLM.Model != "test-model" {
		t.Errorf("expected model 'test-model', got %q", cfg.LLM.Model)
	}

	// Wait a bit to ensure watcher is running
	time.Sleep(100 * time.Millisecond)

	updated := `llm:
  provider: ollama
  model: updated-model
`
	if err := os.WriteFile(configPath, []byte(updated), 0644); err != nil {
		t.Fatalf("failed to write updated config: %v", err)
	}

	select {
	case newCfg := <-changes:
		if newCfg.LLM.Model != "updated-model" {
			t.Errorf("expected model 'updated-model', got %q", newCfg.LLM.Model)
		}
	case <-time.After(500 * time.Millisecond):
		t.Error("timeout waiting for config change notification")
	}
}

func TestWatcherMemoryOverrides(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	initial := `memory:
  short_term_cap: 10
  working_cap: 5
`
	if err := os.WriteFile(configPath, []byte(initial), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	watcher, err := NewWatcher([]string{configPath})
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}

	cfg := watcher.Config()
	if cfg.Memory.ShortTermCap != 10 {
		t.Errorf("expected short-term cap 10, got %d", cfg.Memory.ShortTermCap)
	}
	if cfg.Memory.WorkingCap != 5 {
		t.Errorf("expected working cap 5, got %d", cfg.Memory.WorkingCap)
	}
	// Untouched sections keep defaults.
	if cfg.Memory.MaxAgeDays != 7 {
		t.Errorf("expected default max age, got %d", cfg.Memory.MaxAgeDays)
	}
}

func TestReloadableConfig(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	rc := NewReloadableConfig(cfg)
	if rc.LLM().Provider != "ollama" {
		t.Errorf("expected ollama provider, got %s", rc.LLM().Provider)
	}

	updated := *cfg
	updated.LLM.Provider = "mock"
	rc.Update(&updated)

	if rc.LLM().Provider != "mock" {
		t.Errorf("expected mock provider after update, got %s", rc.LLM().Provider)
	}
	if rc.Get() != &updated {
		t.Errorf("expected Get to return the updated config")
	}
}
