// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Engine.ServerURL != "http://127.0.0.1:8080" {
		t.Errorf("ServerURL = %q", cfg.Engine.ServerURL)
	}
	if cfg.Generation.ContextWindow != 2048 {
		t.Errorf("ContextWindow = %d, want 2048", cfg.Generation.ContextWindow)
	}
	if cfg.Generation.BatchSize != 256 {
		t.Errorf("BatchSize = %d, want 256", cfg.Generation.BatchSize)
	}
	if cfg.Generation.Threads != 4 {
		t.Errorf("Threads = %d, want 4", cfg.Generation.Threads)
	}
}

func TestLoadFromDirTOML(t *testing.T) {
	dir := t.TempDir()
	toml := `
data_dir = "/tmp/chats"

[engine]
server_url = "http://127.0.0.1:9999"

[generation]
n_ctx = 4096
n_batch = 512
threads = 8
`
	os.WriteFile(filepath.Join(dir, "config.toml"), []byte(toml), 0644)

	cfg, err := LoadFromDir(dir)
	if err != nil {
		t.Fatalf("LoadFromDir failed: %v", err)
	}
	if cfg.Engine.ServerURL != "http://127.0.0.1:9999" {
		t.Errorf("ServerURL = %q", cfg.Engine.ServerURL)
	}
	if cfg.Generation.ContextWindow != 4096 {
		t.Errorf("ContextWindow = %d, want 4096", cfg.Generation.ContextWindow)
	}
	if cfg.DataDir != "/tmp/chats" {
		t.Errorf("DataDir = %q", cfg.DataDir)
	}
}

func TestLoadFromDirJSONFallback(t *testing.T) {
	dir := t.TempDir()
	jsonCfg := `{"generation":{"n_ctx":8192,"n_batch":128,"threads":2}}`
	os.WriteFile(filepath.Join(dir, "config.json"), []byte(jsonCfg), 0644)

	cfg, err := LoadFromDir(dir)
	if err != nil {
		t.Fatalf("LoadFromDir failed: %v", err)
	}
	if cfg.Generation.ContextWindow != 8192 {
		t.Errorf("ContextWindow = %d, want 8192", cfg.Generation.ContextWindow)
	}
}

func TestLoadOutOfRangeValuesFallBackToDefaults(t *testing.T) {
	dir := t.TempDir()
	toml := `
[generation]
n_ctx = -5
`
	os.WriteFile(filepath.Join(dir, "config.toml"), []byte(toml), 0644)

	cfg, err := LoadFromDir(dir)
	if err != nil {
		t.Fatalf("out-of-range values must load, not fail: %v", err)
	}

	// Below-minimum values come back as defaults, not minimums.
	if cfg.Generation.ContextWindow != DefaultContextWindow {
		t.Errorf("ContextWindow = %d, want default %d", cfg.Generation.ContextWindow, DefaultContextWindow)
	}
	if cfg.Generation.BatchSize != DefaultBatchSize {
		t.Errorf("BatchSize = %d, want default %d", cfg.Generation.BatchSize, DefaultBatchSize)
	}
	if cfg.Generation.Threads != DefaultThreads {
		t.Errorf("Threads = %d, want default %d", cfg.Generation.Threads, DefaultThreads)
	}
}

func TestLoadCorruptFileReturnsDefaults(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "config.toml"), []byte("<<< not toml >>>"), 0644)

	cfg, err := LoadFromDir(dir)
	if cfg == nil {
		t.Fatal("corrupt config must still yield a usable config")
	}
	if err == nil {
		t.Error("corrupt config should surface an informational error")
	}
	if cfg.Generation.ContextWindow != DefaultContextWindow {
		t.Errorf("ContextWindow = %d, want default", cfg.Generation.ContextWindow)
	}
}

func TestLoadMissingFileIsSilent(t *testing.T) {
	cfg, err := LoadFromDir(t.TempDir())
	if err != nil {
		t.Errorf("missing config should not error: %v", err)
	}
	if cfg.Generation.ContextWindow != DefaultContextWindow {
		t.Errorf("ContextWindow = %d, want default", cfg.Generation.ContextWindow)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LLAMACHAT_SERVER_URL", "http://127.0.0.1:7777")
	t.Setenv("LLAMACHAT_DATA_DIR", "/tmp/override")

	cfg, err := LoadFromDir(t.TempDir())
	if err != nil {
		t.Fatalf("LoadFromDir failed: %v", err)
	}
	if cfg.Engine.ServerURL != "http://127.0.0.1:7777" {
		t.Errorf("env ServerURL not applied: %q", cfg.Engine.ServerURL)
	}
	if cfg.DataDir != "/tmp/override" {
		t.Errorf("env DataDir not applied: %q", cfg.DataDir)
	}
}

func TestSaveTOMLRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	cfg := Default()
	cfg.Generation.ContextWindow = 4096
	if err := SaveTOML(cfg, path); err != nil {
		t.Fatalf("SaveTOML failed: %v", err)
	}

	loaded, err := LoadFromDir(dir)
	if err != nil {
		t.Fatalf("LoadFromDir failed: %v", err)
	}
	if loaded.Generation.ContextWindow != 4096 {
		t.Errorf("round trip lost ContextWindow: %d", loaded.Generation.ContextWindow)
	}
}

func TestWatcherReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "config.toml"), []byte("[generation]\nn_ctx = 4096\n"), 0644)

	reloaded := make(chan *Config, 1)
	w, err := NewWatcher(dir, 50*time.Millisecond, func(cfg *Config) {
		select {
		case reloaded <- cfg:
		default:
		}
	})
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	defer w.Close()
	if err := w.Watch(); err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	os.WriteFile(filepath.Join(dir, "config.toml"), []byte("[generation]\nn_ctx = 8192\n"), 0644)

	select {
	case cfg := <-reloaded:
		if cfg.Generation.ContextWindow != 8192 {
			t.Errorf("reloaded ContextWindow = %d, want 8192", cfg.Generation.ContextWindow)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("watcher never fired")
	}
}

func TestWatcherZeroDebounce(t *testing.T) {
	dir := t.TempDir()

	reloaded := make(chan *Config, 1)
	w, err := NewWatcher(dir, 0, func(cfg *Config) {
		select {
		case reloaded <- cfg:
		default:
		}
	})
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	defer w.Close()

	// A zero debounce is raised to the minimum instead of panicking the
	// pending-change ticker.
	if err := w.Watch(); err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	os.WriteFile(filepath.Join(dir, "config.toml"), []byte("[generation]\nn_ctx = 4096\n"), 0644)

	select {
	case cfg := <-reloaded:
		if cfg.Generation.ContextWindow != 4096 {
			t.Errorf("reloaded ContextWindow = %d, want 4096", cfg.Generation.ContextWindow)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("watcher never fired")
	}
}
