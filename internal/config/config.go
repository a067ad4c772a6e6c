// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides unified configuration loading for llamachat.
//
// Supports both TOML and JSON configuration formats, with sensible defaults
// and environment variable overrides.
//
// Configuration file locations (in order of precedence):
//   - ~/.llamachat/config.toml
//   - ~/.llamachat/config.json
//   - Built-in defaults
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/llamachat/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete llamachat configuration.
type Config struct {
	// Engine settings (llama.cpp server)
	Engine EngineConfig `toml:"engine" json:"engine"`

	// Generation tuning passed through to the server per request
	Generation GenerationConfig `toml:"generation" json:"generation"`

	// DataDir overrides the chat/persona storage directory
	// (default ~/.llamachat)
	DataDir string `toml:"data_dir" json:"data_dir"`
}

// EngineConfig contains llama.cpp server settings.
type EngineConfig struct {
	// ServerURL is the llama.cpp server base URL
	ServerURL string `toml:"server_url" json:"server_url"`
}

// GenerationConfig contains generation tuning parameters. Values below
// their minimum are replaced with the default, never clamped upward: a
// nonsense value means the user edited the file by hand, and the default
// is safer than the smallest legal value.
type GenerationConfig struct {
	// ContextWindow is the prompt context size in tokens (min 128)
	ContextWindow int `toml:"n_ctx" json:"n_ctx"`
	// BatchSize is the prompt processing batch size (min 1)
	BatchSize int `toml:"n_batch" json:"n_batch"`
	// Threads is the inference thread count (min 1)
	Threads int `toml:"threads" json:"threads"`
	// MaxNewTokens bounds the length of one generated reply (min 1)
	MaxNewTokens int `toml:"max_new_tokens" json:"max_new_tokens"`
}

// Defaults for generation tuning.
const (
	DefaultContextWindow = 2048
	DefaultBatchSize     = 256
	DefaultThreads       = 4
	DefaultMaxNewTokens  = 256

	MinContextWindow = 128
)

// Default returns the built-in default configuration.
func Default() *Config {
	return &Config{
		Engine: EngineConfig{
			ServerURL: "http://127.0.0.1:8080",
		},
		Generation: GenerationConfig{
			ContextWindow: DefaultContextWindow,
			BatchSize:     DefaultBatchSize,
			Threads:       DefaultThreads,
			MaxNewTokens:  DefaultMaxNewTokens,
		},
	}
}

// =============================================================================
// PATHS
// =============================================================================

// Dir returns the llamachat configuration directory (~/.llamachat).
func Dir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(homeDir, ".llamachat"), nil
}

// PathTOML returns the TOML config file path.
func PathTOML() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// PathJSON returns the JSON config file path.
func PathJSON() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// =============================================================================
// LOADING
// =============================================================================

// Load reads the configuration, trying TOML first and JSON as fallback.
// A missing or unreadable file is never fatal: Load always returns a
// usable config, with a non-nil informational error when a file existed
// but could not be used.
func Load() (*Config, error) {
	cfg := Default()
	var loadErr error

	// Try TOML first
	if tomlPath, err := PathTOML(); err == nil {
		if _, statErr := os.Stat(tomlPath); statErr == nil {
			if err := LoadTOML(cfg, tomlPath); err != nil {
				loadErr = fmt.Errorf("failed to load TOML config: %w", err)
			} else {
				cfg.ApplyEnvOverrides()
				cfg.Sanitize()
				return cfg, nil
			}
		}
	}

	// Try JSON as fallback
	if jsonPath, err := PathJSON(); err == nil {
		if _, statErr := os.Stat(jsonPath); statErr == nil {
			if err := LoadJSON(cfg, jsonPath); err != nil {
				loadErr = fmt.Errorf("failed to load JSON config: %w", err)
			} else {
				cfg.ApplyEnvOverrides()
				cfg.Sanitize()
				return cfg, nil
			}
		}
	}

	// Return defaults (with any load error for informational purposes)
	cfg = Default()
	cfg.ApplyEnvOverrides()
	cfg.Sanitize()
	return cfg, loadErr
}

// LoadFromDir reads the configuration from a specific directory instead
// of ~/.llamachat. Same semantics as Load.
func LoadFromDir(dir string) (*Config, error) {
	cfg := Default()
	var loadErr error

	tomlPath := filepath.Join(dir, "config.toml")
	if _, statErr := os.Stat(tomlPath); statErr == nil {
		if err := LoadTOML(cfg, tomlPath); err != nil {
			loadErr = fmt.Errorf("failed to load TOML config: %w", err)
		} else {
			cfg.ApplyEnvOverrides()
			cfg.Sanitize()
			return cfg, nil
		}
	}

	jsonPath := filepath.Join(dir, "config.json")
	if _, statErr := os.Stat(jsonPath); statErr == nil {
		if err := LoadJSON(cfg, jsonPath); err != nil {
			loadErr = fmt.Errorf("failed to load JSON config: %w", err)
		} else {
			cfg.ApplyEnvOverrides()
			cfg.Sanitize()
			return cfg, nil
		}
	}

	cfg = Default()
	cfg.ApplyEnvOverrides()
	cfg.Sanitize()
	return cfg, loadErr
}

// LoadTOML decodes a TOML config file into cfg.
func LoadTOML(cfg *Config, path string) error {
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// LoadJSON decodes a JSON config file into cfg.
func LoadJSON(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// ApplyEnvOverrides applies environment variable overrides to the config.
func (c *Config) ApplyEnvOverrides() {
	if url := os.Getenv("LLAMACHAT_SERVER_URL"); url != "" {
		c.Engine.ServerURL = url
	}
	if dir := os.Getenv("LLAMACHAT_DATA_DIR"); dir != "" {
		c.DataDir = dir
	}
}

// Sanitize replaces out-of-range generation values with their defaults.
// Below-minimum values fall back to the default, not the minimum.
func (c *Config) Sanitize() {
	if c.Engine.ServerURL == "" {
		c.Engine.ServerURL = "http://127.0.0.1:8080"
	}
	if c.Generation.ContextWindow < MinContextWindow {
		c.Generation.ContextWindow = DefaultContextWindow
	}
	if c.Generation.BatchSize < 1 {
		c.Generation.BatchSize = DefaultBatchSize
	}
	if c.Generation.Threads < 1 {
		c.Generation.Threads = DefaultThreads
	}
	if c.Generation.MaxNewTokens < 1 {
		c.Generation.MaxNewTokens = DefaultMaxNewTokens
	}
}

// =============================================================================
// SAVING
// =============================================================================

// Save writes the config to the TOML path atomically.
func Save(cfg *Config) error {
	path, err := PathTOML()
	if err != nil {
		return err
	}
	return SaveTOML(cfg, path)
}

// SaveTOML writes the config as TOML to the given path.
func SaveTOML(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode TOML: %w", err)
	}

	return util.AtomicWriteFile(path, buf.Bytes(), 0600)
}
