// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli implements the llamachat CLI commands.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jeranaias/llamachat/internal/config"
	"github.com/jeranaias/llamachat/internal/llama"
	"github.com/jeranaias/llamachat/internal/store"
)

var (
	dataDirFlag   string
	serverURLFlag string
)

// RootCmd is the top-level command. Running it without a subcommand
// starts the interactive chat.
var RootCmd = &cobra.Command{
	Use:   "llamachat",
	Short: "Terminal chat for a local llama.cpp server",
	Long: "llamachat is a terminal chat client for a local llama.cpp server.\n" +
		"Conversations are stored as plain JSON files under ~/.llamachat and\n" +
		"replies stream token by token with Ctrl+C cancellation.",
	RunE: runChat,
}

// Execute runs the CLI.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&dataDirFlag, "data-dir", "d", "", "Storage directory (default: $LLAMACHAT_DATA_DIR or ~/.llamachat)")
	RootCmd.PersistentFlags().StringVar(&serverURLFlag, "server", "", "llama.cpp server URL (default: from config)")
}

// loadConfig reads the effective configuration with flag overrides applied.
func loadConfig() *config.Config {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, WarningStyle.Render("config: "+err.Error()))
	}
	if serverURLFlag != "" {
		cfg.Engine.ServerURL = serverURLFlag
	}
	if dataDirFlag != "" {
		cfg.DataDir = dataDirFlag
	}
	return cfg
}

// resolveDataDir returns the storage directory for the current invocation.
func resolveDataDir(cfg *config.Config) string {
	if cfg.DataDir != "" {
		return cfg.DataDir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".llamachat"
	}
	return filepath.Join(home, ".llamachat")
}

// openStore opens the chat store for the current invocation.
func openStore(cfg *config.Config) (*store.ChatStore, error) {
	return store.NewChatStoreWithDir(resolveDataDir(cfg))
}

// newEngine builds the llama.cpp client from config.
func newEngine(cfg *config.Config) *llama.Client {
	return llama.NewClientWithConfig(&llama.ClientConfig{
		BaseURL: cfg.Engine.ServerURL,
	})
}

func exitErr(msg string, err error) {
	fmt.Fprintln(os.Stderr, ErrorStyle.Render(fmt.Sprintf("error: %s: %v", msg, err)))
	os.Exit(1)
}
