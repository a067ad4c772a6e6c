// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jeranaias/llamachat/internal/config"
)

func init() {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Show the effective configuration",
		Run:   runConfigShow,
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config.toml with the current settings",
		Run:   runConfigInit,
	}
	configCmd.AddCommand(initCmd)

	RootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	fmt.Println(TitleStyle.Render("Configuration"))
	rows := [][2]string{
		{"server_url", cfg.Engine.ServerURL},
		{"data_dir", resolveDataDir(cfg)},
		{"n_ctx", fmt.Sprintf("%d", cfg.Generation.ContextWindow)},
		{"n_batch", fmt.Sprintf("%d", cfg.Generation.BatchSize)},
		{"threads", fmt.Sprintf("%d", cfg.Generation.Threads)},
		{"max_new_tokens", fmt.Sprintf("%d", cfg.Generation.MaxNewTokens)},
	}
	for _, r := range rows {
		fmt.Printf("  %s %s\n",
			LabelStyle.Render(fmt.Sprintf("%-16s", r[0])),
			ValueStyle.Render(r[1]))
	}
}

func runConfigInit(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	if err := config.Save(cfg); err != nil {
		exitErr("save config", err)
	}

	path, _ := config.PathTOML()
	fmt.Println(SuccessStyle.Render("wrote " + path))
}
