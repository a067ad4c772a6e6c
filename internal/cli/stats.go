// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/jeranaias/llamachat/internal/telemetry"
)

func init() {
	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show recent generation statistics",
		Run:   runStats,
	}
	statsCmd.Flags().IntP("limit", "l", 20, "Max rows")
	RootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")
	cfg := loadConfig()

	recorder, err := telemetry.NewRecorder(filepath.Join(resolveDataDir(cfg), "stats.db"))
	if err != nil {
		exitErr("open stats", err)
	}
	defer recorder.Close()

	stats, err := recorder.List(limit)
	if err != nil {
		exitErr("list stats", err)
	}
	if len(stats) == 0 {
		fmt.Println(DimStyle.Render("no recorded turns yet"))
		return
	}

	fmt.Println(TitleStyle.Render("Recent turns"))
	fmt.Println(DimStyle.Render(fmt.Sprintf("  %-5s %-20s %-10s %8s %8s %10s", "chat", "started", "outcome", "frags", "chars", "chars/s")))
	for _, s := range stats {
		style := ValueStyle
		switch s.Outcome {
		case telemetry.OutcomeCancelled:
			style = WarningStyle
		case telemetry.OutcomeFailed:
			style = ErrorStyle
		}
		fmt.Println(style.Render(fmt.Sprintf("  %-5d %-20s %-10s %8d %8d %10.1f",
			s.ChatID,
			s.StartedAt.Format("2006-01-02 15:04:05"),
			s.Outcome,
			s.Fragments,
			s.Chars,
			s.CharsPerSec())))
	}
}
