// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/llamachat/internal/model"
)

func init() {
	personasCmd := &cobra.Command{
		Use:   "personas",
		Short: "List personas",
		Run:   func(cmd *cobra.Command, args []string) { printPersonas() },
	}

	setCmd := &cobra.Command{
		Use:   "set <name> <system prompt...>",
		Short: "Create or update a persona",
		Args:  cobra.MinimumNArgs(2),
		Run:   runPersonaSet,
	}
	setCmd.Flags().String("emoji", "", "Emoji shown next to the persona name")
	personasCmd.AddCommand(setCmd)

	deleteCmd := &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a persona",
		Args:  cobra.ExactArgs(1),
		Run:   runPersonaDelete,
	}
	personasCmd.AddCommand(deleteCmd)

	RootCmd.AddCommand(personasCmd)
}

// printPersonas lists all personas; shared with the REPL's /personas.
func printPersonas() {
	st, err := openStore(loadConfig())
	if err != nil {
		exitErr("open store", err)
	}

	personas, err := st.ListPersonas()
	if err != nil {
		exitErr("list personas", err)
	}

	for _, p := range personas {
		name := p.Name
		if p.Emoji != "" {
			name = p.Emoji + " " + name
		}
		fmt.Printf("  %s %s\n",
			LabelStyle.Render(fmt.Sprintf("%-16s", name)),
			DimStyle.Render(p.SystemPrompt))
	}
}

func runPersonaSet(cmd *cobra.Command, args []string) {
	emoji, _ := cmd.Flags().GetString("emoji")

	st, err := openStore(loadConfig())
	if err != nil {
		exitErr("open store", err)
	}

	p := model.Persona{
		Name:         args[0],
		Emoji:        emoji,
		SystemPrompt: strings.Join(args[1:], " "),
	}
	if err := st.SavePersona(p); err != nil {
		exitErr("save persona", err)
	}
	fmt.Println(SuccessStyle.Render("saved persona " + p.Name))
}

func runPersonaDelete(cmd *cobra.Command, args []string) {
	st, err := openStore(loadConfig())
	if err != nil {
		exitErr("open store", err)
	}

	if err := st.DeletePersona(args[0]); err != nil {
		exitErr("delete persona", err)
	}
	fmt.Println(SuccessStyle.Render("deleted persona " + args[0]))
}
