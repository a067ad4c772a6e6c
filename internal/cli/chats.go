// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func init() {
	chatsCmd := &cobra.Command{
		Use:   "chats",
		Short: "List stored chats",
		Run:   runChatsList,
	}

	deleteCmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a stored chat",
		Args:  cobra.ExactArgs(1),
		Run:   runChatsDelete,
	}
	chatsCmd.AddCommand(deleteCmd)

	showCmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a chat transcript",
		Args:  cobra.ExactArgs(1),
		Run:   runChatsShow,
	}
	chatsCmd.AddCommand(showCmd)

	RootCmd.AddCommand(chatsCmd)
}

func runChatsList(cmd *cobra.Command, args []string) {
	st, err := openStore(loadConfig())
	if err != nil {
		exitErr("open store", err)
	}

	chats := st.ListChats()
	if len(chats) == 0 {
		fmt.Println(DimStyle.Render("no stored chats"))
		return
	}

	fmt.Println(TitleStyle.Render("Chats"))
	for _, c := range chats {
		fmt.Printf("  %s %s\n", LabelStyle.Render(fmt.Sprintf("%4d", c.ID)), ValueStyle.Render(c.Name))
	}
}

func runChatsDelete(cmd *cobra.Command, args []string) {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		exitErr("parse id", err)
	}

	st, err := openStore(loadConfig())
	if err != nil {
		exitErr("open store", err)
	}

	if err := st.DeleteChat(id); err != nil {
		exitErr("delete chat", err)
	}
	fmt.Println(SuccessStyle.Render(fmt.Sprintf("deleted chat %d", id)))
}

func runChatsShow(cmd *cobra.Command, args []string) {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		exitErr("parse id", err)
	}

	st, err := openStore(loadConfig())
	if err != nil {
		exitErr("open store", err)
	}

	tr, err := st.LoadTranscript(id)
	if err != nil {
		exitErr("load transcript", err)
	}

	for _, msg := range tr.History {
		fmt.Printf("%s %s\n",
			LabelStyle.Render(msg.Role.DisplayName()+":"),
			ValueStyle.Render(msg.Content))
		fmt.Println()
	}
}
