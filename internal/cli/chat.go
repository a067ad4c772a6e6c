// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Interactive chat REPL.
//
// Interactive commands (during chat):
//   /help               Show available commands
//   /list               List stored chats
//   /new                Start a new chat
//   /switch <id>        Switch to another chat
//   /delete [id]        Delete a chat (default: the active one)
//   /persona [name]     Show or switch persona
//   /personas           List personas
//   /stop               Stop the running generation
//   /quit               Exit
//   Ctrl+C              Stop the running generation
//   Ctrl+D              Exit

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/jeranaias/llamachat/internal/config"
	"github.com/jeranaias/llamachat/internal/llama"
	"github.com/jeranaias/llamachat/internal/session"
	"github.com/jeranaias/llamachat/internal/telemetry"
)

// =============================================================================
// INPUT HISTORY
// =============================================================================

// chatInput provides input history and line editing for the REPL.
type chatInput struct {
	line        *liner.State
	historyFile string
}

func newChatInput(dataDir string) *chatInput {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	in := &chatInput{
		line:        line,
		historyFile: filepath.Join(dataDir, "input_history"),
	}
	if f, err := os.Open(in.historyFile); err == nil {
		in.line.ReadHistory(f)
		f.Close()
	}
	return in
}

func (in *chatInput) read(prompt string) (string, error) {
	input, err := in.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		in.line.AppendHistory(input)
	}
	return input, nil
}

func (in *chatInput) close() {
	if f, err := os.OpenFile(in.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
		in.line.WriteHistory(f)
		f.Close()
	}
	in.line.Close()
}

// =============================================================================
// CHAT COMMAND
// =============================================================================

func runChat(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()

	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to open chat store: %w", err)
	}

	engine := newEngine(cfg)

	// A dead server is a warning, not a startup failure: the user can
	// start it and retry without losing the session.
	ctx, cancel := context.WithTimeout(cmd.Context(), 3*time.Second)
	if err := engine.CheckRunning(ctx); err != nil {
		fmt.Println(WarningStyle.Render("warning: " + err.Error()))
		fmt.Println(DimStyle.Render("start the server, then send a message to retry"))
	}
	cancel()

	recorder, err := telemetry.NewRecorder(filepath.Join(resolveDataDir(cfg), "stats.db"))
	if err != nil {
		fmt.Fprintln(os.Stderr, WarningStyle.Render("telemetry disabled: "+err.Error()))
		recorder = nil
	} else {
		defer recorder.Close()
	}

	opts := []session.Option{}
	if recorder != nil {
		opts = append(opts, session.WithRecorder(recorder))
	}
	sess := session.NewSession(st, engine, opts...)

	// Config edits apply on the next turn; the watcher just makes the
	// reload visible.
	if cfgDir, err := config.Dir(); err == nil {
		watcher, err := config.NewWatcher(cfgDir, time.Second, func(c *config.Config) {
			fmt.Println(DimStyle.Render("config reloaded - changes apply to the next message"))
		})
		if err == nil {
			if err := watcher.Watch(); err == nil {
				defer watcher.Close()
			} else {
				watcher.Close()
			}
		}
	}

	input := newChatInput(resolveDataDir(cfg))
	defer input.close()

	printWelcome(sess, engine)

	for {
		line, err := input.read(PromptStyle.Render("you> "))
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) {
				continue // bare Ctrl+C at the prompt
			}
			fmt.Println()
			return nil // Ctrl+D
		}

		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if strings.HasPrefix(trimmed, "/") {
			if quit := handleSlashCommand(sess, trimmed); quit {
				return nil
			}
			continue
		}

		if err := sess.SendUserMessage(trimmed); err != nil {
			fmt.Println(ErrorStyle.Render(err.Error()))
			continue
		}
		streamTurn(sess)
	}
}

// printWelcome shows the banner and any existing chats.
func printWelcome(sess *session.Session, engine *llama.Client) {
	fmt.Println(TitleStyle.Render("llamachat") + DimStyle.Render("  "+engine.BaseURL()))

	chats := sess.ListChats()
	if len(chats) == 0 {
		fmt.Println(DimStyle.Render("no chats yet - just start typing, /help for commands"))
		return
	}
	fmt.Println(DimStyle.Render(fmt.Sprintf("%d stored chats - /list to browse, /switch <id> to resume", len(chats))))
}

// streamTurn drains session events for one generation turn, printing
// tokens as they arrive. Ctrl+C while streaming stops the generation
// cooperatively.
func streamTurn(sess *session.Session) {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	defer signal.Stop(sig)

	for {
		select {
		case ev := <-sess.Events():
			switch ev.Kind {
			case session.EventToken:
				fmt.Print(AssistantStyle.Render(ev.Token))

			case session.EventTurnCompleted:
				fmt.Println()
				return

			case session.EventTurnCancelled:
				fmt.Println()
				fmt.Println(WarningStyle.Render("[generation stopped]"))
				return

			case session.EventTurnFailed:
				fmt.Println()
				fmt.Println(ErrorStyle.Render("generation failed: " + ev.Err.Error()))
				return

			case session.EventNotice:
				fmt.Println()
				fmt.Println(WarningStyle.Render(ev.Notice))
			}

		case <-sig:
			// Cooperative stop; the cancelled event above ends the loop.
			_ = sess.StopGeneration()
		}
	}
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// handleSlashCommand executes one /command. Returns true to exit the REPL.
func handleSlashCommand(sess *session.Session, line string) bool {
	fields := strings.Fields(line)
	cmd := fields[0]
	arg := ""
	if len(fields) > 1 {
		arg = fields[1]
	}

	switch cmd {
	case "/quit", "/q", "/exit":
		return true

	case "/help", "/h":
		printChatHelp()

	case "/list", "/l":
		printChatList(sess)

	case "/new", "/n":
		sess.NewChat()
		fmt.Println(SuccessStyle.Render("started a new chat - send a message to begin"))

	case "/switch", "/s":
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			fmt.Println(ErrorStyle.Render("usage: /switch <id>"))
			return false
		}
		if err := sess.SwitchChat(id); err != nil {
			fmt.Println(ErrorStyle.Render(err.Error()))
			return false
		}
		drainSwitchEvents(sess)
		printTranscriptTail(sess)

	case "/delete", "/d":
		id := sess.ChatID()
		if arg != "" {
			parsed, err := strconv.ParseInt(arg, 10, 64)
			if err != nil {
				fmt.Println(ErrorStyle.Render("usage: /delete [id]"))
				return false
			}
			id = parsed
		}
		if id == 0 {
			fmt.Println(ErrorStyle.Render("no active chat to delete"))
			return false
		}
		if err := sess.DeleteChat(id); err != nil {
			fmt.Println(ErrorStyle.Render(err.Error()))
			return false
		}
		drainSwitchEvents(sess)
		fmt.Println(SuccessStyle.Render(fmt.Sprintf("deleted chat %d", id)))

	case "/persona", "/p":
		if arg == "" {
			name := sess.PersonaName()
			if name == "" {
				name = "(default)"
			}
			fmt.Println(LabelStyle.Render("persona: ") + ValueStyle.Render(name))
			return false
		}
		if err := sess.SetPersona(arg); err != nil {
			fmt.Println(ErrorStyle.Render(err.Error()))
			return false
		}
		fmt.Println(SuccessStyle.Render("persona set to " + arg))

	case "/personas":
		printPersonas()

	case "/stop":
		if err := sess.StopGeneration(); err != nil {
			fmt.Println(DimStyle.Render(err.Error()))
		}

	default:
		fmt.Println(ErrorStyle.Render("unknown command " + cmd + " - /help for commands"))
	}
	return false
}

// drainSwitchEvents consumes the pending switched/deleted notifications
// so they do not leak into the next streaming turn.
func drainSwitchEvents(sess *session.Session) {
	for {
		select {
		case <-sess.Events():
		default:
			return
		}
	}
}

func printChatHelp() {
	help := [][2]string{
		{"/list", "list stored chats"},
		{"/new", "start a new chat"},
		{"/switch <id>", "switch to another chat"},
		{"/delete [id]", "delete a chat (default: active)"},
		{"/persona [name]", "show or switch persona"},
		{"/personas", "list personas"},
		{"/stop", "stop the running generation"},
		{"/quit", "exit"},
	}
	for _, h := range help {
		fmt.Printf("  %s %s\n", LabelStyle.Render(fmt.Sprintf("%-16s", h[0])), DimStyle.Render(h[1]))
	}
}

func printChatList(sess *session.Session) {
	chats := sess.ListChats()
	if len(chats) == 0 {
		fmt.Println(DimStyle.Render("no stored chats"))
		return
	}
	active := sess.ChatID()
	for _, c := range chats {
		marker := "  "
		if c.ID == active {
			marker = SuccessStyle.Render("* ")
		}
		fmt.Printf("%s%s %s\n", marker, LabelStyle.Render(fmt.Sprintf("%4d", c.ID)), ValueStyle.Render(c.Name))
	}
}

// printTranscriptTail shows the last few messages after switching chats.
func printTranscriptTail(sess *session.Session) {
	tr := sess.Transcript()
	if tr == nil {
		return
	}
	tail := tr.LastTurns(4)
	for _, msg := range tail {
		fmt.Printf("%s %s\n",
			LabelStyle.Render(msg.Role.DisplayName()+":"),
			ValueStyle.Render(msg.Preview(100)))
	}
}
