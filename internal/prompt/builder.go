// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package prompt assembles model-ready message lists from transcripts.
package prompt

import (
	"github.com/jeranaias/llamachat/internal/llama"
	"github.com/jeranaias/llamachat/internal/model"
)

// DefaultSystemPrompt is used when no persona is active.
const DefaultSystemPrompt = "You are a helpful and direct assistant."

// DefaultMaxTurns bounds how many recent transcript messages are sent to
// the model. Older history stays on disk but falls out of the prompt.
const DefaultMaxTurns = 10

// Builder converts a transcript into the message list sent to the engine.
// Building is pure: the same transcript and persona always produce the
// same output, and the transcript is never mutated.
type Builder struct {
	// MaxTurns is the history window size. Zero means DefaultMaxTurns.
	MaxTurns int
}

// NewBuilder returns a builder with the default window.
func NewBuilder() *Builder {
	return &Builder{MaxTurns: DefaultMaxTurns}
}

// Build produces the prompt for a generation turn: exactly one system
// message first, then the last MaxTurns transcript messages in order.
// A nil persona falls back to DefaultSystemPrompt.
func (b *Builder) Build(t *model.Transcript, persona *model.Persona) []llama.Message {
	maxTurns := b.MaxTurns
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}

	system := DefaultSystemPrompt
	if persona != nil && persona.SystemPrompt != "" {
		system = persona.SystemPrompt
	}

	window := t.LastTurns(maxTurns)
	messages := make([]llama.Message, 0, len(window)+1)
	messages = append(messages, llama.NewSystemMessage(system))
	for _, msg := range window {
		messages = append(messages, llama.Message{
			Role:    msg.Role.String(),
			Content: msg.Content,
		})
	}
	return messages
}
