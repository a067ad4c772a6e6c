// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "strings"

// =============================================================================
// PERSONA
// =============================================================================

// Persona is a named system-prompt profile. Personas are referenced by name
// from session state; their instruction text is injected into the prompt at
// build time, never embedded into a transcript.
type Persona struct {
	Name         string `json:"name"`
	Emoji        string `json:"emoji"`
	SystemPrompt string `json:"sysprompt"`
}

// Validate checks that the persona can be saved.
func (p *Persona) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrPersonaNameEmpty
	}
	if strings.TrimSpace(p.SystemPrompt) == "" {
		return ErrPersonaPromptEmpty
	}
	return nil
}

// DefaultPersonas returns the built-in persona set seeded into a fresh
// persona index on first use.
func DefaultPersonas() []Persona {
	return []Persona{
		{
			Name:         "assistant",
			Emoji:        "🤖",
			SystemPrompt: "You are a helpful and direct assistant.",
		},
		{
			Name:         "coder",
			Emoji:        "💻",
			SystemPrompt: "You are an expert programmer. Answer with concise, working code and short explanations.",
		},
		{
			Name:         "teacher",
			Emoji:        "📚",
			SystemPrompt: "You are a patient teacher. Explain step by step and check understanding before moving on.",
		},
	}
}
