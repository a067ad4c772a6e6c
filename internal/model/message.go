// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for chats, transcripts and personas.
package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// ROLE TYPE
// =============================================================================

// Role represents the sender of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// String returns the string representation of the role.
func (r Role) String() string {
	return string(r)
}

// DisplayName returns a human-readable name for the role.
func (r Role) DisplayName() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	case RoleSystem:
		return "System"
	default:
		return string(r)
	}
}

// Valid reports whether the role is one of the three known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant || r == RoleSystem
}

// =============================================================================
// MESSAGE TYPE
// =============================================================================

// Message represents a single message in a transcript.
//
// Persisted fields follow the transcript file format: timestamp, role and
// content only. The ID exists so observers can correlate streaming updates
// to the same in-memory message; it is never written to disk.
type Message struct {
	Timestamp time.Time `json:"timestamp"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`

	// Identity, in-memory only.
	ID string `json:"-"`

	// Streaming state, in-memory only. While IsStreaming is true the
	// message is the transient placeholder that accumulates tokens; it is
	// the one message whose Content may be rewritten in place.
	IsStreaming bool `json:"-"`
}

// NewMessage creates a new message with a generated ID.
func NewMessage(role Role, content string) *Message {
	return &Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: time.Now(),
	}
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) *Message {
	return NewMessage(RoleUser, content)
}

// NewStreamingMessage creates the empty assistant placeholder that will
// accumulate tokens during generation.
func NewStreamingMessage() *Message {
	return &Message{
		ID:          uuid.NewString(),
		Role:        RoleAssistant,
		Timestamp:   time.Now(),
		IsStreaming: true,
	}
}

// SetStreamContent replaces the placeholder content with the accumulated
// text so far. No-op on a finalized message.
func (m *Message) SetStreamContent(accumulated string) {
	if m.IsStreaming {
		m.Content = accumulated
	}
}

// Finalize completes streaming: the placeholder becomes a regular immutable
// message carrying the final text.
func (m *Message) Finalize(finalText string) {
	if !m.IsStreaming {
		return
	}
	m.Content = finalText
	m.IsStreaming = false
	m.Timestamp = time.Now()
}

// Annotate finalizes the placeholder with a notice appended to whatever
// partial content it holds. Used for cancelled and failed turns, which are
// never persisted.
func (m *Message) Annotate(notice string) {
	if !m.IsStreaming {
		return
	}
	partial := strings.TrimSpace(m.Content)
	if partial == "" {
		m.Content = notice
	} else {
		m.Content = partial + "\n\n" + notice
	}
	m.IsStreaming = false
}

// Snapshot returns a copy of the message detached from future streaming
// updates. Observers receive snapshots so they can read Content freely
// while the placeholder keeps accumulating.
func (m *Message) Snapshot() *Message {
	c := *m
	return &c
}

// IsBlank reports whether the content is empty or whitespace-only.
func (m *Message) IsBlank() bool {
	return strings.TrimSpace(m.Content) == ""
}

// Preview returns the content truncated to maxRunes characters on one line.
func (m *Message) Preview(maxRunes int) string {
	s := strings.ReplaceAll(m.Content, "\n", " ")
	runes := []rune(s)
	if len(runes) <= maxRunes {
		return s
	}
	if maxRunes <= 3 {
		return string(runes[:maxRunes])
	}
	return string(runes[:maxRunes-3]) + "..."
}
