// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import "time"

// =============================================================================
// CHAT SUMMARY
// =============================================================================

// ChatSummary is one entry of the chat index. IDs are small monotonically
// increasing integers so they stay human-debuggable; the name is derived
// from the first user message at creation time and never changes.
type ChatSummary struct {
	ID   int64
	Name string
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

// Transcript is the full ordered message history for one chat.
//
// History is append-only: persisted entries are never rewritten. The only
// mutable message in the system is the session's streaming placeholder,
// which lives outside the transcript until the turn settles.
type Transcript struct {
	ID      int64     `json:"-"`
	History []Message `json:"history"`
}

// NewTranscript creates an empty transcript for the given chat id.
func NewTranscript(id int64) *Transcript {
	return &Transcript{ID: id, History: []Message{}}
}

// Append adds a message to the end of the history.
func (t *Transcript) Append(msg Message) {
	t.History = append(t.History, msg)
}

// Len returns the number of messages in the history.
func (t *Transcript) Len() int {
	return len(t.History)
}

// LastTurns returns the last n messages in chronological order. The
// returned slice aliases the history and must not be mutated.
func (t *Transcript) LastTurns(n int) []Message {
	if n <= 0 || len(t.History) == 0 {
		return nil
	}
	if len(t.History) <= n {
		return t.History
	}
	return t.History[len(t.History)-n:]
}

// Clone creates a deep copy of the transcript. The session hands clones to
// the prompt builder so an in-flight turn never observes later appends.
func (t *Transcript) Clone() *Transcript {
	clone := &Transcript{
		ID:      t.ID,
		History: make([]Message, len(t.History)),
	}
	copy(clone.History, t.History)
	return clone
}

// FirstUserMessage returns the first user message, or nil if none exists.
func (t *Transcript) FirstUserMessage() *Message {
	for i := range t.History {
		if t.History[i].Role == RoleUser {
			return &t.History[i]
		}
	}
	return nil
}

// UpdatedAt returns the timestamp of the most recent message, or the zero
// time for an empty transcript.
func (t *Transcript) UpdatedAt() time.Time {
	if len(t.History) == 0 {
		return time.Time{}
	}
	return t.History[len(t.History)-1].Timestamp
}
