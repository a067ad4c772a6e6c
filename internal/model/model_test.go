// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestNewMessage(t *testing.T) {
	msg := NewUserMessage("hello")

	if msg.Role != RoleUser {
		t.Errorf("Role = %q, want %q", msg.Role, RoleUser)
	}
	if msg.Content != "hello" {
		t.Errorf("Content = %q, want %q", msg.Content, "hello")
	}
	if msg.ID == "" {
		t.Error("Expected non-empty ID")
	}
	if msg.Timestamp.IsZero() {
		t.Error("Expected non-zero timestamp")
	}
	if msg.IsStreaming {
		t.Error("User message should not be streaming")
	}
}

func TestStreamingMessage(t *testing.T) {
	msg := NewStreamingMessage()

	if msg.Role != RoleAssistant {
		t.Errorf("Role = %q, want %q", msg.Role, RoleAssistant)
	}
	if !msg.IsStreaming {
		t.Error("Placeholder should be streaming")
	}
	if !msg.IsBlank() {
		t.Error("Fresh placeholder should be blank")
	}

	msg.SetStreamContent("Hel")
	msg.SetStreamContent("Hello")
	if msg.Content != "Hello" {
		t.Errorf("Content = %q, want %q", msg.Content, "Hello")
	}

	msg.Finalize("Hello there")
	if msg.IsStreaming {
		t.Error("Finalized message should not be streaming")
	}
	if msg.Content != "Hello there" {
		t.Errorf("Content = %q, want %q", msg.Content, "Hello there")
	}

	// Finalized messages are immutable to streaming updates.
	msg.SetStreamContent("mutated")
	if msg.Content != "Hello there" {
		t.Error("SetStreamContent must be a no-op after Finalize")
	}
}

func TestMessageAnnotate(t *testing.T) {
	// Annotation on an empty placeholder replaces the content.
	msg := NewStreamingMessage()
	msg.Annotate("[generation stopped]")
	if msg.Content != "[generation stopped]" {
		t.Errorf("Content = %q", msg.Content)
	}
	if msg.IsStreaming {
		t.Error("Annotated message should not be streaming")
	}

	// Annotation on a partial keeps the partial text visible.
	msg = NewStreamingMessage()
	msg.SetStreamContent("partial answer ")
	msg.Annotate("[generation stopped]")
	if !strings.HasPrefix(msg.Content, "partial answer") {
		t.Errorf("partial text lost: %q", msg.Content)
	}
	if !strings.HasSuffix(msg.Content, "[generation stopped]") {
		t.Errorf("notice missing: %q", msg.Content)
	}
}

func TestMessageJSONShape(t *testing.T) {
	msg := NewUserMessage("hi")
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	// Only timestamp, role and content are persisted.
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	for _, want := range []string{"timestamp", "role", "content"} {
		if _, ok := fields[want]; !ok {
			t.Errorf("missing persisted field %q", want)
		}
	}
	if len(fields) != 3 {
		t.Errorf("persisted fields = %d, want 3 (%v)", len(fields), fields)
	}
}

func TestTranscriptLastTurns(t *testing.T) {
	tr := NewTranscript(1)
	for i := 0; i < 15; i++ {
		tr.Append(*NewUserMessage("m" + string(rune('a'+i))))
	}

	last := tr.LastTurns(10)
	if len(last) != 10 {
		t.Fatalf("LastTurns(10) = %d entries, want 10", len(last))
	}
	if last[0].Content != "mf" {
		t.Errorf("window should start at the 6th message, got %q", last[0].Content)
	}
	if last[9].Content != "mo" {
		t.Errorf("window should end at the newest message, got %q", last[9].Content)
	}

	// Short histories come back whole.
	short := NewTranscript(2)
	short.Append(*NewUserMessage("only"))
	if got := short.LastTurns(10); len(got) != 1 {
		t.Errorf("LastTurns on short history = %d entries, want 1", len(got))
	}

	if got := tr.LastTurns(0); got != nil {
		t.Error("LastTurns(0) should be nil")
	}
}

func TestTranscriptClone(t *testing.T) {
	tr := NewTranscript(1)
	tr.Append(*NewUserMessage("hi"))

	clone := tr.Clone()
	clone.Append(*NewUserMessage("extra"))

	if tr.Len() != 1 {
		t.Errorf("clone append leaked into original: len = %d", tr.Len())
	}
	if clone.Len() != 2 {
		t.Errorf("clone len = %d, want 2", clone.Len())
	}
}

func TestTranscriptHelpers(t *testing.T) {
	tr := NewTranscript(1)
	if tr.FirstUserMessage() != nil {
		t.Error("empty transcript has no first user message")
	}
	if !tr.UpdatedAt().IsZero() {
		t.Error("empty transcript UpdatedAt should be zero")
	}

	tr.Append(*NewMessage(RoleSystem, "setup"))
	tr.Append(*NewUserMessage("question"))
	tr.Append(*NewMessage(RoleAssistant, "answer"))

	first := tr.FirstUserMessage()
	if first == nil || first.Content != "question" {
		t.Errorf("FirstUserMessage = %+v", first)
	}
	if tr.UpdatedAt().IsZero() {
		t.Error("UpdatedAt should track the newest message")
	}
}

func TestPersonaValidate(t *testing.T) {
	p := Persona{Name: "x", Emoji: "🙂", SystemPrompt: "be nice"}
	if err := p.Validate(); err != nil {
		t.Errorf("valid persona rejected: %v", err)
	}

	p = Persona{Name: "  ", SystemPrompt: "be nice"}
	if err := p.Validate(); err != ErrPersonaNameEmpty {
		t.Errorf("expected ErrPersonaNameEmpty, got %v", err)
	}

	p = Persona{Name: "x", SystemPrompt: ""}
	if err := p.Validate(); err != ErrPersonaPromptEmpty {
		t.Errorf("expected ErrPersonaPromptEmpty, got %v", err)
	}
}

func TestRoleDisplayName(t *testing.T) {
	tests := []struct {
		role Role
		want string
	}{
		{RoleUser, "You"},
		{RoleAssistant, "Assistant"},
		{RoleSystem, "System"},
		{Role("weird"), "weird"},
	}
	for _, tc := range tests {
		if got := tc.role.DisplayName(); got != tc.want {
			t.Errorf("DisplayName(%q) = %q, want %q", tc.role, got, tc.want)
		}
	}
}
