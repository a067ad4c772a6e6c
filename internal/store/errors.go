// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package store provides durable, file-backed persistence for chats,
// transcripts and personas.
package store

// StoreError represents a storage-related error.
// It implements the error interface and can be compared using errors.Is.
type StoreError struct {
	Message string
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	return e.Message
}

// Is implements errors.Is support for comparing store errors.
func (e *StoreError) Is(target error) bool {
	t, ok := target.(*StoreError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}

// Sentinel errors for easy checking.
var (
	// ErrChatNotFound is returned when a chat id is absent from the index
	// or its transcript file is missing or unreadable. Both cases mean
	// "chat no longer exists" - callers go to the empty state, they never
	// treat this as corruption.
	ErrChatNotFound = &StoreError{Message: "chat not found"}

	// ErrPersonaNotFound is returned when a persona name is not in the
	// persona index.
	ErrPersonaNotFound = &StoreError{Message: "persona not found"}
)
