// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package llama

import "fmt"

// ErrorType categorizes client errors for branching without string
// comparison.
type ErrorType string

const (
	// ErrTypeNotRunning indicates the server is unreachable.
	ErrTypeNotRunning ErrorType = "not_running"

	// ErrTypeTimeout indicates a request or stream timed out.
	ErrTypeTimeout ErrorType = "timeout"

	// ErrTypeInvalidResponse indicates the server replied with an
	// unexpected status or an unparseable body.
	ErrTypeInvalidResponse ErrorType = "invalid_response"
)

// ClientError represents an error from the llama.cpp client.
type ClientError struct {
	Type    ErrorType
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *ClientError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *ClientError) Unwrap() error {
	return e.Cause
}

// Is matches client errors by type so sentinels work with errors.Is.
func (e *ClientError) Is(target error) bool {
	t, ok := target.(*ClientError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// Sentinel errors for easy checking.
var (
	ErrNotRunning = &ClientError{
		Type:    ErrTypeNotRunning,
		Message: "llama.cpp server is not running",
	}
	ErrTimeout = &ClientError{
		Type:    ErrTypeTimeout,
		Message: "request to llama.cpp server timed out",
	}
)
