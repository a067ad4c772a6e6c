// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package llama provides an HTTP client for a local llama.cpp server,
// including streaming chat completions over SSE.
package llama

// =============================================================================
// CHAT TYPES
// =============================================================================

// Message represents a single message in a chat completion request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// NewSystemMessage creates a system message.
func NewSystemMessage(content string) Message {
	return Message{Role: "system", Content: content}
}

// NewUserMessage creates a user message.
func NewUserMessage(content string) Message {
	return Message{Role: "user", Content: content}
}

// NewAssistantMessage creates an assistant message.
func NewAssistantMessage(content string) Message {
	return Message{Role: "assistant", Content: content}
}

// CompletionRequest is the request body for a streaming chat completion.
// Zero-valued tuning fields are omitted and fall back to server defaults.
type CompletionRequest struct {
	Messages      []Message `json:"messages"`
	Stream        bool      `json:"stream"`
	MaxNewTokens  int       `json:"n_predict,omitempty"`
	Stop          []string  `json:"stop,omitempty"`
	ContextWindow int       `json:"n_ctx,omitempty"`
	BatchSize     int       `json:"n_batch,omitempty"`
	Threads       int       `json:"n_threads,omitempty"`
}

// StreamChunk is one decoded fragment of a streaming completion.
type StreamChunk struct {
	// Content is the token text of this fragment. May be empty on
	// role-only or finish frames.
	Content string

	// Done is true on the final frame of the stream.
	Done bool

	// FinishReason is set on the final frame ("stop", "length", ...).
	FinishReason string
}

// StreamCallback receives each chunk of a streaming completion. Returning
// false stops consumption: the client abandons the stream and ChatStream
// returns nil. This is the cooperative cancellation point checked between
// fragments.
type StreamCallback func(chunk StreamChunk) bool

// DefaultStopSequences are end-of-turn markers emitted by common model
// families. The server halts generation when any of them appears, which
// keeps small instruct models from rambling past their turn.
func DefaultStopSequences() []string {
	return []string{
		"</s>",
		"<|end|>",
		"<|eot_id|>",
		"<|end_of_text|>",
		"<|im_end|>",
		"<|EOT|>",
		"<|END_OF_TURN_TOKEN|>",
		"<|end_of_turn|>",
		"<|endoftext|>",
	}
}

// =============================================================================
// WIRE TYPES (server responses)
// =============================================================================

// streamDelta is the incremental payload inside a streamed choice.
type streamDelta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

// streamChoice is one choice of a streamed completion frame.
type streamChoice struct {
	Delta        streamDelta `json:"delta"`
	FinishReason *string     `json:"finish_reason"`
}

// streamFrame is a single SSE data frame of a chat completion stream.
type streamFrame struct {
	Choices []streamChoice `json:"choices"`
}

// healthResponse is the /health endpoint payload.
type healthResponse struct {
	Status string `json:"status"`
}
