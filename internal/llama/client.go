// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package llama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"
)

// =============================================================================
// CLIENT CONFIGURATION
// =============================================================================

// ClientConfig holds configuration options for the llama.cpp client.
type ClientConfig struct {
	// BaseURL is the llama.cpp server base URL (default: http://127.0.0.1:8080)
	// Note: Uses explicit IPv4 address instead of localhost to avoid IPv6 resolution issues on Windows
	BaseURL string

	// Timeout for non-streaming requests (default: 10s)
	Timeout time.Duration

	// StreamTimeout bounds how long a completion stream may run before it
	// is abandoned (default: 5m). Streaming requests cannot use the plain
	// http.Client timeout since a healthy stream outlives it.
	StreamTimeout time.Duration
}

// DefaultConfig returns the default client configuration.
func DefaultConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL:       "http://127.0.0.1:8080",
		Timeout:       10 * time.Second,
		StreamTimeout: 5 * time.Minute,
	}
}

// =============================================================================
// CLIENT
// =============================================================================

// Client handles communication with a local llama.cpp server.
//
// The Client is thread-safe for concurrent use.
//
// Example:
//
//	client := llama.NewClient()
//	if err := client.CheckRunning(ctx); err != nil {
//	    log.Fatal("llama.cpp server not available:", err)
//	}
//	err := client.ChatStream(ctx, req, func(chunk llama.StreamChunk) bool {
//	    fmt.Print(chunk.Content)
//	    return true
//	})
type Client struct {
	config       *ClientConfig
	httpClient   *http.Client
	streamClient *http.Client
}

// NewClient creates a new llama.cpp client with default configuration.
func NewClient() *Client {
	return NewClientWithConfig(DefaultConfig())
}

// NewClientWithConfig creates a new llama.cpp client with custom configuration.
func NewClientWithConfig(config *ClientConfig) *Client {
	if config == nil {
		config = DefaultConfig()
	}

	// Fill in defaults for any zero values
	if config.BaseURL == "" {
		config.BaseURL = "http://127.0.0.1:8080"
	}
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	if config.StreamTimeout == 0 {
		config.StreamTimeout = 5 * time.Minute
	}

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		streamClient: &http.Client{
			Timeout: config.StreamTimeout,
		},
	}
}

// BaseURL returns the configured server base URL.
func (c *Client) BaseURL() string {
	return c.config.BaseURL
}

// =============================================================================
// HEALTH CHECK
// =============================================================================

// CheckRunning verifies that the llama.cpp server is reachable and has a
// model loaded.
func (c *Client) CheckRunning(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.BaseURL+"/health", nil)
	if err != nil {
		return &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to create request", Cause: err}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return ErrTimeout
		}
		return ErrNotRunning
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &ClientError{
			Type:    ErrTypeNotRunning,
			Message: "llama.cpp server not ready: " + resp.Status,
		}
	}

	var health healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to decode health response", Cause: err}
	}
	if health.Status != "" && health.Status != "ok" {
		return &ClientError{
			Type:    ErrTypeNotRunning,
			Message: "llama.cpp server reports status " + health.Status,
		}
	}

	return nil
}

// =============================================================================
// CHAT OPERATIONS
// =============================================================================

// ChatStream sends a chat completion request and streams the response,
// invoking the callback for each chunk. Blocks until the stream completes,
// the callback returns false, or the context is cancelled.
//
// A false return from the callback abandons the stream and returns nil:
// early termination requested by the caller is not an error.
func (c *Client) ChatStream(ctx context.Context, request CompletionRequest, callback StreamCallback) error {
	request.Stream = true

	body, err := json.Marshal(request)
	if err != nil {
		return &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to marshal request", Cause: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return &ClientError{Type: ErrTypeInvalidResponse, Message: "failed to create request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.streamClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return ErrTimeout
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrNotRunning
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &ClientError{
			Type:    ErrTypeInvalidResponse,
			Message: "unexpected status from llama.cpp server: " + resp.Status,
		}
	}

	reader := NewStreamReader(resp.Body)
	return reader.Process(ctx, callback)
}
