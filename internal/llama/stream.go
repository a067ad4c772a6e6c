// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package llama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"strings"
)

// ssePrefix marks a data line of a server-sent event stream.
var ssePrefix = []byte("data: ")

// sseDone is the terminal data payload of an OpenAI-style stream.
const sseDone = "[DONE]"

// =============================================================================
// STREAM READER
// =============================================================================

// StreamReader parses a llama.cpp SSE completion stream line by line.
type StreamReader struct {
	reader *bufio.Reader
	// strings.Builder avoids quadratic allocations while accumulating
	accumulator strings.Builder
	chunkCount  int
}

// NewStreamReader creates a new stream reader from an io.Reader.
func NewStreamReader(r io.Reader) *StreamReader {
	return &StreamReader{
		reader: bufio.NewReader(r),
	}
}

// Process reads the stream and calls the callback for each chunk. Blocks
// until the stream is complete, the callback returns false, or the context
// is cancelled.
func (s *StreamReader) Process(ctx context.Context, callback StreamCallback) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
			chunk, err := s.readChunk()
			if err != nil {
				if err == io.EOF {
					return nil
				}
				return &ClientError{Type: ErrTypeInvalidResponse, Message: "stream read failed", Cause: err}
			}

			if chunk != nil {
				if !callback(*chunk) {
					return nil
				}
				if chunk.Done {
					return nil
				}
			}
		}
	}
}

// readChunk reads and parses a single SSE line from the stream. Returns
// (nil, nil) for lines that carry no chunk (blank keep-alives, comments,
// malformed frames).
func (s *StreamReader) readChunk() (*StreamChunk, error) {
	line, err := s.reader.ReadBytes('\n')
	if err != nil {
		if err == io.EOF && len(bytes.TrimSpace(line)) == 0 {
			return nil, io.EOF
		}
		// Try to process the last line even on EOF
		if len(line) == 0 {
			return nil, err
		}
	}

	line = bytes.TrimSpace(line)

	// Skip blank keep-alive lines and SSE comments
	if len(line) == 0 || line[0] == ':' {
		return nil, nil
	}
	if !bytes.HasPrefix(line, ssePrefix) {
		return nil, nil
	}

	payload := bytes.TrimSpace(bytes.TrimPrefix(line, ssePrefix))
	if string(payload) == sseDone {
		return &StreamChunk{Done: true}, nil
	}

	var frame streamFrame
	if err := json.Unmarshal(payload, &frame); err != nil {
		// Skip malformed frames
		return nil, nil
	}
	if len(frame.Choices) == 0 {
		return nil, nil
	}

	choice := frame.Choices[0]
	chunk := &StreamChunk{Content: choice.Delta.Content}

	if choice.Delta.Content != "" {
		s.accumulator.WriteString(choice.Delta.Content)
		s.chunkCount++
	}

	if choice.FinishReason != nil && *choice.FinishReason != "" {
		chunk.Done = true
		chunk.FinishReason = *choice.FinishReason
	}

	return chunk, nil
}

// GetAccumulated returns all accumulated content.
func (s *StreamReader) GetAccumulated() string {
	return s.accumulator.String()
}

// ChunkCount returns the number of non-empty content chunks seen so far.
func (s *StreamReader) ChunkCount() int {
	return s.chunkCount
}
