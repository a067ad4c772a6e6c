// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package generate drives a single streaming generation turn with
// cooperative cancellation.
package generate

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/jeranaias/llamachat/internal/llama"
)

// =============================================================================
// STATES AND EVENTS
// =============================================================================

// State is the lifecycle phase of a controller.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateCompleted
	StateCancelled
	StateFailed
)

// String returns the state name for logs and tests.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// EventKind tags generation events.
type EventKind int

const (
	// EventToken carries one streamed fragment plus the accumulated text.
	EventToken EventKind = iota

	// EventCompleted is terminal: generation finished normally.
	EventCompleted

	// EventCancelled is terminal: generation was stopped cooperatively.
	// Text holds whatever partial output had accumulated.
	EventCancelled

	// EventFailed is terminal: the engine reported an error.
	EventFailed
)

// Event is one item of a generation event stream. Exactly one terminal
// event (Completed, Cancelled or Failed) is emitted per turn, after which
// the channel closes.
type Event struct {
	Kind EventKind

	// Token and Accumulated are set on EventToken.
	Token       string
	Accumulated string

	// Text is the final text on EventCompleted, or the partial text on
	// EventCancelled.
	Text string

	// Err is set on EventFailed.
	Err error
}

// ErrNotIdle is returned by Start when the controller has already run.
// Controllers are single-use; create a fresh one per turn.
var ErrNotIdle = errors.New("generation controller already started")

// =============================================================================
// ENGINE
// =============================================================================

// Engine streams chat completions. *llama.Client satisfies it.
type Engine interface {
	ChatStream(ctx context.Context, request llama.CompletionRequest, callback llama.StreamCallback) error
}

// =============================================================================
// CONTROLLER
// =============================================================================

// Controller runs one generation turn against an engine and reports
// progress as an event stream. Cancel may be called from any goroutine at
// any time; the stream stops between fragments, never mid-write.
type Controller struct {
	mu        sync.Mutex
	state     State
	cancelled atomic.Bool

	engine Engine
	cancel context.CancelFunc
	done   chan struct{}
}

// NewController creates an idle controller bound to an engine.
func NewController(engine Engine) *Controller {
	return &Controller{
		engine: engine,
		done:   make(chan struct{}),
	}
}

// State returns the controller's current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Done is closed once the turn has settled and the event channel closed.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// Start launches the generation turn and returns its event channel. The
// channel is buffered; the caller must drain it. Only an idle controller
// can start; reuse returns ErrNotIdle.
func (c *Controller) Start(ctx context.Context, request llama.CompletionRequest) (<-chan Event, error) {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return nil, ErrNotIdle
	}
	c.state = StateRunning

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.mu.Unlock()

	events := make(chan Event, 32)
	go c.run(runCtx, request, events)
	return events, nil
}

// Cancel requests cooperative cancellation. Safe to call repeatedly and
// from any goroutine; calls after the turn settled are no-ops.
func (c *Controller) Cancel() {
	if c.cancelled.Swap(true) {
		return
	}
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// run executes the turn and settles exactly once.
func (c *Controller) run(ctx context.Context, request llama.CompletionRequest, events chan<- Event) {
	var sb strings.Builder

	err := c.engine.ChatStream(ctx, request, func(chunk llama.StreamChunk) bool {
		// Checked between fragments: a pending cancel stops consumption
		// before the next token is surfaced.
		if c.cancelled.Load() {
			return false
		}
		if chunk.Content != "" {
			sb.WriteString(chunk.Content)
			events <- Event{
				Kind:        EventToken,
				Token:       chunk.Content,
				Accumulated: sb.String(),
			}
		}
		return !c.cancelled.Load()
	})

	c.settle(err, sb.String(), request.Stop, events)
}

// settle emits the single terminal event, closes the stream, and marks
// the controller done.
func (c *Controller) settle(err error, partial string, stops []string, events chan<- Event) {
	c.mu.Lock()
	defer func() {
		c.mu.Unlock()
		close(events)
		close(c.done)
	}()

	switch {
	case c.cancelled.Load() || errors.Is(err, context.Canceled):
		c.state = StateCancelled
		events <- Event{Kind: EventCancelled, Text: partial}
	case err != nil:
		c.state = StateFailed
		events <- Event{Kind: EventFailed, Err: err}
	default:
		c.state = StateCompleted
		events <- Event{Kind: EventCompleted, Text: trimStops(partial, stops)}
	}
}

// trimStops removes trailing whitespace and any stop-sequence suffix the
// server echoed into the final text.
func trimStops(text string, stops []string) string {
	trimmed := strings.TrimSpace(text)
	for changed := true; changed; {
		changed = false
		for _, stop := range stops {
			if stop == "" {
				continue
			}
			if strings.HasSuffix(trimmed, stop) {
				trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, stop))
				changed = true
			}
		}
	}
	return trimmed
}
