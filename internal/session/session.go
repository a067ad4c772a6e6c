// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session coordinates the active chat: transcript state, prompt
// assembly, generation turns and persistence.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jeranaias/llamachat/internal/config"
	"github.com/jeranaias/llamachat/internal/generate"
	"github.com/jeranaias/llamachat/internal/llama"
	"github.com/jeranaias/llamachat/internal/model"
	"github.com/jeranaias/llamachat/internal/prompt"
	"github.com/jeranaias/llamachat/internal/store"
	"github.com/jeranaias/llamachat/internal/telemetry"
)

// =============================================================================
// STATES AND EVENTS
// =============================================================================

// State is the session lifecycle phase.
type State int

const (
	// StateEmpty means no chat is active; the next user message creates one.
	StateEmpty State = iota

	// StateReady means a chat is active and idle.
	StateReady

	// StateGenerating means a turn is streaming.
	StateGenerating
)

// String returns the state name for logs and tests.
func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateReady:
		return "ready"
	case StateGenerating:
		return "generating"
	default:
		return "unknown"
	}
}

// EventKind tags session events.
type EventKind int

const (
	// EventUserMessage: the user's message was accepted into the transcript.
	EventUserMessage EventKind = iota

	// EventPlaceholder: a streaming assistant placeholder was created.
	EventPlaceholder

	// EventToken: one streamed fragment arrived. Token holds the fragment,
	// Text the accumulated reply so far.
	EventToken

	// EventTurnCompleted: the reply finished and was persisted. Text holds
	// the final reply.
	EventTurnCompleted

	// EventTurnCancelled: the turn was stopped; nothing was persisted.
	// Text holds the partial reply.
	EventTurnCancelled

	// EventTurnFailed: the engine reported an error. Err holds it.
	EventTurnFailed

	// EventChatSwitched: a different chat became active.
	EventChatSwitched

	// EventChatDeleted: the active chat was deleted; the session is empty.
	EventChatDeleted

	// EventNotice: a non-fatal problem the user should see (for example a
	// persistence failure). Notice holds the text.
	EventNotice
)

// Event is one item of the session event stream.
type Event struct {
	Kind   EventKind
	ChatID int64

	// Message is a value snapshot taken when the event was emitted; it
	// never changes afterwards, so consumers may read Content at any time
	// without synchronizing with the streaming turn.
	Message *model.Message

	Token  string
	Text   string
	Err    error
	Notice string
}

// Errors reported to callers issuing operations in the wrong state.
var (
	ErrGenerationActive = errors.New("a generation turn is already running")
	ErrNotGenerating    = errors.New("no generation turn is running")
)

// =============================================================================
// SESSION
// =============================================================================

// ConfigLoader supplies the configuration for a generation turn. It is
// called fresh each turn so on-disk edits apply without a restart.
type ConfigLoader func() (*config.Config, error)

// Session owns the active chat. All exported methods are safe for
// concurrent use; the event channel must be drained by exactly one
// consumer.
type Session struct {
	mu          sync.Mutex
	state       State
	chatID      int64
	transcript  *model.Transcript
	placeholder *model.Message
	controller  *generate.Controller
	personaName string
	turn        chan struct{}

	store      *store.ChatStore
	engine     generate.Engine
	builder    *prompt.Builder
	loadConfig ConfigLoader
	recorder   *telemetry.Recorder

	events chan Event
}

// Option configures a Session.
type Option func(*Session)

// WithConfigLoader overrides how per-turn configuration is loaded.
func WithConfigLoader(loader ConfigLoader) Option {
	return func(s *Session) { s.loadConfig = loader }
}

// WithRecorder attaches a telemetry recorder for turn statistics.
func WithRecorder(r *telemetry.Recorder) Option {
	return func(s *Session) { s.recorder = r }
}

// WithMaxTurns overrides the prompt history window.
func WithMaxTurns(n int) Option {
	return func(s *Session) { s.builder = &prompt.Builder{MaxTurns: n} }
}

// NewSession creates an empty session over a store and an engine.
func NewSession(st *store.ChatStore, engine generate.Engine, opts ...Option) *Session {
	s := &Session{
		state:      StateEmpty,
		store:      st,
		engine:     engine,
		builder:    prompt.NewBuilder(),
		loadConfig: config.Load,
		events:     make(chan Event, 256),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Events returns the session event stream. Progress events (tokens,
// notices) are dropped if the consumer stops draining; the terminal
// event of each turn is always delivered.
func (s *Session) Events() <-chan Event {
	return s.events
}

// State returns the current session state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ChatID returns the active chat id, or zero when empty.
func (s *Session) ChatID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chatID
}

// Transcript returns a snapshot of the active transcript, or nil when
// the session is empty.
func (s *Session) Transcript() *model.Transcript {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.transcript == nil {
		return nil
	}
	return s.transcript.Clone()
}

// PersonaName returns the active persona name, empty for the default.
func (s *Session) PersonaName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.personaName
}

// SetPersona activates a persona by name for subsequent turns. An empty
// name reverts to the default system prompt.
func (s *Session) SetPersona(name string) error {
	if name != "" {
		if _, err := s.store.GetPersona(name); err != nil {
			return err
		}
	}
	s.mu.Lock()
	s.personaName = name
	s.mu.Unlock()
	return nil
}

// ListChats returns all stored chat summaries.
func (s *Session) ListChats() []model.ChatSummary {
	return s.store.ListChats()
}

// =============================================================================
// SENDING AND GENERATION
// =============================================================================

// SendUserMessage accepts a user message and starts a generation turn.
// Blank input (after trimming) is silently ignored. In the empty state the
// message creates a new chat first; its transcript is seeded with the
// message, so it is not persisted a second time.
func (s *Session) SendUserMessage(content string) error {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return nil
	}

	s.mu.Lock()
	if s.state == StateGenerating {
		s.mu.Unlock()
		return ErrGenerationActive
	}

	created := false
	if s.state == StateEmpty {
		id, err := s.store.CreateChat(trimmed)
		if err != nil {
			s.mu.Unlock()
			return err
		}
		s.chatID = id
		s.transcript = model.NewTranscript(id)
		created = true
	}

	userMsg := model.NewUserMessage(trimmed)
	s.transcript.Append(*userMsg)

	placeholder := model.NewStreamingMessage()
	s.placeholder = placeholder
	s.state = StateGenerating

	ctrl := generate.NewController(s.engine)
	s.controller = ctrl
	s.turn = make(chan struct{})

	chatID := s.chatID
	personaName := s.personaName
	snapshot := s.transcript.Clone()
	s.mu.Unlock()

	s.emit(Event{Kind: EventUserMessage, ChatID: chatID, Message: userMsg})
	s.emit(Event{Kind: EventPlaceholder, ChatID: chatID, Message: placeholder.Snapshot()})

	go s.runTurn(ctrl, chatID, placeholder, snapshot, personaName, trimmed, created)
	return nil
}

// runTurn executes one generation turn to completion.
func (s *Session) runTurn(ctrl *generate.Controller, chatID int64, placeholder *model.Message, snapshot *model.Transcript, personaName, userContent string, created bool) {
	startedAt := time.Now()
	fragments := 0
	chars := 0
	outcome := telemetry.OutcomeFailed
	turnErr := ""

	// The terminal event is emitted only after the session has settled
	// back to ready, so consumers never observe a finished turn while the
	// state still reads generating.
	var terminal Event
	defer func() {
		s.settleTurn(ctrl)
		s.emitTerminal(terminal)
		s.recordTurn(chatID, startedAt, fragments, chars, outcome, turnErr)
	}()

	// A chat created this turn already carries the user message in its
	// seeded transcript; only follow-up messages need a separate append.
	if !created {
		if _, err := s.store.AppendMessage(chatID, model.RoleUser, userContent); err != nil {
			// Report and continue: the in-memory transcript still carries
			// the message, so the turn proceeds from what the user sees.
			s.emit(Event{
				Kind:   EventNotice,
				ChatID: chatID,
				Notice: "failed to save your message: " + err.Error(),
			})
		}
	}

	// Config is loaded fresh each turn so edits apply immediately. Load
	// never fails hard; a non-nil error just means defaults are in play.
	cfg, cfgErr := s.loadConfig()
	if cfgErr != nil {
		s.emit(Event{Kind: EventNotice, ChatID: chatID, Notice: "config problem, using defaults: " + cfgErr.Error()})
	}

	var persona *model.Persona
	if personaName != "" {
		p, err := s.store.GetPersona(personaName)
		if err == nil {
			persona = p
		}
	}

	req := llama.CompletionRequest{
		Messages:      s.builder.Build(snapshot, persona),
		MaxNewTokens:  cfg.Generation.MaxNewTokens,
		Stop:          llama.DefaultStopSequences(),
		ContextWindow: cfg.Generation.ContextWindow,
		BatchSize:     cfg.Generation.BatchSize,
		Threads:       cfg.Generation.Threads,
	}

	events, err := ctrl.Start(context.Background(), req)
	if err != nil {
		turnErr = err.Error()
		placeholder.Annotate("[generation failed: " + err.Error() + "]")
		terminal = Event{Kind: EventTurnFailed, ChatID: chatID, Message: placeholder.Snapshot(), Err: err}
		return
	}

	for ev := range events {
		switch ev.Kind {
		case generate.EventToken:
			fragments++
			chars = len(ev.Accumulated)
			placeholder.SetStreamContent(ev.Accumulated)
			s.emit(Event{Kind: EventToken, ChatID: chatID, Message: placeholder.Snapshot(), Token: ev.Token, Text: ev.Accumulated})

		case generate.EventCompleted:
			outcome = telemetry.OutcomeCompleted
			placeholder.Finalize(ev.Text)
			s.appendAssistant(ctrl, chatID, ev.Text)
			terminal = Event{Kind: EventTurnCompleted, ChatID: chatID, Message: placeholder.Snapshot(), Text: ev.Text}

		case generate.EventCancelled:
			// The partial reply stays visible but is never persisted: a
			// reload shows the transcript ending at the user message.
			outcome = telemetry.OutcomeCancelled
			placeholder.Annotate("[generation stopped]")
			terminal = Event{Kind: EventTurnCancelled, ChatID: chatID, Message: placeholder.Snapshot(), Text: ev.Text}

		case generate.EventFailed:
			outcome = telemetry.OutcomeFailed
			turnErr = ev.Err.Error()
			placeholder.Annotate("[generation failed: " + ev.Err.Error() + "]")
			terminal = Event{Kind: EventTurnFailed, ChatID: chatID, Message: placeholder.Snapshot(), Err: ev.Err}
		}
	}
}

// appendAssistant records a completed reply in memory and on disk. The
// disk write happens exactly once per completed turn; a failure is
// surfaced as a notice, never a crash.
func (s *Session) appendAssistant(ctrl *generate.Controller, chatID int64, text string) {
	s.mu.Lock()
	if s.controller == ctrl && s.transcript != nil && s.transcript.ID == chatID {
		s.transcript.Append(*model.NewMessage(model.RoleAssistant, text))
	}
	s.mu.Unlock()

	if _, err := s.store.AppendMessage(chatID, model.RoleAssistant, text); err != nil {
		s.emit(Event{
			Kind:   EventNotice,
			ChatID: chatID,
			Notice: "failed to save the reply: " + err.Error(),
		})
	}
}

// settleTurn returns the session to ready once the turn's controller has
// finished. Waiters blocked on the turn channel resume after the state is
// consistent.
func (s *Session) settleTurn(ctrl *generate.Controller) {
	s.mu.Lock()
	var turn chan struct{}
	if s.controller == ctrl {
		s.state = StateReady
		s.placeholder = nil
		s.controller = nil
		turn = s.turn
		s.turn = nil
	}
	s.mu.Unlock()

	if turn != nil {
		close(turn)
	}
}

// recordTurn writes turn telemetry when a recorder is attached.
func (s *Session) recordTurn(chatID int64, startedAt time.Time, fragments, chars int, outcome telemetry.Outcome, turnErr string) {
	if s.recorder == nil {
		return
	}
	// Telemetry is best effort; a failed insert never disturbs the chat.
	_ = s.recorder.Record(telemetry.TurnStat{
		ChatID:     chatID,
		StartedAt:  startedAt,
		DurationMs: time.Since(startedAt).Milliseconds(),
		Fragments:  fragments,
		Chars:      chars,
		Outcome:    outcome,
		Error:      turnErr,
	})
}

// StopGeneration requests cooperative cancellation of the running turn.
func (s *Session) StopGeneration() error {
	s.mu.Lock()
	if s.state != StateGenerating {
		s.mu.Unlock()
		return ErrNotGenerating
	}
	ctrl := s.controller
	s.mu.Unlock()

	ctrl.Cancel()
	return nil
}

// =============================================================================
// CHAT LIFECYCLE
// =============================================================================

// NewChat cancels any running turn and resets the session to empty. The
// next user message starts a fresh chat.
func (s *Session) NewChat() {
	s.cancelActiveTurn()

	s.mu.Lock()
	s.chatID = 0
	s.transcript = nil
	s.placeholder = nil
	s.state = StateEmpty
	s.mu.Unlock()
}

// SwitchChat makes another stored chat active, cancelling any running
// turn first. If the chat no longer exists the session goes empty and
// store.ErrChatNotFound is returned.
func (s *Session) SwitchChat(id int64) error {
	s.cancelActiveTurn()

	transcript, err := s.store.LoadTranscript(id)

	s.mu.Lock()
	if err != nil {
		s.chatID = 0
		s.transcript = nil
		s.placeholder = nil
		s.state = StateEmpty
		s.mu.Unlock()
		return err
	}
	s.chatID = id
	s.transcript = transcript
	s.placeholder = nil
	s.state = StateReady
	s.mu.Unlock()

	s.emit(Event{Kind: EventChatSwitched, ChatID: id})
	return nil
}

// DeleteChat removes a stored chat. Deleting the active chat cancels any
// running turn and empties the session.
func (s *Session) DeleteChat(id int64) error {
	s.mu.Lock()
	active := s.chatID == id && s.state != StateEmpty
	s.mu.Unlock()

	if active {
		s.cancelActiveTurn()
	}

	if err := s.store.DeleteChat(id); err != nil {
		return err
	}

	if active {
		s.mu.Lock()
		s.chatID = 0
		s.transcript = nil
		s.placeholder = nil
		s.state = StateEmpty
		s.mu.Unlock()
		s.emit(Event{Kind: EventChatDeleted, ChatID: id})
	}
	return nil
}

// cancelActiveTurn cancels a running turn and waits for it to settle.
// No-op when nothing is generating. Must be called without holding mu.
func (s *Session) cancelActiveTurn() {
	s.mu.Lock()
	if s.state != StateGenerating {
		s.mu.Unlock()
		return
	}
	ctrl := s.controller
	turn := s.turn
	s.mu.Unlock()

	ctrl.Cancel()
	if turn != nil {
		<-turn
	}
}

// emit delivers a progress event to the stream. The channel is deeply
// buffered; a full buffer means the consumer stopped draining, in which
// case the event is dropped rather than wedging the session.
func (s *Session) emit(ev Event) {
	select {
	case s.events <- ev:
	default:
	}
}

// emitTerminal delivers a turn's terminal event, blocking until the
// consumer takes it. Only the turn goroutine calls this, so blocking
// never wedges a caller; it guarantees a consumer waiting for the end of
// a turn sees it even after dropped progress events.
func (s *Session) emitTerminal(ev Event) {
	s.events <- ev
}
