// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/jeranaias/llamachat/internal/model"
	"github.com/jeranaias/llamachat/internal/util"
)

// MaxChatNameRunes bounds the display name derived from the first user
// message of a new chat.
const MaxChatNameRunes = 40

// =============================================================================
// FILE FORMATS
// =============================================================================

// chatIndexEntry is one record of the chat index file. IDs are
// string-encoded integers on disk.
type chatIndexEntry struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// =============================================================================
// CHAT STORE
// =============================================================================

// ChatStore handles chat index and transcript persistence.
//
// Layout under the base directory:
//
//	chats.json       index: [{"id":"1","name":"..."}, ...]
//	chats/<id>.json  transcript: {"history":[{timestamp,role,content}, ...]}
//	personas.json    persona index: [{"name","emoji","sysprompt"}, ...]
//
// All writes are atomic (temp file + fsync + rename), so a failed append
// leaves the previous file intact. Index mutations are serialized by mu;
// transcript appends are serialized per chat id.
type ChatStore struct {
	baseDir string

	mu        sync.Mutex // guards index file access and chatLocks
	chatLocks map[int64]*sync.Mutex
}

// NewChatStore creates a store rooted at ~/.llamachat.
func NewChatStore() (*ChatStore, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}
	return NewChatStoreWithDir(filepath.Join(homeDir, ".llamachat"))
}

// NewChatStoreWithDir creates a store with a custom base directory.
func NewChatStoreWithDir(baseDir string) (*ChatStore, error) {
	if err := os.MkdirAll(filepath.Join(baseDir, "chats"), 0755); err != nil {
		return nil, err
	}
	return &ChatStore{
		baseDir:   baseDir,
		chatLocks: make(map[int64]*sync.Mutex),
	}, nil
}

// BaseDir returns the store's base directory.
func (s *ChatStore) BaseDir() string {
	return s.baseDir
}

// =============================================================================
// CHAT INDEX
// =============================================================================

// ListChats returns all chat summaries in creation order. It never fails
// visibly: a missing index means no chats yet, an unreadable one is treated
// the same way.
func (s *ChatStore) ListChats() []model.ChatSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readIndexLocked()
}

// readIndexLocked reads the chat index. Caller must hold mu.
func (s *ChatStore) readIndexLocked() []model.ChatSummary {
	data, err := os.ReadFile(s.indexPath())
	if err != nil {
		return []model.ChatSummary{}
	}

	var entries []chatIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return []model.ChatSummary{}
	}

	summaries := make([]model.ChatSummary, 0, len(entries))
	for _, e := range entries {
		id, err := strconv.ParseInt(e.ID, 10, 64)
		if err != nil {
			continue // skip unparseable records rather than failing the list
		}
		summaries = append(summaries, model.ChatSummary{ID: id, Name: e.Name})
	}
	return summaries
}

// writeIndexLocked writes the chat index atomically. Caller must hold mu.
func (s *ChatStore) writeIndexLocked(summaries []model.ChatSummary) error {
	entries := make([]chatIndexEntry, len(summaries))
	for i, sum := range summaries {
		entries[i] = chatIndexEntry{ID: strconv.FormatInt(sum.ID, 10), Name: sum.Name}
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}
	return util.AtomicWriteFile(s.indexPath(), data, 0644)
}

// CreateChat allocates the next chat id, appends a summary named after the
// first message, and seeds the transcript with that message as the opening
// user turn. Allocation and index append happen under one lock so
// concurrent creations can never produce duplicate ids.
func (s *ChatStore) CreateChat(firstMessage string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	summaries := s.readIndexLocked()

	// Next id is max(existing)+1, or 1 for a fresh store. Small sequential
	// ids keep chat files human-debuggable.
	var id int64 = 1
	for _, sum := range summaries {
		if sum.ID >= id {
			id = sum.ID + 1
		}
	}

	name := util.TruncateRunes(util.CollapseLine(firstMessage), MaxChatNameRunes)

	transcript := model.NewTranscript(id)
	transcript.Append(model.Message{
		Timestamp: time.Now(),
		Role:      model.RoleUser,
		Content:   firstMessage,
	})
	if err := s.writeTranscript(transcript); err != nil {
		return 0, err
	}

	summaries = append(summaries, model.ChatSummary{ID: id, Name: name})
	if err := s.writeIndexLocked(summaries); err != nil {
		// Roll the orphaned transcript file back so a later creation can
		// reuse the id cleanly.
		os.Remove(s.transcriptPath(id))
		return 0, err
	}

	return id, nil
}

// =============================================================================
// TRANSCRIPTS
// =============================================================================

// LoadTranscript retrieves the transcript for a chat id. Returns
// ErrChatNotFound if the id is absent from the index or the transcript
// file is missing or unreadable.
func (s *ChatStore) LoadTranscript(id int64) (*model.Transcript, error) {
	if !s.chatExists(id) {
		return nil, ErrChatNotFound
	}
	return s.readTranscript(id)
}

// AppendMessage appends one message to a chat's transcript and returns the
// updated transcript. Appends to the same id are serialized by a per-chat
// lock so concurrent callers cannot interleave a read-modify-write and
// lose an update.
func (s *ChatStore) AppendMessage(id int64, role model.Role, content string) (*model.Transcript, error) {
	lock := s.lockFor(id)
	lock.Lock()
	defer lock.Unlock()

	if !s.chatExists(id) {
		return nil, ErrChatNotFound
	}

	transcript, err := s.readTranscript(id)
	if err != nil {
		return nil, err
	}

	transcript.Append(model.Message{
		Timestamp: time.Now(),
		Role:      role,
		Content:   content,
	})

	if err := s.writeTranscript(transcript); err != nil {
		return nil, err
	}
	return transcript, nil
}

// DeleteChat removes a chat's transcript file and its index entry. Absence
// of the transcript file is not an error.
func (s *ChatStore) DeleteChat(id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.transcriptPath(id)); err != nil && !os.IsNotExist(err) {
		return err
	}

	summaries := s.readIndexLocked()
	kept := summaries[:0]
	for _, sum := range summaries {
		if sum.ID != id {
			kept = append(kept, sum)
		}
	}
	if err := s.writeIndexLocked(kept); err != nil {
		return err
	}

	// The lock entry stays: ids are reused after delete, and an in-flight
	// append must keep serializing against a recreate on the same id.
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

// lockFor returns the per-chat append lock for an id.
func (s *ChatStore) lockFor(id int64) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.chatLocks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.chatLocks[id] = lock
	}
	return lock
}

// chatExists reports whether the id is present in the index.
func (s *ChatStore) chatExists(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sum := range s.readIndexLocked() {
		if sum.ID == id {
			return true
		}
	}
	return false
}

// readTranscript reads and parses a transcript file. Missing or corrupt
// files both resolve to ErrChatNotFound.
func (s *ChatStore) readTranscript(id int64) (*model.Transcript, error) {
	data, err := os.ReadFile(s.transcriptPath(id))
	if err != nil {
		return nil, ErrChatNotFound
	}

	transcript := model.NewTranscript(id)
	if err := json.Unmarshal(data, transcript); err != nil {
		return nil, ErrChatNotFound
	}
	if transcript.History == nil {
		transcript.History = []model.Message{}
	}
	transcript.ID = id
	return transcript, nil
}

// writeTranscript writes a transcript file atomically.
func (s *ChatStore) writeTranscript(t *model.Transcript) error {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return err
	}
	return util.AtomicWriteFile(s.transcriptPath(t.ID), data, 0644)
}

// indexPath returns the chat index file path.
func (s *ChatStore) indexPath() string {
	return filepath.Join(s.baseDir, "chats.json")
}

// transcriptPath returns the transcript file path for a chat id.
func (s *ChatStore) transcriptPath(id int64) string {
	return filepath.Join(s.baseDir, "chats", strconv.FormatInt(id, 10)+".json")
}
