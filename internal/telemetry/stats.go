// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package telemetry records per-turn generation statistics to a local
// SQLite database.
package telemetry

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Outcome labels how a generation turn ended.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeFailed    Outcome = "failed"
)

// TurnStat is one recorded generation turn.
type TurnStat struct {
	ID         int64
	ChatID     int64
	StartedAt  time.Time
	DurationMs int64
	Fragments  int
	Chars      int
	Outcome    Outcome
	Error      string
}

// CharsPerSec returns the streaming throughput of the turn.
func (t TurnStat) CharsPerSec() float64 {
	if t.DurationMs <= 0 {
		return 0
	}
	return float64(t.Chars) / (float64(t.DurationMs) / 1000.0)
}

const schema = `
CREATE TABLE IF NOT EXISTS turn_stats (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	chat_id     INTEGER NOT NULL,
	started_at  TIMESTAMP NOT NULL,
	duration_ms INTEGER NOT NULL,
	fragments   INTEGER NOT NULL,
	chars       INTEGER NOT NULL,
	outcome     TEXT NOT NULL,
	error       TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_turn_stats_chat ON turn_stats(chat_id);
CREATE INDEX IF NOT EXISTS idx_turn_stats_started ON turn_stats(started_at DESC);
`

// Recorder persists turn statistics. Safe for concurrent use; database/sql
// serializes access to the single SQLite connection.
type Recorder struct {
	db *sql.DB
}

// NewRecorder opens (creating if needed) the stats database at path.
func NewRecorder(path string) (*Recorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create stats directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open stats database: %w", err)
	}

	// WAL keeps readers from blocking the recorder's writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Recorder{db: db}, nil
}

// Record inserts one turn stat.
func (r *Recorder) Record(stat TurnStat) error {
	_, err := r.db.Exec(
		`INSERT INTO turn_stats (chat_id, started_at, duration_ms, fragments, chars, outcome, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		stat.ChatID, stat.StartedAt, stat.DurationMs, stat.Fragments, stat.Chars, string(stat.Outcome), stat.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to record turn stat: %w", err)
	}
	return nil
}

// List returns the most recent turn stats, newest first.
func (r *Recorder) List(limit int) ([]TurnStat, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Query(
		`SELECT id, chat_id, started_at, duration_ms, fragments, chars, outcome, error
		 FROM turn_stats ORDER BY started_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query turn stats: %w", err)
	}
	defer rows.Close()

	var stats []TurnStat
	for rows.Next() {
		var s TurnStat
		var outcome string
		if err := rows.Scan(&s.ID, &s.ChatID, &s.StartedAt, &s.DurationMs, &s.Fragments, &s.Chars, &outcome, &s.Error); err != nil {
			return nil, fmt.Errorf("failed to scan turn stat: %w", err)
		}
		s.Outcome = Outcome(outcome)
		stats = append(stats, s)
	}
	return stats, rows.Err()
}

// Close releases the database handle.
func (r *Recorder) Close() error {
	return r.db.Close()
}
