// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package telemetry

import (
	"path/filepath"
	"testing"
	"time"
)

func newTestRecorder(t *testing.T) *Recorder {
	t.Helper()
	r, err := NewRecorder(filepath.Join(t.TempDir(), "stats.db"))
	if err != nil {
		t.Fatalf("NewRecorder failed: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func TestRecordAndList(t *testing.T) {
	r := newTestRecorder(t)

	base := time.Now().Add(-time.Minute)
	stats := []TurnStat{
		{ChatID: 1, StartedAt: base, DurationMs: 1200, Fragments: 30, Chars: 240, Outcome: OutcomeCompleted},
		{ChatID: 1, StartedAt: base.Add(10 * time.Second), DurationMs: 400, Fragments: 8, Chars: 60, Outcome: OutcomeCancelled},
		{ChatID: 2, StartedAt: base.Add(20 * time.Second), DurationMs: 50, Fragments: 0, Chars: 0, Outcome: OutcomeFailed, Error: "server not running"},
	}
	for _, s := range stats {
		if err := r.Record(s); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	got, err := r.List(10)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("List returned %d stats, want 3", len(got))
	}

	// Newest first.
	if got[0].Outcome != OutcomeFailed || got[0].Error != "server not running" {
		t.Errorf("newest stat = %+v", got[0])
	}
	if got[2].Outcome != OutcomeCompleted {
		t.Errorf("oldest stat = %+v", got[2])
	}
}

func TestListLimit(t *testing.T) {
	r := newTestRecorder(t)

	for i := 0; i < 5; i++ {
		err := r.Record(TurnStat{
			ChatID:     1,
			StartedAt:  time.Now().Add(time.Duration(i) * time.Second),
			DurationMs: 100,
			Outcome:    OutcomeCompleted,
		})
		if err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	got, err := r.List(2)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("List(2) returned %d stats", len(got))
	}
}

func TestCharsPerSec(t *testing.T) {
	s := TurnStat{Chars: 500, DurationMs: 2000}
	if got := s.CharsPerSec(); got != 250 {
		t.Errorf("CharsPerSec = %v, want 250", got)
	}

	zero := TurnStat{Chars: 100, DurationMs: 0}
	if got := zero.CharsPerSec(); got != 0 {
		t.Errorf("zero duration CharsPerSec = %v, want 0", got)
	}
}
