// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package store

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/jeranaias/llamachat/internal/model"
	"github.com/jeranaias/llamachat/internal/util"
)

// =============================================================================
// PERSONAS
// =============================================================================

// ListPersonas returns all personas. A fresh store is seeded with the
// built-in set on first read, so the list is never empty.
func (s *ChatStore) ListPersonas() ([]model.Persona, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.readPersonasLocked()
}

// GetPersona returns the persona with the given name, or ErrPersonaNotFound.
func (s *ChatStore) GetPersona(name string) (*model.Persona, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	personas, err := s.readPersonasLocked()
	if err != nil {
		return nil, err
	}
	for i := range personas {
		if personas[i].Name == name {
			p := personas[i]
			return &p, nil
		}
	}
	return nil, ErrPersonaNotFound
}

// SavePersona inserts or replaces a persona by name.
func (s *ChatStore) SavePersona(p model.Persona) error {
	if err := p.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	personas, err := s.readPersonasLocked()
	if err != nil {
		return err
	}

	replaced := false
	for i := range personas {
		if personas[i].Name == p.Name {
			personas[i] = p
			replaced = true
			break
		}
	}
	if !replaced {
		personas = append(personas, p)
	}
	return s.writePersonasLocked(personas)
}

// DeletePersona removes a persona by name. Returns ErrPersonaNotFound if
// no persona carries that name.
func (s *ChatStore) DeletePersona(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	personas, err := s.readPersonasLocked()
	if err != nil {
		return err
	}

	kept := personas[:0]
	found := false
	for _, p := range personas {
		if p.Name == name {
			found = true
			continue
		}
		kept = append(kept, p)
	}
	if !found {
		return ErrPersonaNotFound
	}
	return s.writePersonasLocked(kept)
}

// readPersonasLocked reads the persona index, seeding defaults when the
// file does not exist yet. Caller must hold mu.
func (s *ChatStore) readPersonasLocked() ([]model.Persona, error) {
	data, err := os.ReadFile(s.personasPath())
	if os.IsNotExist(err) {
		defaults := model.DefaultPersonas()
		if err := s.writePersonasLocked(defaults); err != nil {
			return nil, err
		}
		return defaults, nil
	}
	if err != nil {
		return nil, err
	}

	var personas []model.Persona
	if err := json.Unmarshal(data, &personas); err != nil {
		return nil, &StoreError{Message: "persona index is corrupt: " + err.Error()}
	}
	return personas, nil
}

// writePersonasLocked writes the persona index atomically. Caller must
// hold mu.
func (s *ChatStore) writePersonasLocked(personas []model.Persona) error {
	data, err := json.MarshalIndent(personas, "", "  ")
	if err != nil {
		return err
	}
	return util.AtomicWriteFile(s.personasPath(), data, 0644)
}

// personasPath returns the persona index file path.
func (s *ChatStore) personasPath() string {
	return filepath.Join(s.baseDir, "personas.json")
}
