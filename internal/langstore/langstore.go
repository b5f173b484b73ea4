// SPDX-FileCopyrightText: The fieldagent Authors
//
// SPDX-License-Identifier: MIT

// Package langstore persists the user's language preference across restarts.
package langstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// ErrNotFound is returned when no preference has been stored yet.
var ErrNotFound = errors.New("no stored preference found")

// Store reads and writes the persisted language preference.
type Store interface {
	// Load returns the stored language tag string. Returns ErrNotFound when
	// nothing has been stored yet.
	Load() (string, error)
	// Save stores the language tag string.
	Save(lang string) error
}

type preference struct {
	Language string `json:"language"`
}

// FileStore is a JSON file backed Store.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore returns a FileStore persisting to the given path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load satisfies the Store interface.
func (s *FileStore) Load() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to read language preference: %w", err)
	}

	var pref preference
	if err = json.Unmarshal(data, &pref); err != nil {
		return "", fmt.Errorf("failed to parse language preference: %w", err)
	}
	if pref.Language == "" {
		return "", ErrNotFound
	}
	return pref.Language, nil
}

// Save satisfies the Store interface. The parent directory is created on demand.
func (s *FileStore) Save(lang string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create preference directory: %w", err)
	}
	data, err := json.Marshal(preference{Language: lang})
	if err != nil {
		return fmt.Errorf("failed to encode language preference: %w", err)
	}
	if err = os.WriteFile(s.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write language preference: %w", err)
	}
	return nil
}
