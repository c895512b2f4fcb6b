// Package session persists the client-local login state.
//
// The whole state lives under a single diskv key. Save overwrites it
// wholesale; there is no merging with what was on disk before.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/peterbourgon/diskv/v3"
)

const stateKey = "session"

// State is what survives between runs.
type State struct {
	Token      string `json:"token,omitempty"`
	Username   string `json:"username,omitempty"`
	UserID     string `json:"user_id,omitempty"`
	RememberMe bool   `json:"remember_me"`
	UserType   string `json:"user_type,omitempty"`
}

// Store is the persisted session. Safe for concurrent use.
type Store struct {
	d *diskv.Diskv

	mu    sync.RWMutex
	state State
}

// Open loads the session under dir, creating the directory if needed.
// A missing or unreadable state file starts a logged-out session.
func Open(dir string) (*Store, error) {
	if dir == "" {
		return nil, errors.New("session: directory required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("session: ensure dir: %w", err)
	}

	s := &Store{d: diskv.New(diskv.Options{
		BasePath:     dir,
		CacheSizeMax: 64 * 1024,
		PathPerm:     0o700,
		FilePerm:     0o600,
	})}

	if s.d.Has(stateKey) {
		data, err := s.d.Read(stateKey)
		if err != nil {
			return nil, fmt.Errorf("session: read: %w", err)
		}
		// A corrupt file is treated as logged out rather than fatal.
		if err := json.Unmarshal(data, &s.state); err != nil {
			s.state = State{}
		}
	}
	return s, nil
}

// Get returns a copy of the current state.
func (s *Store) Get() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Token returns the current bearer token, or "" when logged out.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Token
}

// LoggedIn reports whether a token is present.
func (s *Store) LoggedIn() bool { return s.Token() != "" }

// Save replaces the persisted state.
func (s *Store) Save(st State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("session: encode: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.d.Write(stateKey, data); err != nil {
		return fmt.Errorf("session: write: %w", err)
	}
	s.state = st
	return nil
}

// Clear wipes the persisted state.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = State{}
	if !s.d.Has(stateKey) {
		return nil
	}
	if err := s.d.Erase(stateKey); err != nil {
		return fmt.Errorf("session: erase: %w", err)
	}
	return nil
}
