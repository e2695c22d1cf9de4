package install

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dropper-mc/dropper/pkg/mcver"
	"github.com/dropper-mc/dropper/pkg/plan"
)

// Record is the persisted fact of one installed plugin.
type Record struct {
	Name        string     `json:"name"`
	Version     mcver.Spec `json:"version"`
	SourceID    string     `json:"source_id"`
	FileName    string     `json:"file_name"`
	Fingerprint string     `json:"content_fingerprint"`
	InstalledAt time.Time  `json:"installed_at"`
}

// State is the full contents of the state file. An absent file means an
// empty state: nothing installed.
type State struct {
	LastRunID string            `json:"last_run_id,omitempty"`
	UpdatedAt time.Time         `json:"updated_at"`
	Plugins   map[string]Record `json:"plugins"`
}

// NewState returns an empty state.
func NewState() *State {
	return &State{Plugins: make(map[string]Record)}
}

// InstalledVersions converts the state into the planner's input shape.
func (s *State) InstalledVersions() map[string]plan.InstalledVersion {
	out := make(map[string]plan.InstalledVersion, len(s.Plugins))
	for name, rec := range s.Plugins {
		out[name] = plan.InstalledVersion{Version: rec.Version, SourceID: rec.SourceID}
	}
	return out
}

// StateStore persists installation state as a single JSON file. Writes go
// through one mutex and land via temp-file-then-rename, so a crash leaves
// either the old state or the new state, never a torn file.
type StateStore struct {
	mu   sync.Mutex
	path string
}

// NewStateStore creates a store at path, creating parent directories.
func NewStateStore(path string) (*StateStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return &StateStore{path: path}, nil
}

// Path returns the state file location.
func (s *StateStore) Path() string { return s.path }

// Load reads the current state. A missing file yields an empty state.
func (s *StateStore) Load() (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewState(), nil
		}
		return nil, fmt.Errorf("read state file: %w", err)
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("parse state file: %w", err)
	}
	if st.Plugins == nil {
		st.Plugins = make(map[string]Record)
	}
	return &st, nil
}

// Save atomically replaces the state file.
func (s *StateStore) Save(st *State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(st)
}

// Update applies a mutation and persists the result in one critical
// section, so concurrent committers never marshal a half-applied state.
func (s *StateStore) Update(st *State, mutate func(*State)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	mutate(st)
	return s.save(st)
}

func (s *StateStore) save(st *State) error {
	st.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".state-*.json")
	if err != nil {
		return fmt.Errorf("create temp state file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp state file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0600); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("chmod state file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("replace state file: %w", err)
	}
	return nil
}
