package fragment

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// State is the navigation history persisted by FileNavigator.
type State struct {
	History   []string  `json:"history"`
	Position  int       `json:"position"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Live returns the fragment at the current position.
func (s *State) Live() string {
	if s.Position < 0 || s.Position >= len(s.History) {
		return ""
	}
	return s.History[s.Position]
}

// StateDir returns the directory for navigation state files.
func StateDir() string {
	// XDG_STATE_HOME or ~/.local/state
	if dir := os.Getenv("XDG_STATE_HOME"); dir != "" {
		return filepath.Join(dir, "rice-facets")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "state", "rice-facets")
}

// DefaultStatePath returns the default navigation state file.
func DefaultStatePath() string {
	return filepath.Join(StateDir(), "navigation.json")
}

// LoadState reads a state file. A missing file yields a fresh history
// holding the empty fragment.
func LoadState(path string) (*State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &State{History: []string{""}}, nil
		}
		return nil, err
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	if len(state.History) == 0 {
		state.History = []string{""}
		state.Position = 0
	}
	if state.Position < 0 || state.Position >= len(state.History) {
		state.Position = len(state.History) - 1
	}
	return &state, nil
}

// SaveState writes state atomically.
func SaveState(path string, state *State) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	state.UpdatedAt = time.Now().UTC()
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
