package dotdir

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const runStateFile = "last_run.json"

// RunState records the outcome of the most recent seeding run so that
// `corpus status` can report it without touching the store.
type RunState struct {
	RunID       string    `json:"run_id"`
	Source      string    `json:"source"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	Skipped     bool      `json:"skipped"`
	Inserted    int       `json:"inserted"`
	Embedded    int       `json:"embedded"`
	Blank       int       `json:"blank"`
	Backfilled  int       `json:"backfilled"`
	Error       string    `json:"error,omitempty"`
	FinishedAt  time.Time `json:"finished_at"`
}

// LoadRunState reads last_run.json. Returns nil, nil when none was saved.
func (m *Manager) LoadRunState(overrideDir string) (*RunState, error) {
	dir, err := m.Target(overrideDir)
	if err != nil || dir == "" {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(dir, runStateFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading run state: %w", err)
	}

	state := &RunState{}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("parsing run state: %w", err)
	}
	return state, nil
}

// SaveRunState writes last_run.json into the resolved directory.
func (m *Manager) SaveRunState(state *RunState, overrideDir string) error {
	if state == nil {
		return errors.New("cannot save nil run state")
	}

	dir, err := m.Target(overrideDir)
	if err != nil {
		return err
	}
	if dir == "" {
		return errors.New("no .corpus directory found, run `corpus init` first")
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling run state: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, runStateFile), data, 0o600); err != nil {
		return fmt.Errorf("writing run state: %w", err)
	}
	return nil
}
