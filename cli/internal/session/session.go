// Package session holds per-repository run state under the state directory:
// the advisory lock that keeps two runs from sharing the scratch test path,
// and state.json describing the current or most recent run.
package session

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"utgen/cli/internal/erruser"
)

// ErrLocked indicates another run holds the lock for this state directory.
var ErrLocked = errors.New("another utgen run is active for this repository")

const (
	stateFilename = "state.json"
	lockFilename  = "lock"
)

// Run status values.
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusNoTests   = "no_tests"
	StatusFailed    = "failed"
)

// State describes one run. Stored at stateDir/state.json.
type State struct {
	RunID      string    `json:"run_id"`
	Status     string    `json:"status"`
	Mode       string    `json:"mode,omitempty"` // "full" or "incremental"
	BaseRef    string    `json:"base_ref,omitempty"`
	HeadRef    string    `json:"head_ref"`
	Branch     string    `json:"branch,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// Begin returns a running State with a fresh run ID.
func Begin(headRef, branch string, now time.Time) State {
	return State{
		RunID:     uuid.NewString(),
		Status:    StatusRunning,
		HeadRef:   headRef,
		Branch:    branch,
		StartedAt: now.UTC(),
	}
}

// Finish marks s finished with status and optional error.
func (s *State) Finish(status string, runErr error, now time.Time) {
	s.Status = status
	s.FinishedAt = now.UTC()
	if runErr != nil {
		s.Error = runErr.Error()
	}
}

// Load reads stateDir/state.json. A missing file yields a zero State and nil
// error; invalid JSON is an error. Load does not create stateDir.
func Load(stateDir string) (State, error) {
	data, err := os.ReadFile(filepath.Join(stateDir, stateFilename))
	if err != nil {
		if os.IsNotExist(err) {
			return State{}, nil
		}
		return State{}, erruser.New("Could not read run state.", err)
	}
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return State{}, erruser.New("Run state file is invalid or corrupted.", err)
	}
	return s, nil
}

// Save writes s to stateDir/state.json atomically, creating stateDir if needed.
func Save(stateDir string, s *State) error {
	if s == nil {
		return erruser.New("Cannot save nil run state.", nil)
	}
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return erruser.New("Could not create state directory.", err)
	}
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return erruser.New("Could not save run state.", err)
	}
	if err := WriteFileAtomic(filepath.Join(stateDir, stateFilename), data); err != nil {
		return erruser.New("Could not save run state.", err)
	}
	return nil
}

// WriteFileAtomic writes data to a temp file in path's directory, syncs it,
// and renames it over path.
func WriteFileAtomic(path string, data []byte) error {
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpPath := f.Name()
	defer func() { _ = os.Remove(tmpPath) }()
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}
