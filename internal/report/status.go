package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/harrison/taskflow/internal/filelock"
	"github.com/harrison/taskflow/internal/models"
)

// ErrNoStatus is returned by ReadStatus when no snapshot has been published.
var ErrNoStatus = errors.New("no status published yet")

// StatusFile publishes orchestrator snapshots to a JSON file so that other
// processes can poll it.
type StatusFile struct {
	path string
}

// NewStatusFile creates a publisher writing to path.
func NewStatusFile(path string) *StatusFile {
	return &StatusFile{path: path}
}

// Path returns the status file path.
func (s *StatusFile) Path() string {
	return s.path
}

// Publish replaces the status file atomically.
func (s *StatusFile) Publish(snapshot models.StatusSnapshot) error {
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal status: %w", err)
	}
	if err := filelock.LockAndWrite(s.path, append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write status file: %w", err)
	}
	return nil
}

// ReadStatus loads the last published snapshot.
func ReadStatus(path string) (*models.StatusSnapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoStatus
		}
		return nil, fmt.Errorf("failed to read status file: %w", err)
	}

	var snapshot models.StatusSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to parse status file %s: %w", path, err)
	}
	return &snapshot, nil
}
