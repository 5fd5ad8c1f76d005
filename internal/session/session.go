package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// ManifestFilename is non-numeric on purpose: the trial id allocator skips
// it when scanning the export root.
const ManifestFilename = "session.json"

// Manifest records the conditions of one capture session next to its
// trials, the way the experiment plans sat next to the raw data in the
// original study layout.
type Manifest struct {
	SessionID    string    `json:"session_id"`
	Participant  string    `json:"participant,omitempty"`
	SampleRateHz float64   `json:"sample_rate_hz"`
	Source       string    `json:"source"` // "bridge" or "simulator"
	Endpoint     string    `json:"endpoint,omitempty"`
	StartedAt    time.Time `json:"started_at"`
}

// Write persists the manifest into root, assigning a session id and start
// time if unset. Returns the written path.
func Write(root string, m Manifest) (string, error) {
	if m.SessionID == "" {
		m.SessionID = uuid.NewString()
	}
	if m.StartedAt.IsZero() {
		m.StartedAt = time.Now()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", fmt.Errorf("create export root: %w", err)
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", err
	}
	path := filepath.Join(root, ManifestFilename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write session manifest: %w", err)
	}
	return path, nil
}
