package cas

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"
)

// Manifest ties a parse run to the input it decoded.
type Manifest struct {
	RunID     string    `json:"run_id"`
	Input     string    `json:"input"`
	Digest    Digest    `json:"digest"`
	TreeHash  string    `json:"tree_hash,omitempty"`
	Lines     int       `json:"lines"`
	People    int       `json:"people"`
	Rejected  int       `json:"rejected"`
	CreatedAt time.Time `json:"created_at"`
}

var runIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// WriteManifest records m under <root>/runs/<run_id>.json.
func (s *Store) WriteManifest(m Manifest) error {
	if !runIDPattern.MatchString(m.RunID) {
		return fmt.Errorf("invalid run id %q", m.RunID)
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := writeAtomic(s.manifestPath(m.RunID), data); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}

// ReadManifest loads the manifest of a run.
func (s *Store) ReadManifest(runID string) (*Manifest, error) {
	if !runIDPattern.MatchString(runID) {
		return nil, fmt.Errorf("invalid run id %q", runID)
	}
	data, err := os.ReadFile(s.manifestPath(runID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrBlobNotFound
		}
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}
	return &m, nil
}

func (s *Store) manifestPath(runID string) string {
	return filepath.Join(s.root, "runs", runID+".json")
}
