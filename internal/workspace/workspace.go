package workspace

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Workspace is a private directory that holds the transient script file of
// a single inline run.
type Workspace struct {
	Path string
}

// Create makes a fresh run-<id> directory under baseDir. An empty baseDir
// means the system temp directory.
func Create(baseDir, runID string) (*Workspace, error) {
	if baseDir == "" {
		baseDir = filepath.Join(os.TempDir(), "scriptviz")
	}
	if runID == "" {
		runID = uuid.NewString()
	}

	if err := os.MkdirAll(baseDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create workspace base directory: %w", err)
	}

	path := filepath.Join(baseDir, "run-"+runID)
	if err := os.Mkdir(path, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create workspace directory: %w", err)
	}

	return &Workspace{Path: path}, nil
}

// WriteScript stores text as script<ext> and returns its path.
func (w *Workspace) WriteScript(text, ext string) (string, error) {
	path := filepath.Join(w.Path, "script"+ext)
	if err := os.WriteFile(path, []byte(text), 0o700); err != nil {
		return "", fmt.Errorf("failed to write script: %w", err)
	}
	return path, nil
}

// Remove deletes the workspace and everything in it.
func (w *Workspace) Remove() error {
	if err := os.RemoveAll(w.Path); err != nil {
		return fmt.Errorf("failed to remove workspace %s: %w", w.Path, err)
	}
	return nil
}
