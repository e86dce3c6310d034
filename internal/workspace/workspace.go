// Package workspace manages ephemeral staging directories used by the
// publishing workflow so the user's working tree is never modified.
package workspace

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/docpages/internal/logfields"
)

// Manager handles staging directory lifecycle.
type Manager struct {
	baseDir string
	tempDir string
}

// NewManager creates a workspace manager rooted at baseDir (os.TempDir when empty).
func NewManager(baseDir string) *Manager {
	if baseDir == "" {
		baseDir = os.TempDir()
	}
	return &Manager{baseDir: baseDir}
}

// Create creates a timestamped staging directory.
func (m *Manager) Create() error {
	timestamp := time.Now().Format("20060102-150405")
	tempDir := filepath.Join(m.baseDir, fmt.Sprintf("docpages-%s", timestamp))

	if err := os.MkdirAll(tempDir, 0o750); err != nil {
		return fmt.Errorf("failed to create workspace directory: %w", err)
	}

	m.tempDir = tempDir
	slog.Debug("Created workspace", logfields.Path(tempDir))
	return nil
}

// GetPath returns the path to the workspace directory.
func (m *Manager) GetPath() string {
	return m.tempDir
}

// Cleanup removes the workspace directory.
func (m *Manager) Cleanup() error {
	if m.tempDir == "" {
		return nil
	}
	if err := os.RemoveAll(m.tempDir); err != nil {
		return fmt.Errorf("failed to cleanup workspace: %w", err)
	}
	slog.Debug("Cleaned up workspace", logfields.Path(m.tempDir))
	m.tempDir = ""
	return nil
}

// CreateSubdir creates a subdirectory within the workspace.
func (m *Manager) CreateSubdir(name string) (string, error) {
	if m.tempDir == "" {
		return "", fmt.Errorf("workspace not created")
	}
	subdir := filepath.Join(m.tempDir, name)
	if err := os.MkdirAll(subdir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create subdirectory: %w", err)
	}
	return subdir, nil
}
