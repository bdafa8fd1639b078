// Package provision manages per-job workspaces: scratch directories and
// the environment a job's steps run with. Workspaces are created at job
// start and discarded at job end; nothing survives across runs.
package provision

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Workspace is a provisioned execution environment for one job.
type Workspace struct {
	// JobID is the job this workspace belongs to.
	JobID string

	// Dir is the scratch directory, removed on cleanup.
	Dir string

	// CheckoutDir is the source checkout steps run against.
	CheckoutDir string

	// Environment is exported to every step of the job.
	Environment map[string]string

	CreatedAt time.Time
}

// Manager provisions and cleans up job workspaces.
type Manager struct {
	mu sync.Mutex

	// BaseDir is the parent directory for workspaces.
	// If empty, os.TempDir() is used.
	BaseDir string

	// active tracks workspaces that haven't been cleaned up.
	active map[string]string // job ID -> workspace dir
}

// NewManager creates a new workspace Manager.
func NewManager(baseDir string) *Manager {
	return &Manager{
		BaseDir: baseDir,
		active:  make(map[string]string),
	}
}

// Provision creates a fresh workspace for the job, pinned to the given
// interpreter version.
func (m *Manager) Provision(ctx context.Context, jobID, checkoutDir, pythonVersion string) (*Workspace, error) {
	baseDir := m.BaseDir
	if baseDir == "" {
		baseDir = os.TempDir()
	}

	dir := filepath.Join(baseDir, "lintci-"+jobID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}

	env := map[string]string{
		"LINTCI_JOB_ID":    jobID,
		"LINTCI_WORKSPACE": dir,
	}
	if pythonVersion != "" {
		env["LINTCI_PYTHON_VERSION"] = pythonVersion
	}

	m.mu.Lock()
	m.active[jobID] = dir
	m.mu.Unlock()

	return &Workspace{
		JobID:       jobID,
		Dir:         dir,
		CheckoutDir: checkoutDir,
		Environment: env,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// Cleanup removes the workspace directory.
func (m *Manager) Cleanup(ctx context.Context, ws *Workspace) error {
	m.mu.Lock()
	dir, exists := m.active[ws.JobID]
	if exists {
		delete(m.active, ws.JobID)
	}
	m.mu.Unlock()

	if !exists {
		// Already cleaned up
		return nil
	}

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove workspace: %w", err)
	}
	return nil
}

// CleanupAll removes every active workspace.
func (m *Manager) CleanupAll(ctx context.Context) error {
	m.mu.Lock()
	dirs := make([]string, 0, len(m.active))
	for _, dir := range m.active {
		dirs = append(dirs, dir)
	}
	m.active = make(map[string]string)
	m.mu.Unlock()

	var lastErr error
	for _, dir := range dirs {
		if err := os.RemoveAll(dir); err != nil {
			lastErr = err
		}
	}
	return lastErr
}
