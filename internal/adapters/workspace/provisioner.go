package workspace

import (
	"fmt"
	"os"

	"github.com/ecoskun/depstash/internal/core/domain"
)

// Provisioner implements ports.WorkspaceProvisioner on the local filesystem.
// Each workspace is a uniquely named directory under the configured root.
type Provisioner struct {
	root string
}

// NewProvisioner creates a provisioner rooted at dir. An empty dir means
// the OS temp directory.
func NewProvisioner(dir string) *Provisioner {
	return &Provisioner{root: dir}
}

// Create allocates a fresh, exclusively named, empty workspace directory.
func (p *Provisioner) Create() (domain.Workspace, error) {
	dir, err := os.MkdirTemp(p.root, "depstash-build-*")
	if err != nil {
		return domain.Workspace{}, &domain.ProvisionError{Err: err}
	}
	return domain.Workspace{Dir: dir}, nil
}

// WriteManifest persists the manifest as package.json inside the workspace.
func (p *Provisioner) WriteManifest(ws domain.Workspace, content []byte) error {
	if err := os.WriteFile(ws.ManifestPath(), content, 0o644); err != nil {
		return &domain.WriteError{Err: err}
	}
	return nil
}

// Destroy removes the workspace and everything under it. Cleanup may race
// between the failure path and the sweep, so a workspace that is already
// gone is not an error.
func (p *Provisioner) Destroy(ws domain.Workspace) error {
	if ws.Dir == "" {
		return nil
	}
	if err := os.RemoveAll(ws.Dir); err != nil {
		return fmt.Errorf("destroy workspace %s: %w", ws.Dir, err)
	}
	return nil
}
