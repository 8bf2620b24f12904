package ports

import "github.com/ecoskun/depstash/internal/core/domain"

// WorkspaceProvisioner manages the isolated directories builds run in.
// This interface lets the pipeline stay ignorant of where workspaces
// actually live (OS temp, a dedicated volume, a ramdisk).
type WorkspaceProvisioner interface {
	// Create allocates a fresh, exclusively named, empty workspace.
	Create() (domain.Workspace, error)

	// WriteManifest persists validated manifest text into the workspace.
	WriteManifest(ws domain.Workspace, content []byte) error

	// Destroy recursively removes the workspace. It is idempotent and safe
	// to call from more than one cleanup path; destroying a workspace that
	// is already gone is a no-op.
	Destroy(ws domain.Workspace) error
}
