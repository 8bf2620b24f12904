package ports

import (
	"context"

	"github.com/ecoskun/depstash/internal/core/domain"
)

// Installer materializes a workspace's dependency tree under its install
// directory. A failing manifest fails deterministically, so implementations
// never retry; retry policy belongs to the caller.
type Installer interface {
	// Install runs the dependency installation tool against the workspace.
	// A tool failure is reported as *domain.BuildFailure carrying the
	// captured diagnostics.
	Install(ctx context.Context, ws domain.Workspace) error
}
