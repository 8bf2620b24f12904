package ports

import (
	"context"

	"github.com/ecoskun/depstash/internal/core/domain"
)

// Archiver compresses a workspace's installed dependency tree into the
// workspace's fixed archive path. It must only be invoked after a
// successful install.
type Archiver interface {
	// Compress produces the archive and returns its path and byte size.
	// A tool failure is reported as *domain.ArchiveFailure; the workspace
	// is left intact for inspection, but the caller still owns cleanup.
	Compress(ctx context.Context, ws domain.Workspace) (path string, size int64, err error)
}
