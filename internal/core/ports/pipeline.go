package ports

import (
	"context"

	"github.com/ecoskun/depstash/internal/core/domain"
)

// BuildPipeline runs one manifest through validation, workspace
// provisioning, dependency installation, archiving, and registration.
type BuildPipeline interface {
	Run(ctx context.Context, manifest []byte) (domain.BuildReceipt, error)
}

// ManifestSource fetches a manifest from somewhere other than the request
// body, e.g. the package.json of a git repository.
type ManifestSource interface {
	Fetch(ctx context.Context, repoURL string) ([]byte, error)
}
