// Package services contains the request orchestration that ties the ports
// together. Handlers stay thin; the pipeline owns the build state flow and
// is the single place that decides workspace cleanup.
package services

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/ecoskun/depstash/internal/core/domain"
	"github.com/ecoskun/depstash/internal/core/ports"
)

// Pipeline drives one manifest through validation, provisioning, install,
// archiving, and registration. Builds run synchronously: the install is
// CPU/IO-bound and may take seconds, and the caller wants the outcome.
type Pipeline struct {
	provisioner ports.WorkspaceProvisioner
	installer   ports.Installer
	archiver    ports.Archiver
	registry    ports.ArtifactRegistry

	ttl      time.Duration
	maxBytes int64
	logger   *zap.Logger
}

// NewPipeline wires the pipeline from its collaborators.
func NewPipeline(
	provisioner ports.WorkspaceProvisioner,
	installer ports.Installer,
	archiver ports.Archiver,
	registry ports.ArtifactRegistry,
	ttl time.Duration,
	maxBytes int64,
	logger *zap.Logger,
) *Pipeline {
	return &Pipeline{
		provisioner: provisioner,
		installer:   installer,
		archiver:    archiver,
		registry:    registry,
		ttl:         ttl,
		maxBytes:    maxBytes,
		logger:      logger.With(zap.String("component", "pipeline")),
	}
}

// Run executes the full build flow for one manifest. Validation rejects
// before any storage side effect. On any failure after provisioning the
// workspace is destroyed before returning; on success ownership of the
// workspace passes to the registry, which reclaims it at eviction.
func (p *Pipeline) Run(ctx context.Context, manifest []byte) (domain.BuildReceipt, error) {
	if err := domain.ValidateManifest(manifest, p.maxBytes); err != nil {
		return domain.BuildReceipt{}, err
	}

	ws, err := p.provisioner.Create()
	if err != nil {
		p.logger.Error("workspace provisioning failed", zap.Error(err))
		return domain.BuildReceipt{}, err
	}

	registered := false
	defer func() {
		if registered {
			return
		}
		if derr := p.provisioner.Destroy(ws); derr != nil {
			p.logger.Error("workspace cleanup failed",
				zap.String("workspace", ws.Dir),
				zap.Error(derr),
			)
		}
	}()

	if err := p.provisioner.WriteManifest(ws, manifest); err != nil {
		p.logger.Error("manifest write failed", zap.Error(err))
		return domain.BuildReceipt{}, err
	}

	if err := p.installer.Install(ctx, ws); err != nil {
		var bf *domain.BuildFailure
		if !errors.As(err, &bf) {
			p.logger.Error("installer failed unexpectedly", zap.Error(err))
		}
		return domain.BuildReceipt{}, err
	}

	path, size, err := p.archiver.Compress(ctx, ws)
	if err != nil {
		var af *domain.ArchiveFailure
		if !errors.As(err, &af) {
			p.logger.Error("archiver failed unexpectedly", zap.Error(err))
		}
		return domain.BuildReceipt{}, err
	}

	expiresAt := time.Now().Add(p.ttl)
	id := p.registry.Put(domain.Artifact{
		Path:      path,
		Workspace: ws.Dir,
		Size:      size,
		ExpiresAt: expiresAt,
	})
	registered = true

	return domain.BuildReceipt{ID: id, ExpiresAt: expiresAt}, nil
}
