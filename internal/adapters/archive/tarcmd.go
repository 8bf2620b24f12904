// Package archive produces the downloadable .tar.gz from a workspace's
// installed dependency tree. Two interchangeable implementations exist:
// TarCommand shells out to the system tar, Builtin archives in-process.
package archive

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/ecoskun/depstash/internal/core/domain"
	"github.com/ecoskun/depstash/internal/core/ports"
)

// TarCommand implements ports.Archiver by invoking the external tar tool.
type TarCommand struct {
	runner  ports.ToolRunner
	timeout time.Duration
	logger  *zap.Logger
}

// NewTarCommand creates a tar-based archiver. A zero timeout means no
// bound on the tool's execution time.
func NewTarCommand(runner ports.ToolRunner, timeout time.Duration, logger *zap.Logger) *TarCommand {
	return &TarCommand{
		runner:  runner,
		timeout: timeout,
		logger:  logger.With(zap.String("component", "tar_archiver")),
	}
}

// Compress runs tar in the workspace to produce the archive at its fixed
// path, then stats it for the exact byte size the download server will
// declare.
func (t *TarCommand) Compress(ctx context.Context, ws domain.Workspace) (string, int64, error) {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	res, err := t.runner.Run(ctx, ws.Dir, "tar", "-czf", domain.ArchiveFileName, domain.InstallDirName)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", 0, &domain.ArchiveFailure{
				ExitCode:    -1,
				Diagnostics: fmt.Sprintf("tar timed out after %s", t.timeout),
			}
		}
		return "", 0, fmt.Errorf("invoke tar: %w", err)
	}
	if res.ExitCode != 0 {
		return "", 0, &domain.ArchiveFailure{
			ExitCode:    res.ExitCode,
			Diagnostics: res.Stderr,
		}
	}

	path := ws.ArchivePath()
	info, err := os.Stat(path)
	if err != nil {
		return "", 0, fmt.Errorf("stat archive: %w", err)
	}
	t.logger.Info("archive produced",
		zap.String("path", path),
		zap.Int64("size", info.Size()),
	)
	return path, info.Size(), nil
}
