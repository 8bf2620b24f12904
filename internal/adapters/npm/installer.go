package npm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ecoskun/depstash/internal/core/domain"
	"github.com/ecoskun/depstash/internal/core/ports"
)

// installArgs suppress everything that would persist or chatter: the
// manifest is disposable and per-request, so no lockfile is written back,
// and audit/funding noise would only pollute the captured diagnostics.
var installArgs = []string{
	"install",
	"--no-audit",
	"--no-fund",
	"--no-package-lock",
	"--loglevel=error",
}

// Installer implements ports.Installer by invoking the npm CLI against the
// workspace.
type Installer struct {
	runner  ports.ToolRunner
	timeout time.Duration
	logger  *zap.Logger
}

// NewInstaller creates an npm installer. A zero timeout means no bound on
// the tool's execution time.
func NewInstaller(runner ports.ToolRunner, timeout time.Duration, logger *zap.Logger) *Installer {
	return &Installer{
		runner:  runner,
		timeout: timeout,
		logger:  logger.With(zap.String("component", "npm_installer")),
	}
}

// Install runs npm install in the workspace. On success the dependency
// tree is present under the workspace's node_modules directory. A non-zero
// exit becomes *domain.BuildFailure with the tool's captured output; it is
// never retried here, since a failing manifest fails deterministically.
func (i *Installer) Install(ctx context.Context, ws domain.Workspace) error {
	if i.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.timeout)
		defer cancel()
	}

	start := time.Now()
	res, err := i.runner.Run(ctx, ws.Dir, "npm", installArgs...)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return &domain.BuildFailure{
				ExitCode:    -1,
				Diagnostics: fmt.Sprintf("npm install timed out after %s", i.timeout),
			}
		}
		return fmt.Errorf("invoke npm: %w", err)
	}
	if res.ExitCode != 0 {
		i.logger.Info("npm install failed",
			zap.Int("exit_code", res.ExitCode),
			zap.Duration("elapsed", time.Since(start)),
		)
		return &domain.BuildFailure{
			ExitCode:    res.ExitCode,
			Diagnostics: combineOutput(res),
		}
	}

	i.logger.Info("npm install succeeded",
		zap.String("workspace", ws.Dir),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

func combineOutput(res ports.ToolResult) string {
	switch {
	case res.Stderr == "":
		return res.Stdout
	case res.Stdout == "":
		return res.Stderr
	default:
		return res.Stdout + "\n" + res.Stderr
	}
}
