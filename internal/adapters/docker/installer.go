// Package docker runs dependency installs inside a disposable container,
// so a malicious manifest's install scripts cannot touch the host beyond
// the bind-mounted workspace.
package docker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"go.uber.org/zap"

	"github.com/ecoskun/depstash/internal/core/domain"
)

const containerWorkdir = "/workspace"

// maxDiagnostics bounds the log capture from a failed container install.
const maxDiagnostics = 256 * 1024

// Installer implements ports.Installer using the Docker SDK. The workspace
// is bind-mounted into a short-lived container running the configured node
// image, and npm runs there with the same flags as the host installer.
type Installer struct {
	cli     *client.Client
	image   string
	timeout time.Duration
	logger  *zap.Logger
}

// NewInstaller creates a Docker-backed installer for the given node image.
func NewInstaller(image string, timeout time.Duration, logger *zap.Logger) (*Installer, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return &Installer{
		cli:     cli,
		image:   image,
		timeout: timeout,
		logger:  logger.With(zap.String("component", "docker_installer")),
	}, nil
}

// Install pulls the image if needed, runs npm install in a container with
// the workspace mounted, and waits for it to exit. A non-zero container
// exit becomes *domain.BuildFailure carrying the container logs.
func (i *Installer) Install(ctx context.Context, ws domain.Workspace) error {
	if i.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.timeout)
		defer cancel()
	}

	if err := i.ensureImage(ctx); err != nil {
		return err
	}

	resp, err := i.cli.ContainerCreate(ctx, &container.Config{
		Image:      i.image,
		WorkingDir: containerWorkdir,
		Cmd: []string{
			"npm", "install",
			"--no-audit", "--no-fund", "--no-package-lock", "--loglevel=error",
		},
	}, &container.HostConfig{
		Binds: []string{ws.Dir + ":" + containerWorkdir},
	}, nil, nil, "")
	if err != nil {
		return fmt.Errorf("failed to create container: %w", err)
	}
	defer i.remove(resp.ID)

	if err := i.cli.ContainerStart(ctx, resp.ID, types.ContainerStartOptions{}); err != nil {
		return fmt.Errorf("failed to start container: %w", err)
	}

	statusCh, errCh := i.cli.ContainerWait(ctx, resp.ID, container.WaitConditionNotRunning)
	select {
	case err := <-errCh:
		if errors.Is(err, context.DeadlineExceeded) {
			return &domain.BuildFailure{
				ExitCode:    -1,
				Diagnostics: fmt.Sprintf("containerized install timed out after %s", i.timeout),
			}
		}
		return fmt.Errorf("failed to wait for container: %w", err)
	case status := <-statusCh:
		if status.StatusCode != 0 {
			return &domain.BuildFailure{
				ExitCode:    int(status.StatusCode),
				Diagnostics: i.collectLogs(resp.ID),
			}
		}
	}
	return nil
}

// ensureImage pulls the configured image, skipping the pull when it is
// already present locally so offline hosts with a preloaded image work.
func (i *Installer) ensureImage(ctx context.Context) error {
	if _, _, err := i.cli.ImageInspectWithRaw(ctx, i.image); err == nil {
		return nil
	}
	reader, err := i.cli.ImagePull(ctx, i.image, types.ImagePullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image %s: %w", i.image, err)
	}
	defer reader.Close()
	// The pull only completes once its progress stream is drained.
	io.Copy(io.Discard, reader)
	return nil
}

// collectLogs fetches the container's combined output, demultiplexed and
// bounded, for the failure diagnostics. Log collection uses its own
// context: the request context may already be expired.
func (i *Installer) collectLogs(id string) string {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logs, err := i.cli.ContainerLogs(ctx, id, types.ContainerLogsOptions{
		ShowStdout: true,
		ShowStderr: true,
	})
	if err != nil {
		i.logger.Error("failed to fetch container logs", zap.String("container", id), zap.Error(err))
		return ""
	}
	defer logs.Close()

	var buf boundedWriter
	stdcopy.StdCopy(&buf, &buf, logs)
	return buf.String()
}

func (i *Installer) remove(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := i.cli.ContainerRemove(ctx, id, types.ContainerRemoveOptions{Force: true}); err != nil {
		i.logger.Error("failed to remove container", zap.String("container", id), zap.Error(err))
	}
}

type boundedWriter struct {
	buf       []byte
	truncated bool
}

func (w *boundedWriter) Write(p []byte) (int, error) {
	room := maxDiagnostics - len(w.buf)
	if room > 0 {
		if room > len(p) {
			room = len(p)
		}
		w.buf = append(w.buf, p[:room]...)
	} else if len(p) > 0 {
		w.truncated = true
	}
	return len(p), nil
}

func (w *boundedWriter) String() string {
	if w.truncated {
		return string(w.buf) + "\n... [output truncated]"
	}
	return string(w.buf)
}
