package toolexec

import (
	"context"
	"fmt"
	"os/exec"
	"syscall"

	"github.com/ecoskun/depstash/internal/core/ports"
)

// DefaultMaxCapture bounds each captured output stream. Diagnostics from a
// noisy install can run to megabytes; everything past the cap is dropped
// and replaced with a marker.
const DefaultMaxCapture = 256 * 1024

const truncationMarker = "\n... [output truncated]"

// Runner implements ports.ToolRunner with os/exec. Each tool runs in its
// own process group so that a context cancellation kills the whole tree,
// not just the direct child.
type Runner struct {
	maxCapture int
}

// NewRunner creates a runner with the default capture cap.
func NewRunner() *Runner {
	return &Runner{maxCapture: DefaultMaxCapture}
}

// NewRunnerWithCap creates a runner capturing at most maxCapture bytes per
// stream.
func NewRunnerWithCap(maxCapture int) *Runner {
	return &Runner{maxCapture: maxCapture}
}

// Run executes the tool in dir and waits for it to finish. A non-zero exit
// is reported through ToolResult, not the error return. If ctx expires the
// process group is killed and the context error is returned.
func (r *Runner) Run(ctx context.Context, dir string, name string, args ...string) (ports.ToolResult, error) {
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout := newCappedBuffer(r.maxCapture)
	stderr := newCappedBuffer(r.maxCapture)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return ports.ToolResult{}, fmt.Errorf("start %s: %w", name, err)
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case <-ctx.Done():
		// Negative pid addresses the process group.
		syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		<-done
		return ports.ToolResult{}, fmt.Errorf("%s interrupted: %w", name, ctx.Err())
	case err := <-done:
		if err != nil {
			exitErr, ok := err.(*exec.ExitError)
			if !ok {
				return ports.ToolResult{}, fmt.Errorf("run %s: %w", name, err)
			}
			return ports.ToolResult{
				ExitCode: exitErr.ExitCode(),
				Stdout:   stdout.String(),
				Stderr:   stderr.String(),
			}, nil
		}
	}

	return ports.ToolResult{
		ExitCode: 0,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}, nil
}

// cappedBuffer accepts every write but stores at most limit bytes, so a
// runaway tool cannot grow process memory without bound.
type cappedBuffer struct {
	buf       []byte
	limit     int
	truncated bool
}

func newCappedBuffer(limit int) *cappedBuffer {
	return &cappedBuffer{limit: limit}
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	room := b.limit - len(b.buf)
	if room > 0 {
		if room > len(p) {
			room = len(p)
		}
		b.buf = append(b.buf, p[:room]...)
	}
	if len(b.buf) == b.limit && room < len(p) {
		b.truncated = true
	}
	return len(p), nil
}

func (b *cappedBuffer) String() string {
	if b.truncated {
		return string(b.buf) + truncationMarker
	}
	return string(b.buf)
}
