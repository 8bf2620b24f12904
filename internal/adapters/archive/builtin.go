package archive

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
	"go.uber.org/zap"

	"github.com/ecoskun/depstash/internal/core/domain"
)

// Builtin implements ports.Archiver in-process with archive/tar and
// klauspost gzip. It produces the same archive path and layout as the tar
// subprocess, for deployments where no tar binary is available.
type Builtin struct {
	logger *zap.Logger
}

// NewBuiltin creates the in-process archiver.
func NewBuiltin(logger *zap.Logger) *Builtin {
	return &Builtin{logger: logger.With(zap.String("component", "builtin_archiver"))}
}

// Compress walks the installed tree and writes node_modules.tar.gz. The
// archive is written to a temp name first and renamed into place so a
// partial write never sits at the fixed path.
func (b *Builtin) Compress(ctx context.Context, ws domain.Workspace) (string, int64, error) {
	tmp, err := os.CreateTemp(ws.Dir, "archive-*.partial")
	if err != nil {
		return "", 0, fmt.Errorf("create archive file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := writeTarGz(ctx, tmp, ws); err != nil {
		tmp.Close()
		return "", 0, &domain.ArchiveFailure{ExitCode: -1, Diagnostics: err.Error()}
	}
	if err := tmp.Close(); err != nil {
		return "", 0, fmt.Errorf("close archive file: %w", err)
	}

	path := ws.ArchivePath()
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", 0, fmt.Errorf("finalize archive: %w", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", 0, fmt.Errorf("stat archive: %w", err)
	}
	b.logger.Info("archive produced",
		zap.String("path", path),
		zap.Int64("size", info.Size()),
	)
	return path, info.Size(), nil
}

func writeTarGz(ctx context.Context, out io.Writer, ws domain.Workspace) error {
	gz := gzip.NewWriter(out)
	tw := tar.NewWriter(gz)

	root := ws.InstallDir()
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		rel, err := filepath.Rel(ws.Dir, path)
		if err != nil {
			return err
		}

		link := ""
		if info.Mode()&os.ModeSymlink != 0 {
			if link, err = os.Readlink(path); err != nil {
				return err
			}
		}
		hdr, err := tar.FileInfoHeader(info, link)
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		if info.IsDir() {
			hdr.Name += "/"
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		_, err = io.Copy(tw, f)
		f.Close()
		return err
	})
	if err != nil {
		return err
	}

	if err := tw.Close(); err != nil {
		return err
	}
	return gz.Close()
}
