// Package gitsource fetches a manifest from a git repository instead of
// the request body: the repository's package.json at HEAD becomes the
// build input.
package gitsource

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	git "github.com/go-git/go-git/v5"
	"go.uber.org/zap"

	"github.com/ecoskun/depstash/internal/core/domain"
)

// Source implements ports.ManifestSource with a throwaway shallow clone.
type Source struct {
	// CloneDepth limits history transfer; 0 means a full clone.
	CloneDepth int

	logger *zap.Logger
}

// NewSource creates a git manifest source with a shallow clone depth of 1.
func NewSource(logger *zap.Logger) *Source {
	return &Source{
		CloneDepth: 1,
		logger:     logger.With(zap.String("component", "git_source")),
	}
}

// Fetch clones the repository into a temp directory, reads its
// package.json, and discards the clone. A repository without a
// package.json is a client mistake, reported as malformed input.
func (s *Source) Fetch(ctx context.Context, repoURL string) ([]byte, error) {
	tmpDir, err := os.MkdirTemp("", "depstash-clone-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create clone dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	s.logger.Info("cloning repository", zap.String("url", repoURL))
	_, err = git.PlainCloneContext(ctx, tmpDir, false, &git.CloneOptions{
		URL:   repoURL,
		Depth: s.CloneDepth,
	})
	if err != nil {
		return nil, &domain.InputError{
			Kind:   domain.InputMalformed,
			Reason: fmt.Sprintf("failed to clone repository: %v", err),
		}
	}

	manifest, err := os.ReadFile(filepath.Join(tmpDir, domain.ManifestFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &domain.InputError{
				Kind:   domain.InputMalformed,
				Reason: "repository has no package.json",
			}
		}
		return nil, fmt.Errorf("failed to read repository manifest: %w", err)
	}
	return manifest, nil
}
