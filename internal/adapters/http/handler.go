package http

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/ecoskun/depstash/internal/core/domain"
	"github.com/ecoskun/depstash/internal/core/ports"
)

// BuildHandler exposes the build pipeline and the artifact registry over
// HTTP.
type BuildHandler struct {
	pipeline ports.BuildPipeline
	source   ports.ManifestSource
	registry ports.ArtifactRegistry
	baseURL  string
	maxBytes int64
	logger   *zap.Logger
}

// NewBuildHandler creates the handler. source may be nil when git-backed
// submissions are disabled.
func NewBuildHandler(
	pipeline ports.BuildPipeline,
	source ports.ManifestSource,
	registry ports.ArtifactRegistry,
	baseURL string,
	maxBytes int64,
	logger *zap.Logger,
) *BuildHandler {
	return &BuildHandler{
		pipeline: pipeline,
		source:   source,
		registry: registry,
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		maxBytes: maxBytes,
		logger:   logger.With(zap.String("component", "http")),
	}
}

type submitRequest struct {
	Manifest string `json:"manifest"`
	RepoURL  string `json:"repo_url"`
}

// SubmitBuild accepts a manifest (multipart file, multipart text field,
// JSON body, or a git repository URL), runs it through the pipeline, and
// returns the download reference. Exactly one manifest source must be
// provided.
func (h *BuildHandler) SubmitBuild(c *fiber.Ctx) error {
	manifest, err := h.readManifest(c)
	if err != nil {
		return h.fail(c, err)
	}

	receipt, err := h.pipeline.Run(c.Context(), manifest)
	if err != nil {
		return h.fail(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"id":         receipt.ID,
		"url":        fmt.Sprintf("%s/download/%s", h.baseURL, receipt.ID),
		"expires_at": receipt.ExpiresAt.UTC().Format(time.RFC3339),
		"expires_in": int64(time.Until(receipt.ExpiresAt).Seconds()),
	})
}

// Download streams a registered archive. The file is opened while the
// entry is live; once the descriptor is open, a concurrent sweep unlink
// cannot break the in-flight transfer.
func (h *BuildHandler) Download(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return h.fail(c, &domain.InputError{Kind: domain.InputMissing, Reason: "artifact id is required"})
	}

	artifact, err := h.registry.TakeIfLive(id)
	if err != nil {
		return h.fail(c, err)
	}

	f, err := os.Open(artifact.Path)
	if err != nil {
		// A sweep may have won the race between lookup and open; the
		// registry's deletion is authoritative.
		return h.fail(c, domain.ErrNotFound)
	}

	c.Set(fiber.HeaderContentType, "application/gzip")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+domain.ArchiveFileName+`"`)
	return c.SendStream(f, int(artifact.Size))
}

// readManifest resolves the request's one effective manifest source.
func (h *BuildHandler) readManifest(c *fiber.Ctx) ([]byte, error) {
	var sources [][]byte
	var repoURL string

	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		if fh, err := c.FormFile("manifest"); err == nil && fh.Size > 0 {
			if fh.Size > h.maxBytes {
				return nil, &domain.InputError{
					Kind:   domain.InputTooLarge,
					Reason: fmt.Sprintf("manifest exceeds the %d byte limit", h.maxBytes),
				}
			}
			file, err := fh.Open()
			if err != nil {
				return nil, fmt.Errorf("open uploaded manifest: %w", err)
			}
			content, err := io.ReadAll(file)
			file.Close()
			if err != nil {
				return nil, fmt.Errorf("read uploaded manifest: %w", err)
			}
			sources = append(sources, content)
		}
		if text := c.FormValue("text"); strings.TrimSpace(text) != "" {
			sources = append(sources, []byte(text))
		}
		repoURL = c.FormValue("repo_url")
	} else {
		var req submitRequest
		if err := c.BodyParser(&req); err != nil {
			return nil, &domain.InputError{Kind: domain.InputMalformed, Reason: "invalid request body"}
		}
		if strings.TrimSpace(req.Manifest) != "" {
			sources = append(sources, []byte(req.Manifest))
		}
		repoURL = req.RepoURL
	}

	if repoURL != "" {
		if h.source == nil {
			return nil, &domain.InputError{Kind: domain.InputMalformed, Reason: "repository submissions are disabled"}
		}
		if len(sources) > 0 {
			return nil, &domain.InputError{Kind: domain.InputMalformed, Reason: "provide exactly one manifest source"}
		}
		return h.source.Fetch(c.Context(), repoURL)
	}

	switch len(sources) {
	case 0:
		return nil, &domain.InputError{Kind: domain.InputMissing, Reason: "manifest is required"}
	case 1:
		return sources[0], nil
	default:
		return nil, &domain.InputError{Kind: domain.InputMalformed, Reason: "provide exactly one manifest source"}
	}
}

// fail maps the error taxonomy to client responses. Client mistakes and
// tool failures carry specific messages; anything unexpected is logged in
// full and reported generically.
func (h *BuildHandler) fail(c *fiber.Ctx, err error) error {
	var inputErr *domain.InputError
	if errors.As(err, &inputErr) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": inputErr.Reason,
		})
	}

	var buildErr *domain.BuildFailure
	if errors.As(err, &buildErr) {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error":     "dependency installation failed",
			"exit_code": buildErr.ExitCode,
			"output":    buildErr.Diagnostics,
		})
	}

	var archiveErr *domain.ArchiveFailure
	if errors.As(err, &archiveErr) {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"error":     "archive creation failed",
			"exit_code": archiveErr.ExitCode,
			"output":    archiveErr.Diagnostics,
		})
	}

	if errors.Is(err, domain.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "artifact not found",
		})
	}
	if errors.Is(err, domain.ErrExpired) {
		return c.Status(fiber.StatusGone).JSON(fiber.Map{
			"error": "artifact expired",
		})
	}

	h.logger.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "internal server error",
	})
}
