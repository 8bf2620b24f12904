package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ecoskun/depstash/internal/core/domain"
)

type stubPipeline struct {
	manifest []byte
	receipt  domain.BuildReceipt
	err      error
}

func (s *stubPipeline) Run(ctx context.Context, manifest []byte) (domain.BuildReceipt, error) {
	s.manifest = manifest
	if s.err != nil {
		return domain.BuildReceipt{}, s.err
	}
	return s.receipt, nil
}

type stubSource struct {
	repoURL  string
	manifest []byte
	err      error
}

func (s *stubSource) Fetch(ctx context.Context, repoURL string) ([]byte, error) {
	s.repoURL = repoURL
	return s.manifest, s.err
}

type stubRegistry struct {
	artifact domain.Artifact
	err      error
}

func (s *stubRegistry) Put(artifact domain.Artifact) string { return "stub" }

func (s *stubRegistry) Get(id string) (domain.Artifact, error) {
	return s.artifact, s.err
}

func (s *stubRegistry) TakeIfLive(id string) (domain.Artifact, error) {
	if s.err != nil {
		return domain.Artifact{}, s.err
	}
	return s.artifact, nil
}

func newTestApp(pipeline *stubPipeline, source *stubSource, registry *stubRegistry) *fiber.App {
	h := NewBuildHandler(pipeline, source, registry, "http://localhost:3000", 1<<20, zap.NewNop())
	app := fiber.New()
	app.Post("/api/v1/builds", h.SubmitBuild)
	app.Get("/download/:id", h.Download)
	return app
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestSubmitBuildJSONSuccess(t *testing.T) {
	expires := time.Now().Add(time.Hour)
	pipeline := &stubPipeline{receipt: domain.BuildReceipt{ID: "abc123", ExpiresAt: expires}}
	app := newTestApp(pipeline, &stubSource{}, &stubRegistry{})

	payload := `{"manifest":"{\"name\":\"x\",\"dependencies\":{\"left-pad\":\"1.3.0\"}}"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/builds", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "abc123", body["id"])
	assert.Equal(t, "http://localhost:3000/download/abc123", body["url"])
	assert.JSONEq(t, `{"name":"x","dependencies":{"left-pad":"1.3.0"}}`, string(pipeline.manifest))
}

func TestSubmitBuildMultipartFile(t *testing.T) {
	pipeline := &stubPipeline{receipt: domain.BuildReceipt{ID: "abc123", ExpiresAt: time.Now().Add(time.Hour)}}
	app := newTestApp(pipeline, &stubSource{}, &stubRegistry{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("manifest", "package.json")
	require.NoError(t, err)
	_, err = fw.Write([]byte(`{"name":"x"}`))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/builds", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Equal(t, `{"name":"x"}`, string(pipeline.manifest))
}

func TestSubmitBuildMultipartText(t *testing.T) {
	pipeline := &stubPipeline{receipt: domain.BuildReceipt{ID: "abc123", ExpiresAt: time.Now().Add(time.Hour)}}
	app := newTestApp(pipeline, &stubSource{}, &stubRegistry{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("text", `{"name":"pasted"}`))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/builds", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Equal(t, `{"name":"pasted"}`, string(pipeline.manifest))
}

func TestSubmitBuildMissingManifest(t *testing.T) {
	app := newTestApp(&stubPipeline{}, &stubSource{}, &stubRegistry{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/builds", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "manifest is required", decodeBody(t, resp)["error"])
}

func TestSubmitBuildRejectsTwoSources(t *testing.T) {
	app := newTestApp(&stubPipeline{}, &stubSource{}, &stubRegistry{})

	payload := `{"manifest":"{}","repo_url":"https://example.com/repo.git"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/builds", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, decodeBody(t, resp)["error"], "exactly one")
}

func TestSubmitBuildRepoURLUsesManifestSource(t *testing.T) {
	pipeline := &stubPipeline{receipt: domain.BuildReceipt{ID: "abc123", ExpiresAt: time.Now().Add(time.Hour)}}
	source := &stubSource{manifest: []byte(`{"name":"from-git"}`)}
	app := newTestApp(pipeline, source, &stubRegistry{})

	payload := `{"repo_url":"https://example.com/repo.git"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/builds", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Equal(t, "https://example.com/repo.git", source.repoURL)
	assert.Equal(t, `{"name":"from-git"}`, string(pipeline.manifest))
}

func TestSubmitBuildOversizedUpload(t *testing.T) {
	app := newTestApp(&stubPipeline{}, &stubSource{}, &stubRegistry{})

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("manifest", "package.json")
	require.NoError(t, err)
	_, err = fw.Write(bytes.Repeat([]byte("a"), (1<<20)+1))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/builds", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, decodeBody(t, resp)["error"], "byte limit")
}

func TestSubmitBuildInvalidJSONManifest(t *testing.T) {
	pipeline := &stubPipeline{err: &domain.InputError{Kind: domain.InputMalformed, Reason: "manifest is not valid JSON"}}
	app := newTestApp(pipeline, &stubSource{}, &stubRegistry{})

	payload := `{"manifest":"not json"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/builds", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "manifest is not valid JSON", decodeBody(t, resp)["error"])
}

func TestSubmitBuildToolFailureCarriesDiagnostics(t *testing.T) {
	pipeline := &stubPipeline{err: &domain.BuildFailure{
		ExitCode:    1,
		Diagnostics: "npm ERR! 404 Not Found - no-such-package",
	}}
	app := newTestApp(pipeline, &stubSource{}, &stubRegistry{})

	payload := `{"manifest":"{\"name\":\"x\"}"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/builds", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Contains(t, body["output"], "404 Not Found")
	assert.Equal(t, float64(1), body["exit_code"])
}

func TestSubmitBuildUnexpectedFailureIsGeneric(t *testing.T) {
	pipeline := &stubPipeline{err: errors.New("disk exploded at /var/depstash")}
	app := newTestApp(pipeline, &stubSource{}, &stubRegistry{})

	payload := `{"manifest":"{\"name\":\"x\"}"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/builds", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)

	body := decodeBody(t, resp)
	assert.Equal(t, "internal server error", body["error"])
	assert.NotContains(t, body["error"], "/var/depstash")
}

func TestDownloadStreamsArchive(t *testing.T) {
	content := []byte("pretend this is gzip")
	path := filepath.Join(t.TempDir(), domain.ArchiveFileName)
	require.NoError(t, os.WriteFile(path, content, 0o644))

	registry := &stubRegistry{artifact: domain.Artifact{
		ID:        "abc123",
		Path:      path,
		Size:      int64(len(content)),
		ExpiresAt: time.Now().Add(time.Hour),
	}}
	app := newTestApp(&stubPipeline{}, &stubSource{}, registry)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/download/abc123", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/gzip", resp.Header.Get(fiber.HeaderContentType))
	assert.Equal(t, `attachment; filename="node_modules.tar.gz"`, resp.Header.Get(fiber.HeaderContentDisposition))
	assert.Equal(t, int64(len(content)), resp.ContentLength)

	got, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestDownloadUnknownIsNotFound(t *testing.T) {
	registry := &stubRegistry{err: domain.ErrNotFound}
	app := newTestApp(&stubPipeline{}, &stubSource{}, registry)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/download/nope", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestDownloadExpiredIsGone(t *testing.T) {
	registry := &stubRegistry{err: domain.ErrExpired}
	app := newTestApp(&stubPipeline{}, &stubSource{}, registry)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/download/old", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusGone, resp.StatusCode)
}

func TestDownloadMissingFileReportsNotFound(t *testing.T) {
	registry := &stubRegistry{artifact: domain.Artifact{
		ID:   "abc123",
		Path: filepath.Join(t.TempDir(), "already-swept.tar.gz"),
	}}
	app := newTestApp(&stubPipeline{}, &stubSource{}, registry)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/download/abc123", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}
