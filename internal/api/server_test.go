package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/chatmd/internal/archive"
	"github.com/dgallion1/chatmd/internal/config"
	"github.com/dgallion1/chatmd/internal/pipeline"
	"github.com/dgallion1/chatmd/internal/platform"
)

const teamGPTURL = "https://app.team-gpt.com/c/abc/chat/1"

const teamGPTPage = `<div data-test-id="thread-name">API Test</div>` +
	`<div data-test-id="chat-msg">` +
	`<span class="text-sm font-semibold leading-5">Bob</span>` +
	`<span class="text-xs text-muted-foreground">8:00 AM</span>` +
	`<div class="prose break-words"><p>ping</p></div></div>`

type upload struct {
	field, name, body string
}

func multipartBody(t *testing.T, fields map[string][]string, files ...upload) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, vs := range fields {
		for _, v := range vs {
			require.NoError(t, mw.WriteField(k, v))
		}
	}
	for _, f := range files {
		fw, err := mw.CreateFormFile(f.field, f.name)
		require.NoError(t, err)
		_, err = io.WriteString(fw, f.body)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

type testEnv struct {
	srv  *Server
	orch *pipeline.Orchestrator
	arch *archive.Store
}

func newEnv(t *testing.T, mutate func(*config.Config), withArchive bool) *testEnv {
	t.Helper()
	cfg := config.Config{
		Port:           "0",
		WorkerCount:    1,
		MaxQueueSize:   8,
		MaxUploadBytes: 1 << 20,
		JobTTL:         time.Hour,
		StatsWindow:    time.Hour,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	var arch *archive.Store
	var pa pipeline.Archive
	if withArchive {
		var err error
		arch, err = archive.New(filepath.Join(t.TempDir(), "archive.db"))
		require.NoError(t, err)
		t.Cleanup(func() { arch.Close() })
		idx, err := archive.OpenIndex("")
		require.NoError(t, err)
		t.Cleanup(func() { idx.Close() })
		require.NoError(t, arch.AttachIndex(context.Background(), idx))
		pa = arch
	}

	orch := pipeline.NewOrchestrator(cfg, platform.NewRegistry(platform.DefaultProfiles(), nil), pa, log)
	orch.Start(context.Background())
	t.Cleanup(orch.Stop)

	return &testEnv{srv: NewServer(orch, arch, log, cfg), orch: orch, arch: arch}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.srv.ServeHTTP(rec, req)
	return rec
}

func exportRequest(t *testing.T, pageURL, page string, extra map[string][]string) *http.Request {
	t.Helper()
	fields := map[string][]string{"url": {pageURL}}
	for k, v := range extra {
		fields[k] = v
	}
	body, ct := multipartBody(t, fields, upload{"file", "page.html", page})
	req := httptest.NewRequest(http.MethodPost, "/api/export", body)
	req.Header.Set("Content-Type", ct)
	return req
}

func TestHealth(t *testing.T) {
	env := newEnv(t, func(c *config.Config) { c.APIKey = "secret" }, false)
	rec := env.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestAuth(t *testing.T) {
	env := newEnv(t, func(c *config.Config) { c.APIKey = "secret" }, false)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/stats/export", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/stats/export", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	assert.Equal(t, http.StatusUnauthorized, env.do(req).Code)

	req = httptest.NewRequest(http.MethodGet, "/api/stats/export", nil)
	req.Header.Set("Authorization", "Bearer secret")
	assert.Equal(t, http.StatusOK, env.do(req).Code)
}

func TestAuthDisabledWithoutKey(t *testing.T) {
	env := newEnv(t, nil, false)
	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/stats/export", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestExport_ReturnsMarkdown(t *testing.T) {
	env := newEnv(t, nil, false)
	rec := env.do(exportRequest(t, teamGPTURL, teamGPTPage, nil))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "text/markdown; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "api_test_")
	assert.Equal(t, "0", rec.Header().Get("X-Skipped-Messages"))

	body := rec.Body.String()
	assert.True(t, strings.HasPrefix(body, "---\ndate: "), body)
	assert.Contains(t, body, "\n# API Test\n\n## Bob - 8:00 AM\n\nping")

	assert.Equal(t, 1, env.orch.Stats().Snapshot().Count)
}

func TestExport_UnsupportedPlatform(t *testing.T) {
	env := newEnv(t, nil, false)
	rec := env.do(exportRequest(t, "https://example.com/chat", teamGPTPage, nil))

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp["error"], "unsupported platform")
}

func TestExport_BadForm(t *testing.T) {
	env := newEnv(t, nil, false)

	req := httptest.NewRequest(http.MethodPost, "/api/export", strings.NewReader("not multipart"))
	req.Header.Set("Content-Type", "text/plain")
	assert.Equal(t, http.StatusBadRequest, env.do(req).Code)

	body, ct := multipartBody(t, map[string][]string{"url": {teamGPTURL}})
	req = httptest.NewRequest(http.MethodPost, "/api/export", body)
	req.Header.Set("Content-Type", ct)
	assert.Equal(t, http.StatusBadRequest, env.do(req).Code, "missing file")

	body, ct = multipartBody(t, nil, upload{"file", "page.html", teamGPTPage})
	req = httptest.NewRequest(http.MethodPost, "/api/export", body)
	req.Header.Set("Content-Type", ct)
	assert.Equal(t, http.StatusBadRequest, env.do(req).Code, "missing url")
}

func TestExport_TooLarge(t *testing.T) {
	env := newEnv(t, func(c *config.Config) { c.MaxUploadBytes = 2048 }, false)
	rec := env.do(exportRequest(t, teamGPTURL, strings.Repeat("x", 4096), nil))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestExport_BodyOverLimitIsTooLarge(t *testing.T) {
	env := newEnv(t, func(c *config.Config) { c.MaxUploadBytes = 2048 }, false)
	// Larger than the upload limit plus the form allowance, so the body
	// limit trips while the form is still being parsed.
	rec := env.do(exportRequest(t, teamGPTURL, strings.Repeat("x", 2<<20), nil))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Contains(t, rec.Body.String(), "exceeds max size")
}

func TestExport_ArchivesOnRequest(t *testing.T) {
	env := newEnv(t, nil, true)
	rec := env.do(exportRequest(t, teamGPTURL, teamGPTPage, map[string][]string{"archive": {"true"}}))
	require.Equal(t, http.StatusOK, rec.Code)

	id := rec.Header().Get("X-Archive-Id")
	require.NotEmpty(t, id)

	entry, err := env.arch.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, "API Test", entry.Title)
	assert.Equal(t, rec.Body.String(), entry.Markdown)
}

func waitForStatus(t *testing.T, env *testEnv, jobID string, want pipeline.JobStatus) pipeline.JobSnapshot {
	t.Helper()
	var snap pipeline.JobSnapshot
	require.Eventually(t, func() bool {
		rec := env.do(httptest.NewRequest(http.MethodGet, "/api/export/"+jobID+"/status", nil))
		if rec.Code != http.StatusOK {
			return false
		}
		snap = pipeline.JobSnapshot{}
		if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
			return false
		}
		return snap.Status == want
	}, 2*time.Second, 10*time.Millisecond)
	return snap
}

func TestBatchExport_QueuesAndDownloads(t *testing.T) {
	env := newEnv(t, nil, true)

	body, ct := multipartBody(t,
		map[string][]string{"urls": {teamGPTURL, "https://example.com"}},
		upload{"files", "one.html", teamGPTPage},
		upload{"files", "../two.html", "<p>x</p>"},
	)
	req := httptest.NewRequest(http.MethodPost, "/api/export/batch", body)
	req.Header.Set("Content-Type", ct)
	rec := env.do(req)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	var resp struct {
		Jobs []struct {
			Filename string `json:"filename"`
			JobID    string `json:"job_id"`
			PollURL  string `json:"poll_url"`
		} `json:"jobs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Jobs, 2)
	assert.Equal(t, "two.html", resp.Jobs[1].Filename)
	assert.Equal(t, "/api/export/"+resp.Jobs[0].JobID+"/status", resp.Jobs[0].PollURL)

	done := waitForStatus(t, env, resp.Jobs[0].JobID, pipeline.StatusCompleted)
	require.NotNil(t, done.Output)
	assert.NotEmpty(t, done.Output.ArchiveID)
	assert.Equal(t, 1, done.Progress.Messages)

	failed := waitForStatus(t, env, resp.Jobs[1].JobID, pipeline.StatusFailed)
	assert.Nil(t, failed.Output)

	dl := env.do(httptest.NewRequest(http.MethodGet, "/api/export/"+resp.Jobs[0].JobID+"/download", nil))
	require.Equal(t, http.StatusOK, dl.Code)
	assert.Contains(t, dl.Body.String(), "# API Test")

	dl = env.do(httptest.NewRequest(http.MethodGet, "/api/export/"+resp.Jobs[1].JobID+"/download", nil))
	assert.Equal(t, http.StatusConflict, dl.Code)
}

func TestBatchExport_URLCountMismatch(t *testing.T) {
	env := newEnv(t, nil, false)
	body, ct := multipartBody(t,
		map[string][]string{"urls": {teamGPTURL, teamGPTURL}},
		upload{"files", "a.html", teamGPTPage},
		upload{"files", "b.html", teamGPTPage},
		upload{"files", "c.html", teamGPTPage},
	)
	req := httptest.NewRequest(http.MethodPost, "/api/export/batch", body)
	req.Header.Set("Content-Type", ct)
	assert.Equal(t, http.StatusBadRequest, env.do(req).Code)
}

func TestExportStatus_NotFound(t *testing.T) {
	env := newEnv(t, nil, false)
	assert.Equal(t, http.StatusNotFound, env.do(httptest.NewRequest(http.MethodGet, "/api/export/nope/status", nil)).Code)
	assert.Equal(t, http.StatusNotFound, env.do(httptest.NewRequest(http.MethodGet, "/api/export/nope/download", nil)).Code)
}

func TestArchiveEndpoints(t *testing.T) {
	env := newEnv(t, nil, true)
	ctx := context.Background()
	saved, err := env.arch.Save(ctx, archive.Entry{
		URL: teamGPTURL, Platform: "team-gpt", Title: "Stored", Filename: "stored_2026-03-14.md",
		ContentHash: "h", Markdown: "# Stored\n",
	})
	require.NoError(t, err)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/archive?limit=10", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Exports []archive.Entry `json:"exports"`
		Limit   int             `json:"limit"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Exports, 1)
	assert.Equal(t, 10, list.Limit)
	assert.Empty(t, list.Exports[0].Markdown)

	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/archive/"+saved.ID, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var got archive.Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "# Stored\n", got.Markdown)

	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/archive/"+saved.ID+"/download", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "# Stored\n", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "stored_2026-03-14.md")

	rec = env.do(httptest.NewRequest(http.MethodDelete, "/api/archive/"+saved.ID, nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/archive/"+saved.ID, nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestArchiveSearch(t *testing.T) {
	env := newEnv(t, nil, true)
	ctx := context.Background()
	saved, err := env.arch.Save(ctx, archive.Entry{
		URL: teamGPTURL, Platform: "team-gpt", Title: "Channels", Filename: "channels_2026-03-14.md",
		ContentHash: "h1", Markdown: "# Channels\n\nBuffered channels block when full.\n",
	})
	require.NoError(t, err)
	_, err = env.arch.Save(ctx, archive.Entry{
		URL: teamGPTURL, Platform: "team-gpt", Title: "Recipes", Filename: "recipes_2026-03-14.md",
		ContentHash: "h2", Markdown: "# Recipes\n\nBake for twenty minutes.\n",
	})
	require.NoError(t, err)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/archive/search?q=buffered", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Query   string              `json:"query"`
		Results []archive.SearchHit `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "buffered", body.Query)
	require.Len(t, body.Results, 1)
	assert.Equal(t, saved.ID, body.Results[0].Entry.ID)

	rec = env.do(httptest.NewRequest(http.MethodGet, "/api/archive/search", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestArchiveEndpoints_DisabledWithoutStore(t *testing.T) {
	env := newEnv(t, nil, false)
	rec := env.do(httptest.NewRequest(http.MethodGet, "/api/archive", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"page.html":        "page.html",
		"../../etc/passwd": "passwd",
		"a\\b.html":        "a_b.html",
		"":                 "unnamed",
		"x..y":             "x_y",
	}
	for in, want := range tests {
		assert.Equal(t, want, sanitizeFilename(in), "sanitizeFilename(%q)", in)
	}
}

func TestExport_RejectsNonPageUpload(t *testing.T) {
	env := newEnv(t, nil, false)
	body, ct := multipartBody(t, map[string][]string{"url": {teamGPTURL}}, upload{"file", "chat.pdf", "%PDF"})
	req := httptest.NewRequest(http.MethodPost, "/api/export", body)
	req.Header.Set("Content-Type", ct)
	rec := env.do(req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "unsupported file type: .pdf")
}

func TestIsPageFile(t *testing.T) {
	assert.True(t, isPageFile("Chat.HTML"))
	assert.True(t, isPageFile("a.htm"))
	assert.False(t, isPageFile("a.md"))
	assert.False(t, isPageFile("noext"))
}
