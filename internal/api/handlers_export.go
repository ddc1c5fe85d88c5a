package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/dgallion1/chatmd/internal/archive"
	"github.com/dgallion1/chatmd/internal/export"
	"github.com/dgallion1/chatmd/internal/pipeline"
	"github.com/dgallion1/chatmd/internal/platform"
	"github.com/go-chi/chi/v5"
)

// handleExport converts one uploaded page synchronously and returns the
// Markdown document.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	// Limit total request size.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes+1024*1024) // extra 1MB for form overhead

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		formError(w, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	pageURL := strings.TrimSpace(r.FormValue("url"))
	if pageURL == "" {
		jsonError(w, "url is required", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "file is required: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer file.Close()

	if name := sanitizeFilename(header.Filename); !isPageFile(name) {
		jsonError(w, fmt.Sprintf("unsupported file type: %s", filepath.Ext(name)), http.StatusBadRequest)
		return
	}

	data, ok := s.readUpload(w, file)
	if !ok {
		return
	}

	start := time.Now()
	res, err := export.Run(bytes.NewReader(data), pageURL, export.Options{Registry: s.orchestrator.Registry()})
	if err != nil {
		s.orchestrator.Stats().RecordFailure(time.Since(start))
		if errors.Is(err, platform.ErrUnsupportedPlatform) {
			jsonError(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		s.log.Error("export failed", "url", pageURL, "file", sanitizeFilename(header.Filename), "error", err)
		jsonError(w, "export failed: "+err.Error(), http.StatusBadRequest)
		return
	}
	s.orchestrator.Stats().Record(time.Since(start))

	if s.archive != nil && r.FormValue("archive") == "true" {
		entry, err := s.archive.Save(r.Context(), archive.Entry{
			URL:         pageURL,
			Platform:    res.Platform,
			Title:       res.Document.Title,
			Model:       res.Document.ModelName,
			Topic:       res.Document.TopicTag(),
			Filename:    res.Filename,
			ContentHash: pipeline.ContentHashHex(data),
			Markdown:    res.Text,
		})
		if err != nil {
			s.log.Warn("archive write failed", "url", pageURL, "error", err)
		} else {
			w.Header().Set("X-Archive-Id", entry.ID)
		}
	}

	w.Header().Set("X-Skipped-Messages", fmt.Sprint(res.Skipped))
	writeMarkdown(w, res.Filename, res.Text)
}

// handleBatchExport queues one job per uploaded page. urls pairs with files
// by position; a single url applies to every file.
func (s *Server) handleBatchExport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes*10+10*1024*1024)

	if err := r.ParseMultipartForm(64 << 20); err != nil {
		formError(w, err)
		return
	}
	defer r.MultipartForm.RemoveAll()

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		jsonError(w, "at least one file is required", http.StatusBadRequest)
		return
	}
	urls := r.MultipartForm.Value["urls"]
	if len(urls) != 1 && len(urls) != len(files) {
		jsonError(w, fmt.Sprintf("expected 1 or %d urls, got %d", len(files), len(urls)), http.StatusBadRequest)
		return
	}

	results := make([]map[string]any, 0, len(files))
	for i, fh := range files {
		filename := sanitizeFilename(fh.Filename)
		pageURL := strings.TrimSpace(urls[0])
		if len(urls) > 1 {
			pageURL = strings.TrimSpace(urls[i])
		}

		if !isPageFile(filename) {
			results = append(results, map[string]any{
				"filename": filename,
				"error":    fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename)),
			})
			continue
		}

		f, err := fh.Open()
		if err != nil {
			results = append(results, map[string]any{
				"filename": filename,
				"error":    "failed to open file",
			})
			continue
		}

		data, err := io.ReadAll(io.LimitReader(f, s.cfg.MaxUploadBytes+1))
		f.Close()
		if err != nil || int64(len(data)) > s.cfg.MaxUploadBytes {
			results = append(results, map[string]any{
				"filename": filename,
				"error":    "file too large or read error",
			})
			continue
		}

		job := pipeline.NewJob(pageURL, filename, data)
		if err := s.orchestrator.Submit(job); err != nil {
			results = append(results, map[string]any{
				"filename": filename,
				"error":    err.Error(),
			})
			continue
		}

		results = append(results, map[string]any{
			"filename":     filename,
			"url":          pageURL,
			"job_id":       job.ID,
			"status":       pipeline.StatusQueued,
			"poll_url":     fmt.Sprintf("/api/export/%s/status", job.ID),
			"download_url": fmt.Sprintf("/api/export/%s/download", job.ID),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]any{"jobs": results})
}

func (s *Server) handleExportStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := s.orchestrator.GetJob(jobID)
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(job.Snapshot())
}

func (s *Server) handleExportDownload(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := s.orchestrator.GetJob(jobID)
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	out, ok := job.Output()
	if !ok {
		jsonError(w, fmt.Sprintf("job is %s", job.Snapshot().Status), http.StatusConflict)
		return
	}
	writeMarkdown(w, out.Filename, out.Text)
}

func (s *Server) readUpload(w http.ResponseWriter, file multipart.File) ([]byte, bool) {
	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		jsonError(w, "failed to read file", http.StatusInternalServerError)
		return nil, false
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		jsonError(w, fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes), http.StatusRequestEntityTooLarge)
		return nil, false
	}
	return data, true
}

// pageExtensions lists the saved-page formats accepted for upload.
var pageExtensions = map[string]bool{
	".html":  true,
	".htm":   true,
	".xhtml": true,
}

func isPageFile(filename string) bool {
	return pageExtensions[strings.ToLower(filepath.Ext(filename))]
}

func writeMarkdown(w http.ResponseWriter, filename, text string) {
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	io.WriteString(w, text)
}

// formError reports a multipart parse failure, distinguishing an oversized
// request body from a malformed form.
func formError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		jsonError(w, fmt.Sprintf("request exceeds max size (%d bytes)", tooLarge.Limit), http.StatusRequestEntityTooLarge)
		return
	}
	jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func sanitizeFilename(name string) string {
	// Strip path components, keep only the base name.
	name = filepath.Base(name)
	// Remove any path separators that might have survived.
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." {
		name = "unnamed"
	}
	return name
}
