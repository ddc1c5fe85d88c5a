package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/dgallion1/chatmd/internal/archive"
	"github.com/go-chi/chi/v5"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// handleListArchive lists archived exports, newest first.
func (s *Server) handleListArchive(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultListLimit)
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	entries, err := s.archive.List(r.Context(), limit, offset)
	if err != nil {
		jsonError(w, "failed to list exports: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"exports": entries,
		"limit":   limit,
		"offset":  offset,
	})
}

// handleSearchArchive runs a full-text query over archived exports.
func (s *Server) handleSearchArchive(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		jsonError(w, "missing 'q' parameter", http.StatusBadRequest)
		return
	}
	limit := queryInt(r, "limit", 10)
	if limit <= 0 || limit > 20 {
		limit = 10
	}

	hits, err := s.archive.Search(r.Context(), q, limit)
	if errors.Is(err, archive.ErrNoIndex) {
		jsonError(w, err.Error(), http.StatusNotImplemented)
		return
	}
	if err != nil {
		jsonError(w, "search failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"query":   q,
		"results": hits,
	})
}

func (s *Server) handleGetArchive(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.lookupArchive(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entry)
}

func (s *Server) handleDownloadArchive(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.lookupArchive(w, r)
	if !ok {
		return
	}
	writeMarkdown(w, entry.Filename, entry.Markdown)
}

// handleDeleteArchive removes an archived export.
func (s *Server) handleDeleteArchive(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.archive.Delete(r.Context(), id); err != nil {
		if errors.Is(err, archive.ErrNotFound) {
			jsonError(w, "export not found", http.StatusNotFound)
			return
		}
		jsonError(w, "failed to delete export: "+err.Error(), http.StatusInternalServerError)
		return
	}
	s.log.Info("deleted archived export", "id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) lookupArchive(w http.ResponseWriter, r *http.Request) (archive.Entry, bool) {
	entry, err := s.archive.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, archive.ErrNotFound) {
		jsonError(w, "export not found", http.StatusNotFound)
		return archive.Entry{}, false
	}
	if err != nil {
		jsonError(w, "failed to read export: "+err.Error(), http.StatusInternalServerError)
		return archive.Entry{}, false
	}
	return entry, true
}

func queryInt(r *http.Request, key string, fallback int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
