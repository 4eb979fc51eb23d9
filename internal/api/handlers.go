package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/urlmeta/inventory/internal/metadata"
	"github.com/urlmeta/inventory/internal/queue"
	"github.com/urlmeta/inventory/internal/service"
	"github.com/urlmeta/inventory/internal/store"
)

type metadataRequest struct {
	URL string `json:"url"`
}

type collectStats struct {
	HeadersCount     int `json:"headers_count"`
	CookiesCount     int `json:"cookies_count"`
	PageSourceLength int `json:"page_source_length"`
}

type collectResponse struct {
	Message     string       `json:"message"`
	URL         string       `json:"url"`
	CollectedAt string       `json:"collected_at"`
	Stats       collectStats `json:"stats"`
}

func (s *Server) root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "HTTP Metadata Inventory API",
		"endpoints": map[string]string{
			"POST /metadata": "Collect and store metadata for a URL",
			"GET /metadata":  "Retrieve metadata for a URL (triggers background collection if not exists)",
		},
	})
}

// createMetadata always fetches fresh metadata, even when a record for the
// URL already exists. 201 marks a first collection, 200 a refresh.
func (s *Server) createMetadata(w http.ResponseWriter, r *http.Request) {
	var req metadataRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid request body")
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		writeError(w, http.StatusUnprocessableEntity, "url is required")
		return
	}

	res, err := s.collector.Collect(r.Context(), req.URL)
	if err != nil {
		s.writeCollectError(w, req.URL, err)
		return
	}

	status := http.StatusCreated
	message := "Metadata collected and stored successfully"
	if res.Refreshed {
		status = http.StatusOK
		message = "Metadata refreshed successfully"
	}
	writeJSON(w, status, collectResponse{
		Message:     message,
		URL:         res.URL,
		CollectedAt: res.CollectedAt.Format(time.RFC3339),
		Stats: collectStats{
			HeadersCount:     res.HeadersCount,
			CookiesCount:     res.CookiesCount,
			PageSourceLength: res.PageSourceLength,
		},
	})
}

// getMetadata looks the URL up verbatim. On a miss it queues exactly one
// background collection and answers 202 so the caller can poll later.
func (s *Server) getMetadata(w http.ResponseWriter, r *http.Request) {
	rawURL := r.URL.Query().Get("url")
	if rawURL == "" {
		writeError(w, http.StatusUnprocessableEntity, "url query parameter is required")
		return
	}

	record, err := s.repo.GetByURL(r.Context(), rawURL)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, record)
	case errors.Is(err, store.ErrNotFound):
		s.queueCollection(w, rawURL)
	case errors.Is(err, store.ErrUnavailable):
		s.logger.Error("store lookup failed", zap.String("url", rawURL), zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "Database unavailable")
	default:
		s.logger.Error("metadata retrieval failed", zap.String("url", rawURL), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Error retrieving metadata")
	}
}

func (s *Server) queueCollection(w http.ResponseWriter, rawURL string) {
	if err := s.jobs.TryEnqueue(queue.Item{URL: rawURL}); err != nil {
		s.logger.Error("background collection enqueue failed",
			zap.String("url", rawURL),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "Error retrieving metadata")
		return
	}
	s.logger.Info("background collection queued", zap.String("url", rawURL))
	writeJSON(w, http.StatusAccepted, map[string]string{
		"message": "Record doesn't exist & request has been logged to collect the metadata, please check later",
		"url":     rawURL,
		"status":  "pending_collection",
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if err := s.repo.Ping(r.Context()); err != nil {
		s.logger.Error("database health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":   "unhealthy",
			"database": "disconnected",
			"error":    err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "healthy",
		"database": "connected",
	})
}

func (s *Server) writeCollectError(w http.ResponseWriter, rawURL string, err error) {
	var fetchErr *metadata.FetchError
	switch {
	case errors.Is(err, service.ErrInvalidURL):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &fetchErr):
		s.logger.Warn("metadata fetch failed", zap.String("url", rawURL), zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, store.ErrDuplicateKey):
		s.logger.Info("duplicate metadata detected", zap.String("url", rawURL))
		writeError(w, http.StatusConflict, "Metadata already exists")
	case errors.Is(err, store.ErrUnavailable):
		s.logger.Error("database error", zap.String("url", rawURL), zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "Database unavailable")
	default:
		s.logger.Error("unhandled collection error", zap.String("url", rawURL), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}
