// Package httpapi exposes the ingestion and retrieval operations over
// HTTP: multipart upload, job polling, semantic search, raw document
// retrieval, stats, and maintenance.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/bull/rag-server/internal/docstore"
	"github.com/bull/rag-server/internal/embedding"
	"github.com/bull/rag-server/internal/index"
	"github.com/bull/rag-server/internal/ingest"
	"github.com/bull/rag-server/internal/retrieval"
)

// defaultMaxUploadBytes bounds a whole multipart upload when no limit is
// configured.
const defaultMaxUploadBytes = 32 << 20

// Handler carries the HTTP endpoints' dependencies.
type Handler struct {
	service        *retrieval.Service
	pipeline       *ingest.Pipeline
	tracker        *ingest.Tracker
	logger         *slog.Logger
	maxUploadBytes int64
}

// New creates the handler set.
func New(service *retrieval.Service, pipeline *ingest.Pipeline, tracker *ingest.Tracker, maxUploadBytes int64, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if maxUploadBytes <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
	}
	return &Handler{
		service:        service,
		pipeline:       pipeline,
		tracker:        tracker,
		logger:         logger.With("component", "httpapi"),
		maxUploadBytes: maxUploadBytes,
	}
}

// UploadResponse is returned by the document upload endpoint.
type UploadResponse struct {
	JobID             string   `json:"job_id"`
	AcceptedFilenames []string `json:"accepted_filenames"`
	Message           string   `json:"message"`
}

// Upload accepts one or more files as multipart form data and queues an
// ingestion job. The call returns as soon as the job is accepted.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid multipart upload")
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	var headers []*multipart.FileHeader
	for _, fhs := range r.MultipartForm.File {
		headers = append(headers, fhs...)
	}
	if len(headers) == 0 {
		h.writeError(w, http.StatusBadRequest, "no files in upload")
		return
	}

	files := make([]ingest.FileUpload, 0, len(headers))
	for _, fh := range headers {
		data, err := readUploadedFile(fh)
		if err != nil {
			h.writeError(w, http.StatusBadRequest, fmt.Sprintf("read %s: %v", fh.Filename, err))
			return
		}
		files = append(files, ingest.FileUpload{Filename: fh.Filename, Data: data})
	}

	job, err := h.pipeline.Submit(files)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	h.logger.Info("upload accepted", "job_id", job.ID, "files", len(files))
	h.writeJSON(w, http.StatusAccepted, UploadResponse{
		JobID:             job.ID,
		AcceptedFilenames: job.Files,
		Message:           fmt.Sprintf("accepted %d file(s) for ingestion", len(job.Files)),
	})
}

// JobStatusResponse is returned by the job polling endpoint.
type JobStatusResponse struct {
	JobID      string             `json:"job_id"`
	State      ingest.State       `json:"state"`
	Progress   int                `json:"progress"`
	Total      int                `json:"total"`
	Error      string             `json:"error,omitempty"`
	FileErrors []ingest.FileError `json:"file_errors,omitempty"`
}

// JobStatus reports the current snapshot of an ingestion job.
func (h *Handler) JobStatus(w http.ResponseWriter, r *http.Request) {
	job, err := h.tracker.Get(r.PathValue("id"))
	if err != nil {
		h.writeError(w, statusFromError(err), "job not found")
		return
	}
	h.writeJSON(w, http.StatusOK, JobStatusResponse{
		JobID:      job.ID,
		State:      job.State,
		Progress:   job.Processed,
		Total:      job.Total,
		Error:      job.Error,
		FileErrors: job.FileErrors,
	})
}

// SearchRequest is the query intake payload.
type SearchRequest struct {
	Query string `json:"query"`
	K     int    `json:"k,omitempty"`
}

// SearchResponse wraps the retrieval results.
type SearchResponse struct {
	Results []retrieval.SearchResult `json:"results"`
}

// Search embeds the query and returns the k closest chunks.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	results, err := h.service.Search(r.Context(), req.Query, req.K)
	if err != nil {
		status := statusFromError(err)
		h.logger.Error("search failed", "error", err, "status", status)
		h.writeError(w, status, err.Error())
		return
	}
	if results == nil {
		results = []retrieval.SearchResult{}
	}
	h.writeJSON(w, http.StatusOK, SearchResponse{Results: results})
}

// GetDocument streams the raw stored bytes of one document.
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	data, meta, err := h.service.Document(r.PathValue("id"))
	if err != nil {
		h.writeError(w, statusFromError(err), "document not found")
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", meta.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// ListDocuments returns the stored document manifest.
func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	entries := h.service.Documents()
	if entries == nil {
		entries = []docstore.Entry{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"documents": entries,
		"count":     len(entries),
	})
}

// Clear wipes the index and all stored documents.
func (h *Handler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Clear(r.Context()); err != nil {
		h.logger.Error("clear failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "clear failed")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"message": "knowledge base cleared"})
}

// Stats reports document, chunk and index counts.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.Stats(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, "stats failed")
		return
	}
	h.writeJSON(w, http.StatusOK, stats)
}

// Health is a liveness probe.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// statusFromError maps the domain's sentinel errors to HTTP statuses.
func statusFromError(err error) int {
	switch {
	case errors.Is(err, ingest.ErrJobNotFound), errors.Is(err, docstore.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, retrieval.ErrEmptyQuery):
		return http.StatusBadRequest
	case errors.Is(err, index.ErrDimensionMismatch):
		return http.StatusInternalServerError
	case errors.Is(err, embedding.ErrEmbedding):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func readUploadedFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
