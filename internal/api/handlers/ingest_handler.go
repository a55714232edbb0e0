package handlers

import (
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/markdave123-py/Prism/internal/core/logger"
	"github.com/markdave123-py/Prism/internal/models"
	"github.com/markdave123-py/Prism/internal/services"
)

type Ingester interface {
	ProcessFiles(ctx context.Context, sessionID string, uploads []services.Upload) (models.BatchReport, error)
	ProcessYouTube(ctx context.Context, sessionID, url string) (models.IngestionResult, error)
}

type IngestHandler struct {
	ingest    Ingester
	maxMemory int64
	log       *logger.Logger
}

func NewIngestHandler(ingest Ingester, log *logger.Logger) *IngestHandler {
	return &IngestHandler{ingest: ingest, maxMemory: 32 << 20, log: log.With("handler", "ingest")}
}

// ProcessFiles ingests the multipart "files" field.
func (h *IngestHandler) ProcessFiles(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	if err := r.ParseMultipartForm(h.maxMemory); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer r.MultipartForm.RemoveAll()

	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		writeError(w, http.StatusBadRequest, "No files provided")
		return
	}

	uploads := make([]services.Upload, 0, len(headers))
	for _, fh := range headers {
		uploads = append(uploads, toUpload(fh))
	}

	report, err := h.ingest.ProcessFiles(r.Context(), id, uploads)
	if err != nil {
		h.log.Error("batch ingestion aborted", "session", id, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":         true,
		"processed_count": report.ProcessedCount,
		"total_count":     report.TotalCount,
		"results":         report.Results,
	})
}

type YouTubeRequest struct {
	URL string `json:"url"`
}

func (h *IngestHandler) ProcessYouTube(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	var req YouTubeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	url := strings.TrimSpace(req.URL)
	if url == "" {
		writeError(w, http.StatusBadRequest, "No URL provided")
		return
	}

	res, err := h.ingest.ProcessYouTube(r.Context(), id, url)
	if err != nil {
		h.log.Error("youtube ingestion aborted", "session", id, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !res.OK() {
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "error": res.Message, "result": res})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": res.Message, "result": res})
}

func toUpload(fh *multipart.FileHeader) services.Upload {
	return services.Upload{
		Name:        fh.Filename,
		Size:        fh.Size,
		ContentType: fh.Header.Get("Content-Type"),
		Open: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}
