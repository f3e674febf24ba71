package httpadapter

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/study-vault/internal/config"
	"github.com/kirillkom/study-vault/internal/core/domain"
	"github.com/kirillkom/study-vault/internal/core/ports"
	"github.com/kirillkom/study-vault/internal/observability/metrics"
)

const serviceName = "api"

type Router struct {
	cfg      config.Config
	uploader ports.FileUploader
	files    ports.FileAccessor
	metrics  *metrics.HTTPServerMetrics
	specJSON []byte
}

func NewRouter(
	cfg config.Config,
	uploader ports.FileUploader,
	files ports.FileAccessor,
	m *metrics.HTTPServerMetrics,
	specJSON []byte,
) *Router {
	if m == nil {
		m = metrics.NewHTTPServerMetrics(serviceName)
	}
	return &Router{
		cfg:      cfg,
		uploader: uploader,
		files:    files,
		metrics:  m,
		specJSON: specJSON,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.Handle("/metrics", rt.metrics.Handler())
	mux.HandleFunc("/openapi.json", rt.openapiDoc)
	mux.HandleFunc("/files", rt.requirePrincipal(rt.listFiles))
	mux.HandleFunc("/files/upload", rt.requirePrincipal(rt.uploadFile))
	mux.HandleFunc("/files/extract-text", rt.requirePrincipal(rt.extractText))
	mux.HandleFunc("/files/", rt.requirePrincipal(rt.fileByID))

	var handler http.Handler = mux
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	handler = backpressureMiddleware(handler, rt.cfg.APIMaxConcurrent,
		time.Duration(rt.cfg.APIQueueWaitMillis)*time.Millisecond)
	handler = rt.metrics.Middleware(serviceName, handler)
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) uploadFile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	file, header, err := rt.formFile(w, r)
	if err != nil {
		return
	}
	defer file.Close()

	start := time.Now()
	record, err := rt.uploader.Upload(
		r.Context(),
		principalFromContext(r.Context()),
		header.Filename,
		header.Header.Get("Content-Type"),
		file,
	)
	if err != nil {
		rt.metrics.RecordUpload(serviceName, header.Header.Get("Content-Type"), "error", 0)
		writeError(w, r, err)
		return
	}

	rt.metrics.RecordUpload(serviceName, record.MimeType, "ok", header.Size)
	rt.recordExtraction(record.MimeType, record.Processing, time.Since(start))
	writeJSON(w, http.StatusCreated, record)
}

func (rt *Router) extractText(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	file, header, err := rt.formFile(w, r)
	if err != nil {
		return
	}
	defer file.Close()

	text, processing, err := rt.uploader.ExtractOnly(
		r.Context(),
		header.Filename,
		header.Header.Get("Content-Type"),
		file,
	)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if processing != nil && !processing.Success {
		// Extraction failures are expected and informative; surfaced in full.
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":             "extraction_failed",
			"detail":            processing.Error,
			"processing_result": processing,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"extracted_text":    text,
		"processing_result": processing,
	})
}

func (rt *Router) listFiles(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	records, err := rt.files.List(r.Context(), principalFromContext(r.Context()))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": records})
}

func (rt *Router) fileByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/files/")
	if id == "" || strings.Contains(id, "/") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "file id is required"})
		return
	}

	switch r.Method {
	case http.MethodGet:
		rt.downloadFile(w, r, id)
	case http.MethodDelete:
		rt.deleteFile(w, r, id)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func (rt *Router) downloadFile(w http.ResponseWriter, r *http.Request, id string) {
	info, reader, err := rt.files.OpenDownload(r.Context(), principalFromContext(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", info.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", info.Filename))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", info.Size))
	w.WriteHeader(http.StatusOK)

	if _, err := io.Copy(w, reader); err != nil {
		// Headers are out; nothing left to do but log the broken stream.
		slog.Warn("download_stream_interrupted", "file_id", id, "error", err)
	}
}

func (rt *Router) deleteFile(w http.ResponseWriter, r *http.Request, id string) {
	if err := rt.files.Delete(r.Context(), principalFromContext(r.Context()), id); err != nil {
		rt.metrics.RecordDelete(serviceName, "error")
		writeError(w, r, err)
		return
	}
	rt.metrics.RecordDelete(serviceName, "ok")
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (rt *Router) formFile(w http.ResponseWriter, r *http.Request) (multipart.File, *multipart.FileHeader, error) {
	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error":  "missing_file",
			"detail": "multipart field 'file' is required",
		})
		return nil, nil, err
	}
	return file, header, nil
}

func (rt *Router) recordExtraction(mimeType string, processing *domain.ProcessingResult, duration time.Duration) {
	if processing == nil {
		return
	}
	extractor := "plaintext"
	if mimeType == domain.MimePDF {
		extractor = "pdf"
	}
	outcome := "ok"
	if !processing.Success {
		outcome = "failed"
	}
	rt.metrics.RecordExtraction(serviceName, extractor, outcome, duration)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
