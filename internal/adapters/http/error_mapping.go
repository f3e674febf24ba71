package httpadapter

import (
	"log/slog"
	"net/http"

	"github.com/kirillkom/study-vault/internal/core/domain"
)

type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// writeError maps domain error kinds to status codes and response bodies.
// Validation and ownership failures are audit events, not server errors;
// storage-class failures are logged with full internal detail and surfaced
// to the client only as a category plus a retry hint.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	requestID := requestIDFromContext(r.Context())

	switch {
	case domain.IsKind(err, domain.ErrMissingFile):
		audit(requestID, r, "missing_file", err)
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "missing_file", Detail: "multipart field 'file' is required"})
	case domain.IsKind(err, domain.ErrInvalidFileType):
		audit(requestID, r, "invalid_file_type", err)
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_file_type", Detail: "allowed types are pdf, plain text and markdown"})
	case domain.IsKind(err, domain.ErrPayloadTooLarge):
		audit(requestID, r, "payload_too_large", err)
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "payload_too_large", Detail: "payload exceeds the upload size limit"})
	case domain.IsKind(err, domain.ErrAccessDenied):
		audit(requestID, r, "access_denied", err)
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "access_denied"})
	case domain.IsKind(err, domain.ErrNotFound):
		audit(requestID, r, "not_found", err)
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not_found"})
	case domain.IsKind(err, domain.ErrPartialConsistency):
		internal(requestID, r, "partial_consistency", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:  "partial_consistency",
			Detail: "content was stored but not indexed; do not retry blindly",
		})
	case domain.IsKind(err, domain.ErrDeletePartial):
		internal(requestID, r, "delete_partial_failure", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:  "delete_partial_failure",
			Detail: "the file entry may still reference stored content",
		})
	default:
		internal(requestID, r, "upload_failed", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:  "upload_failed",
			Detail: "storage failure; the request is safe to retry",
		})
	}
}

func audit(requestID string, r *http.Request, code string, err error) {
	slog.Info("audit_event",
		"request_id", requestID,
		"method", r.Method,
		"path", r.URL.Path,
		"code", code,
		"reason", err.Error(),
	)
}

func internal(requestID string, r *http.Request, code string, err error) {
	slog.Error("request_failed",
		"request_id", requestID,
		"method", r.Method,
		"path", r.URL.Path,
		"code", code,
		"error", err,
	)
}
