package ports

import (
	"context"
	"io"

	"github.com/kirillkom/study-vault/internal/core/domain"
)

// FileUploader is the inbound contract for the upload pipeline.
type FileUploader interface {
	Upload(ctx context.Context, ownerID, filename, mimeType string, body io.Reader) (domain.FileRecord, error)
	// ExtractOnly runs validation and extraction without persisting anything.
	ExtractOnly(ctx context.Context, filename, mimeType string, body io.Reader) (string, *domain.ProcessingResult, error)
}

// FileAccessor is the inbound contract for reading and deleting stored files
// on behalf of an authenticated principal.
type FileAccessor interface {
	OpenDownload(ctx context.Context, ownerID, id string) (domain.BlobInfo, io.ReadCloser, error)
	Delete(ctx context.Context, ownerID, id string) error
	List(ctx context.Context, ownerID string) ([]domain.FileRecord, error)
}
