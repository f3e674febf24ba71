package ports

import (
	"context"
	"io"

	"github.com/kirillkom/study-vault/internal/core/domain"
)

// BlobStore is chunked binary object storage. It knows nothing about
// extraction or ownership semantics beyond the metadata it is handed.
type BlobStore interface {
	// BeginUpload allocates a new object id and returns a handle accepting
	// streamed chunks. Nothing is visible to readers until Commit succeeds.
	BeginUpload(ctx context.Context, filename string, meta domain.BlobInfo) (BlobUpload, error)
	// Stat returns the object record, or a not-found kind.
	Stat(ctx context.Context, id string) (domain.BlobInfo, error)
	// OpenDownload streams chunks in creation order without buffering the
	// whole object.
	OpenDownload(ctx context.Context, id string) (domain.BlobInfo, io.ReadCloser, error)
	// Delete removes all chunks and the record. A second delete of the same
	// id is an error, not a no-op.
	Delete(ctx context.Context, id string) error
}

// BlobUpload is a single in-flight object write. Abort after Commit is a
// no-op; Commit after Abort is an error.
type BlobUpload interface {
	io.Writer
	Commit(ctx context.Context) (domain.BlobInfo, error)
	Abort() error
}

// ProfileStore is the owner-profile collaborator: get-by-id and save. The
// gamification rules themselves live on the domain Profile.
type ProfileStore interface {
	GetByID(ctx context.Context, ownerID string) (*domain.Profile, error)
	Save(ctx context.Context, profile *domain.Profile) error
}

// TextExtractor converts raw bytes into raw text plus page metadata.
// Implementations never panic past this boundary; malformed input is an
// ExtractionFailed kind.
type TextExtractor interface {
	Extract(ctx context.Context, data []byte) (domain.Extraction, error)
}

// EventPublisher notifies downstream collaborators after a committed upload.
type EventPublisher interface {
	PublishFileUploaded(ctx context.Context, ownerID, fileID string) error
}
