package usecase

import (
	"context"
	"fmt"
	"io"

	"github.com/kirillkom/study-vault/internal/core/domain"
	"github.com/kirillkom/study-vault/internal/core/ports"
)

// FileAccessUseCase gates download, listing and deletion by ownership. The
// check runs against the owner recorded on the blob itself, so the answer
// for someone else's object never depends on the requester's own index.
type FileAccessUseCase struct {
	blobs    ports.BlobStore
	profiles ports.ProfileStore
}

func NewFileAccessUseCase(blobs ports.BlobStore, profiles ports.ProfileStore) *FileAccessUseCase {
	return &FileAccessUseCase{blobs: blobs, profiles: profiles}
}

func (uc *FileAccessUseCase) OpenDownload(ctx context.Context, ownerID, id string) (domain.BlobInfo, io.ReadCloser, error) {
	info, err := uc.authorize(ctx, ownerID, id, "download file")
	if err != nil {
		return domain.BlobInfo{}, nil, err
	}
	_, reader, err := uc.blobs.OpenDownload(ctx, id)
	if err != nil {
		return domain.BlobInfo{}, nil, fmt.Errorf("open blob download: %w", err)
	}
	return info, reader, nil
}

// Delete runs ownership check, then blob delete, then index removal, in that
// order. A blob-delete failure after the ownership check passed is reported
// as its own kind so the caller knows the entry may still reference a live
// blob.
func (uc *FileAccessUseCase) Delete(ctx context.Context, ownerID, id string) error {
	if _, err := uc.authorize(ctx, ownerID, id, "delete file"); err != nil {
		return err
	}

	if err := uc.blobs.Delete(ctx, id); err != nil {
		if domain.IsKind(err, domain.ErrNotFound) {
			return err
		}
		return domain.WrapError(domain.ErrDeletePartial, "delete blob", err)
	}

	if err := uc.removeFromIndex(ctx, ownerID, id); err != nil {
		// Blob is gone but the entry may still point at it.
		return domain.WrapError(domain.ErrDeletePartial, "remove index entry", err)
	}
	return nil
}

func (uc *FileAccessUseCase) List(ctx context.Context, ownerID string) ([]domain.FileRecord, error) {
	profile, err := uc.profiles.GetByID(ctx, ownerID)
	if err != nil {
		if domain.IsKind(err, domain.ErrNotFound) {
			return []domain.FileRecord{}, nil
		}
		return nil, fmt.Errorf("load owner profile: %w", err)
	}
	return profile.Files, nil
}

func (uc *FileAccessUseCase) authorize(ctx context.Context, ownerID, id, operation string) (domain.BlobInfo, error) {
	info, err := uc.blobs.Stat(ctx, id)
	if err != nil {
		return domain.BlobInfo{}, err
	}
	if info.OwnerID != ownerID {
		return domain.BlobInfo{}, domain.WrapError(domain.ErrAccessDenied, operation,
			fmt.Errorf("object is not owned by the requesting principal"))
	}
	return info, nil
}

func (uc *FileAccessUseCase) removeFromIndex(ctx context.Context, ownerID, id string) error {
	profile, err := uc.profiles.GetByID(ctx, ownerID)
	if err != nil {
		if domain.IsKind(err, domain.ErrNotFound) {
			// Nothing indexed for this owner; blob was unindexed.
			return nil
		}
		return fmt.Errorf("load owner profile: %w", err)
	}
	if !profile.RemoveFile(id) {
		return nil
	}
	if err := uc.profiles.Save(ctx, profile); err != nil {
		return fmt.Errorf("save owner profile: %w", err)
	}
	return nil
}
