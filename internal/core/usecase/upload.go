package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/kirillkom/study-vault/internal/core/domain"
	"github.com/kirillkom/study-vault/internal/core/ports"
)

type UploadConfig struct {
	MaxSizeBytes   int64
	AllowedTypes   []string
	ExtractTimeout time.Duration
}

func DefaultUploadConfig() UploadConfig {
	return UploadConfig{
		MaxSizeBytes:   10 << 20,
		AllowedTypes:   []string{domain.MimePDF, domain.MimePlain, domain.MimeMarkdown},
		ExtractTimeout: 15 * time.Second,
	}
}

// UploadFileUseCase runs the upload pipeline: validate, buffer, extract,
// persist to the blob store, commit metadata against the owner profile.
// Phases are strictly ordered; nothing is committed before the storage write
// and the metadata commit never starts before storage finishes.
type UploadFileUseCase struct {
	blobs    ports.BlobStore
	profiles ports.ProfileStore
	pdf      ports.TextExtractor
	plain    ports.TextExtractor
	events   ports.EventPublisher
	cfg      UploadConfig
}

// NewUploadFileUseCase wires the pipeline. events may be nil when no
// downstream collaborator is configured.
func NewUploadFileUseCase(
	blobs ports.BlobStore,
	profiles ports.ProfileStore,
	pdfExtractor ports.TextExtractor,
	plainExtractor ports.TextExtractor,
	events ports.EventPublisher,
	cfg UploadConfig,
) *UploadFileUseCase {
	if cfg.MaxSizeBytes <= 0 {
		cfg.MaxSizeBytes = DefaultUploadConfig().MaxSizeBytes
	}
	if len(cfg.AllowedTypes) == 0 {
		cfg.AllowedTypes = DefaultUploadConfig().AllowedTypes
	}
	if cfg.ExtractTimeout <= 0 {
		cfg.ExtractTimeout = DefaultUploadConfig().ExtractTimeout
	}
	return &UploadFileUseCase{
		blobs:    blobs,
		profiles: profiles,
		pdf:      pdfExtractor,
		plain:    plainExtractor,
		events:   events,
		cfg:      cfg,
	}
}

func (uc *UploadFileUseCase) Upload(
	ctx context.Context,
	ownerID, filename, mimeType string,
	body io.Reader,
) (domain.FileRecord, error) {
	mediaType, err := uc.validateType(mimeType)
	if err != nil {
		return domain.FileRecord{}, err
	}

	payload, err := uc.buffer(body)
	if err != nil {
		return domain.FileRecord{}, err
	}

	text, processing := uc.extract(ctx, mediaType, payload)

	info, err := uc.persist(ctx, ownerID, filename, mediaType, payload)
	if err != nil {
		return domain.FileRecord{}, domain.WrapError(domain.ErrStorage, "persist upload", err)
	}

	record := domain.FileRecord{
		ID:           info.ID,
		Filename:     info.Filename,
		OriginalName: filename,
		MimeType:     mediaType,
		UploadedAt:   info.CreatedAt,
		Text:         text,
		Processing:   processing,
	}

	if err := uc.commitMetadata(ctx, ownerID, record); err != nil {
		// The blob is durable but unindexed. Not rolled back, not retried.
		return domain.FileRecord{}, domain.WrapError(domain.ErrPartialConsistency, "commit metadata", err)
	}

	uc.notify(ctx, ownerID, record.ID)
	return record, nil
}

// ExtractOnly runs validation and extraction without touching storage or the
// owner index.
func (uc *UploadFileUseCase) ExtractOnly(
	ctx context.Context,
	filename, mimeType string,
	body io.Reader,
) (string, *domain.ProcessingResult, error) {
	mediaType, err := uc.validateType(mimeType)
	if err != nil {
		return "", nil, err
	}
	payload, err := uc.buffer(body)
	if err != nil {
		return "", nil, err
	}
	text, processing := uc.extract(ctx, mediaType, payload)
	return text, processing, nil
}

func (uc *UploadFileUseCase) validateType(mimeType string) (string, error) {
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(mimeType))
	}
	for _, allowed := range uc.cfg.AllowedTypes {
		if mediaType == allowed {
			return mediaType, nil
		}
	}
	return "", domain.WrapError(domain.ErrInvalidFileType, "validate upload",
		fmt.Errorf("mimetype %q is not allowed", mimeType))
}

// buffer reads the whole payload before any persistence step so a client
// disconnect mid-transfer leaves neither a partial blob nor a partial entry.
func (uc *UploadFileUseCase) buffer(body io.Reader) ([]byte, error) {
	payload, err := io.ReadAll(io.LimitReader(body, uc.cfg.MaxSizeBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload body: %w", err)
	}
	if int64(len(payload)) > uc.cfg.MaxSizeBytes {
		return nil, domain.WrapError(domain.ErrPayloadTooLarge, "buffer upload",
			fmt.Errorf("payload exceeds %d bytes", uc.cfg.MaxSizeBytes))
	}
	return payload, nil
}

// extract never fails the upload: a parse error or timeout yields empty text
// with the reason attached to the processing summary.
func (uc *UploadFileUseCase) extract(ctx context.Context, mediaType string, payload []byte) (string, *domain.ProcessingResult) {
	extractor := uc.plain
	if mediaType == domain.MimePDF {
		extractor = uc.pdf
	}

	extractCtx, cancel := context.WithTimeout(ctx, uc.cfg.ExtractTimeout)
	defer cancel()

	raw, err := extractor.Extract(extractCtx, payload)
	if err != nil {
		return "", &domain.ProcessingResult{Success: false, Error: err.Error()}
	}

	clean := CleanExtractedText(raw.Text)
	return clean, &domain.ProcessingResult{
		Success:    true,
		PageCount:  raw.PageCount,
		PDFVersion: raw.PDFVersion,
		Title:      raw.Title,
		KeyInfo:    DeriveKeyInfo(clean),
	}
}

func (uc *UploadFileUseCase) persist(ctx context.Context, ownerID, filename, mediaType string, payload []byte) (domain.BlobInfo, error) {
	upload, err := uc.blobs.BeginUpload(ctx, sanitizeFilename(filename), domain.BlobInfo{
		OwnerID:  ownerID,
		MimeType: mediaType,
	})
	if err != nil {
		return domain.BlobInfo{}, fmt.Errorf("begin blob upload: %w", err)
	}
	if _, err := upload.Write(payload); err != nil {
		_ = upload.Abort()
		return domain.BlobInfo{}, fmt.Errorf("write blob chunks: %w", err)
	}
	info, err := upload.Commit(ctx)
	if err != nil {
		_ = upload.Abort()
		return domain.BlobInfo{}, fmt.Errorf("finalize blob: %w", err)
	}
	return info, nil
}

func (uc *UploadFileUseCase) commitMetadata(ctx context.Context, ownerID string, record domain.FileRecord) error {
	now := time.Now().UTC()

	profile, err := uc.profiles.GetByID(ctx, ownerID)
	if err != nil {
		if !domain.IsKind(err, domain.ErrNotFound) {
			return fmt.Errorf("load owner profile: %w", err)
		}
		profile = domain.NewProfile(ownerID, now)
	}

	profile.AddFile(record)
	profile.RecordUpload(now)

	if err := uc.profiles.Save(ctx, profile); err != nil {
		return fmt.Errorf("save owner profile: %w", err)
	}
	return nil
}

func (uc *UploadFileUseCase) notify(ctx context.Context, ownerID, fileID string) {
	if uc.events == nil {
		return
	}
	if err := uc.events.PublishFileUploaded(ctx, ownerID, fileID); err != nil {
		slog.Warn("file_uploaded_event_failed", "owner_id", ownerID, "file_id", fileID, "error", err)
	}
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" {
		return "document.bin"
	}
	return base
}
