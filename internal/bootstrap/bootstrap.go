package bootstrap

import (
	"context"
	"fmt"
	"time"

	httpadapter "github.com/kirillkom/study-vault/internal/adapters/http"
	"github.com/kirillkom/study-vault/internal/config"
	"github.com/kirillkom/study-vault/internal/core/ports"
	"github.com/kirillkom/study-vault/internal/core/usecase"
	blobpg "github.com/kirillkom/study-vault/internal/infrastructure/blobstore/postgres"
	pdfextractor "github.com/kirillkom/study-vault/internal/infrastructure/extractor/pdf"
	"github.com/kirillkom/study-vault/internal/infrastructure/extractor/plaintext"
	"github.com/kirillkom/study-vault/internal/infrastructure/queue/nats"
	repopg "github.com/kirillkom/study-vault/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/study-vault/internal/infrastructure/resilience"
	"github.com/kirillkom/study-vault/internal/observability/metrics"
)

// App holds the wired dependency graph. The blob store handle is created
// once here and passed into the use cases explicitly; nothing reaches for it
// as a global.
type App struct {
	Config  config.Config
	Metrics *metrics.HTTPServerMetrics

	UploadUC ports.FileUploader
	AccessUC ports.FileAccessor

	APISpec []byte

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	db, err := blobpg.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	blobs := blobpg.NewStore(db, cfg.BlobChunkBytes)
	if err := blobs.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure blob schema: %w", err)
	}

	profiles := repopg.NewProfileRepository(db)
	if err := profiles.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure profile schema: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())
	events, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init event publisher: %w", err)
	}

	uploadUC := usecase.NewUploadFileUseCase(
		blobs,
		profiles,
		pdfextractor.NewExtractor(),
		plaintext.NewExtractor(),
		events,
		usecase.UploadConfig{
			MaxSizeBytes:   cfg.MaxUploadBytes,
			ExtractTimeout: time.Duration(cfg.ExtractTimeoutSeconds) * time.Second,
		},
	)
	accessUC := usecase.NewFileAccessUseCase(blobs, profiles)

	apiSpec, err := httpadapter.LoadAPISpec()
	if err != nil {
		return nil, fmt.Errorf("load api spec: %w", err)
	}

	return &App{
		Config:  cfg,
		Metrics: metrics.NewHTTPServerMetrics("api"),

		UploadUC: uploadUC,
		AccessUC: accessUC,

		APISpec: apiSpec,

		closeFn: func() {
			events.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
