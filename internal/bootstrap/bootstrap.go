package bootstrap

import (
	"context"
	"fmt"

	"github.com/kirillkom/fleet-compliance/internal/config"
	"github.com/kirillkom/fleet-compliance/internal/core/ports"
	"github.com/kirillkom/fleet-compliance/internal/core/usecase"
	"github.com/kirillkom/fleet-compliance/internal/infrastructure/analyzer/docrec"
	"github.com/kirillkom/fleet-compliance/internal/infrastructure/queue/nats"
	"github.com/kirillkom/fleet-compliance/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/fleet-compliance/internal/infrastructure/resilience"
	"github.com/kirillkom/fleet-compliance/internal/infrastructure/storage/localfs"
)

type App struct {
	Config config.Config

	Events   *nats.EventStream
	Repo     ports.CertificateRepository
	Uploader ports.CertificateUploader
	Sessions ports.SessionDriver
	Certs    ports.CertificateReader

	closeFn func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewCertificateRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())
	events, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init event stream: %w", err)
	}

	analyzer := docrec.New(cfg.DocRecURL, cfg.DocRecAPIKey, cfg.DocRecTimeout, executor)
	engine := usecase.NewValidationEngine(repo)
	committer := usecase.NewCommitCertificateUseCase(repo)
	registry := usecase.NewSessionRegistry()

	single := usecase.NewUploadCertificateUseCase(analyzer, storage, engine, committer, registry)
	batch := usecase.NewBatchUploadUseCase(analyzer, storage, engine, committer, events, cfg.BatchStagger)
	pipeline := usecase.NewCertificatePipeline(single, batch)

	return &App{
		Config:   cfg,
		Events:   events,
		Repo:     repo,
		Uploader: pipeline,
		Sessions: single,
		Certs:    repo,

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
