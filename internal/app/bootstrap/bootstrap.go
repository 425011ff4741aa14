package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	summaryengine "github.com/zenoss/zenoss-zep-sub001/contexts/event-management/summary-engine"
	postgresadapter "github.com/zenoss/zenoss-zep-sub001/contexts/event-management/summary-engine/adapters/postgres"
	"github.com/zenoss/zenoss-zep-sub001/contexts/event-management/summary-engine/domain/entities"
	"github.com/zenoss/zenoss-zep-sub001/contexts/event-management/summary-engine/ports"
	"github.com/zenoss/zenoss-zep-sub001/internal/platform/config"
	"github.com/zenoss/zenoss-zep-sub001/internal/platform/db"
	"github.com/zenoss/zenoss-zep-sub001/internal/platform/messaging"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type WorkerApp struct {
	postgres     *db.Postgres
	module       summaryengine.Module
	pollInterval time.Duration
	logger       *slog.Logger
}

func BuildWorker() (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "worker")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}
	if err := postgresadapter.Migrate(pg.DB); err != nil {
		_ = pg.Close()
		return nil, err
	}

	kafka, err := messaging.NewKafka(cfg.KafkaBrokers, logger)
	if err != nil {
		_ = pg.Close()
		return nil, err
	}

	limits := ports.StorageLimits{
		MaxDetailsBytes:       cfg.MaxDetailsBytes,
		MaxNotesBytes:         cfg.MaxNotesBytes,
		ProtectedDetailPrefix: cfg.ProtectedDetailPrefix,
	}
	repo := postgresadapter.NewRepository(pg.DB, limits, logger)
	archive := postgresadapter.NewArchiveStore(pg.DB, limits, logger)

	module := summaryengine.NewModule(summaryengine.Dependencies{
		Summaries:    repo,
		Archive:      archive,
		SummaryQueue: postgresadapter.NewSummaryIndexQueue(pg.DB),
		ArchiveQueue: postgresadapter.NewArchiveIndexQueue(pg.DB),

		Publisher:  kafka,
		Subscriber: kafka,

		Clock:       postgresadapter.SystemClock{},
		IDGenerator: postgresadapter.UUIDGenerator{},

		ClearClasses:     cfg.ClearClasses,
		ConsumerGroup:    cfg.ConsumerGroup,
		AgingInterval:    cfg.AgingInterval,
		AgingMaxSeverity: entities.Severity(cfg.AgingMaxSeverity),
		AgingBatchSize:   cfg.AgingBatchSize,
		ArchiveAge:       cfg.ArchiveAge,
		ArchiveBatchSize: cfg.ArchiveBatchSize,
		IndexBatchSize:   cfg.IndexBatchSize,

		Logger: logger,
	})

	return &WorkerApp{
		postgres:     pg,
		module:       module,
		pollInterval: cfg.PollInterval,
		logger:       logger,
	}, nil
}

func (w *WorkerApp) Run(ctx context.Context) error {
	if err := w.module.Consumer.Start(ctx); err != nil {
		return err
	}

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", w.pollInterval.String(),
	)

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return w.runLoop(ctx, func(ctx context.Context) error {
			if err := w.module.Ager.RunOnce(ctx); err != nil {
				return err
			}
			return w.module.Archiver.RunOnce(ctx)
		})
	})
	group.Go(func() error {
		return w.runLoop(ctx, w.module.SummaryRelay.RunOnce)
	})
	group.Go(func() error {
		return w.runLoop(ctx, w.module.ArchiveRelay.RunOnce)
	})
	return group.Wait()
}

func (w *WorkerApp) runLoop(ctx context.Context, step func(context.Context) error) error {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		if err := step(ctx); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (w *WorkerApp) Close() error {
	if w.postgres != nil {
		return w.postgres.Close()
	}
	return nil
}
