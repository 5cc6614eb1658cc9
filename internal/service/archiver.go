package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/septivank/plant-metrics-pipeline/internal/db"
	"github.com/septivank/plant-metrics-pipeline/internal/logging"
	"github.com/septivank/plant-metrics-pipeline/internal/metrics"
	"github.com/septivank/plant-metrics-pipeline/internal/mq"
)

// ArchiveJob is the job label for archive metrics
const ArchiveJob = "plant-metrics-archive"

// ArchiveStore is the slice of the repository the archiver needs
type ArchiveStore interface {
	BeginTx(ctx context.Context) (pgx.Tx, error)
	ArchivePlantMetricsTx(ctx context.Context, tx pgx.Tx) ([]db.PlantArchive, error)
	TruncatePlantMetricsTx(ctx context.Context, tx pgx.Tx) error
}

// ArchiveSummary describes one archive run
type ArchiveSummary struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Archived   []db.PlantArchive
}

// Archiver rolls plant_metric up into plant_archive and empties plant_metric
type Archiver struct {
	store          ArchiveStore
	publisher      mq.EventPublisher
	pushgatewayURL string
	logger         *zap.Logger
}

// NewArchiver creates a new archiver. publisher may be nil.
func NewArchiver(store ArchiveStore, publisher mq.EventPublisher, pushgatewayURL string, logger *zap.Logger) *Archiver {
	if publisher == nil {
		publisher = mq.NopPublisher{}
	}
	return &Archiver{store: store, publisher: publisher, pushgatewayURL: pushgatewayURL, logger: logger}
}

// Run archives and truncates in one transaction, so plant_metric is only emptied
// once its rollups are written.
func (a *Archiver) Run(ctx context.Context) (*ArchiveSummary, error) {
	summary := &ArchiveSummary{RunID: uuid.NewString(), StartedAt: time.Now()}
	logger := logging.WithRunID(a.logger, summary.RunID)
	logger.Info("archive run started")

	err := a.archive(ctx, summary)
	summary.FinishedAt = time.Now()

	state := string(StateCommitted)
	if err != nil {
		state = string(StateFailed)
		logger.Error("archive run failed", zap.Error(err))
	} else {
		logger.Info("archive run committed", zap.Int("plants_archived", len(summary.Archived)))
	}

	metrics.RunsTotal.WithLabelValues(ArchiveJob, state).Inc()
	metrics.RunDuration.WithLabelValues(ArchiveJob).Observe(summary.FinishedAt.Sub(summary.StartedAt).Seconds())
	if pushErr := metrics.Push(a.pushgatewayURL, ArchiveJob); pushErr != nil {
		logger.Warn("failed to push archive metrics", zap.Error(pushErr))
	}

	if err != nil {
		return summary, err
	}

	event := mq.ArchiveCompletedEvent{
		EventID:        uuid.NewString(),
		RunID:          summary.RunID,
		PlantsArchived: len(summary.Archived),
		FinishedAt:     summary.FinishedAt,
	}
	if pubErr := a.publisher.PublishArchiveCompleted(context.WithoutCancel(ctx), event); pubErr != nil {
		logger.Error("failed to publish archive event", zap.Error(pubErr))
	}

	return summary, nil
}

func (a *Archiver) archive(ctx context.Context, summary *ArchiveSummary) error {
	tx, err := a.store.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	archived, err := a.store.ArchivePlantMetricsTx(ctx, tx)
	if err != nil {
		return err
	}

	if err := a.store.TruncatePlantMetricsTx(ctx, tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	summary.Archived = archived
	return nil
}
