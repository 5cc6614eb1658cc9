package service

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/septivank/plant-metrics-pipeline/internal/anomaly"
	"github.com/septivank/plant-metrics-pipeline/internal/config"
	"github.com/septivank/plant-metrics-pipeline/internal/db"
	"github.com/septivank/plant-metrics-pipeline/internal/export"
	"github.com/septivank/plant-metrics-pipeline/internal/loader"
	"github.com/septivank/plant-metrics-pipeline/internal/logging"
	"github.com/septivank/plant-metrics-pipeline/internal/metrics"
	"github.com/septivank/plant-metrics-pipeline/internal/models"
	"github.com/septivank/plant-metrics-pipeline/internal/mq"
	"github.com/septivank/plant-metrics-pipeline/internal/normalizer"
	"github.com/septivank/plant-metrics-pipeline/internal/plantapi"
	"github.com/septivank/plant-metrics-pipeline/internal/validator"
)

// PipelineJob is the job label for pipeline metrics
const PipelineJob = "plant-metrics-pipeline"

// RunState is a pipeline run's position in its state machine
type RunState string

// Run states. COMMITTED and FAILED are terminal.
const (
	StateFetching     RunState = "FETCHING"
	StateNormalizing  RunState = "NORMALIZING"
	StateValidating   RunState = "VALIDATING"
	StateResolvingIDs RunState = loader.StageResolvingIDs
	StateInserting    RunState = loader.StageInserting
	StateCommitted    RunState = "COMMITTED"
	StateFailed       RunState = "FAILED"
)

// Terminal reports whether no further transition can happen from s.
func (s RunState) Terminal() bool {
	return s == StateCommitted || s == StateFailed
}

// Fetcher retrieves raw plant records for an id range
type Fetcher interface {
	FetchRange(ctx context.Context, first, last int) ([]plantapi.RawRecord, plantapi.FetchStats)
}

// BatchLoader writes a cleaned batch
type BatchLoader interface {
	Load(ctx context.Context, rows []models.PlantMetric, onStage loader.StageFunc) (loader.LoadResult, error)
}

// HistoryReader returns recent stored readings per plant
type HistoryReader interface {
	GetRecentReadings(ctx context.Context, plantIDs []int64, limit int) (map[int64]db.RecentReadings, error)
}

// PipelineDeps holds everything a Pipeline needs. History, Detector and Sink are
// optional; Publisher defaults to mq.NopPublisher.
type PipelineDeps struct {
	Config    *config.Config
	Fetcher   Fetcher
	Cleaner   *validator.Cleaner
	Loader    BatchLoader
	History   HistoryReader
	Detector  *anomaly.Detector
	Sink      export.Sink
	Publisher mq.EventPublisher
	Logger    *zap.Logger
}

// RunSummary describes one pipeline run
type RunSummary struct {
	RunID            string
	State            RunState
	StartedAt        time.Time
	FinishedAt       time.Time
	Fetch            plantapi.FetchStats
	Normalized       int
	MalformedRecords int
	Clean            validator.CleanStats
	Anomalies        int
	Load             loader.LoadResult
	ExportLocation   string
}

// Pipeline runs fetch, normalize, clean and load for one configured id range
type Pipeline struct {
	deps PipelineDeps
	now  func() time.Time
}

// NewPipeline creates a new pipeline
func NewPipeline(deps PipelineDeps) *Pipeline {
	if deps.Publisher == nil {
		deps.Publisher = mq.NopPublisher{}
	}
	return &Pipeline{deps: deps, now: time.Now}
}

type run struct {
	summary *RunSummary
	logger  *zap.Logger
}

func (r *run) transition(to RunState) {
	r.logger.Info("run state transition",
		zap.String("from", string(r.summary.State)),
		zap.String("to", string(to)),
	)
	r.summary.State = to
}

// Run executes one pipeline run. Fetch failures and bad rows reduce the batch but
// never fail the run; configuration, database and commit errors do. The summary
// is returned in both cases.
func (p *Pipeline) Run(ctx context.Context) (*RunSummary, error) {
	cfg := p.deps.Config
	summary := &RunSummary{
		RunID:     uuid.NewString(),
		StartedAt: p.now(),
	}
	r := &run{summary: summary, logger: logging.WithRunID(p.deps.Logger, summary.RunID)}

	r.logger.Info("pipeline run started",
		zap.Int("first_id", cfg.API.FirstID),
		zap.Int("last_id", cfg.API.LastID),
	)

	err := p.execute(ctx, r)
	summary.FinishedAt = p.now()
	if err != nil {
		r.transition(StateFailed)
		r.logger.Error("pipeline run failed", zap.Error(err))
	} else {
		r.transition(StateCommitted)
		r.logger.Info("pipeline run committed",
			zap.Int("fetched", summary.Fetch.Succeeded),
			zap.Int("cleaned", summary.Clean.Output),
			zap.Int64("inserted", summary.Load.Inserted),
			zap.Duration("duration", summary.FinishedAt.Sub(summary.StartedAt)),
		)
	}

	p.finish(ctx, r, err)
	return summary, err
}

func (p *Pipeline) execute(ctx context.Context, r *run) error {
	cfg := p.deps.Config
	summary := r.summary

	r.transition(StateFetching)
	records, stats := p.deps.Fetcher.FetchRange(ctx, cfg.API.FirstID, cfg.API.LastID)
	summary.Fetch = stats
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("fetch interrupted: %w", err)
	}
	r.logger.Info("fetch complete",
		zap.Int("requested", stats.Requested),
		zap.Int("succeeded", stats.Succeeded),
		zap.Int("dropped", stats.Dropped()),
	)

	r.transition(StateNormalizing)
	rows, malformed := normalizer.NormalizeBatch(records, logging.WithStage(r.logger, string(StateNormalizing)))
	summary.Normalized = len(rows)
	summary.MalformedRecords = malformed

	r.transition(StateValidating)
	cleaned, cleanStats := p.deps.Cleaner.Clean(rows)
	summary.Clean = cleanStats
	summary.Anomalies = p.flagAnomalies(ctx, logging.WithStage(r.logger, string(StateValidating)), cleaned)
	summary.ExportLocation = p.export(ctx, r, cleaned)

	result, err := p.deps.Loader.Load(ctx, cleaned, func(stage string) {
		r.transition(RunState(stage))
	})
	summary.Load = result
	if err != nil {
		return fmt.Errorf("load failed: %w", err)
	}

	return nil
}

// flagAnomalies logs and counts suspicious readings. It never removes rows.
func (p *Pipeline) flagAnomalies(ctx context.Context, logger *zap.Logger, rows []models.PlantMetric) int {
	if p.deps.Detector == nil || len(rows) == 0 {
		return 0
	}

	var history map[int64]db.RecentReadings
	if p.deps.History != nil {
		ids := make([]int64, 0, len(rows))
		for _, row := range rows {
			ids = append(ids, row.PlantID)
		}
		slices.Sort(ids)
		ids = slices.Compact(ids)

		var err error
		history, err = p.deps.History.GetRecentReadings(ctx, ids, p.deps.Config.Anomaly.HistorySize)
		if err != nil {
			logger.Warn("failed to get historical readings for anomaly detection", zap.Error(err))
		}
	}

	flagged := 0
	for _, row := range rows {
		recent := history[row.PlantID]
		checks := []struct {
			metric anomaly.Metric
			value  float64
			past   []float64
		}{
			{anomaly.Temperature, row.Temperature, recent.Temperature},
			{anomaly.SoilMoisture, row.SoilMoisture, recent.SoilMoisture},
		}
		for _, c := range checks {
			isAnomaly, reason := p.deps.Detector.DetectAnomaly(c.metric, c.value, c.past)
			if !isAnomaly {
				continue
			}
			flagged++
			metrics.AnomaliesTotal.WithLabelValues(string(c.metric)).Inc()
			logger.Warn("anomalous reading",
				zap.Int64("plant_id", row.PlantID),
				zap.String("metric", string(c.metric)),
				zap.Float64("value", c.value),
				zap.String("reason", reason),
			)
		}
	}
	return flagged
}

// export writes the cleaned batch to the configured sink. Export failures are
// logged and do not stop the load.
func (p *Pipeline) export(ctx context.Context, r *run, rows []models.PlantMetric) string {
	if p.deps.Sink == nil {
		return ""
	}

	body, err := export.RenderCSV(rows, p.deps.Config.Transform.DecimalPlaces)
	if err != nil {
		r.logger.Error("failed to render csv export", zap.Error(err))
		return ""
	}

	key := export.ObjectKey(p.deps.Config.Export.Prefix, r.summary.RunID, r.summary.StartedAt)
	location, err := p.deps.Sink.Put(ctx, key, body)
	if err != nil {
		r.logger.Error("failed to write csv export", zap.String("key", key), zap.Error(err))
		return ""
	}

	r.logger.Info("csv export written", zap.String("location", location), zap.Int("rows", len(rows)))
	return location
}

func (p *Pipeline) finish(ctx context.Context, r *run, runErr error) {
	summary := r.summary

	metrics.RunsTotal.WithLabelValues(PipelineJob, string(summary.State)).Inc()
	metrics.RunDuration.WithLabelValues(PipelineJob).Observe(summary.FinishedAt.Sub(summary.StartedAt).Seconds())
	if err := metrics.Push(p.deps.Config.Metrics.PushgatewayURL, PipelineJob); err != nil {
		r.logger.Warn("failed to push run metrics", zap.Error(err))
	}

	event := mq.RunCompletedEvent{
		EventID:             uuid.NewString(),
		RunID:               summary.RunID,
		State:               string(summary.State),
		StartedAt:           summary.StartedAt,
		FinishedAt:          summary.FinishedAt,
		Requested:           summary.Fetch.Requested,
		Fetched:             summary.Fetch.Succeeded,
		Normalized:          summary.Normalized,
		Cleaned:             summary.Clean.Output,
		Inserted:            summary.Load.Inserted,
		Duplicates:          summary.Load.Duplicates,
		Anomalies:           summary.Anomalies,
		UnresolvedBotanists: summary.Load.UnresolvedBotanists,
		ExportLocation:      summary.ExportLocation,
	}
	if runErr != nil {
		event.Error = runErr.Error()
	}

	if err := p.deps.Publisher.PublishRunCompleted(context.WithoutCancel(ctx), event); err != nil {
		r.logger.Error("failed to publish run event", zap.Error(err))
	}
}
