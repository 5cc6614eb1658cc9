package main

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/septivank/plant-metrics-pipeline/internal/anomaly"
	"github.com/septivank/plant-metrics-pipeline/internal/config"
	"github.com/septivank/plant-metrics-pipeline/internal/export"
	"github.com/septivank/plant-metrics-pipeline/internal/loader"
	"github.com/septivank/plant-metrics-pipeline/internal/mq"
	"github.com/septivank/plant-metrics-pipeline/internal/plantapi"
	"github.com/septivank/plant-metrics-pipeline/internal/repository"
	"github.com/septivank/plant-metrics-pipeline/internal/service"
	"github.com/septivank/plant-metrics-pipeline/internal/validator"
)

// startTrigger wires the pipeline to the configured trigger mode
func startTrigger(
	lc fx.Lifecycle,
	shutdowner fx.Shutdowner,
	conn *mq.Connection,
	cfg *config.Config,
	logger *zap.Logger,
	pipeline *service.Pipeline,
) error {
	ctx, cancel := context.WithCancel(context.Background())

	switch cfg.Pipeline.Trigger {
	case config.TriggerOnce:
		lc.Append(fx.Hook{
			OnStart: func(startCtx context.Context) error {
				go func() {
					result := service.Invoke(ctx, pipeline)
					logger.Info("invocation finished",
						zap.Int("status_code", result.StatusCode),
						zap.String("body", result.Body))
					exitCode := 0
					if result.StatusCode != http.StatusOK {
						exitCode = 1
					}
					if err := shutdowner.Shutdown(fx.ExitCode(exitCode)); err != nil {
						logger.Error("failed to request shutdown", zap.Error(err))
					}
				}()
				return nil
			},
			OnStop: func(stopCtx context.Context) error {
				cancel()
				return nil
			},
		})

	case config.TriggerInterval:
		done := make(chan struct{})
		lc.Append(fx.Hook{
			OnStart: func(startCtx context.Context) error {
				logger.Info("starting scheduled runs", zap.Duration("interval", cfg.Pipeline.Interval))
				go func() {
					defer close(done)
					pipeline.RunEvery(ctx, cfg.Pipeline.Interval)
				}()
				return nil
			},
			OnStop: func(stopCtx context.Context) error {
				cancel()
				select {
				case <-done:
				case <-stopCtx.Done():
					return stopCtx.Err()
				}
				return nil
			},
		})

	case config.TriggerQueue:
		consumer, err := mq.NewConsumer(mq.ConsumerConfig{
			Connection:    conn,
			Exchange:      cfg.RabbitMQ.TriggerExchange,
			Queue:         cfg.RabbitMQ.TriggerQueue,
			RoutingKey:    cfg.RabbitMQ.TriggerRoutingKey,
			DLQQueue:      cfg.RabbitMQ.DLQQueue,
			PrefetchCount: cfg.RabbitMQ.PrefetchCount,
			Logger:        logger,
			Handler:       pipeline.HandleTrigger,
		})
		if err != nil {
			cancel()
			return err
		}

		lc.Append(fx.Hook{
			OnStart: func(startCtx context.Context) error {
				logger.Info("starting trigger consumer",
					zap.String("queue", cfg.RabbitMQ.TriggerQueue),
					zap.Int("prefetch", cfg.RabbitMQ.PrefetchCount))
				return consumer.Start(ctx)
			},
			OnStop: func(stopCtx context.Context) error {
				cancel()
				if err := consumer.Close(); err != nil {
					logger.Error("failed to close consumer", zap.Error(err))
					return err
				}
				logger.Info("trigger consumer stopped gracefully")
				return nil
			},
		})

	default:
		cancel()
		return fmt.Errorf("unknown trigger mode %q", cfg.Pipeline.Trigger)
	}

	return nil
}

// ProvideFetcher creates the upstream plant API client
func ProvideFetcher(cfg *config.Config, logger *zap.Logger) *plantapi.Client {
	return plantapi.NewClient(plantapi.Config{
		BaseURL:        cfg.API.BaseURL,
		RequestTimeout: cfg.API.RequestTimeout,
		MaxConcurrency: cfg.API.MaxConcurrency,
	}, &http.Client{}, logger)
}

// ProvideCleaner creates the batch cleaner
func ProvideCleaner(cfg *config.Config, logger *zap.Logger) (*validator.Cleaner, error) {
	return validator.NewCleaner(validator.Config{
		DecimalPlaces: cfg.Transform.DecimalPlaces,
		EmailPattern:  cfg.Transform.EmailPattern,
	}, logger)
}

// ProvideLoader creates the batch loader
func ProvideLoader(repo *repository.Repository, cfg *config.Config, logger *zap.Logger) *loader.Loader {
	return loader.NewLoader(repo, cfg.Loader.UnresolvedBotanist, logger)
}

// ProvideAnomalyDetector creates a new anomaly detector instance
func ProvideAnomalyDetector(cfg *config.Config) *anomaly.Detector {
	return anomaly.NewDetector(cfg.Anomaly.SpikeThreshold, cfg.Anomaly.MinDataPointsForDetection)
}

// ProvideSink creates the CSV export sink, or nil when export is disabled
func ProvideSink(cfg *config.Config, logger *zap.Logger) (export.Sink, error) {
	return export.NewSink(context.Background(), cfg.Export, logger)
}

// ProvidePipeline creates the pipeline service
func ProvidePipeline(
	cfg *config.Config,
	fetcher *plantapi.Client,
	cleaner *validator.Cleaner,
	batchLoader *loader.Loader,
	repo *repository.Repository,
	detector *anomaly.Detector,
	sink export.Sink,
	publisher mq.EventPublisher,
	logger *zap.Logger,
) *service.Pipeline {
	return service.NewPipeline(service.PipelineDeps{
		Config:    cfg,
		Fetcher:   fetcher,
		Cleaner:   cleaner,
		Loader:    batchLoader,
		History:   repo,
		Detector:  detector,
		Sink:      sink,
		Publisher: publisher,
		Logger:    logger,
	})
}
