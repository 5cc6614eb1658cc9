// Package bootstrap holds the fx providers shared by the pipeline and archive commands.
package bootstrap

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/septivank/plant-metrics-pipeline/internal/config"
	"github.com/septivank/plant-metrics-pipeline/internal/db"
	"github.com/septivank/plant-metrics-pipeline/internal/logging"
	"github.com/septivank/plant-metrics-pipeline/internal/mq"
	"github.com/septivank/plant-metrics-pipeline/internal/repository"
)

// Infrastructure provides configuration, logging, the database pool, the repository
// and the optional RabbitMQ connection and event publisher.
var Infrastructure = fx.Options(
	fx.Provide(
		config.Load,
		NewLogger,
		ProvideDBPool,
		ProvideRepository,
		ProvideMQConnection,
		ProvidePublisher,
	),
)

// NewLogger creates the process logger
func NewLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.NewLogger(cfg.ServiceName)
}

// ProvideDBPool creates a new database pool instance
func ProvideDBPool(lc fx.Lifecycle, logger *zap.Logger, cfg *config.Config) (*db.Pool, error) {
	return db.NewPool(lc, logger, db.PoolConfig{
		URL:             cfg.Database.URL,
		ApplicationName: cfg.ServiceName,
		MaxConns:        int32(cfg.Database.MaxConns),
	})
}

// ProvideRepository creates a new repository instance
func ProvideRepository(pool *db.Pool, cfg *config.Config) *repository.Repository {
	return repository.NewRepository(pool, cfg.Database.Schema)
}

// ProvideMQConnection creates the RabbitMQ connection, or nil when none is configured
func ProvideMQConnection(lc fx.Lifecycle, logger *zap.Logger, cfg *config.Config) (*mq.Connection, error) {
	return mq.NewConnection(lc, logger, cfg.RabbitMQ.URL)
}

// ProvidePublisher creates the event publisher. Without a connection events are dropped.
func ProvidePublisher(lc fx.Lifecycle, conn *mq.Connection, cfg *config.Config, logger *zap.Logger) (mq.EventPublisher, error) {
	if conn == nil {
		return mq.NopPublisher{}, nil
	}

	publisher, err := mq.NewPublisher(conn, mq.PublisherConfig{
		Exchange:          cfg.RabbitMQ.EventsExchange,
		RunRoutingKey:     cfg.RabbitMQ.RunRoutingKey,
		ArchiveRoutingKey: cfg.RabbitMQ.ArchiveRoutingKey,
	}, logger)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return publisher.Close()
		},
	})

	return publisher, nil
}
