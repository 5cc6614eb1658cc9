package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/septivank/plant-metrics-pipeline/internal/bootstrap"
	"github.com/septivank/plant-metrics-pipeline/internal/config"
	"github.com/septivank/plant-metrics-pipeline/internal/mq"
	"github.com/septivank/plant-metrics-pipeline/internal/repository"
	"github.com/septivank/plant-metrics-pipeline/internal/service"
)

func main() {
	if path := config.LoadDotEnv(); path != "" {
		fmt.Printf("Loaded environment from: %s\n", path)
	}

	app := fx.New(
		bootstrap.Infrastructure,
		fx.Provide(ProvideArchiver),
		fx.Invoke(runArchive),
	)

	os.Exit(bootstrap.Run(app, "plant-metrics-archive"))
}

// ProvideArchiver creates the archiver service
func ProvideArchiver(repo *repository.Repository, publisher mq.EventPublisher, cfg *config.Config, logger *zap.Logger) *service.Archiver {
	return service.NewArchiver(repo, publisher, cfg.Metrics.PushgatewayURL, logger)
}

func runArchive(lc fx.Lifecycle, shutdowner fx.Shutdowner, archiver *service.Archiver, logger *zap.Logger) {
	ctx, cancel := context.WithCancel(context.Background())

	lc.Append(fx.Hook{
		OnStart: func(startCtx context.Context) error {
			go func() {
				result := service.InvokeArchive(ctx, archiver)
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
}
