package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/septivank/plant-metrics-pipeline/internal/logging"
)

// StartStopTimeout bounds application start and graceful stop
const StartStopTimeout = 30 * time.Second

// Run starts app, waits for an interrupt or an fx shutdown, stops app and returns
// the process exit code.
func Run(app *fx.App, serviceName string) int {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	startupLogger, err := logging.NewLogger(serviceName)
	if err != nil {
		startupLogger = zap.NewNop()
	}
	startupLogger.Info("starting application...", zap.Duration("timeout", StartStopTimeout))

	startCtx, startCancel := context.WithTimeout(context.Background(), StartStopTimeout)
	defer startCancel()

	if err := app.Start(startCtx); err != nil {
		if errors.Is(startCtx.Err(), context.DeadlineExceeded) {
			startupLogger.Error("APPLICATION START TIMEOUT: failed to start within 30 seconds. This usually means a dependency (Database or RabbitMQ) is not accessible. Check the error messages above for specific connection failures.")
		}
		startupLogger.Error("application failed to start", zap.Error(err))
		return 1
	}

	exitCode := 0
	select {
	case <-ctx.Done():
		startupLogger.Info("shutdown signal received")
	case sig := <-app.Wait():
		exitCode = sig.ExitCode
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), StartStopTimeout)
	defer stopCancel()
	if err := app.Stop(stopCtx); err != nil {
		fmt.Println("error stopping app:", err)
	}

	_ = startupLogger.Sync()
	return exitCode
}
