package main

import (
	"fmt"
	"os"

	"go.uber.org/fx"

	"github.com/septivank/plant-metrics-pipeline/internal/bootstrap"
	"github.com/septivank/plant-metrics-pipeline/internal/config"
)

func main() {
	if path := config.LoadDotEnv(); path != "" {
		fmt.Printf("Loaded environment from: %s\n", path)
	} else {
		fmt.Println("No .env file found, using system environment variables (OK for pods/containers)")
	}

	app := fx.New(
		bootstrap.Infrastructure,
		fx.Provide(
			ProvideFetcher,
			ProvideCleaner,
			ProvideLoader,
			ProvideAnomalyDetector,
			ProvideSink,
			ProvidePipeline,
		),
		fx.Invoke(startTrigger),
	)

	os.Exit(bootstrap.Run(app, "plant-metrics-pipeline"))
}
