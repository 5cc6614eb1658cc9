package logging_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/septivank/plant-metrics-pipeline/internal/logging"
)

func TestNewLogger(t *testing.T) {
	logger, err := logging.NewLogger("plant-metrics-pipeline")
	assert.NoError(t, err)
	assert.NotNil(t, logger)
}

func TestWithRunIDAndStage(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := logging.WithStage(logging.WithRunID(zap.New(core), "run-1"), "FETCHING")

	logger.Info("fetch complete")

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		fields := entries[0].ContextMap()
		assert.Equal(t, "run-1", fields["run_id"])
		assert.Equal(t, "FETCHING", fields["stage"])
	}
}
