package mq_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"

	"github.com/septivank/plant-metrics-pipeline/internal/mq"
)

func TestNewConnection_EmptyURLIsOptional(t *testing.T) {
	lc := fxtest.NewLifecycle(t)

	conn, err := mq.NewConnection(lc, zap.NewNop(), "")

	require.NoError(t, err)
	assert.Nil(t, conn)
}

func TestNewConsumer_RequiresConnection(t *testing.T) {
	_, err := mq.NewConsumer(mq.ConsumerConfig{Logger: zap.NewNop()})
	assert.Error(t, err)
}

func TestNopPublisher(t *testing.T) {
	var p mq.EventPublisher = mq.NopPublisher{}

	assert.NoError(t, p.PublishRunCompleted(context.Background(), mq.RunCompletedEvent{RunID: "r1"}))
	assert.NoError(t, p.PublishArchiveCompleted(context.Background(), mq.ArchiveCompletedEvent{RunID: "r1"}))
}

func TestRunCompletedEvent_OmitsEmptyOptionalFields(t *testing.T) {
	event := mq.RunCompletedEvent{
		EventID:    "e1",
		RunID:      "r1",
		State:      "COMMITTED",
		StartedAt:  time.Date(2024, 11, 26, 9, 0, 0, 0, time.UTC),
		FinishedAt: time.Date(2024, 11, 26, 9, 0, 5, 0, time.UTC),
		Inserted:   2,
	}

	body, err := json.Marshal(event)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, "COMMITTED", decoded["state"])
	assert.Equal(t, float64(2), decoded["inserted"])
	assert.NotContains(t, decoded, "error")
	assert.NotContains(t, decoded, "unresolved_botanists")
	assert.NotContains(t, decoded, "export_location")
}
