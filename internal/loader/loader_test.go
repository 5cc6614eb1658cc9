package loader_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/septivank/plant-metrics-pipeline/internal/config"
	"github.com/septivank/plant-metrics-pipeline/internal/db"
	"github.com/septivank/plant-metrics-pipeline/internal/loader"
	"github.com/septivank/plant-metrics-pipeline/internal/models"
)

type fakeTx struct {
	pgx.Tx
	commits   int
	rollbacks int
}

func (t *fakeTx) Commit(ctx context.Context) error {
	t.commits++
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	if t.commits == 0 {
		t.rollbacks++
	}
	return nil
}

type fakeStore struct {
	tx          *fakeTx
	begins      int
	botanists   db.BotanistIDMap
	lookups     [][]string
	inserted    []db.PlantMetricInsert
	insertCalls int
	duplicates  int64
	insertErr   error
}

func newFakeStore(botanists db.BotanistIDMap) *fakeStore {
	return &fakeStore{tx: &fakeTx{}, botanists: botanists}
}

func (s *fakeStore) BeginTx(ctx context.Context) (pgx.Tx, error) {
	s.begins++
	return s.tx, nil
}

func (s *fakeStore) GetBotanistIDsTx(ctx context.Context, tx pgx.Tx, names []string) (db.BotanistIDMap, error) {
	s.lookups = append(s.lookups, names)
	result := db.BotanistIDMap{}
	for _, name := range names {
		if id, ok := s.botanists[name]; ok {
			result[name] = id
		}
	}
	return result, nil
}

func (s *fakeStore) InsertPlantMetricsTx(ctx context.Context, tx pgx.Tx, rows []db.PlantMetricInsert) (int64, error) {
	s.insertCalls++
	if s.insertErr != nil {
		return 0, s.insertErr
	}
	s.inserted = append(s.inserted, rows...)
	return int64(len(rows)) - s.duplicates, nil
}

func metric(plantID int64, botanist string) models.PlantMetric {
	return models.PlantMetric{
		PlantID:        plantID,
		BotanistName:   botanist,
		Temperature:    13.19,
		SoilMoisture:   31.71,
		RecordingTaken: time.Date(2024, 11, 26, 9, 38, 44, 0, time.UTC),
	}
}

func TestLoad_ResolvesIDsAndCommitsOnce(t *testing.T) {
	store := newFakeStore(db.BotanistIDMap{"Carl Linnaeus": 1, "Eliza Andrews": 2})
	l := loader.NewLoader(store, config.UnresolvedBotanistNull, zap.NewNop())

	result, err := l.Load(context.Background(), []models.PlantMetric{
		metric(1, "Carl Linnaeus"),
		metric(2, "Eliza Andrews"),
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, int64(2), result.Inserted)
	assert.Equal(t, 2, result.BotanistsResolved)
	assert.Empty(t, result.UnresolvedBotanists)

	require.Len(t, store.lookups, 1)
	assert.Equal(t, []string{"Carl Linnaeus", "Eliza Andrews"}, store.lookups[0])

	require.Len(t, store.inserted, 2)
	require.NotNil(t, store.inserted[0].BotanistID)
	require.NotNil(t, store.inserted[1].BotanistID)
	assert.Equal(t, int64(1), *store.inserted[0].BotanistID)
	assert.Equal(t, int64(2), *store.inserted[1].BotanistID)

	assert.Equal(t, 1, store.begins)
	assert.Equal(t, 1, store.insertCalls)
	assert.Equal(t, 1, store.tx.commits)
	assert.Equal(t, 0, store.tx.rollbacks)
}

func TestLoad_EmptyBatchOpensNoTransaction(t *testing.T) {
	store := newFakeStore(nil)
	l := loader.NewLoader(store, "", zap.NewNop())

	result, err := l.Load(context.Background(), nil, nil)

	require.NoError(t, err)
	assert.Equal(t, int64(0), result.Inserted)
	assert.Equal(t, 0, store.begins)
	assert.Equal(t, 0, store.insertCalls)
}

func TestLoad_DistinctNamesLookedUpOnce(t *testing.T) {
	store := newFakeStore(db.BotanistIDMap{"Carl Linnaeus": 1})
	l := loader.NewLoader(store, config.UnresolvedBotanistNull, zap.NewNop())

	_, err := l.Load(context.Background(), []models.PlantMetric{
		metric(1, "Carl Linnaeus"),
		metric(2, "Carl Linnaeus"),
		metric(3, "Carl Linnaeus"),
	}, nil)

	require.NoError(t, err)
	require.Len(t, store.lookups, 1)
	assert.Equal(t, []string{"Carl Linnaeus"}, store.lookups[0])
}

func TestLoad_UnresolvedBotanistNullPolicy(t *testing.T) {
	store := newFakeStore(db.BotanistIDMap{"Carl Linnaeus": 1})
	l := loader.NewLoader(store, config.UnresolvedBotanistNull, zap.NewNop())

	result, err := l.Load(context.Background(), []models.PlantMetric{
		metric(1, "Carl Linnaeus"),
		metric(2, "Unknown Person"),
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, []string{"Unknown Person"}, result.UnresolvedBotanists)
	assert.Equal(t, 1, result.BotanistsResolved)
	require.Len(t, store.inserted, 2)
	assert.NotNil(t, store.inserted[0].BotanistID)
	assert.Nil(t, store.inserted[1].BotanistID)
	assert.Equal(t, 1, store.tx.commits)
}

func TestLoad_UnresolvedBotanistRejectPolicy(t *testing.T) {
	store := newFakeStore(db.BotanistIDMap{"Carl Linnaeus": 1})
	l := loader.NewLoader(store, config.UnresolvedBotanistReject, zap.NewNop())

	_, err := l.Load(context.Background(), []models.PlantMetric{
		metric(1, "Carl Linnaeus"),
		metric(2, "Unknown Person"),
	}, nil)

	require.Error(t, err)
	assert.True(t, errors.Is(err, loader.ErrUnresolvedBotanist))
	assert.Contains(t, err.Error(), "Unknown Person")
	assert.Equal(t, 0, store.insertCalls)
	assert.Equal(t, 0, store.tx.commits)
	assert.Equal(t, 1, store.tx.rollbacks)
}

func TestLoad_InsertErrorRollsBack(t *testing.T) {
	store := newFakeStore(db.BotanistIDMap{"Carl Linnaeus": 1})
	store.insertErr = errors.New("connection reset")
	l := loader.NewLoader(store, config.UnresolvedBotanistNull, zap.NewNop())

	_, err := l.Load(context.Background(), []models.PlantMetric{metric(1, "Carl Linnaeus")}, nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
	assert.Equal(t, 0, store.tx.commits)
	assert.Equal(t, 1, store.tx.rollbacks)
}

func TestLoad_ReportsSkippedDuplicates(t *testing.T) {
	store := newFakeStore(db.BotanistIDMap{"Carl Linnaeus": 1})
	store.duplicates = 1
	l := loader.NewLoader(store, config.UnresolvedBotanistNull, zap.NewNop())

	result, err := l.Load(context.Background(), []models.PlantMetric{
		metric(1, "Carl Linnaeus"),
		metric(2, "Carl Linnaeus"),
	}, nil)

	require.NoError(t, err)
	assert.Equal(t, int64(1), result.Inserted)
	assert.Equal(t, int64(1), result.Duplicates)
}

func TestLoad_ReportsStagesInOrder(t *testing.T) {
	store := newFakeStore(db.BotanistIDMap{"Carl Linnaeus": 1})
	l := loader.NewLoader(store, config.UnresolvedBotanistNull, zap.NewNop())

	var stages []string
	_, err := l.Load(context.Background(), []models.PlantMetric{metric(1, "Carl Linnaeus")}, func(stage string) {
		stages = append(stages, stage)
	})

	require.NoError(t, err)
	assert.Equal(t, []string{loader.StageResolvingIDs, loader.StageInserting}, stages)
}
