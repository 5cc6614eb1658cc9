package loader

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/septivank/plant-metrics-pipeline/internal/config"
	"github.com/septivank/plant-metrics-pipeline/internal/db"
	"github.com/septivank/plant-metrics-pipeline/internal/metrics"
	"github.com/septivank/plant-metrics-pipeline/internal/models"
)

// ErrUnresolvedBotanist is returned under the reject policy when a botanist name in
// the batch has no row in the botanist table.
var ErrUnresolvedBotanist = errors.New("unresolved botanist")

// Load stages reported through StageFunc.
const (
	StageResolvingIDs = "RESOLVING_IDS"
	StageInserting    = "INSERTING"
)

// StageFunc is called as Load enters each stage
type StageFunc func(stage string)

// Store is the slice of the repository the loader needs
type Store interface {
	BeginTx(ctx context.Context) (pgx.Tx, error)
	GetBotanistIDsTx(ctx context.Context, tx pgx.Tx, names []string) (db.BotanistIDMap, error)
	InsertPlantMetricsTx(ctx context.Context, tx pgx.Tx, rows []db.PlantMetricInsert) (int64, error)
}

// LoadResult reports what one load wrote
type LoadResult struct {
	Inserted            int64
	Duplicates          int64
	BotanistsResolved   int
	UnresolvedBotanists []string
}

// Loader resolves botanist ids and writes a cleaned batch in a single transaction
type Loader struct {
	store  Store
	policy string
	logger *zap.Logger
}

// NewLoader creates a new loader. An empty policy means UnresolvedBotanistNull.
func NewLoader(store Store, policy string, logger *zap.Logger) *Loader {
	if policy == "" {
		policy = config.UnresolvedBotanistNull
	}
	return &Loader{store: store, policy: policy, logger: logger}
}

// Load writes rows to plant_metric. Either every row of the batch is committed or
// nothing is: a database error or a rejected botanist rolls the transaction back.
func (l *Loader) Load(ctx context.Context, rows []models.PlantMetric, onStage StageFunc) (LoadResult, error) {
	var result LoadResult
	if onStage == nil {
		onStage = func(string) {}
	}

	if len(rows) == 0 {
		l.logger.Warn("no rows to load, skipping database write")
		return result, nil
	}

	tx, err := l.store.BeginTx(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	onStage(StageResolvingIDs)
	names := distinctNames(rows)
	ids, err := l.store.GetBotanistIDsTx(ctx, tx, names)
	if err != nil {
		return result, fmt.Errorf("failed to resolve botanist ids: %w", err)
	}

	for _, name := range names {
		if _, ok := ids[name]; !ok {
			result.UnresolvedBotanists = append(result.UnresolvedBotanists, name)
		}
	}
	result.BotanistsResolved = len(names) - len(result.UnresolvedBotanists)

	if len(result.UnresolvedBotanists) > 0 {
		metrics.UnresolvedBotanistsTotal.Add(float64(len(result.UnresolvedBotanists)))
		if l.policy == config.UnresolvedBotanistReject {
			l.logger.Error("rejecting batch with unresolved botanists",
				zap.Strings("botanists", result.UnresolvedBotanists))
			return result, fmt.Errorf("%w: %s", ErrUnresolvedBotanist, strings.Join(result.UnresolvedBotanists, ", "))
		}
		l.logger.Warn("botanists not found, inserting null botanist_id",
			zap.Strings("botanists", result.UnresolvedBotanists))
	}

	onStage(StageInserting)
	inserts := make([]db.PlantMetricInsert, len(rows))
	for i, row := range rows {
		inserts[i] = db.PlantMetricInsert{
			Temperature:    row.Temperature,
			SoilMoisture:   row.SoilMoisture,
			RecordingTaken: row.RecordingTaken,
			LastWatered:    row.LastWatered,
			BotanistID:     ids.Lookup(row.BotanistName),
			PlantID:        row.PlantID,
		}
	}

	inserted, err := l.store.InsertPlantMetricsTx(ctx, tx, inserts)
	if err != nil {
		return result, err
	}

	if err := tx.Commit(ctx); err != nil {
		return result, fmt.Errorf("failed to commit transaction: %w", err)
	}

	result.Inserted = inserted
	result.Duplicates = int64(len(inserts)) - inserted
	metrics.RowsInsertedTotal.Add(float64(inserted))

	l.logger.Info("batch loaded",
		zap.Int64("inserted", result.Inserted),
		zap.Int64("duplicates", result.Duplicates),
		zap.Int("botanists_resolved", result.BotanistsResolved),
	)

	return result, nil
}

func distinctNames(rows []models.PlantMetric) []string {
	seen := make(map[string]struct{}, len(rows))
	names := make([]string, 0, len(rows))
	for _, row := range rows {
		if _, ok := seen[row.BotanistName]; ok {
			continue
		}
		seen[row.BotanistName] = struct{}{}
		names = append(names, row.BotanistName)
	}
	slices.Sort(names)
	return names
}
