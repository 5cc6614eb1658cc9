package repository

import (
	"context"
	"fmt"

	"github.com/huandu/go-sqlbuilder"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/septivank/plant-metrics-pipeline/internal/db"
)

// Tx is an alias for pgx.Tx
type Tx = pgx.Tx

// MaxRowsPerStatement bounds a multi-row INSERT so its parameter count stays well
// below the PostgreSQL limit of 65535.
const MaxRowsPerStatement = 1000

var metricColumns = []string{"temperature", "soil_moisture", "recording_taken", "last_watered", "botanist_id", "plant_id"}

// pool is the subset of *pgxpool.Pool the repository uses
type pool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Repository handles database operations
type Repository struct {
	pool   pool
	schema string
}

// NewRepository creates a new repository for tables in the given schema
func NewRepository(pool *pgxpool.Pool, schema string) *Repository {
	return &Repository{pool: pool, schema: schema}
}

// BeginTx starts a new transaction
func (r *Repository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

// GetBotanistIDsTx resolves botanist full names to ids with a single IN query.
// Names with no match are absent from the returned map.
func (r *Repository) GetBotanistIDsTx(ctx context.Context, tx pgx.Tx, names []string) (db.BotanistIDMap, error) {
	result := make(db.BotanistIDMap, len(names))
	if len(names) == 0 {
		return result, nil
	}

	query, args := buildBotanistLookup(r.schema, names)
	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query botanists: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("failed to scan botanist: %w", err)
		}
		result[name] = id
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return result, nil
}

// InsertPlantMetricsTx writes rows with multi-row INSERT statements inside tx and
// returns how many rows were actually inserted. Rows that collide with an existing
// unique key are skipped.
func (r *Repository) InsertPlantMetricsTx(ctx context.Context, tx pgx.Tx, rows []db.PlantMetricInsert) (int64, error) {
	var inserted int64
	for start := 0; start < len(rows); start += MaxRowsPerStatement {
		end := min(start+MaxRowsPerStatement, len(rows))

		query, args := buildMetricInsert(r.schema, rows[start:end])
		tag, err := tx.Exec(ctx, query, args...)
		if err != nil {
			return inserted, fmt.Errorf("failed to insert plant metrics: %w", err)
		}
		inserted += tag.RowsAffected()
	}
	return inserted, nil
}

// GetRecentReadings returns up to limit of the newest stored readings per plant.
func (r *Repository) GetRecentReadings(ctx context.Context, plantIDs []int64, limit int) (map[int64]db.RecentReadings, error) {
	result := make(map[int64]db.RecentReadings, len(plantIDs))
	if len(plantIDs) == 0 {
		return result, nil
	}

	query := fmt.Sprintf(`
		SELECT plant_id, temperature, soil_moisture
		FROM (
			SELECT plant_id, temperature, soil_moisture,
				ROW_NUMBER() OVER (PARTITION BY plant_id ORDER BY recording_taken DESC) AS rn
			FROM %s
			WHERE plant_id = ANY($1)
		) recent
		WHERE rn <= $2
		ORDER BY plant_id, rn
	`, r.table("plant_metric"))

	rows, err := r.pool.Query(ctx, query, plantIDs, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent readings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var plantID int64
		var temperature, soilMoisture float64
		if err := rows.Scan(&plantID, &temperature, &soilMoisture); err != nil {
			return nil, fmt.Errorf("failed to scan reading: %w", err)
		}
		recent := result[plantID]
		recent.Temperature = append(recent.Temperature, temperature)
		recent.SoilMoisture = append(recent.SoilMoisture, soilMoisture)
		result[plantID] = recent
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return result, nil
}

// ArchivePlantMetricsTx rolls plant_metric up into one plant_archive row per plant
// and returns the rows written.
func (r *Repository) ArchivePlantMetricsTx(ctx context.Context, tx pgx.Tx) ([]db.PlantArchive, error) {
	rows, err := tx.Query(ctx, buildArchiveInsert(r.schema))
	if err != nil {
		return nil, fmt.Errorf("failed to archive plant metrics: %w", err)
	}
	defer rows.Close()

	var archived []db.PlantArchive
	for rows.Next() {
		var a db.PlantArchive
		if err := rows.Scan(&a.PlantID, &a.AvgTemperature, &a.AvgSoilMoisture, &a.WateredCount, &a.LastRecorded); err != nil {
			return nil, fmt.Errorf("failed to scan archive row: %w", err)
		}
		archived = append(archived, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return archived, nil
}

// TruncatePlantMetricsTx empties plant_metric inside tx
func (r *Repository) TruncatePlantMetricsTx(ctx context.Context, tx pgx.Tx) error {
	if _, err := tx.Exec(ctx, "TRUNCATE TABLE "+r.table("plant_metric")); err != nil {
		return fmt.Errorf("failed to truncate plant metrics: %w", err)
	}
	return nil
}

func (r *Repository) table(name string) string {
	return qualify(r.schema, name)
}

func qualify(schema, name string) string {
	return pgx.Identifier{schema, name}.Sanitize()
}

func buildBotanistLookup(schema string, names []string) (string, []interface{}) {
	values := make([]interface{}, len(names))
	for i, name := range names {
		values[i] = name
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("botanist_id", "full_name").
		From(qualify(schema, "botanist")).
		Where(sb.In("full_name", values...))

	return sb.Build()
}

func buildMetricInsert(schema string, rows []db.PlantMetricInsert) (string, []interface{}) {
	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto(qualify(schema, "plant_metric")).Cols(metricColumns...)
	for _, row := range rows {
		ib.Values(row.Temperature, row.SoilMoisture, row.RecordingTaken, row.LastWatered, row.BotanistID, row.PlantID)
	}
	ib.SQL("ON CONFLICT DO NOTHING")

	return ib.Build()
}

func buildArchiveInsert(schema string) string {
	return fmt.Sprintf(`
		INSERT INTO %s (avg_temperature, avg_soil_moisture, watered_count, last_recorded, plant_id)
		SELECT
			ROUND(AVG(temperature)::numeric, 2),
			ROUND(AVG(soil_moisture)::numeric, 2),
			COUNT(DISTINCT last_watered),
			MAX(recording_taken),
			plant_id
		FROM %s
		GROUP BY plant_id
		RETURNING plant_id, avg_temperature::float8, avg_soil_moisture::float8, watered_count::bigint, last_recorded
	`, qualify(schema, "plant_archive"), qualify(schema, "plant_metric"))
}
