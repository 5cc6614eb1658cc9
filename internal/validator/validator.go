package validator

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/septivank/plant-metrics-pipeline/internal/metrics"
	"github.com/septivank/plant-metrics-pipeline/internal/models"
	"github.com/septivank/plant-metrics-pipeline/tools/timeparser"
)

// Drop reasons, also used as metric label values.
const (
	ReasonInvalidTimestamp      = "invalid_timestamp"
	ReasonMissingRecordingTaken = "missing_recording_taken"
	ReasonMissingTemperature    = "missing_temperature"
	ReasonMissingSoilMoisture   = "missing_soil_moisture"
	ReasonMissingPlantID        = "missing_plant_id"
	ReasonMissingBotanistName   = "missing_name"
)

// scrubbed characters are removed from free-text name fields.
const scrubbed = `"',`

// Config holds cleaner settings
type Config struct {
	DecimalPlaces int
	EmailPattern  string
}

// CleanStats counts what the cleaner did to one batch
type CleanStats struct {
	Input        int
	Output       int
	EmailsNulled int
	Dropped      map[string]int
}

// DroppedTotal returns the number of rows removed from the batch.
func (s CleanStats) DroppedTotal() int {
	total := 0
	for _, n := range s.Dropped {
		total += n
	}
	return total
}

// Cleaner coerces, rounds, validates and gates a batch of metric rows
type Cleaner struct {
	decimalPlaces int
	email         *regexp.Regexp
	logger        *zap.Logger
}

// NewCleaner creates a new cleaner. It fails if the email pattern does not compile.
func NewCleaner(cfg Config, logger *zap.Logger) (*Cleaner, error) {
	email, err := regexp.Compile(cfg.EmailPattern)
	if err != nil {
		return nil, fmt.Errorf("invalid email pattern: %w", err)
	}
	if cfg.DecimalPlaces < 0 {
		return nil, fmt.Errorf("decimal places must not be negative, got %d", cfg.DecimalPlaces)
	}

	return &Cleaner{
		decimalPlaces: cfg.DecimalPlaces,
		email:         email,
		logger:        logger,
	}, nil
}

// Clean runs the whole batch through type conversion, rounding, email validation,
// punctuation scrubbing and null gating. Rows that fail a mandatory check are
// dropped and counted; every returned row has a plant id, a botanist name, a
// temperature, a soil moisture and a recording time.
func (c *Cleaner) Clean(rows []models.MetricRow) ([]models.PlantMetric, CleanStats) {
	stats := CleanStats{Input: len(rows), Dropped: make(map[string]int)}
	out := make([]models.PlantMetric, 0, len(rows))

	for _, row := range rows {
		metric, reason, err := c.cleanRow(row, &stats)
		if reason != "" {
			stats.Dropped[reason]++
			metrics.RowsDroppedTotal.WithLabelValues(reason).Inc()
			plantID, _ := row.PlantID.String()
			c.logger.Warn("dropping invalid row",
				zap.String("plant_id", plantID),
				zap.String("reason", reason),
				zap.Error(err),
			)
			continue
		}
		out = append(out, metric)
	}

	stats.Output = len(out)
	return out, stats
}

func (c *Cleaner) cleanRow(row models.MetricRow, stats *CleanStats) (models.PlantMetric, string, error) {
	var m models.PlantMetric

	// type conversion
	recorded, ok := row.RecordingTaken.String()
	if !ok || strings.TrimSpace(recorded) == "" {
		return m, ReasonMissingRecordingTaken, nil
	}
	recordingTaken, err := timeparser.ParseRecordingTaken(recorded)
	if err != nil {
		return m, ReasonInvalidTimestamp, err
	}
	m.RecordingTaken = recordingTaken

	if watered, ok := row.LastWatered.String(); ok && strings.TrimSpace(watered) != "" {
		lastWatered, err := timeparser.ParseLastWatered(watered)
		if err != nil {
			return m, ReasonInvalidTimestamp, err
		}
		m.LastWatered = &lastWatered
	}

	// rounding
	m.Longitude = c.optionalFloat(row.Longitude)
	m.Latitude = c.optionalFloat(row.Latitude)
	temperature := c.optionalFloat(row.Temperature)
	soilMoisture := c.optionalFloat(row.SoilMoisture)

	m.Email = c.ValidateEmail(row.Email)

	// scrubbing
	name := scrubPtr(row.Name)
	m.PlantName = scrubPtr(row.PlantName)
	m.PlantScientificName = scrubPtr(row.PlantScientificName)

	// null gating
	if temperature == nil {
		return m, ReasonMissingTemperature, nil
	}
	if soilMoisture == nil {
		return m, ReasonMissingSoilMoisture, nil
	}
	plantID, err := row.PlantID.Int()
	if err != nil {
		return m, ReasonMissingPlantID, err
	}
	if name == nil || strings.TrimSpace(*name) == "" {
		return m, ReasonMissingBotanistName, nil
	}

	m.PlantID = plantID
	m.BotanistName = strings.TrimSpace(*name)
	m.Temperature = *temperature
	m.SoilMoisture = *soilMoisture
	m.Phone = row.Phone
	m.ClosestTown = row.ClosestTown
	m.ISOCode = row.ISOCode
	m.PlantImageURL = row.PlantImageURL

	// only kept rows count towards nulled emails
	if row.Email != nil && m.Email == nil {
		stats.EmailsNulled++
		metrics.EmailsNulledTotal.Inc()
	}

	return m, "", nil
}

// optionalFloat coerces a scalar with invalid-to-null semantics and rounds it.
func (c *Cleaner) optionalFloat(s models.Scalar) *float64 {
	f, err := s.Float()
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	rounded := Round(f, c.decimalPlaces)
	return &rounded
}

// ValidateEmail returns email unchanged when it matches the configured pattern and
// nil otherwise. It never fails.
func (c *Cleaner) ValidateEmail(email *string) *string {
	if email == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*email)
	if trimmed == "" || !c.email.MatchString(trimmed) {
		return nil
	}
	return email
}

// Round rounds v half away from zero to the given number of decimal places.
func Round(v float64, places int) float64 {
	if places < 0 {
		return v
	}
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}

// ScrubText removes quote and comma characters.
func ScrubText(s string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(scrubbed, r) {
			return -1
		}
		return r
	}, s)
}

func scrubPtr(s *string) *string {
	if s == nil {
		return nil
	}
	v := ScrubText(*s)
	return &v
}
