// Package normalizer flattens upstream plant records into metric rows.
//
// Location arrays are read positionally in the order
// [longitude, latitude, closest_town, iso_code]; trailing elements are ignored.
package normalizer

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/septivank/plant-metrics-pipeline/internal/models"
	"github.com/septivank/plant-metrics-pipeline/internal/plantapi"
)

// LocationFields is the minimum number of origin_location elements.
const LocationFields = 4

// ErrMalformedRecord marks a record that cannot be flattened.
var ErrMalformedRecord = errors.New("malformed record")

// Normalize maps one upstream record into a flat row. Merge order is botanist,
// location, plant, metric: the botanist name lands in Name and the plant name in
// PlantName.
func Normalize(record plantapi.RawRecord) (models.MetricRow, error) {
	var row models.MetricRow

	botanist(&row, record.Botanist)
	if err := location(&row, record.OriginLocation); err != nil {
		return models.MetricRow{}, err
	}
	plant(&row, record)
	metric(&row, record)

	return row, nil
}

// NormalizeBatch normalizes every record, logging and skipping malformed ones.
func NormalizeBatch(records []plantapi.RawRecord, logger *zap.Logger) ([]models.MetricRow, int) {
	rows := make([]models.MetricRow, 0, len(records))
	dropped := 0
	for _, record := range records {
		row, err := Normalize(record)
		if err != nil {
			dropped++
			plantID, _ := record.PlantID.String()
			logger.Warn("dropping malformed plant record", zap.String("plant_id", plantID), zap.Error(err))
			continue
		}
		rows = append(rows, row)
	}
	return rows, dropped
}

func botanist(row *models.MetricRow, b *plantapi.RawBotanist) {
	if b == nil {
		return
	}
	row.Name = b.Name
	row.Email = b.Email
	row.Phone = b.Phone
}

func location(row *models.MetricRow, loc []models.Scalar) error {
	if len(loc) < LocationFields {
		return fmt.Errorf("%w: origin_location has %d elements, want at least %d", ErrMalformedRecord, len(loc), LocationFields)
	}
	row.Longitude = loc[0]
	row.Latitude = loc[1]
	row.ClosestTown = text(loc[2])
	row.ISOCode = text(loc[3])
	return nil
}

func plant(row *models.MetricRow, record plantapi.RawRecord) {
	row.PlantID = record.PlantID
	row.PlantName = record.Name
	if len(record.ScientificName) > 0 {
		name := record.ScientificName[0]
		row.PlantScientificName = &name
	}
	if record.Images != nil {
		row.PlantImageURL = record.Images.OriginalURL
	}
}

func metric(row *models.MetricRow, record plantapi.RawRecord) {
	row.Temperature = record.Temperature
	row.SoilMoisture = record.SoilMoisture
	row.RecordingTaken = record.RecordingTaken
	row.LastWatered = record.LastWatered
}

func text(s models.Scalar) *string {
	v, ok := s.String()
	if !ok {
		return nil
	}
	return &v
}
