// Package export writes a cleaned batch as CSV to a local directory or an S3 bucket.
package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/septivank/plant-metrics-pipeline/internal/models"
	"github.com/septivank/plant-metrics-pipeline/tools/timeparser"
)

// Header is the first CSV row
var Header = []string{
	"plant_id",
	"name",
	"email",
	"phone",
	"longitude",
	"latitude",
	"closest_town",
	"iso_code",
	"plant_name",
	"plant_scientific_name",
	"plant_image_url",
	"temperature",
	"soil_moisture",
	"recording_taken",
	"last_watered",
}

// RenderCSV renders rows with floats at a fixed number of decimal places. Null
// values are written as empty fields.
func RenderCSV(rows []models.PlantMetric, decimalPlaces int) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(Header); err != nil {
		return nil, fmt.Errorf("failed to write csv header: %w", err)
	}

	for _, row := range rows {
		record := []string{
			strconv.FormatInt(row.PlantID, 10),
			row.BotanistName,
			deref(row.Email),
			deref(row.Phone),
			floatPtr(row.Longitude, decimalPlaces),
			floatPtr(row.Latitude, decimalPlaces),
			deref(row.ClosestTown),
			deref(row.ISOCode),
			deref(row.PlantName),
			deref(row.PlantScientificName),
			deref(row.PlantImageURL),
			strconv.FormatFloat(row.Temperature, 'f', decimalPlaces, 64),
			strconv.FormatFloat(row.SoilMoisture, 'f', decimalPlaces, 64),
			row.RecordingTaken.Format(timeparser.StorageLayout),
			timePtr(row.LastWatered),
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write csv row for plant %d: %w", row.PlantID, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func floatPtr(v *float64, places int) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', places, 64)
}

func timePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(timeparser.StorageLayout)
}
