package plantapi

import "github.com/septivank/plant-metrics-pipeline/internal/models"

// RawRecord models the JSON document returned by GET /plants/{id}.
type RawRecord struct {
	PlantID        models.Scalar   `json:"plant_id"`
	Name           *string         `json:"name"`
	Botanist       *RawBotanist    `json:"botanist"`
	OriginLocation []models.Scalar `json:"origin_location"`
	Images         *RawImages      `json:"images"`
	ScientificName []string        `json:"scientific_name"`
	Temperature    models.Scalar   `json:"temperature"`
	SoilMoisture   models.Scalar   `json:"soil_moisture"`
	RecordingTaken models.Scalar   `json:"recording_taken"`
	LastWatered    models.Scalar   `json:"last_watered"`
}

// RawBotanist is the nested botanist object.
type RawBotanist struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
	Phone *string `json:"phone"`
}

// RawImages is the nested images object; only the original URL is used.
type RawImages struct {
	OriginalURL *string `json:"original_url"`
}
