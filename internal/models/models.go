package models

import "time"

// MetricRow is one flattened upstream record before validation. Optional text is nil
// when the API omitted it; numeric and timestamp fields are coerced by the cleaner.
type MetricRow struct {
	// botanist
	Name  *string
	Email *string
	Phone *string

	// location
	Longitude   Scalar
	Latitude    Scalar
	ClosestTown *string
	ISOCode     *string

	// plant
	PlantID             Scalar
	PlantName           *string
	PlantScientificName *string
	PlantImageURL       *string

	// metric
	Temperature    Scalar
	SoilMoisture   Scalar
	RecordingTaken Scalar
	LastWatered    Scalar
}

// PlantMetric is a validated, cleaned reading ready for loading. Every value here has
// passed the quality gate: mandatory fields are non-null and timestamps are UTC
// wall-clock values.
type PlantMetric struct {
	PlantID             int64
	BotanistName        string
	Email               *string
	Phone               *string
	Longitude           *float64
	Latitude            *float64
	ClosestTown         *string
	ISOCode             *string
	PlantName           *string
	PlantScientificName *string
	PlantImageURL       *string
	Temperature         float64
	SoilMoisture        float64
	RecordingTaken      time.Time
	LastWatered         *time.Time
}
