package db

import (
	"time"
)

// BotanistIDMap maps a botanist's full name to its database id. It is built once per
// run from the names present in the batch and discarded after the load.
type BotanistIDMap map[string]int64

// Lookup returns the id for name, or nil when the name did not resolve.
func (m BotanistIDMap) Lookup(name string) *int64 {
	id, ok := m[name]
	if !ok {
		return nil
	}
	return &id
}

// PlantMetricInsert is one row of the plant_metric table
type PlantMetricInsert struct {
	Temperature    float64
	SoilMoisture   float64
	RecordingTaken time.Time
	LastWatered    *time.Time
	BotanistID     *int64
	PlantID        int64
}

// RecentReadings holds a plant's latest stored readings, newest first
type RecentReadings struct {
	Temperature  []float64
	SoilMoisture []float64
}

// PlantArchive is one per-plant rollup row in plant_archive
type PlantArchive struct {
	PlantID         int64
	AvgTemperature  float64
	AvgSoilMoisture float64
	WateredCount    int64
	LastRecorded    time.Time
}
