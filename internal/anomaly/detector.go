package anomaly

import (
	"fmt"
	"math"
)

// Metric names a reading that can be checked.
type Metric string

// Checked metrics.
const (
	Temperature  Metric = "temperature"
	SoilMoisture Metric = "soil_moisture"
)

// Detector handles anomaly detection with configurable thresholds
type Detector struct {
	spikeThreshold            float64
	minDataPointsForDetection int
}

// NewDetector creates a new anomaly detector with the specified thresholds
func NewDetector(spikeThreshold float64, minDataPointsForDetection int) *Detector {
	return &Detector{
		spikeThreshold:            spikeThreshold,
		minDataPointsForDetection: minDataPointsForDetection,
	}
}

// DetectAnomaly checks if the value is anomalous based on the plant's recent readings.
// Flags are informational; they never remove a reading from the batch.
func (d *Detector) DetectAnomaly(metric Metric, value float64, historicalValues []float64) (bool, string) {
	// Soil moisture is a percentage
	if metric == SoilMoisture && (value < 0 || value > 100) {
		return true, fmt.Sprintf("soil moisture %.2f outside 0-100", value)
	}

	// Need enough historical data for spike detection
	if len(historicalValues) < d.minDataPointsForDetection {
		return false, ""
	}

	// Calculate rolling average
	sum := 0.0
	for _, v := range historicalValues {
		sum += v
	}
	average := sum / float64(len(historicalValues))
	magnitude := math.Abs(average)
	if magnitude == 0 {
		return false, ""
	}

	// Detect sudden spike or drop (more than threshold x rolling average away from it)
	if math.Abs(value-average) > (d.spikeThreshold-1)*magnitude {
		return true, fmt.Sprintf("sudden change detected: %s %.2f deviates from rolling average %.2f by more than %.1fx",
			metric, value, average, d.spikeThreshold)
	}

	return false, ""
}
