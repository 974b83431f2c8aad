// Package alerting scans processed measurement datasets against static
// threshold tables, derives severity-scored alerts, and keeps the active-alert
// set queryable for 24 hours.
package alerting

import (
	"fmt"
	"math"
	"time"
)

// AlertType distinguishes the two monitoring networks that raise alerts.
type AlertType string

const (
	TypeAir   AlertType = "air"
	TypeWater AlertType = "water"
)

// Severity classifies how far a measurement violates its threshold.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Bound names which side of a threshold was violated.
type Bound string

const (
	BoundUpper   Bound = "upper"   // air: single upper limit
	BoundMinimum Bound = "minimum" // water: below acceptable range
	BoundMaximum Bound = "maximum" // water: above acceptable range
)

// Alert is one threshold violation for one row of a processed dataset.
type Alert struct {
	ID        string    `json:"id"`
	Type      AlertType `json:"type"`
	Parameter string    `json:"parameter"`
	Value     float64   `json:"value"`
	Threshold float64   `json:"threshold"`
	Bound     Bound     `json:"bound"`
	Location  string    `json:"location"`
	Timestamp time.Time `json:"timestamp"`
	Severity  Severity  `json:"severity"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// airThreshold is a strict upper bound for an air parameter, μg/m³ except for
// the aqi row, which is on the index's own 0-500 scale.
type airThreshold struct {
	parameter string
	limit     float64
}

// WHO guideline values for the pollutant rows; 150 is the "Unhealthy" AQI band.
var airThresholds = []airThreshold{
	{"pm25", 35.0},
	{"pm10", 50.0},
	{"o3", 100.0},
	{"no2", 40.0},
	{"so2", 20.0},
	{"co", 10000.0},
	{"aqi", 150.0},
}

// waterRange is the acceptable {min, max} range for a water parameter.
type waterRange struct {
	parameter string
	min, max  float64
}

// Ranges are mg/L except pH, Turbidity (NTU), Fecal Coliform (CFU/100mL),
// and wqi, which is on the index's own scale with 50 closing the "Good" band.
// DO only has a floor.
var waterRanges = []waterRange{
	{"pH", 6.5, 8.5},
	{"DO", 4.0, math.Inf(1)},
	{"BOD", 0.0, 3.0},
	{"COD", 0.0, 10.0},
	{"TDS", 0.0, 500.0},
	{"Turbidity", 0.0, 5.0},
	{"Nitrates", 0.0, 10.0},
	{"Phosphates", 0.0, 0.1},
	{"Fecal Coliform", 0.0, 200.0},
	{"wqi", 0.0, 50.0},
}

// severityFromRatio maps an exceedance or deviation ratio onto the four-level
// scale. A non-finite ratio (division by a zero reading) is critical.
func severityFromRatio(ratio float64) Severity {
	switch {
	case math.IsInf(ratio, 1) || math.IsNaN(ratio):
		return SeverityCritical
	case ratio <= 1.2:
		return SeverityLow
	case ratio <= 1.5:
		return SeverityMedium
	case ratio <= 2.0:
		return SeverityHigh
	default:
		return SeverityCritical
	}
}

func airMessage(parameter string, value, limit float64) string {
	return fmt.Sprintf("Air quality alert: %s level of %.2f exceeds threshold of %g", parameter, value, limit)
}

func waterMessage(parameter string, value, min, max float64) string {
	return fmt.Sprintf("Water quality alert: %s level of %.2f is outside acceptable range (%g - %g)", parameter, value, min, max)
}
