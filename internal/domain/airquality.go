package domain

import (
	"errors"

	"github.com/couchcryptid/enviro-quality-etl/internal/dataset"
)

// Pollutant is a typed key for a recognized air pollutant column.
type Pollutant string

const (
	PM25 Pollutant = "pm25"
	PM10 Pollutant = "pm10"
	O3   Pollutant = "o3"
	CO   Pollutant = "co"
	SO2  Pollutant = "so2"
	NO2  Pollutant = "no2"
)

// AirPollutants lists the recognized pollutants in evaluation order.
func AirPollutants() []Pollutant {
	return []Pollutant{PM25, PM10, O3, CO, SO2, NO2}
}

// Column returns the dataset column holding this pollutant, or nil.
func (p Pollutant) Column(ds *dataset.Dataset) *dataset.Column {
	col := ds.Column(string(p))
	if col == nil || col.Kind() != dataset.KindFloat {
		return nil
	}
	return col
}

// NormColumn is the name of the derived normalized column, e.g. "pm25_norm".
func (p Pollutant) NormColumn() string { return string(p) + "_norm" }

// ErrEmptyDataset marks a transformation invoked on a dataset with no rows.
// The caller logs it and keeps the input; it is data sparsity, not failure.
var ErrEmptyDataset = errors.New("empty dataset")

// ErrNoPollutants marks an air-quality batch containing none of the
// recognized pollutant columns.
var ErrNoPollutants = errors.New("no recognized pollutant columns")

// aqiScale maps the mean normalized pollutant load onto the 0-500 index range.
const aqiScale = 500.0

var aqiCategories = []categoryRange{
	{0, 50, "Good"},
	{51, 100, "Moderate"},
	{101, 150, "Unhealthy for Sensitive Groups"},
	{151, 200, "Unhealthy"},
	{201, 300, "Very Unhealthy"},
	{301, 500, "Hazardous"},
}

type categoryRange struct {
	low, high float64
	label     string
}

const categoryUnknown = "Unknown"

func categorize(ranges []categoryRange, v float64) string {
	for _, r := range ranges {
		if v >= r.low && v <= r.high {
			return r.label
		}
	}
	return categoryUnknown
}

// ComputeAQI derives the composite air quality index. It adds one
// "<pollutant>_norm" column per recognized pollutant present, plus "aqi" and
// "aqi_category". The input dataset is not mutated.
//
// Per-pollutant normalization divides by the column maximum; a maximum of
// zero normalizes to zero. The composite is the row mean of the normalized
// values scaled by 500. Rows where every pollutant cell is null get a null
// aqi and category Unknown.
//
// Returns ErrEmptyDataset or ErrNoPollutants alongside the unchanged input
// when there is nothing to compute.
func ComputeAQI(ds *dataset.Dataset) (*dataset.Dataset, error) {
	if ds == nil {
		return nil, ErrNilDataset
	}
	if ds.NumRows() == 0 {
		return ds, ErrEmptyDataset
	}

	var present []Pollutant
	for _, p := range AirPollutants() {
		if p.Column(ds) != nil {
			present = append(present, p)
		}
	}
	if len(present) == 0 {
		return ds, ErrNoPollutants
	}

	out := ds.Copy()
	n := out.NumRows()

	norms := make([]*dataset.Column, 0, len(present))
	for _, p := range present {
		col := p.Column(out)
		max := columnMax(col)

		values := make([]float64, n)
		valid := make([]bool, n)
		for i := 0; i < n; i++ {
			v, ok := col.Float(i)
			if !ok {
				continue
			}
			valid[i] = true
			if max != 0 {
				values[i] = v / max
			}
		}
		if err := out.AddFloatColumn(p.NormColumn(), values, valid); err != nil {
			return nil, err
		}
		norms = append(norms, out.Column(p.NormColumn()))
	}

	aqi := make([]float64, n)
	aqiValid := make([]bool, n)
	categories := make([]string, n)
	for i := 0; i < n; i++ {
		sum, count := 0.0, 0
		for _, nc := range norms {
			if v, ok := nc.Float(i); ok {
				sum += v
				count++
			}
		}
		if count == 0 {
			categories[i] = categoryUnknown
			continue
		}
		aqi[i] = sum / float64(count) * aqiScale
		aqiValid[i] = true
		categories[i] = categorize(aqiCategories, aqi[i])
	}

	if err := out.AddFloatColumn("aqi", aqi, aqiValid); err != nil {
		return nil, err
	}
	if err := out.AddStringColumn("aqi_category", categories, nil); err != nil {
		return nil, err
	}
	return out, nil
}

func columnMax(col *dataset.Column) float64 {
	values := col.FloatValues()
	if len(values) == 0 {
		return 0
	}
	max := values[0]
	for _, v := range values[1:] {
		if v > max {
			max = v
		}
	}
	return max
}
