package domain

import (
	"errors"
	"math"

	"github.com/couchcryptid/enviro-quality-etl/internal/dataset"
)

// WaterParam is a typed key for a recognized water quality parameter column.
type WaterParam string

const (
	PH            WaterParam = "pH"
	DO            WaterParam = "DO"  // dissolved oxygen, mg/L
	BOD           WaterParam = "BOD" // biological oxygen demand, mg/L
	TDS           WaterParam = "TDS" // total dissolved solids, mg/L
	Turbidity     WaterParam = "Turbidity"
	Nitrates      WaterParam = "Nitrates"
	Phosphates    WaterParam = "Phosphates"
	Temperature   WaterParam = "Temperature"
	FecalColiform WaterParam = "Fecal Coliform" // CFU/100mL
)

// Column returns the dataset column holding this parameter, or nil.
func (p WaterParam) Column(ds *dataset.Dataset) *dataset.Column {
	col := ds.Column(string(p))
	if col == nil || col.Kind() != dataset.KindFloat {
		return nil
	}
	return col
}

// IndexColumn is the name of the derived sub-index column, e.g. "pH_index".
func (p WaterParam) IndexColumn() string { return string(p) + "_index" }

// wqiWeight pairs a parameter with its fixed weight and ideal value. Weights
// sum to 1.0 over the full table; only the weights of parameters present in a
// batch are used, re-normalized by their own sum.
type wqiWeight struct {
	param  WaterParam
	weight float64
	ideal  float64
}

var wqiWeights = []wqiWeight{
	{PH, 0.12, 7.0},
	{DO, 0.18, 14.6},
	{BOD, 0.15, 0},
	{TDS, 0.10, 0},
	{Turbidity, 0.08, 0},
	{Nitrates, 0.10, 0},
	{Phosphates, 0.10, 0},
	{Temperature, 0.07, 25},
	{FecalColiform, 0.10, 0},
}

// WaterParams lists the recognized parameters in table order.
func WaterParams() []WaterParam {
	params := make([]WaterParam, len(wqiWeights))
	for i, w := range wqiWeights {
		params[i] = w.param
	}
	return params
}

// ErrNoWaterParams marks a water-quality batch containing none of the
// recognized parameter columns.
var ErrNoWaterParams = errors.New("no recognized water quality parameter columns")

var wqiCategories = []categoryRange{
	{0, 25, "Excellent"},
	{26, 50, "Good"},
	{51, 75, "Fair"},
	{76, 100, "Poor"},
	{101, math.Inf(1), "Very Poor"},
}

// ComputeWQI derives the composite water quality index. It adds one
// "<param>_index" sub-index column per recognized parameter present, plus
// "wqi" and "wqi_category". The input dataset is not mutated.
//
// A parameter's sub-index is |value − ideal| / max(column), with a column
// maximum ≤ 0 replaced by 1 to keep the division defined. The composite is
// the weight-renormalized sum of sub-indices scaled by 100. Rows with any
// null recognized cell get a null wqi and category Unknown, matching the
// propagation semantics of the published formula.
//
// Returns ErrEmptyDataset or ErrNoWaterParams alongside the unchanged input
// when there is nothing to compute.
func ComputeWQI(ds *dataset.Dataset) (*dataset.Dataset, error) {
	if ds == nil {
		return nil, ErrNilDataset
	}
	if ds.NumRows() == 0 {
		return ds, ErrEmptyDataset
	}

	var present []wqiWeight
	for _, w := range wqiWeights {
		if w.param.Column(ds) != nil {
			present = append(present, w)
		}
	}
	if len(present) == 0 {
		return ds, ErrNoWaterParams
	}

	out := ds.Copy()
	n := out.NumRows()

	totalWeight := 0.0
	for _, w := range present {
		totalWeight += w.weight
	}

	indexCols := make([]*dataset.Column, 0, len(present))
	for _, w := range present {
		col := w.param.Column(out)
		max := columnMax(col)
		if max <= 0 {
			max = 1
		}

		values := make([]float64, n)
		valid := make([]bool, n)
		for i := 0; i < n; i++ {
			v, ok := col.Float(i)
			if !ok {
				continue
			}
			values[i] = math.Abs(v-w.ideal) / max
			valid[i] = true
		}
		if err := out.AddFloatColumn(w.param.IndexColumn(), values, valid); err != nil {
			return nil, err
		}
		indexCols = append(indexCols, out.Column(w.param.IndexColumn()))
	}

	wqi := make([]float64, n)
	wqiValid := make([]bool, n)
	categories := make([]string, n)
	for i := 0; i < n; i++ {
		sum := 0.0
		complete := true
		for j, nc := range indexCols {
			v, ok := nc.Float(i)
			if !ok {
				complete = false
				break
			}
			sum += v * present[j].weight
		}
		if !complete {
			categories[i] = categoryUnknown
			continue
		}
		wqi[i] = sum / totalWeight * 100
		wqiValid[i] = true
		categories[i] = categorize(wqiCategories, wqi[i])
	}

	if err := out.AddFloatColumn("wqi", wqi, wqiValid); err != nil {
		return nil, err
	}
	if err := out.AddStringColumn("wqi_category", categories, nil); err != nil {
		return nil, err
	}
	return out, nil
}
