package domain

import (
	"errors"
	"strings"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/couchcryptid/enviro-quality-etl/internal/dataset"
)

// ErrNilDataset is returned when a transformation is handed a nil dataset.
var ErrNilDataset = errors.New("nil dataset")

// dateLayouts are tried in order when parsing string date columns.
// Collector feeds use RFC 3339; older CPCB exports use space-separated forms.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// CleanReport summarizes what cleaning changed, for logs and metrics.
type CleanReport struct {
	DateColumnsParsed int
	CellsImputed      int
	OutliersCapped    int
	ZeroFilledColumns []string
}

// CleanDataset imputes missing numeric values and caps outliers.
//
// Columns whose name contains "date" or "timestamp" are parsed into
// timestamps, with unparseable cells becoming null. Null numeric cells are replaced by the
// column mean over non-null cells; an all-null column is zero-filled and
// reported. After imputation every numeric column is clipped to
// [mean-3σ, mean+3σ] computed on the imputed column. Rows are never dropped.
//
// The input is not mutated. An empty dataset is returned unchanged. Callers
// decide the failure policy: the pipeline logs the error and keeps the
// original dataset.
func CleanDataset(ds *dataset.Dataset) (*dataset.Dataset, CleanReport, error) {
	var report CleanReport
	if ds == nil {
		return nil, report, ErrNilDataset
	}
	if ds.NumRows() == 0 {
		return ds, report, nil
	}

	cleaned := ds.Copy()

	for _, name := range cleaned.ColumnNames() {
		col := cleaned.Column(name)
		if col.Kind() == dataset.KindString && isDateColumn(name) {
			if err := parseDateColumn(cleaned, col); err != nil {
				return nil, report, err
			}
			report.DateColumnsParsed++
		}
	}

	for _, col := range cleaned.Columns() {
		if col.Kind() != dataset.KindFloat {
			continue
		}
		imputed, zeroFilled := imputeMean(col)
		report.CellsImputed += imputed
		if zeroFilled {
			report.ZeroFilledColumns = append(report.ZeroFilledColumns, col.Name())
		}
		report.OutliersCapped += capOutliers(col)
	}

	return cleaned, report, nil
}

// isDateColumn reports whether a string column holds timestamps. Collector
// feeds name the column "date"; per-reading alert payloads use "timestamp".
func isDateColumn(name string) bool {
	lower := strings.ToLower(name)
	return strings.Contains(lower, "date") || strings.Contains(lower, "timestamp")
}

func parseDateColumn(ds *dataset.Dataset, col *dataset.Column) error {
	n := col.Len()
	times := make([]time.Time, n)
	valid := make([]bool, n)
	for i := 0; i < n; i++ {
		s, ok := col.String(i)
		if !ok {
			continue
		}
		if t, ok := parseDate(s); ok {
			times[i] = t
			valid[i] = true
		}
	}
	return ds.ReplaceWithTimeColumn(col.Name(), times, valid)
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// imputeMean replaces null cells with the column mean. A column with no
// non-null cells is zero-filled; the batch-local mean is undefined there and
// zero keeps downstream index math total.
func imputeMean(col *dataset.Column) (imputed int, zeroFilled bool) {
	values := col.FloatValues()
	mean := 0.0
	if len(values) > 0 {
		mean = stat.Mean(values, nil)
	} else {
		zeroFilled = true
	}

	for i := 0; i < col.Len(); i++ {
		if col.IsNull(i) {
			col.SetFloat(i, mean)
			imputed++
		}
	}
	return imputed, zeroFilled
}

// capOutliers clips the column to three sample standard deviations around the
// post-imputation mean. Zero-variance columns have nothing to cap.
func capOutliers(col *dataset.Column) int {
	values := col.FloatValues()
	if len(values) < 2 {
		return 0
	}
	mean := stat.Mean(values, nil)
	sigma := stat.StdDev(values, nil)
	if sigma == 0 {
		return 0
	}

	lower := mean - 3*sigma
	upper := mean + 3*sigma

	capped := 0
	for i := 0; i < col.Len(); i++ {
		v, ok := col.Float(i)
		if !ok {
			continue
		}
		switch {
		case v < lower:
			col.SetFloat(i, lower)
			capped++
		case v > upper:
			col.SetFloat(i, upper)
			capped++
		}
	}
	return capped
}
