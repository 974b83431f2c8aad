// Command validate performs integrity checks across the mock measurement
// fixtures: the raw batch JSON and the processed batch JSON produced by
// cmd/genmock. It verifies payload shape, re-runs the domain pipeline to
// confirm the processed fixture matches real transform behavior, and checks
// the index columns against their category tables.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -raw-json data/mock/measurements_raw.json \
//	  -processed-json data/mock/measurements_processed.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/couchcryptid/enviro-quality-etl/internal/domain"
	"github.com/jonboulle/clockwork"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	rawJSON := flag.String("raw-json", "", "path to the raw batch JSON fixture")
	processedJSON := flag.String("processed-json", "", "path to the processed batch JSON fixture")
	flag.Parse()

	if *rawJSON == "" || *processedJSON == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*rawJSON, *processedJSON); code != 0 {
		os.Exit(code)
	}
}

func run(rawPath, processedPath string) int {
	// Fixed clock matching genmock so re-derived ProcessedAt stamps agree.
	domain.SetClock(clockwork.NewFakeClockAt(
		time.Date(2026, time.March, 1, 6, 0, 0, 0, time.UTC),
	))
	defer domain.SetClock(nil)

	fmt.Println("=== Measurement Fixture Integrity Validation ===")
	fmt.Println()

	raw, err := loadJSON[domain.RawBatchPayload](rawPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load raw JSON: %v\n", err)
		return 1
	}

	processed, err := loadJSON[domain.ProcessedBatch](processedPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load processed JSON: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateRawShape(raw),
		validateTransformParity(raw, processed),
		validateIndexRanges(processed),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Batches: %d raw, %d processed\n", len(raw), len(processed))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

func loadJSON[T any](path string) ([]T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// ── Phase 1: Raw Shape ──
// Validates that raw payloads parse and carry well-formed metadata.

func validateRawShape(raw []domain.RawBatchPayload) *phase {
	p := &phase{name: "Phase 1: Raw Shape (payload metadata)"}

	seen := map[string]bool{}
	for i, b := range raw {
		if !domain.BatchKind(b.Kind).Valid() {
			p.errorf("batch %d: invalid kind %q", i, b.Kind)
		}
		if b.Location == "" {
			p.errorf("batch %d: location is empty", i)
		}
		if b.Station == "" {
			p.errorf("batch %d: station is empty", i)
		}
		if len(b.Records) == 0 {
			p.errorf("batch %d: no records", i)
		}
		if seen[b.Kind] {
			p.errorf("batch %d: duplicate kind %q", i, b.Kind)
		}
		seen[b.Kind] = true

		for j, rec := range b.Records {
			if _, ok := rec["date"]; !ok {
				p.errorf("batch %d record %d: missing date", i, j)
			}
		}
	}
	return p
}

// ── Phase 2: Transform Parity ──
// Re-runs the clean + index pipeline on the raw fixture and compares with
// the processed fixture.

func validateTransformParity(raw []domain.RawBatchPayload, processed []domain.ProcessedBatch) *phase {
	p := &phase{name: "Phase 2: Transform Parity (re-run pipeline)"}

	if len(raw) != len(processed) {
		p.errorf("batch count: %d raw vs %d processed", len(raw), len(processed))
		return p
	}

	for i := range raw {
		expected, err := reprocess(raw[i])
		if err != nil {
			p.errorf("batch %d (%s): reprocess: %v", i, raw[i].Kind, err)
			continue
		}
		actual := processed[i]

		if actual.Kind != expected.Kind {
			p.errorf("batch %d: kind %q vs %q", i, actual.Kind, expected.Kind)
		}
		if actual.RowCount != expected.RowCount {
			p.errorf("batch %d (%s): row count %d vs %d", i, expected.Kind, actual.RowCount, expected.RowCount)
		}
		if len(actual.Records) != len(expected.Records) {
			p.errorf("batch %d (%s): record count %d vs %d", i, expected.Kind, len(actual.Records), len(expected.Records))
			continue
		}
		if !actual.ProcessedAt.Equal(expected.ProcessedAt) {
			p.errorf("batch %d (%s): processed_at %s vs %s", i, expected.Kind,
				actual.ProcessedAt.Format(time.RFC3339), expected.ProcessedAt.Format(time.RFC3339))
		}

		compareRecords(p, i, expected, actual)
	}
	return p
}

func reprocess(payload domain.RawBatchPayload) (domain.ProcessedBatch, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return domain.ProcessedBatch{}, err
	}
	batch, err := domain.ParseRawEvent(domain.RawEvent{Value: data})
	if err != nil {
		return domain.ProcessedBatch{}, err
	}
	ds, _, err := domain.CleanDataset(batch.Data)
	if err != nil {
		return domain.ProcessedBatch{}, err
	}
	switch batch.Kind {
	case domain.KindAir:
		if ds, err = domain.ComputeAQI(ds); err != nil {
			return domain.ProcessedBatch{}, err
		}
	case domain.KindWater:
		if ds, err = domain.ComputeWQI(ds); err != nil {
			return domain.ProcessedBatch{}, err
		}
	case domain.KindWeather:
	}
	return domain.NewProcessedBatch(batch, ds), nil
}

func compareRecords(p *phase, batchIdx int, expected, actual domain.ProcessedBatch) {
	for j := range expected.Records {
		exp, act := expected.Records[j], actual.Records[j]
		if len(exp) != len(act) {
			p.errorf("batch %d record %d: %d fields vs %d", batchIdx, j, len(act), len(exp))
			continue
		}
		for key, ev := range exp {
			av, ok := act[key]
			if !ok {
				p.errorf("batch %d record %d: missing field %q", batchIdx, j, key)
				continue
			}
			if !valueEq(ev, av) {
				p.errorf("batch %d record %d: field %q: %v vs %v", batchIdx, j, key, av, ev)
			}
		}
	}
}

// valueEq compares record cells after a JSON round trip: floats tolerantly,
// everything else by formatted value.
func valueEq(a, b any) bool {
	af, aok := a.(float64)
	bf, bok := b.(float64)
	if aok && bok {
		return math.Abs(af-bf) < 1e-9
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

// ── Phase 3: Index Ranges ──
// Validates that index values sit in their scales and categories match.

var (
	aqiCategories = map[string]bool{"Good": true, "Moderate": true, "Unhealthy for Sensitive Groups": true,
		"Unhealthy": true, "Very Unhealthy": true, "Hazardous": true, "Unknown": true}
	wqiCategories = map[string]bool{"Excellent": true, "Good": true, "Fair": true, "Poor": true,
		"Very Poor": true, "Unknown": true}
)

func validateIndexRanges(processed []domain.ProcessedBatch) *phase {
	p := &phase{name: "Phase 3: Index Ranges (scales, categories)"}

	for i, b := range processed {
		switch b.Kind {
		case domain.KindAir:
			checkIndex(p, i, b, "aqi", "aqi_category", 500, aqiCategories)
		case domain.KindWater:
			checkIndex(p, i, b, "wqi", "wqi_category", math.Inf(1), wqiCategories)
		case domain.KindWeather:
			for j, rec := range b.Records {
				if _, ok := rec["aqi"]; ok {
					p.errorf("batch %d record %d: weather batch has aqi column", i, j)
				}
				if _, ok := rec["wqi"]; ok {
					p.errorf("batch %d record %d: weather batch has wqi column", i, j)
				}
			}
		}
	}
	return p
}

func checkIndex(p *phase, batchIdx int, b domain.ProcessedBatch, indexCol, categoryCol string, maxScale float64, valid map[string]bool) {
	for j, rec := range b.Records {
		idx, hasIdx := rec[indexCol]
		cat, hasCat := rec[categoryCol].(string)

		if !hasCat {
			p.errorf("batch %d record %d: missing %s", batchIdx, j, categoryCol)
			continue
		}
		if !valid[cat] {
			p.errorf("batch %d record %d: unknown category %q", batchIdx, j, cat)
		}

		if !hasIdx || idx == nil {
			if cat != "Unknown" {
				p.errorf("batch %d record %d: null %s but category %q", batchIdx, j, indexCol, cat)
			}
			continue
		}
		v, ok := idx.(float64)
		if !ok {
			p.errorf("batch %d record %d: %s is %T, not a number", batchIdx, j, indexCol, idx)
			continue
		}
		if v < 0 || v > maxScale {
			p.errorf("batch %d record %d: %s %.2f outside [0, %g]", batchIdx, j, indexCol, v, maxScale)
		}
	}
}
