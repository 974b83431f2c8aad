// Command genmock generates deterministic mock measurement fixtures for the
// test suites and for seeding local Kafka topics. It runs the actual domain
// pipeline so the processed output matches real transform behavior.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -raw-out data/mock/measurements_raw.json \
//	  -processed-out data/mock/measurements_processed.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/couchcryptid/enviro-quality-etl/internal/domain"
	"github.com/jonboulle/clockwork"
)

var baseDate = time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC)

type batchDef struct {
	kind     domain.BatchKind
	location string
	station  string
	// columns maps a parameter name to its typical level; values are jittered
	// around it and a few cells are nulled to exercise imputation.
	columns map[string]float64
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	rawOut := flag.String("raw-out", "", "output path for the raw batch JSON fixture")
	processedOut := flag.String("processed-out", "", "output path for the processed batch JSON fixture")
	rows := flag.Int("rows", 24, "readings per batch")
	seed := flag.Int64("seed", 1, "PRNG seed")
	flag.Parse()

	if *rawOut == "" || *processedOut == "" {
		flag.Usage()
		return fmt.Errorf("missing required flags: -raw-out, -processed-out")
	}

	defs := []batchDef{
		{
			kind:     domain.KindAir,
			location: "Springfield",
			station:  "Springfield-01",
			columns:  map[string]float64{"pm25": 28, "pm10": 44, "o3": 70, "no2": 30, "so2": 12, "co": 6000},
		},
		{
			kind:     domain.KindWater,
			location: "Lakeside",
			station:  "Lakeside-03",
			columns:  map[string]float64{"pH": 7.2, "DO": 8.5, "BOD": 2.2, "TDS": 320, "Turbidity": 3.5, "Nitrates": 6},
		},
		{
			kind:     domain.KindWeather,
			location: "Hilltop",
			station:  "Hilltop-02",
			columns:  map[string]float64{"temperature": 18, "humidity": 62, "pressure": 1013, "wind_speed": 4.5},
		},
	}

	// Set a fixed clock for reproducible ProcessedAt timestamps.
	domain.SetClock(clockwork.NewFakeClockAt(
		time.Date(2026, time.March, 1, 6, 0, 0, 0, time.UTC),
	))
	defer domain.SetClock(nil)

	rng := rand.New(rand.NewSource(*seed))

	rawBatches := make([]domain.RawBatchPayload, 0, len(defs))
	processed := make([]domain.ProcessedBatch, 0, len(defs))

	for _, d := range defs {
		payload := synthesizeBatch(rng, d, *rows)
		rawBatches = append(rawBatches, payload)

		batch, err := processBatch(payload)
		if err != nil {
			return fmt.Errorf("processing %s batch: %w", d.kind, err)
		}
		processed = append(processed, batch)
		log.Printf("%s: %d rows, %d columns", d.kind, *rows, len(d.columns))
	}

	if err := writeJSON(*rawOut, rawBatches); err != nil {
		return fmt.Errorf("writing raw fixture: %w", err)
	}
	log.Printf("wrote raw fixture: %s", *rawOut)

	if err := writeJSON(*processedOut, processed); err != nil {
		return fmt.Errorf("writing processed fixture: %w", err)
	}
	log.Printf("wrote processed fixture: %s", *processedOut)

	printStats(processed)
	return nil
}

// synthesizeBatch builds one raw payload with hourly readings jittered around
// the typical levels. Every 7th cell is null and one reading per numeric
// column spikes to 4x typical, so cleaning has something to impute and cap.
func synthesizeBatch(rng *rand.Rand, d batchDef, rows int) domain.RawBatchPayload {
	// Iterate columns in sorted order so the PRNG draws are reproducible.
	names := make([]string, 0, len(d.columns))
	for name := range d.columns {
		names = append(names, name)
	}
	sort.Strings(names)

	records := make([]map[string]any, rows)
	for i := range records {
		rec := map[string]any{
			"date":     baseDate.Add(time.Duration(i) * time.Hour).Format("2006-01-02 15:04:05"),
			"location": d.location,
		}
		for _, name := range names {
			level := d.columns[name]
			switch {
			case (i+1)%7 == 0:
				rec[name] = nil
			case i == rows/2:
				rec[name] = round2(level * 4)
			default:
				rec[name] = round2(level * (0.8 + 0.4*rng.Float64()))
			}
		}
		records[i] = rec
	}
	return domain.RawBatchPayload{
		Kind:     string(d.kind),
		Location: d.location,
		Station:  d.station,
		Records:  records,
	}
}

// processBatch runs the real clean + index pipeline over one payload.
func processBatch(payload domain.RawBatchPayload) (domain.ProcessedBatch, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return domain.ProcessedBatch{}, fmt.Errorf("marshal payload: %w", err)
	}

	batch, err := domain.ParseRawEvent(domain.RawEvent{Value: data, Timestamp: baseDate})
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

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

func printStats(processed []domain.ProcessedBatch) {
	fmt.Println("\n=== Stats for updating test assertions ===")
	for _, b := range processed {
		fmt.Printf("%s (%s): rows=%d\n", b.Kind, b.Location, b.RowCount)
		switch b.Kind {
		case domain.KindAir:
			printIndexStats(b, "aqi", "aqi_category")
		case domain.KindWater:
			printIndexStats(b, "wqi", "wqi_category")
		case domain.KindWeather:
		}
	}
}

func printIndexStats(b domain.ProcessedBatch, indexCol, categoryCol string) {
	var minIdx, maxIdx float64 = math.Inf(1), math.Inf(-1)
	categories := map[string]int{}
	for _, rec := range b.Records {
		if v, ok := rec[indexCol].(float64); ok {
			minIdx = math.Min(minIdx, v)
			maxIdx = math.Max(maxIdx, v)
		}
		if c, ok := rec[categoryCol].(string); ok {
			categories[c]++
		}
	}
	fmt.Printf("  %s: min=%.2f max=%.2f\n", indexCol, minIdx, maxIdx)
	fmt.Printf("  categories: %v\n", categories)
}
