// Command fitmodel fits an ordinary least-squares index model from a training
// fixture and stores it in Redis where the monitor service loads it from.
//
// The fixture is a JSON object with the feature column names, the target
// column name, and the training records:
//
//	{"features": ["pm25", "pm10"], "target": "aqi", "records": [{...}, ...]}
//
// Usage:
//
//	go run ./cmd/fitmodel -in data/training/aqi.json -redis localhost:6379
//	go run ./cmd/fitmodel -in data/training/aqi.json -out model.json
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/couchcryptid/enviro-quality-etl/internal/predict"
)

type trainingFixture struct {
	Features []string         `json:"features"`
	Target   string           `json:"target"`
	Records  []map[string]any `json:"records"`
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	in := flag.String("in", "", "path to the training fixture JSON")
	redisAddr := flag.String("redis", "", "redis address to store the fitted model at")
	modelKey := flag.String("key", "enviro:model:aqi", "redis key for the stored model")
	out := flag.String("out", "", "write the fitted model JSON to a file instead of Redis")
	flag.Parse()

	if *in == "" || (*redisAddr == "" && *out == "") {
		flag.Usage()
		return fmt.Errorf("missing required flags: -in plus one of -redis, -out")
	}

	fixture, err := loadFixture(*in)
	if err != nil {
		return fmt.Errorf("load fixture: %w", err)
	}

	rows, targets, err := buildTrainingData(fixture)
	if err != nil {
		return err
	}

	model, err := predict.FitLinear(rows, targets)
	if err != nil {
		return fmt.Errorf("fit model: %w", err)
	}

	stored := &predict.StoredModel{
		Model:     model,
		Features:  fixture.Features,
		Target:    fixture.Target,
		TrainedAt: time.Now().UTC(),
	}

	log.Printf("fitted %s model on %d rows: intercept=%.4f weights=%v",
		fixture.Target, len(rows), model.Intercept, model.Weights)

	if *out != "" {
		data, err := json.MarshalIndent(stored, "", "  ")
		if err != nil {
			return err
		}
		data = append(data, '\n')
		if err := os.WriteFile(*out, data, 0o600); err != nil {
			return err
		}
		log.Printf("wrote model: %s", *out)
		return nil
	}

	store := predict.NewRedisStore(*redisAddr, *modelKey)
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := store.Save(ctx, stored); err != nil {
		return fmt.Errorf("store model: %w", err)
	}
	log.Printf("stored model at %s (key %s)", *redisAddr, *modelKey)
	return nil
}

func loadFixture(path string) (*trainingFixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f trainingFixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	if len(f.Features) == 0 || f.Target == "" || len(f.Records) == 0 {
		return nil, fmt.Errorf("fixture must name features, target, and records")
	}
	return &f, nil
}

// buildTrainingData flattens the fixture records into feature rows and target
// values, rejecting records with missing or non-numeric cells.
func buildTrainingData(f *trainingFixture) ([][]float64, []float64, error) {
	rows := make([][]float64, 0, len(f.Records))
	targets := make([]float64, 0, len(f.Records))

	for i, rec := range f.Records {
		row := make([]float64, len(f.Features))
		for j, name := range f.Features {
			v, ok := rec[name].(float64)
			if !ok {
				return nil, nil, fmt.Errorf("record %d: feature %q missing or not numeric", i, name)
			}
			row[j] = v
		}
		target, ok := rec[f.Target].(float64)
		if !ok {
			return nil, nil, fmt.Errorf("record %d: target %q missing or not numeric", i, f.Target)
		}
		rows = append(rows, row)
		targets = append(targets, target)
	}
	return rows, targets, nil
}
