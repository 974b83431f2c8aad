package domain

import (
	"context"
	"log/slog"
)

// StationLocation holds the coordinates a locator resolved for a station or
// city name.
type StationLocation struct {
	Lat     float64
	Lon     float64
	Name    string
	Country string
}

// StationLocator resolves monitoring station locations to coordinates.
type StationLocator interface {
	// Locate converts a location name (city or station) to coordinates.
	Locate(ctx context.Context, name string) (StationLocation, error)
}

// EnrichWithLocation attempts to attach station coordinates to a processed
// batch. If locator is nil, the batch names no location, or the lookup fails,
// the batch is returned without coordinates (graceful degradation).
func EnrichWithLocation(ctx context.Context, batch ProcessedBatch, locator StationLocator, logger *slog.Logger) ProcessedBatch {
	if locator == nil || batch.Location == "" {
		return batch
	}

	result, err := locator.Locate(ctx, batch.Location)
	if err != nil {
		logger.Warn("station location lookup failed",
			"location", batch.Location,
			"station", batch.Station,
			"error", err,
		)
		return batch
	}
	if result.Lat == 0 && result.Lon == 0 {
		return batch
	}

	batch.Geo = Geo{Lat: result.Lat, Lon: result.Lon}
	batch.GeoName = result.Name
	return batch
}
