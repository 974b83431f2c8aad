// Package domain models environmental measurement batches and the
// data-quality transformations applied to them.
//
// # Data Source
//
// Measurement batches originate from public environmental monitoring feeds
// (IMD weather stations, CPCB air and water monitoring networks, OpenWeather
// air pollution API). The upstream collector fetches readings on a schedule,
// tags each batch with its kind ("air", "water", or "weather") and station
// metadata, and publishes it as JSON to the Kafka source topic. One batch is
// one station's readings over a reporting window; each record is one row.
//
// # Cleaning Conventions
//
// Columns whose name contains "date" or "timestamp" hold timestamps
// serialized as strings; they are parsed during cleaning and unparseable
// values become null.
//
// Missing numeric readings are imputed with the column mean computed over the
// non-null readings in the same batch. A column with no readings at all is
// zero-filled, since a batch-local mean is undefined there.
//
// After imputation every numeric column is clipped to three standard
// deviations around its mean. Sensor glitches (a PM2.5 spike of 9000 when the
// station otherwise reports 40-80) are capped rather than dropped, so row
// alignment with the station's reporting window is preserved.
//
// # Composite Indices
//
// AQI is a simplified proxy index: each recognized pollutant (pm25, pm10, o3,
// co, so2, no2) is normalized by its batch maximum, and the mean of the
// normalized values is scaled to [0, 500]. This is not the official
// multi-breakpoint AQI formula; per-pollutant breakpoint interpolation is
// deliberately not implemented.
//
// WQI is a weighted deviation-from-ideal index over nine recognized water
// parameters (pH through Fecal Coliform). Only the weights of parameters
// present in the batch contribute; they are re-normalized by their own sum.
//
// Both calculators skip unrecognized columns and report a sentinel error when
// no recognized column is present, leaving the batch unchanged.
//
// # Category Tables
//
// AQI:  [0,50] Good | [51,100] Moderate | [101,150] Unhealthy for Sensitive
// Groups | [151,200] Unhealthy | [201,300] Very Unhealthy | [301,500]
// Hazardous | otherwise Unknown.
//
// WQI:  [0,25] Excellent | [26,50] Good | [51,75] Fair | [76,100] Poor |
// [101,∞) Very Poor | otherwise Unknown.
//
// The range bounds are carried over verbatim from the monitoring network's
// published tables, including the integer gaps between bands (an AQI of 50.5
// falls between Good and Moderate and maps to Unknown).
package domain
