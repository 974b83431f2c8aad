package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	KafkaBrokers     []string
	KafkaSourceTopic string
	KafkaSinkTopic   string
	KafkaAlertTopic  string
	KafkaGroupID     string
	HTTPAddr         string
	LogLevel         string
	LogFormat        string
	ShutdownTimeout  time.Duration

	BatchSize          int
	BatchFlushInterval time.Duration

	// Station location lookup configuration (OpenWeather geocoding API).
	GeoAPIKey    string
	GeoEnabled   bool
	GeoTimeout   time.Duration
	GeoCacheSize int

	// Prediction model configuration.
	RedisAddr      string
	ModelKey       string
	PredictEnabled bool
}

// Load reads configuration from environment variables, applying defaults
// where unset. A .env file in the working directory is merged in first
// without overriding variables already present in the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	flushInterval, err := parseDuration("BATCH_FLUSH_INTERVAL", "5s")
	if err != nil {
		return nil, err
	}

	geoTimeout, err := parseDuration("GEO_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}

	batchSize, err := parsePositiveInt("BATCH_SIZE", 50)
	if err != nil {
		return nil, err
	}

	geoCacheSize, err := parsePositiveInt("GEO_CACHE_SIZE", 1000)
	if err != nil {
		return nil, err
	}

	geoAPIKey := os.Getenv("GEO_API_KEY")
	geoEnabled := geoAPIKey != ""
	if v := os.Getenv("GEO_ENABLED"); v != "" {
		geoEnabled = v == "true"
	}

	redisAddr := envOrDefault("REDIS_ADDR", "")
	predictEnabled := redisAddr != ""
	if v := os.Getenv("PREDICT_ENABLED"); v != "" {
		predictEnabled = v == "true"
	}

	cfg := &Config{
		KafkaBrokers:       parseBrokers(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic:   envOrDefault("KAFKA_SOURCE_TOPIC", "raw-measurements"),
		KafkaSinkTopic:     envOrDefault("KAFKA_SINK_TOPIC", "processed-measurements"),
		KafkaAlertTopic:    envOrDefault("KAFKA_ALERT_TOPIC", "quality-alerts"),
		KafkaGroupID:       envOrDefault("KAFKA_GROUP_ID", "enviro-quality-etl"),
		HTTPAddr:           envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:           envOrDefault("LOG_LEVEL", "info"),
		LogFormat:          envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:    shutdownTimeout,
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,

		GeoAPIKey:    geoAPIKey,
		GeoEnabled:   geoEnabled,
		GeoTimeout:   geoTimeout,
		GeoCacheSize: geoCacheSize,

		RedisAddr:      redisAddr,
		ModelKey:       envOrDefault("MODEL_KEY", "enviro:model:aqi"),
		PredictEnabled: predictEnabled,
	}

	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if cfg.KafkaSourceTopic == "" {
		return nil, errors.New("KAFKA_SOURCE_TOPIC is required")
	}
	if cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_SINK_TOPIC is required")
	}
	if cfg.GeoEnabled && cfg.GeoAPIKey == "" {
		return nil, errors.New("GEO_ENABLED is true but GEO_API_KEY is not set")
	}
	if cfg.PredictEnabled && cfg.RedisAddr == "" {
		return nil, errors.New("PREDICT_ENABLED is true but REDIS_ADDR is not set")
	}

	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseBrokers(s string) []string {
	var brokers []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}
