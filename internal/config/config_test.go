package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	defaultBroker = "localhost:9092"
	testGeoKey    = "ow.test-key"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{defaultBroker}, cfg.KafkaBrokers)
	assert.Equal(t, "raw-measurements", cfg.KafkaSourceTopic)
	assert.Equal(t, "processed-measurements", cfg.KafkaSinkTopic)
	assert.Equal(t, "quality-alerts", cfg.KafkaAlertTopic)
	assert.Equal(t, "enviro-quality-etl", cfg.KafkaGroupID)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 50, cfg.BatchSize)
	assert.Equal(t, 5*time.Second, cfg.BatchFlushInterval)
	assert.False(t, cfg.GeoEnabled)
	assert.Empty(t, cfg.GeoAPIKey)
	assert.Equal(t, 5*time.Second, cfg.GeoTimeout)
	assert.Equal(t, 1000, cfg.GeoCacheSize)
	assert.False(t, cfg.PredictEnabled)
	assert.Equal(t, "enviro:model:aqi", cfg.ModelKey)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_SOURCE_TOPIC", "custom-source")
	t.Setenv("KAFKA_SINK_TOPIC", "custom-sink")
	t.Setenv("KAFKA_ALERT_TOPIC", "custom-alerts")
	t.Setenv("KAFKA_GROUP_ID", "custom-group")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("BATCH_SIZE", "100")
	t.Setenv("BATCH_FLUSH_INTERVAL", "1s")
	t.Setenv("GEO_API_KEY", testGeoKey)
	t.Setenv("GEO_TIMEOUT", "10s")
	t.Setenv("GEO_CACHE_SIZE", "500")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("MODEL_KEY", "custom:model")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "custom-source", cfg.KafkaSourceTopic)
	assert.Equal(t, "custom-sink", cfg.KafkaSinkTopic)
	assert.Equal(t, "custom-alerts", cfg.KafkaAlertTopic)
	assert.Equal(t, "custom-group", cfg.KafkaGroupID)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, 1*time.Second, cfg.BatchFlushInterval)
	assert.True(t, cfg.GeoEnabled)
	assert.Equal(t, testGeoKey, cfg.GeoAPIKey)
	assert.Equal(t, 10*time.Second, cfg.GeoTimeout)
	assert.Equal(t, 500, cfg.GeoCacheSize)
	assert.True(t, cfg.PredictEnabled)
	assert.Equal(t, "redis:6379", cfg.RedisAddr)
	assert.Equal(t, "custom:model", cfg.ModelKey)
}

func TestLoad_InvalidShutdownTimeout(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_NegativeShutdownTimeout(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "-1s")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_InvalidBatchSize(t *testing.T) {
	t.Setenv("BATCH_SIZE", "0")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BATCH_SIZE")
}

func TestLoad_InvalidBatchFlushInterval(t *testing.T) {
	t.Setenv("BATCH_FLUSH_INTERVAL", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BATCH_FLUSH_INTERVAL")
}

func TestLoad_InvalidGeoTimeout(t *testing.T) {
	t.Setenv("GEO_TIMEOUT", "bad")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GEO_TIMEOUT")
}

func TestLoad_GeoEnabledWithoutKey(t *testing.T) {
	t.Setenv("GEO_ENABLED", "true")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GEO_API_KEY")
}

func TestLoad_GeoKeyImpliesEnabled(t *testing.T) {
	t.Setenv("GEO_API_KEY", testGeoKey)
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.GeoEnabled)
}

func TestLoad_GeoExplicitlyDisabled(t *testing.T) {
	t.Setenv("GEO_API_KEY", testGeoKey)
	t.Setenv("GEO_ENABLED", "false")
	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.GeoEnabled)
}

func TestLoad_PredictEnabledWithoutRedis(t *testing.T) {
	t.Setenv("PREDICT_ENABLED", "true")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REDIS_ADDR")
}

func TestLoad_RedisAddrImpliesPredict(t *testing.T) {
	t.Setenv("REDIS_ADDR", "localhost:6379")
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.PredictEnabled)
}
