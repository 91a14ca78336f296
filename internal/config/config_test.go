package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, StoreDriverPostgres, cfg.StoreDriver)
	assert.Equal(t, AlertSinkLog, cfg.AlertSink)
	assert.Equal(t, 5*time.Second, cfg.SweepInterval)
	assert.Equal(t, 100, cfg.SweepBatchSize)
	assert.Equal(t, 5, cfg.MutationMaxAttempts)
	assert.Equal(t, 10*time.Millisecond, cfg.MutationRetryBackoff)
	assert.Equal(t, 15*time.Minute, cfg.ReservationDefaultTTL)
	assert.Equal(t, 24*time.Hour, cfg.ReservationMaxTTL)
	assert.False(t, cfg.CatalogStrict)
	assert.False(t, cfg.IsProduction())
}

func TestLoad_RequiresJWTSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	assert.ErrorContains(t, err, "JWT_SECRET")
}

func TestLoad_InvalidValues(t *testing.T) {
	cases := map[string][2]string{
		"bad duration":    {"SWEEP_INTERVAL", "soon"},
		"bad number":      {"SWEEP_BATCH_SIZE", "many"},
		"zero batch":      {"SWEEP_BATCH_SIZE", "0"},
		"unknown driver":  {"STORE_DRIVER", "sqlite"},
		"unknown sink":    {"ALERT_SINK", "email"},
		"rabbit no url":   {"ALERT_SINK", "rabbitmq"},
		"default too big": {"RESERVATION_DEFAULT_TTL", "48h"},
		"bad bool":        {"CATALOG_STRICT", "maybe"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", "secret")
			t.Setenv(kv[0], kv[1])

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoad_KafkaBrokers(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("ALERT_SINK", AlertSinkKafka)
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
}

func TestPostgresDSN(t *testing.T) {
	cfg := Config{
		PostgresHost: "db", PostgresPort: 5432, PostgresUser: "u",
		PostgresPassword: "p", PostgresDB: "stock", PostgresSSLMode: "disable",
	}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=stock sslmode=disable", cfg.PostgresDSN())

	cfg.DatabaseURL = "postgres://x"
	assert.Equal(t, "postgres://x", cfg.PostgresDSN())
}
