package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	path := writeConfig(t, `
database:
  driver: memory
auth:
  jwt_secret: "0123456789abcdef"
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTP.Address)
	assert.Equal(t, ":9090", cfg.GRPC.Address)
	assert.Equal(t, DriverMemory, cfg.Database.Driver)
	assert.Equal(t, 3, cfg.Booking.MaxRetries)
	assert.Equal(t, 1440, cfg.Worker.ExpirationSweepMinutes)
	assert.Equal(t, ":9091", cfg.Worker.MetricsAddress)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadConfig_Postgres(t *testing.T) {
	path := writeConfig(t, `
http:
  address: ":8081"
database:
  driver: postgres
  host: localhost
  port: 5432
  user: app
  password: secret
  name: flightseats
redis:
  enabled: true
  addr: "localhost:6379"
kafka:
  brokers: ["localhost:9092"]
  notifications_topic: booking-notifications
booking:
  max_retries: 5
worker:
  expiration_sweep_minutes: 15
auth:
  jwt_secret: "0123456789abcdef"
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "host=localhost port=5432 user=app password=secret dbname=flightseats sslmode=disable", cfg.Database.DSN())
	assert.Equal(t, 5, cfg.Booking.MaxRetries)
	assert.Equal(t, 15, cfg.Worker.ExpirationSweepMinutes)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Redis.Enabled)
}

func TestLoadConfig_ValidationErrors(t *testing.T) {
	path := writeConfig(t, `
database:
  driver: oracle
redis:
  enabled: true
auth:
  jwt_secret: short
log:
  level: verbose
`)

	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Config.Database.Driver")
	assert.Contains(t, err.Error(), "Config.Redis.Addr")
	assert.Contains(t, err.Error(), "Config.Auth.JWTSecret")
	assert.Contains(t, err.Error(), "Config.Log.Level")
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.ErrorContains(t, err, "failed to read config")
}
