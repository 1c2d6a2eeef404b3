package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	GRPC     GRPCConfig     `yaml:"grpc"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Booking  BookingConfig  `yaml:"booking"`
	Worker   WorkerConfig   `yaml:"worker"`
	Auth     AuthConfig     `yaml:"auth"`
	Log      LogConfig      `yaml:"log"`
}

type HTTPConfig struct {
	Address string `yaml:"address" validate:"required"`
}

type GRPCConfig struct {
	Address string `yaml:"address" validate:"required"`
}

type DatabaseConfig struct {
	Driver        string `yaml:"driver" validate:"oneof=postgres memory"`
	Host          string `yaml:"host" validate:"required_if=Driver postgres"`
	Port          int    `yaml:"port" validate:"min=0,max=65535"`
	User          string `yaml:"user"`
	Password      string `yaml:"password"`
	Name          string `yaml:"name" validate:"required_if=Driver postgres"`
	SSLMode       string `yaml:"ssl_mode"`
	AutoMigrate   bool   `yaml:"auto_migrate"`
	LockTimeoutMs int    `yaml:"lock_timeout_ms" validate:"min=0"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s", d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode)
}

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr" validate:"required_if=Enabled true"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db" validate:"min=0"`
}

type KafkaConfig struct {
	Brokers            []string `yaml:"brokers"`
	BookingEventsTopic string   `yaml:"booking_events_topic"`
	NotificationsTopic string   `yaml:"notifications_topic"`
	GroupID            string   `yaml:"group_id"`
}

type BookingConfig struct {
	FlightsCacheTTL     int `yaml:"flights_cache_ttl_seconds" validate:"min=1"`
	MaxRetries          int `yaml:"max_retries" validate:"min=1,max=20"`
	FlightLockTTL       int `yaml:"flight_lock_ttl_seconds" validate:"min=1"`
	FlightLockWait      int `yaml:"flight_lock_wait_ms" validate:"min=1"`
	NotificationTimeout int `yaml:"notification_timeout_seconds" validate:"min=1"`
}

type WorkerConfig struct {
	ExpirationSweepMinutes int    `yaml:"expiration_sweep_minutes" validate:"min=1"`
	MetricsAddress         string `yaml:"metrics_address" validate:"required"`
}

type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" validate:"required,min=16"`
}

type LogConfig struct {
	Level      string `yaml:"level" validate:"oneof=debug info warn error"`
	Format     string `yaml:"format" validate:"oneof=json console"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" validate:"min=0"`
	MaxBackups int    `yaml:"max_backups" validate:"min=0"`
	MaxAgeDays int    `yaml:"max_age_days" validate:"min=0"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.HTTP.Address == "" {
		c.HTTP.Address = ":8080"
	}
	if c.GRPC.Address == "" {
		c.GRPC.Address = ":9090"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DriverPostgres
	}
	if c.Database.SSLMode == "" {
		c.Database.SSLMode = "disable"
	}
	if c.Database.LockTimeoutMs == 0 {
		c.Database.LockTimeoutMs = 2000
	}
	if c.Booking.FlightsCacheTTL == 0 {
		c.Booking.FlightsCacheTTL = 30
	}
	if c.Booking.MaxRetries == 0 {
		c.Booking.MaxRetries = 3
	}
	if c.Booking.FlightLockTTL == 0 {
		c.Booking.FlightLockTTL = 10
	}
	if c.Booking.FlightLockWait == 0 {
		c.Booking.FlightLockWait = 3000
	}
	if c.Booking.NotificationTimeout == 0 {
		c.Booking.NotificationTimeout = 5
	}
	if c.Worker.ExpirationSweepMinutes == 0 {
		c.Worker.ExpirationSweepMinutes = 24 * 60
	}
	if c.Worker.MetricsAddress == "" {
		c.Worker.MetricsAddress = ":9091"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	err := validator.New().Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("validate config: %w", err)
	}

	problems := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		problems = append(problems, fmt.Sprintf("%s failed on '%s'", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
}
