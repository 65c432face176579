package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/nareshshah139/Clinic-Management-System-sub003/internal/platform/timeslot"
)

type Config struct {
	Port        string   `mapstructure:"PORT"`
	Env         string   `mapstructure:"ENV"`
	DatabaseURL string   `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32    `mapstructure:"DB_MIN_CONNS"`
	AuthSecret  string   `mapstructure:"AUTH_SECRET"`
	AuthIssuer  string   `mapstructure:"AUTH_ISSUER"`
	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`

	RateLimitRPS   float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int           `mapstructure:"RATE_LIMIT_BURST"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	BodyLimit      string        `mapstructure:"BODY_LIMIT"`

	ClinicTimezone     string `mapstructure:"CLINIC_TIMEZONE"`
	ClinicStartHour    int    `mapstructure:"CLINIC_START_HOUR"`
	ClinicEndHour      int    `mapstructure:"CLINIC_END_HOUR"`
	SlotStepMinutes    int    `mapstructure:"SLOT_STEP_MINUTES"`
	BufferMinutes      int    `mapstructure:"BUFFER_MINUTES"`
	MinRescheduleHours int    `mapstructure:"MIN_RESCHEDULE_HOURS"`
	MaxSuggestions     int    `mapstructure:"MAX_SUGGESTIONS"`

	AMQPURL      string `mapstructure:"AMQP_URL"`
	AMQPExchange string `mapstructure:"AMQP_EXCHANGE"`

	RedisURL             string        `mapstructure:"REDIS_URL"`
	IdempotencyCacheSize int           `mapstructure:"IDEMPOTENCY_CACHE_SIZE"`
	IdempotencyTTL       time.Duration `mapstructure:"IDEMPOTENCY_TTL"`

	MetricsEnabled bool `mapstructure:"METRICS_ENABLED"`
}

var keys = []string{
	"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
	"AUTH_SECRET", "AUTH_ISSUER", "CORS_ORIGINS",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "REQUEST_TIMEOUT", "BODY_LIMIT",
	"CLINIC_TIMEZONE", "CLINIC_START_HOUR", "CLINIC_END_HOUR", "SLOT_STEP_MINUTES",
	"BUFFER_MINUTES", "MIN_RESCHEDULE_HOURS", "MAX_SUGGESTIONS",
	"AMQP_URL", "AMQP_EXCHANGE",
	"REDIS_URL", "IDEMPOTENCY_CACHE_SIZE", "IDEMPOTENCY_TTL",
	"METRICS_ENABLED",
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 2)
	v.SetDefault("AUTH_ISSUER", "clinic-scheduler")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 20)
	v.SetDefault("RATE_LIMIT_BURST", 40)
	v.SetDefault("REQUEST_TIMEOUT", "15s")
	v.SetDefault("BODY_LIMIT", "64K")
	v.SetDefault("CLINIC_TIMEZONE", "UTC")
	v.SetDefault("CLINIC_START_HOUR", timeslot.DefaultStartHour)
	v.SetDefault("CLINIC_END_HOUR", timeslot.DefaultEndHour)
	v.SetDefault("SLOT_STEP_MINUTES", timeslot.DefaultStepMinutes)
	v.SetDefault("BUFFER_MINUTES", 0)
	v.SetDefault("MIN_RESCHEDULE_HOURS", 24)
	v.SetDefault("MAX_SUGGESTIONS", 3)
	v.SetDefault("AMQP_EXCHANGE", "clinic.scheduling")
	v.SetDefault("IDEMPOTENCY_CACHE_SIZE", 10000)
	v.SetDefault("IDEMPOTENCY_TTL", "24h")
	v.SetDefault("METRICS_ENABLED", true)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range keys {
		v.BindEnv(k)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.CORSOrigins = splitList(v.GetString("CORS_ORIGINS"))

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// ClinicHours is the configured operating window. The clinic_hours table
// overrides it when a database is configured.
func (c *Config) ClinicHours() timeslot.Hours {
	return timeslot.Hours{Start: c.ClinicStartHour, End: c.ClinicEndHour}
}

// Location loads CLINIC_TIMEZONE.
func (c *Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.ClinicTimezone)
}

// Validate checks that the configuration is safe to run. Outside development
// AUTH_SECRET must be set so that JWT authentication is enforced.
func (c *Config) Validate() error {
	if !c.IsDev() && len(c.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be at least 32 characters when ENV=%q", c.Env)
	}
	if err := c.ClinicHours().Validate(); err != nil {
		return fmt.Errorf("CLINIC_START_HOUR/CLINIC_END_HOUR: %w", err)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("CLINIC_TIMEZONE: %w", err)
	}
	if c.SlotStepMinutes <= 0 || c.SlotStepMinutes > 24*60 {
		return fmt.Errorf("SLOT_STEP_MINUTES must be between 1 and 1440, got %d", c.SlotStepMinutes)
	}
	if c.BufferMinutes < 0 {
		return fmt.Errorf("BUFFER_MINUTES must not be negative, got %d", c.BufferMinutes)
	}
	if c.MinRescheduleHours < 0 {
		return fmt.Errorf("MIN_RESCHEDULE_HOURS must not be negative, got %d", c.MinRescheduleHours)
	}
	if c.MaxSuggestions <= 0 {
		return fmt.Errorf("MAX_SUGGESTIONS must be positive, got %d", c.MaxSuggestions)
	}
	if c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	return nil
}
