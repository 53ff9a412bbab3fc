// Package config loads service settings from the environment, optionally
// overlaid by a YAML file named in FLEET_CONFIG.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"fleet-settlement/internal/money"
)

// Storage modes.
const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

// Config holds service settings.
type Config struct {
	Storage          string   `yaml:"storage"`
	DatabaseURL      string   `yaml:"database_url"`
	HTTPAddr         string   `yaml:"http_addr"`
	JWTSecret        string   `yaml:"jwt_secret"`
	Currency         string   `yaml:"currency"`
	DefaultCompanyID string   `yaml:"default_company_id"`
	DefaultBTW       string   `yaml:"default_btw_percentage"`
	CORSOrigins      []string `yaml:"cors_origins"`

	Outbox   OutboxConfig   `yaml:"outbox"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Ingest   IngestConfig   `yaml:"ingest"`

	AlertWebhookURL string `yaml:"alert_webhook_url"`
	// Cars maps car id to display name for expense reports in memory mode.
	Cars map[string]string `yaml:"cars"`

	btw   decimal.Decimal
	rents map[string]decimal.Decimal
}

// OutboxConfig tunes the outbox dispatcher loop.
type OutboxConfig struct {
	DispatchInterval time.Duration `yaml:"dispatch_interval"`
	BatchSize        int           `yaml:"batch_size"`
}

// ScheduleConfig configures weekly auto-settlement.
type ScheduleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Weekday  string `yaml:"weekday"`
	WeeklyAt string `yaml:"weekly_at"`
	// Rents maps contract id to the weekly rent, e.g. "175.00".
	Rents map[string]string `yaml:"rents"`
}

// IngestConfig configures earning ingestion.
type IngestConfig struct {
	RateLimit float64 `yaml:"rate_limit"`
	Burst     int     `yaml:"burst"`
	// WebhookSecrets maps platform to its HMAC secret.
	WebhookSecrets map[string]string `yaml:"webhook_secrets"`
	WebhookMaxSkew time.Duration     `yaml:"webhook_max_skew"`
}

// Load reads the environment and the optional YAML file, then validates.
func Load() (Config, error) {
	cfg := Config{
		Storage:          getenvDefault("STORAGE", StoragePostgres),
		DatabaseURL:      getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:         getenvDefault("HTTP_ADDR", ":8080"),
		JWTSecret:        getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		Currency:         getenvDefault("CURRENCY", "EUR"),
		DefaultCompanyID: getenvDefault("DEFAULT_COMPANY_ID", ""),
		DefaultBTW:       getenvDefault("DEFAULT_BTW_PERCENTAGE", "9"),
		CORSOrigins:      splitCSV(getenvDefault("CORS_ORIGINS", "")),
		Outbox: OutboxConfig{
			DispatchInterval: getenvDuration("OUTBOX_DISPATCH_INTERVAL", 2*time.Second),
			BatchSize:        getenvIntDefault("OUTBOX_BATCH_SIZE", 50),
		},
		Schedule: ScheduleConfig{
			Enabled:  getenvDefault("SETTLEMENT_SCHEDULE_ENABLED", "false") == "true",
			Weekday:  getenvDefault("SETTLEMENT_WEEKDAY", "monday"),
			WeeklyAt: getenvDefault("SETTLEMENT_WEEKLY_AT", "03:00"),
			Rents:    splitPairs(getenvDefault("SETTLEMENT_RENTS", "")),
		},
		Ingest: IngestConfig{
			RateLimit:      getenvFloatDefault("INGEST_RATE_LIMIT", 20),
			Burst:          getenvIntDefault("INGEST_RATE_BURST", 40),
			WebhookSecrets: splitPairs(getenvDefault("PLATFORM_WEBHOOK_SECRETS", "")),
			WebhookMaxSkew: getenvDuration("PLATFORM_WEBHOOK_MAX_SKEW", 5*time.Minute),
		},
		AlertWebhookURL: getenvDefault("SETTLEMENT_ALERT_WEBHOOK_URL", ""),
	}

	if path := os.Getenv("FLEET_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := cfg.validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	c.Storage = strings.ToLower(strings.TrimSpace(c.Storage))
	switch c.Storage {
	case StoragePostgres:
		if c.DatabaseURL == "" {
			return errors.New("config: DATABASE_URL or PG_DSN is required for postgres storage")
		}
	case StorageMemory:
	default:
		return fmt.Errorf("config: unknown storage %q", c.Storage)
	}
	if c.JWTSecret == "" {
		return errors.New("config: AUTH_JWT_SECRET is required")
	}
	if c.HTTPAddr == "" {
		return errors.New("config: http address is required")
	}

	btw, err := money.ParseAmount(c.DefaultBTW)
	if err != nil || btw.IsNegative() || btw.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("config: default btw percentage %q outside [0,100]", c.DefaultBTW)
	}
	c.btw = btw

	c.rents = make(map[string]decimal.Decimal, len(c.Schedule.Rents))
	for contractID, value := range c.Schedule.Rents {
		rent, err := money.ParseAmount(value)
		if err != nil || rent.IsNegative() {
			return fmt.Errorf("config: rent for contract %s: %q is not a valid amount", contractID, value)
		}
		c.rents[contractID] = rent
	}

	if c.Outbox.DispatchInterval <= 0 {
		return errors.New("config: outbox dispatch interval must be positive")
	}
	if c.Outbox.BatchSize <= 0 {
		c.Outbox.BatchSize = 50
	}
	if c.Ingest.RateLimit < 0 || c.Ingest.Burst < 0 {
		return errors.New("config: ingest rate limit must not be negative")
	}
	for platform, secret := range c.Ingest.WebhookSecrets {
		if secret == "" {
			return fmt.Errorf("config: empty webhook secret for platform %s", platform)
		}
	}
	return nil
}

// BTWPercentage is the parsed default BTW percentage.
func (c Config) BTWPercentage() decimal.Decimal {
	return c.btw
}

// Rents returns the parsed weekly rents keyed by contract id.
func (c Config) Rents() map[string]decimal.Decimal {
	return c.rents
}

// WebhookSecrets returns platform secrets keyed by lower-case platform name.
func (c Config) WebhookSecrets() map[string][]byte {
	secrets := make(map[string][]byte, len(c.Ingest.WebhookSecrets))
	for platform, secret := range c.Ingest.WebhookSecrets {
		secrets[strings.ToLower(strings.TrimSpace(platform))] = []byte(secret)
	}
	return secrets
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvFloatDefault(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func splitCSV(value string) []string {
	if value == "" {
		return nil
	}
	var result []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// splitPairs parses "a=1,b=2" into a map.
func splitPairs(value string) map[string]string {
	pairs := make(map[string]string)
	for _, part := range splitCSV(value) {
		key, val, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		pairs[strings.TrimSpace(key)] = strings.TrimSpace(val)
	}
	return pairs
}
