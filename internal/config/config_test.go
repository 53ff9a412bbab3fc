package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_EnvDefaults(t *testing.T) {
	t.Setenv("FLEET_CONFIG", "")
	t.Setenv("STORAGE", "memory")
	t.Setenv("AUTH_JWT_SECRET", "secret")
	t.Setenv("SETTLEMENT_RENTS", "contract-1=175.00, contract-2=150")
	t.Setenv("PLATFORM_WEBHOOK_SECRETS", "Bolt=abc,uber=def")
	t.Setenv("OUTBOX_DISPATCH_INTERVAL", "5s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Storage != StorageMemory || cfg.HTTPAddr != ":8080" || cfg.Currency != "EUR" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.BTWPercentage().String() != "9" {
		t.Fatalf("btw = %s", cfg.BTWPercentage())
	}
	if cfg.Outbox.DispatchInterval != 5*time.Second {
		t.Fatalf("interval = %s", cfg.Outbox.DispatchInterval)
	}
	rents := cfg.Rents()
	if len(rents) != 2 || rents["contract-1"].StringFixed(2) != "175.00" {
		t.Fatalf("rents = %v", rents)
	}
	secrets := cfg.WebhookSecrets()
	if string(secrets["bolt"]) != "abc" || string(secrets["uber"]) != "def" {
		t.Fatalf("secrets = %v", secrets)
	}
}

func TestLoad_YAMLOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fleet.yaml")
	data := strings.Join([]string{
		"storage: memory",
		"jwt_secret: from-file",
		"currency: EUR",
		"default_btw_percentage: \"21\"",
		"cors_origins: [\"https://fleet.example\"]",
		"outbox:",
		"  dispatch_interval: 10s",
		"schedule:",
		"  enabled: true",
		"  weekday: tuesday",
		"  weekly_at: \"04:30\"",
		"  rents:",
		"    contract-9: \"200\"",
		"cars:",
		"  car-1: Toyota Prius",
	}, "\n")
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("FLEET_CONFIG", path)
	t.Setenv("STORAGE", "")
	t.Setenv("AUTH_JWT_SECRET", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.JWTSecret != "from-file" || cfg.BTWPercentage().String() != "21" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if !cfg.Schedule.Enabled || cfg.Schedule.Weekday != "tuesday" || cfg.Schedule.WeeklyAt != "04:30" {
		t.Fatalf("schedule = %+v", cfg.Schedule)
	}
	if cfg.Outbox.DispatchInterval != 10*time.Second || cfg.Cars["car-1"] != "Toyota Prius" {
		t.Fatalf("outbox=%+v cars=%v", cfg.Outbox, cfg.Cars)
	}
	if len(cfg.CORSOrigins) != 1 || cfg.Rents()["contract-9"].StringFixed(2) != "200.00" {
		t.Fatalf("cors=%v rents=%v", cfg.CORSOrigins, cfg.Rents())
	}
}

func TestLoad_Validation(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"postgres without dsn", map[string]string{"STORAGE": "postgres", "DATABASE_URL": "", "PG_DSN": ""}, "DATABASE_URL"},
		{"unknown storage", map[string]string{"STORAGE": "sqlite"}, "unknown storage"},
		{"missing secret", map[string]string{"STORAGE": "memory", "AUTH_JWT_SECRET": "", "JWT_SECRET": ""}, "AUTH_JWT_SECRET"},
		{"btw above 100", map[string]string{"STORAGE": "memory", "DEFAULT_BTW_PERCENTAGE": "120"}, "btw"},
		{"bad rent", map[string]string{"STORAGE": "memory", "SETTLEMENT_RENTS": "c1=abc"}, "rent"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("FLEET_CONFIG", "")
			t.Setenv("AUTH_JWT_SECRET", "secret")
			for key, value := range tc.env {
				t.Setenv(key, value)
			}
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("err = %v, want mention of %q", err, tc.want)
			}
		})
	}
}
