package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rifas.yaml")
	yml := `
http:
  addr: ":9000"
  shutdown_timeout: 3s
storage:
  driver: memory
redis:
  url: redis://localhost:6379/0
  availability_ttl: 1m
auth:
  signing_key: from-file
inventory:
  max_tickets: 500
payment:
  latency: 250ms
  decline_above_cents: 100000
`
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("JWT_SIGNING_KEY", "from-env")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("PORT", "")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.HTTP.Addr != ":9000" || cfg.HTTP.ShutdownTimeout != 3*time.Second {
		t.Fatalf("unexpected http config %+v", cfg.HTTP)
	}
	if cfg.Storage.Driver != DriverMemory {
		t.Fatalf("expected memory driver, got %q", cfg.Storage.Driver)
	}
	if cfg.Redis.AvailabilityTTL != time.Minute {
		t.Fatalf("expected 1m ttl, got %v", cfg.Redis.AvailabilityTTL)
	}
	if cfg.Auth.SigningKey != "from-env" {
		t.Fatalf("expected env to override file, got %q", cfg.Auth.SigningKey)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "k2:9092" {
		t.Fatalf("unexpected brokers %v", cfg.Kafka.Brokers)
	}
	if cfg.Kafka.Topic != "rifas.events" {
		t.Fatalf("expected default topic, got %q", cfg.Kafka.Topic)
	}
	if cfg.Inventory.MaxTickets != 500 || cfg.Payment.Latency != 250*time.Millisecond {
		t.Fatalf("unexpected inventory/payment %+v %+v", cfg.Inventory, cfg.Payment)
	}
}

func TestLoad_UsesRifasConfigEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "c.yaml")
	if err := os.WriteFile(path, []byte("storage:\n  driver: memory\nauth:\n  signing_key: k\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("RIFAS_CONFIG", path)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.Storage.Driver != DriverMemory {
		t.Fatalf("expected memory driver, got %q", cfg.Storage.Driver)
	}
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"PORT":                   "7070",
		"STORAGE_DRIVER":         "memory",
		"MAX_TICKETS_PER_RAFFLE": "42",
		"PAYMENT_LATENCY":        "1s",
		"KAFKA_PUBLISH_TIMEOUT":  "750ms",
		"TRACE_SAMPLE_RATIO":     "0.25",
		"CORS_ORIGINS":           "https://a.example, ,https://b.example",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	if err := cfg.applyEnv(lookup); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.HTTP.Addr != ":7070" || cfg.Inventory.MaxTickets != 42 || cfg.Payment.Latency != time.Second {
		t.Fatalf("unexpected config %+v", cfg)
	}
	if len(cfg.HTTP.CORSOrigins) != 2 {
		t.Fatalf("expected 2 origins, got %v", cfg.HTTP.CORSOrigins)
	}
	if cfg.Kafka.PublishTimeout != 750*time.Millisecond {
		t.Fatalf("expected publish timeout 750ms, got %v", cfg.Kafka.PublishTimeout)
	}
	if cfg.Tracing.SampleRatio != 0.25 {
		t.Fatalf("expected sample ratio 0.25, got %v", cfg.Tracing.SampleRatio)
	}

	env["MAX_TICKETS_PER_RAFFLE"] = "lots"
	if err := Default().applyEnv(lookup); err == nil {
		t.Fatal("expected error for non-numeric max tickets")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"valid", func(c *Config) {}, true},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "sqlite" }, false},
		{"memory needs no url", func(c *Config) { c.Storage.Driver = DriverMemory; c.Storage.DatabaseURL = "" }, true},
		{"postgres needs url", func(c *Config) { c.Storage.DatabaseURL = "" }, false},
		{"max tickets", func(c *Config) { c.Inventory.MaxTickets = 0 }, false},
		{"signing key", func(c *Config) { c.Auth.SigningKey = "" }, false},
		{"kafka topic", func(c *Config) { c.Kafka.Brokers = []string{"k:9092"}; c.Kafka.Topic = "" }, false},
		{"negative latency", func(c *Config) { c.Payment.Latency = -time.Second }, false},
		{"publish timeout", func(c *Config) { c.Kafka.PublishTimeout = 0 }, false},
		{"negative write timeout", func(c *Config) { c.HTTP.WriteTimeout = -time.Second }, false},
		{"sample ratio above one", func(c *Config) { c.Tracing.SampleRatio = 1.5 }, false},
		{"sampling off", func(c *Config) { c.Tracing.SampleRatio = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Auth.SigningKey = "key"
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok && err != nil {
				t.Fatalf("expected valid, got %v", err)
			}
			if !tt.ok && err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}
