package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.HTTP.Addr == "" {
		t.Error("http.addr has no default")
	}
	if cfg.Idempotency.TTL != 24*time.Hour {
		t.Errorf("idempotency.ttl = %s, want 24h", cfg.Idempotency.TTL)
	}
	if cfg.Webhooks.MaxAttempts != 5 {
		t.Errorf("webhooks.max_attempts = %d, want 5", cfg.Webhooks.MaxAttempts)
	}
	if cfg.Webhooks.BackoffBase != 30*time.Second {
		t.Errorf("webhooks.backoff_base = %s, want 30s", cfg.Webhooks.BackoffBase)
	}
	if cfg.Kafka.EventsTopic != "loyalty.events" {
		t.Errorf("kafka.events_topic = %q", cfg.Kafka.EventsTopic)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("LOYGW_LOG_LEVEL", "debug")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log.level = %q, want env override debug", cfg.Log.Level)
	}
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load("does-not-exist.yaml")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTP.Addr == "" {
		t.Error("defaults should survive a missing config file")
	}
}
