package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadUsesDefaultsAndYAMLOverrides(t *testing.T) {
	clearConfigEnv(t)

	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")
	yaml := `
requests:
  cooldown_hours: 48
  max_per_minute: 10
detection:
  rapid_request_threshold: 20
  rapid_request_window: 5m
presence:
  typing_ttl: 5s
notify:
  channel: crew-events
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatalf("write temp config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Requests.CooldownHours != 48 {
		t.Fatalf("unexpected cooldown hours: %d", cfg.Requests.CooldownHours)
	}
	if cfg.Requests.MaxPerMinute != 10 {
		t.Fatalf("unexpected max per minute: %d", cfg.Requests.MaxPerMinute)
	}
	if cfg.Detection.RapidRequestThreshold != 20 {
		t.Fatalf("unexpected rapid request threshold: %d", cfg.Detection.RapidRequestThreshold)
	}
	if cfg.Detection.RapidRequestWindow != 5*time.Minute {
		t.Fatalf("unexpected rapid request window: %s", cfg.Detection.RapidRequestWindow)
	}
	if cfg.Presence.TypingTTL != 5*time.Second {
		t.Fatalf("unexpected typing ttl: %s", cfg.Presence.TypingTTL)
	}
	if cfg.Notify.Channel != "crew-events" {
		t.Fatalf("unexpected notify channel: %s", cfg.Notify.Channel)
	}

	if cfg.Requests.MaxPer10Sec != 10 {
		t.Fatalf("max_per_10sec default should stay 10, got %d", cfg.Requests.MaxPer10Sec)
	}
	if cfg.Detection.TempBanDuration != 7*24*time.Hour {
		t.Fatalf("temp ban default should stay 168h, got %s", cfg.Detection.TempBanDuration)
	}
	if cfg.HTTP.Addr != ":8080" {
		t.Fatalf("http addr default should stay :8080, got %s", cfg.HTTP.Addr)
	}
	if cfg.Presence.StatusTTL != 5*time.Minute {
		t.Fatalf("status ttl default should stay 5m, got %s", cfg.Presence.StatusTTL)
	}
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	clearConfigEnv(t)

	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("REQUEST_COOLDOWN_HOURS", "12")
	t.Setenv("RAPID_REQUEST_WINDOW", "2m")
	t.Setenv("INTERNAL_TOKEN", "svc-secret")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.HTTP.Addr != ":9090" {
		t.Fatalf("unexpected http addr: %s", cfg.HTTP.Addr)
	}
	if cfg.Requests.CooldownHours != 12 {
		t.Fatalf("unexpected cooldown hours: %d", cfg.Requests.CooldownHours)
	}
	if cfg.Detection.RapidRequestWindow != 2*time.Minute {
		t.Fatalf("unexpected rapid request window: %s", cfg.Detection.RapidRequestWindow)
	}
	if cfg.Auth.InternalToken != "svc-secret" {
		t.Fatalf("unexpected internal token: %s", cfg.Auth.InternalToken)
	}
}

func TestLoadRejectsMalformedEnvDuration(t *testing.T) {
	clearConfigEnv(t)

	t.Setenv("RAPID_REQUEST_WINDOW", "not-a-duration")

	if _, err := Load(""); err == nil {
		t.Fatalf("expected error for malformed duration")
	}
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	clearConfigEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Requests.CooldownHours != 24 {
		t.Fatalf("unexpected cooldown hours: %d", cfg.Requests.CooldownHours)
	}
}

func clearConfigEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"APP_ENV", "HTTP_ADDR", "HTTP_READ_TIMEOUT", "HTTP_WRITE_TIMEOUT", "HTTP_IDLE_TIMEOUT",
		"LOG_LEVEL", "POSTGRES_DSN", "REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB",
		"S3_ENDPOINT", "S3_ACCESS_KEY", "S3_SECRET_KEY", "S3_BUCKET", "S3_USE_SSL",
		"JWT_SECRET", "JWT_ACCESS_TTL", "REFRESH_TTL", "INTERNAL_TOKEN",
		"REQUEST_COOLDOWN_HOURS", "REQUEST_MAX_PER_MINUTE", "REQUEST_MAX_PER_10SEC",
		"RAPID_REQUEST_THRESHOLD", "RAPID_REQUEST_WINDOW", "TEMP_BAN_DURATION",
		"PRESENCE_STATUS_TTL", "PRESENCE_TYPING_TTL", "NOTIFY_CHANNEL",
		"CLEANUP_INTERVAL", "ACTIVITY_RETENTION",
	}
	for _, key := range keys {
		t.Setenv(key, "")
	}
}
