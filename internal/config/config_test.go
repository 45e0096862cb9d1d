package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_EnvOnlyDefaults(t *testing.T) {
	cfg, err := Load("", true)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if cfg.Monitor.JobName != "alert-monitor" {
		t.Fatalf("job_name=%q want alert-monitor", cfg.Monitor.JobName)
	}
	if cfg.Monitor.Interval != time.Minute {
		t.Fatalf("interval=%s want 1m", cfg.Monitor.Interval)
	}
	if cfg.Monitor.LockTTL <= cfg.Monitor.Interval {
		t.Fatalf("lock_ttl=%s must exceed interval", cfg.Monitor.LockTTL)
	}
	if cfg.RateLimit.AuthLimit >= cfg.RateLimit.APILimit || cfg.RateLimit.APILimit >= cfg.RateLimit.GlobalLimit {
		t.Fatalf("tiers auth=%d api=%d global=%d want strictly increasing",
			cfg.RateLimit.AuthLimit, cfg.RateLimit.APILimit, cfg.RateLimit.GlobalLimit)
	}
	if cfg.Notification.Resilience.MaxRetries != 2 {
		t.Fatalf("max_retries=%d want 2", cfg.Notification.Resilience.MaxRetries)
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("ALERT_MONITOR_INTERVAL", "30s")
	t.Setenv("ALERT_RATE_LIMIT_AUTH_LIMIT", "5")
	cfg, err := Load("", true)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if cfg.Monitor.Interval != 30*time.Second {
		t.Fatalf("interval=%s want 30s", cfg.Monitor.Interval)
	}
	if cfg.RateLimit.AuthLimit != 5 {
		t.Fatalf("auth_limit=%d want 5", cfg.RateLimit.AuthLimit)
	}
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	raw := []byte(`
cache:
  backend: memory
monitor:
  interval: 10s
  lock_ttl: 45s
auth:
  api_keys:
    - key: k1
      user_id: u1
`)
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(path, false)
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if cfg.Cache.Backend != "memory" {
		t.Fatalf("backend=%q want memory", cfg.Cache.Backend)
	}
	if cfg.Monitor.LockTTL != 45*time.Second {
		t.Fatalf("lock_ttl=%s want 45s", cfg.Monitor.LockTTL)
	}
	if len(cfg.Auth.APIKeys) != 1 || cfg.Auth.APIKeys[0].UserID != "u1" {
		t.Fatalf("api_keys=%+v", cfg.Auth.APIKeys)
	}
}

func TestValidate_LockTTLMustExceedInterval(t *testing.T) {
	t.Setenv("ALERT_MONITOR_LOCK_TTL", "1m")
	_, err := Load("", true)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("err=%v want ErrInvalidConfig", err)
	}
}

func TestValidate_UnknownCacheBackend(t *testing.T) {
	t.Setenv("ALERT_CACHE_BACKEND", "memcached")
	_, err := Load("", true)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("err=%v want ErrInvalidConfig", err)
	}
}
