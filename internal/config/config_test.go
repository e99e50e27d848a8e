package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Env != "development" {
		t.Errorf("expected development env, got %s", cfg.Env)
	}
	if cfg.Port != 8080 {
		t.Errorf("expected port 8080, got %d", cfg.Port)
	}
	if cfg.StoreBackend != StoreMongo {
		t.Errorf("expected mongo backend by default, got %s", cfg.StoreBackend)
	}
	if cfg.Auth.LockoutThreshold != 5 {
		t.Errorf("expected lockout threshold 5, got %d", cfg.Auth.LockoutThreshold)
	}
	if cfg.Auth.LockoutDuration != 2*time.Hour {
		t.Errorf("expected lockout duration 2h, got %v", cfg.Auth.LockoutDuration)
	}
	if cfg.Auth.SecretKey == "" {
		t.Error("expected dev default secret key")
	}
	if !cfg.IsDevelopment() {
		t.Error("expected IsDevelopment true")
	}
}

func TestLoad_InvalidStoreBackend(t *testing.T) {
	t.Setenv("STORE_BACKEND", "postgres")
	if _, err := Load(); err == nil {
		t.Error("expected error for unknown store backend")
	}
}

func TestLoad_MemoryBackend(t *testing.T) {
	t.Setenv("STORE_BACKEND", "memory")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.StoreBackend != StoreMemory {
		t.Errorf("expected memory backend, got %s", cfg.StoreBackend)
	}
}

func TestLoad_ProductionRequiresSecret(t *testing.T) {
	t.Setenv("ENV", "production")
	if _, err := Load(); err == nil {
		t.Error("expected error for missing SECRET_KEY in production")
	}

	t.Setenv("SECRET_KEY", "too-short")
	if _, err := Load(); err == nil {
		t.Error("expected error for short SECRET_KEY in production")
	}

	t.Setenv("SECRET_KEY", "a-production-secret-key-of-sufficient-length")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.IsDevelopment() {
		t.Error("expected IsDevelopment false in production")
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("LOCKOUT_THRESHOLD", "3")
	t.Setenv("LOCKOUT_DURATION", "30m")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Port)
	}
	if cfg.Auth.LockoutThreshold != 3 {
		t.Errorf("expected threshold 3, got %d", cfg.Auth.LockoutThreshold)
	}
	if cfg.Auth.LockoutDuration != 30*time.Minute {
		t.Errorf("expected duration 30m, got %v", cfg.Auth.LockoutDuration)
	}
	if !cfg.Redis.Enabled() {
		t.Error("expected Redis enabled")
	}
}
