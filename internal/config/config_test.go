package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Energy-Exe/energyexe-core-backend/internal/models"
	"github.com/Energy-Exe/energyexe-core-backend/internal/normalizer"
	"github.com/Energy-Exe/energyexe-core-backend/internal/pipeline"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DB_HOST", "DB_PORT", "DB_NAME", "REDIS_ADDR", "MQTT_BROKER",
		"HARMONIZER_FALLBACK_POLICY", "HARMONIZER_UNMATCHED_POLICY", "HARMONIZER_WORKERS",
		"HARMONIZER_REPORT_DIR", "HARMONIZER_PROFILES_FILE",
		"REGISTRY_MODE", "REGISTRY_URL", "REGISTRY_CACHE_TTL", "LOG_LEVEL",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if cfg.Database.Host != "localhost" {
		t.Errorf("Expected DB_HOST default 'localhost', got '%s'", cfg.Database.Host)
	}
	if cfg.Database.Port != 5432 {
		t.Errorf("Expected DB_PORT default 5432, got %d", cfg.Database.Port)
	}
	if cfg.Redis.Enabled() {
		t.Errorf("Expected Redis disabled without REDIS_ADDR, got '%s'", cfg.Redis.Addr)
	}
	if cfg.MQTT.Enabled() {
		t.Errorf("Expected MQTT disabled without MQTT_BROKER")
	}
	if cfg.Harmonizer.Fallback != normalizer.FallbackTrust {
		t.Errorf("Expected fallback policy 'trust', got '%s'", cfg.Harmonizer.Fallback)
	}
	if cfg.Harmonizer.Unmatched != pipeline.UnmatchedRetain {
		t.Errorf("Expected unmatched policy 'retain', got '%s'", cfg.Harmonizer.Unmatched)
	}
	if cfg.Harmonizer.Workers != 1 {
		t.Errorf("Expected 1 worker, got %d", cfg.Harmonizer.Workers)
	}
	if cfg.Registry.Mode != RegistryDatabase {
		t.Errorf("Expected registry mode 'database', got '%s'", cfg.Registry.Mode)
	}
	if cfg.Registry.CacheTTL != 10*time.Minute {
		t.Errorf("Expected cache TTL 10m, got %s", cfg.Registry.CacheTTL)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Expected LOG_LEVEL default 'info', got '%s'", cfg.Log.Level)
	}
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	clearEnv(t)
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("HARMONIZER_FALLBACK_POLICY", "drop")
	t.Setenv("HARMONIZER_UNMATCHED_POLICY", "drop")
	t.Setenv("HARMONIZER_WORKERS", "4")
	t.Setenv("REGISTRY_MODE", "http")
	t.Setenv("REGISTRY_URL", "http://registry:8080")
	t.Setenv("REGISTRY_CACHE_TTL", "0s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if cfg.Database.Host != "db.internal" || cfg.Database.Port != 6543 {
		t.Errorf("Expected db.internal:6543, got %s:%d", cfg.Database.Host, cfg.Database.Port)
	}
	if !cfg.Redis.Enabled() {
		t.Errorf("Expected Redis enabled")
	}
	if cfg.Harmonizer.Fallback != normalizer.FallbackDrop {
		t.Errorf("Expected fallback 'drop', got '%s'", cfg.Harmonizer.Fallback)
	}
	if cfg.Harmonizer.Unmatched != pipeline.UnmatchedDrop {
		t.Errorf("Expected unmatched 'drop', got '%s'", cfg.Harmonizer.Unmatched)
	}
	if cfg.Harmonizer.Workers != 4 {
		t.Errorf("Expected 4 workers, got %d", cfg.Harmonizer.Workers)
	}
	if cfg.Registry.CacheTTL != 0 {
		t.Errorf("Expected cache disabled, got %s", cfg.Registry.CacheTTL)
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("HARMONIZER_FALLBACK_POLICY", "guess")
	if _, err := Load(); err == nil {
		t.Errorf("Expected error for unknown fallback policy")
	}

	clearEnv(t)
	t.Setenv("REGISTRY_MODE", "http")
	if _, err := Load(); err == nil {
		t.Errorf("Expected error for http registry without URL")
	}
}

func TestLoad_ProfilesFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	content := `
fallback_policy: drop
sources:
  elexon:
    fetch_padding: 3h
    fallback_policy: trust
  TAIPOWER:
    trust_raw_capacity: false
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write profiles: %v", err)
	}
	t.Setenv("HARMONIZER_PROFILES_FILE", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if cfg.Harmonizer.Fallback != normalizer.FallbackDrop {
		t.Errorf("Expected file fallback 'drop', got '%s'", cfg.Harmonizer.Fallback)
	}
	elexon, ok := cfg.Profiles[models.SourceELEXON]
	if !ok {
		t.Fatalf("Expected ELEXON override")
	}
	if elexon.FetchPadding != 3*time.Hour {
		t.Errorf("Expected 3h padding, got %s", elexon.FetchPadding)
	}
	if elexon.Fallback != normalizer.FallbackTrust {
		t.Errorf("Expected ELEXON fallback 'trust', got '%s'", elexon.Fallback)
	}
	taipower := cfg.Profiles[models.SourceTAIPOWER]
	if taipower.TrustRawCapacity == nil || *taipower.TrustRawCapacity {
		t.Errorf("Expected TAIPOWER trust_raw_capacity false")
	}

	opts := cfg.NormalizerOptions()
	if len(opts.Overrides) != 2 {
		t.Errorf("Expected 2 overrides, got %d", len(opts.Overrides))
	}
}

func TestLoad_ProfilesFileUnknownSource(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	if err := os.WriteFile(path, []byte("sources:\n  SMARD:\n    timezone: UTC\n"), 0o644); err != nil {
		t.Fatalf("Failed to write profiles: %v", err)
	}
	t.Setenv("HARMONIZER_PROFILES_FILE", path)

	if _, err := Load(); err == nil {
		t.Errorf("Expected error for unknown source in profiles file")
	}
}
