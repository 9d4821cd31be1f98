// Package config loads harmonizer settings from the environment, with
// optional per-source profile overrides from a YAML file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/Energy-Exe/energyexe-core-backend/common/config"
	"github.com/Energy-Exe/energyexe-core-backend/internal/models"
	"github.com/Energy-Exe/energyexe-core-backend/internal/normalizer"
	"github.com/Energy-Exe/energyexe-core-backend/internal/pipeline"

	"gopkg.in/yaml.v3"
)

// Registry modes.
const (
	RegistryDatabase = "database"
	RegistryHTTP     = "http"
)

// Config is the harmonizer configuration.
type Config struct {
	Database config.DatabaseConfig
	Redis    config.RedisConfig
	MQTT     config.MQTTConfig

	Harmonizer struct {
		Fallback     normalizer.FallbackPolicy
		Unmatched    pipeline.UnmatchedPolicy
		Workers      int
		ReportDir    string
		ProfilesFile string
	}

	// Registry is where asset phases come from.
	Registry struct {
		Mode     string // "database" or "http"
		URL      string
		Token    string
		Timeout  time.Duration
		CacheTTL time.Duration // 0 disables the Redis snapshot cache
	}

	Import struct {
		Workers   int
		ChunkSize int
	}

	Log struct {
		Level  string
		Format string
		File   string
	}

	Profiles map[models.Source]normalizer.ProfileOverride
}

// profilesFile is the YAML layout of HARMONIZER_PROFILES_FILE.
type profilesFile struct {
	FallbackPolicy normalizer.FallbackPolicy             `yaml:"fallback_policy"`
	Sources        map[string]normalizer.ProfileOverride `yaml:"sources"`
}

// Load reads the configuration.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = 5432
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "energyexe")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = 10
	cfg.Database.MaxIdle = 5
	cfg.Database.LoadFromEnv("DB")

	cfg.Redis.LoadFromEnv("REDIS")
	cfg.MQTT.ClientID = "harmonizer"
	cfg.MQTT.QoS = 1
	cfg.MQTT.LoadFromEnv("MQTT")

	fallback, err := normalizer.ParseFallbackPolicy(getEnv("HARMONIZER_FALLBACK_POLICY", "trust"))
	if err != nil {
		return nil, err
	}
	cfg.Harmonizer.Fallback = fallback
	unmatched, err := pipeline.ParseUnmatchedPolicy(getEnv("HARMONIZER_UNMATCHED_POLICY", "retain"))
	if err != nil {
		return nil, err
	}
	cfg.Harmonizer.Unmatched = unmatched
	cfg.Harmonizer.Workers = getEnvInt("HARMONIZER_WORKERS", 1)
	cfg.Harmonizer.ReportDir = getEnv("HARMONIZER_REPORT_DIR", "run-logs")
	cfg.Harmonizer.ProfilesFile = getEnv("HARMONIZER_PROFILES_FILE", "")

	cfg.Registry.Mode = getEnv("REGISTRY_MODE", RegistryDatabase)
	cfg.Registry.URL = getEnv("REGISTRY_URL", "")
	cfg.Registry.Token = getEnv("REGISTRY_TOKEN", "")
	cfg.Registry.Timeout = getEnvDuration("REGISTRY_TIMEOUT", 30*time.Second)
	cfg.Registry.CacheTTL = getEnvDuration("REGISTRY_CACHE_TTL", 10*time.Minute)

	cfg.Import.Workers = getEnvInt("IMPORT_WORKERS", 4)
	cfg.Import.ChunkSize = getEnvInt("IMPORT_CHUNK_SIZE", 10000)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")
	cfg.Log.File = getEnv("LOG_FILE", "")

	if cfg.Harmonizer.ProfilesFile != "" {
		if err := cfg.loadProfiles(cfg.Harmonizer.ProfilesFile); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.Registry.Mode {
	case RegistryDatabase:
	case RegistryHTTP:
		if c.Registry.URL == "" {
			return fmt.Errorf("REGISTRY_URL is required when REGISTRY_MODE is http")
		}
	default:
		return fmt.Errorf("unsupported REGISTRY_MODE %q", c.Registry.Mode)
	}
	if c.Harmonizer.Workers < 1 {
		return fmt.Errorf("HARMONIZER_WORKERS must be at least 1, got %d", c.Harmonizer.Workers)
	}
	return nil
}

// NormalizerOptions returns the normalizer settings of this configuration.
func (c *Config) NormalizerOptions() normalizer.Options {
	return normalizer.Options{
		Fallback:  c.Harmonizer.Fallback,
		Overrides: c.Profiles,
	}
}

func (c *Config) loadProfiles(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read profiles file: %w", err)
	}
	var pf profilesFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return fmt.Errorf("failed to parse profiles file %s: %w", path, err)
	}

	if pf.FallbackPolicy != "" {
		p, err := normalizer.ParseFallbackPolicy(string(pf.FallbackPolicy))
		if err != nil {
			return err
		}
		c.Harmonizer.Fallback = p
	}
	c.Profiles = make(map[models.Source]normalizer.ProfileOverride, len(pf.Sources))
	for name, o := range pf.Sources {
		src, err := models.ParseSource(name)
		if err != nil {
			return fmt.Errorf("profiles file %s: %w", path, err)
		}
		if o.Fallback != "" {
			p, err := normalizer.ParseFallbackPolicy(string(o.Fallback))
			if err != nil {
				return fmt.Errorf("profiles file %s, source %s: %w", path, src, err)
			}
			o.Fallback = p
		}
		if o.Timezone != "" {
			if _, err := time.LoadLocation(o.Timezone); err != nil {
				return fmt.Errorf("profiles file %s, source %s: %w", path, src, err)
			}
		}
		c.Profiles[src] = o
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil && v > 0 {
		return v
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil && d >= 0 {
			return d
		}
	}
	return defaultValue
}
