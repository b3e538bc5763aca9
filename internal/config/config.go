// Package config loads engine configuration from a YAML file with
// environment-variable overrides. Defaults are production values; a
// missing config file is not an error.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/acadix/reconcile/internal/dedup"
	"github.com/acadix/reconcile/internal/similarity"
)

// Backend selects the document store implementation.
type Backend string

const (
	BackendSQLite   Backend = "sqlite"
	BackendPostgres Backend = "postgres"
	BackendMemory   Backend = "memory"
)

// StorageConfig selects and parameterizes the repository backend.
type StorageConfig struct {
	// Backend is sqlite, postgres, or memory.
	Backend Backend `yaml:"backend"`
	// Path is the SQLite database file. ":memory:" works for tests.
	Path string `yaml:"path"`
	// DSN is the Postgres connection string when Backend is postgres.
	DSN string `yaml:"dsn"`
}

// DetectorConfig holds the per-type confidence floors. Sections default
// higher to avoid false positives from shared course codes.
type DetectorConfig struct {
	PersonFloor  float64 `yaml:"person_floor"`
	SectionFloor float64 `yaml:"section_floor"`
	SpaceFloor   float64 `yaml:"space_floor"`
	// FuzzyNameFloor is the minimum normalized name similarity that
	// counts as a signal at all.
	FuzzyNameFloor float64 `yaml:"fuzzy_name_floor"`
}

// ApplyConfig paces plan application against the document store.
type ApplyConfig struct {
	// WritesPerSecond limits chunk commits. Zero disables pacing.
	WritesPerSecond float64 `yaml:"writes_per_second"`
	Burst           int     `yaml:"burst"`
}

// LoggingConfig mirrors the usual zap setup knobs.
type LoggingConfig struct {
	// Level is debug, info, warn, or error.
	Level string `yaml:"level"`
	// Development switches to the human-readable console encoder.
	Development bool `yaml:"development"`
}

// Config is the full engine configuration.
type Config struct {
	Storage  StorageConfig  `yaml:"storage"`
	Detector DetectorConfig `yaml:"detector"`
	Apply    ApplyConfig    `yaml:"apply"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DefaultConfig returns production defaults.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Backend: BackendSQLite,
			Path:    ".reconcile/reconcile.db",
		},
		Detector: DetectorConfig{
			PersonFloor:    0.70,
			SectionFloor:   0.90,
			SpaceFloor:     0.70,
			FuzzyNameFloor: 0.70,
		},
		Apply: ApplyConfig{
			WritesPerSecond: 5,
			Burst:           1,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads the YAML file at path (skipped when path is empty or the
// file does not exist), then applies environment overrides, then
// validates.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("RECONCILE_BACKEND"); v != "" {
		cfg.Storage.Backend = Backend(v)
	}
	if v := os.Getenv("RECONCILE_DB_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("RECONCILE_PG_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("RECONCILE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("RECONCILE_SECTION_FLOOR"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Detector.SectionFloor = f
		}
	}
}

// Validate checks ranges and backend selection.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendSQLite:
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for the sqlite backend")
		}
	case BackendPostgres:
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn is required for the postgres backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown storage backend: %s", c.Storage.Backend)
	}

	for name, floor := range map[string]float64{
		"detector.person_floor":     c.Detector.PersonFloor,
		"detector.section_floor":    c.Detector.SectionFloor,
		"detector.space_floor":      c.Detector.SpaceFloor,
		"detector.fuzzy_name_floor": c.Detector.FuzzyNameFloor,
	} {
		if floor < 0 || floor > 1 {
			return fmt.Errorf("%s must be between 0 and 1 (got %g)", name, floor)
		}
	}

	if c.Apply.WritesPerSecond < 0 {
		return fmt.Errorf("apply.writes_per_second cannot be negative")
	}
	if c.Apply.WritesPerSecond > 0 && c.Apply.Burst < 1 {
		return fmt.Errorf("apply.burst must be at least 1 when pacing is enabled")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level: %s", c.Logging.Level)
	}
	return nil
}

// Floors converts the detector section into dedup floors.
func (c *Config) Floors() dedup.Floors {
	return dedup.Floors{
		Person:  c.Detector.PersonFloor,
		Section: c.Detector.SectionFloor,
		Space:   c.Detector.SpaceFloor,
	}
}

// ScoringPolicy returns the similarity policy with config overrides
// applied.
func (c *Config) ScoringPolicy() similarity.Policy {
	policy := similarity.DefaultPolicy()
	policy.Person.FuzzyFloor = c.Detector.FuzzyNameFloor
	return policy
}
