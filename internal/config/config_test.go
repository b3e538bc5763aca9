package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, BackendSQLite, cfg.Storage.Backend)
	assert.Equal(t, 0.90, cfg.Detector.SectionFloor)
}

func TestLoadYAMLOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reconcile.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
storage:
  backend: memory
detector:
  section_floor: 0.95
logging:
  level: debug
  development: true
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, cfg.Storage.Backend)
	assert.Equal(t, 0.95, cfg.Detector.SectionFloor)
	assert.Equal(t, "debug", cfg.Logging.Level)
	// Untouched keys keep defaults.
	assert.Equal(t, 0.70, cfg.Detector.PersonFloor)
}

func TestEnvOverridesWinOverFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reconcile.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  path: from-file.db\n"), 0644))

	t.Setenv("RECONCILE_DB_PATH", "from-env.db")
	t.Setenv("RECONCILE_SECTION_FLOOR", "0.92")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env.db", cfg.Storage.Path)
	assert.Equal(t, 0.92, cfg.Detector.SectionFloor)
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown backend", func(c *Config) { c.Storage.Backend = "etcd" }},
		{"postgres without dsn", func(c *Config) { c.Storage.Backend = BackendPostgres }},
		{"sqlite without path", func(c *Config) { c.Storage.Path = "" }},
		{"floor above one", func(c *Config) { c.Detector.SectionFloor = 1.5 }},
		{"negative floor", func(c *Config) { c.Detector.PersonFloor = -0.1 }},
		{"negative rate", func(c *Config) { c.Apply.WritesPerSecond = -1 }},
		{"zero burst with pacing", func(c *Config) { c.Apply.Burst = 0 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "chatty" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestScoringPolicyAppliesFuzzyFloor(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Detector.FuzzyNameFloor = 0.80
	assert.Equal(t, 0.80, cfg.ScoringPolicy().Person.FuzzyFloor)
}

func TestNewLoggerLevels(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Logging.Level = "warn"
	logger, err := cfg.NewLogger()
	require.NoError(t, err)
	assert.NotNil(t, logger)
}
