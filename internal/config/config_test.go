package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "gapcore.db", cfg.Store.SQLitePath)
	assert.Equal(t, 200, cfg.Store.MaxCandidates)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.False(t, cfg.Server.TrustProxy)

	assert.Equal(t, DefaultResolverConfig(), cfg.Resolver)
	assert.Equal(t, DefaultGapConfig(), cfg.Gaps)
	assert.Equal(t, DefaultCompletenessConfig(), cfg.Completeness)
	assert.Equal(t, 100, cfg.Completeness.Weights.Sum())

	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.InDelta(t, 10.0, cfg.Nearby.RadiusKm, 0.001)
	assert.Equal(t, 20, cfg.Nearby.Limit)
}

func TestDefaultsMatchLoad(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)

	mem := Defaults()
	mem.Store.Driver = "memory"
	assert.NoError(t, mem.Validate("query"))
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
  sqlite_path: /tmp/x.db
log:
  level: debug
  format: console
resolver:
  confidence_floor: 0.4
  city_mismatch: exclude
gaps:
  under_represented_ratio: 0.6
completeness:
  weights:
    social: 30
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "/tmp/x.db", cfg.Store.SQLitePath)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.InDelta(t, 0.4, cfg.Resolver.ConfidenceFloor, 0.001)
	assert.Equal(t, CityMismatchExclude, cfg.Resolver.CityMismatch)
	assert.InDelta(t, 0.6, cfg.Gaps.UnderRepresentedRatio, 0.001)
	assert.Equal(t, 30, cfg.Completeness.Weights.Social)
	// Defaults still apply for unset values
	assert.Equal(t, 20, cfg.Completeness.Weights.Operational)
	assert.InDelta(t, 0.3, cfg.Resolver.CityBonus, 0.001)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("GAPCORE_STORE_DRIVER", "postgres")
	t.Setenv("GAPCORE_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("GAPCORE_SERVER_PORT", "3000")
	t.Setenv("GAPCORE_RESOLVER_CONFIDENCE_FLOOR", "0.45")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.InDelta(t, 0.45, cfg.Resolver.ConfidenceFloor, 0.001)
}

func TestLoadMalformedFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store: [unclosed"), 0644))

	_, err := Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	return &Config{
		Store:        StoreConfig{Driver: "postgres", DatabaseURL: "postgres://localhost/gapcore"},
		Server:       ServerConfig{Port: 8080},
		Resolver:     DefaultResolverConfig(),
		Gaps:         DefaultGapConfig(),
		Completeness: DefaultCompletenessConfig(),
	}
}

func TestValidateServe_Valid(t *testing.T) {
	assert.NoError(t, validDefaults().Validate("serve"))
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")

	// Port is irrelevant outside serve mode.
	assert.NoError(t, cfg.Validate("query"))
}

func TestValidatePostgresRequiresURL(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.DatabaseURL = ""

	err := cfg.Validate("query")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")
}

func TestValidateDrivers(t *testing.T) {
	cfg := validDefaults()

	cfg.Store.Driver = "sqlite"
	cfg.Store.SQLitePath = "local.db"
	assert.NoError(t, cfg.Validate("migrate"))

	cfg.Store.Driver = "memory"
	assert.NoError(t, cfg.Validate("query"))
	err := cfg.Validate("migrate")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "memory driver cannot be migrated")

	cfg.Store.Driver = "mongo"
	err = cfg.Validate("query")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), `store.driver "mongo"`)
}

func TestValidateUnknownMode(t *testing.T) {
	err := validDefaults().Validate("unknown")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestResolverConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ResolverConfig)
		wantErr string
	}{
		{"defaults", func(*ResolverConfig) {}, ""},
		{"floor above one", func(c *ResolverConfig) { c.ConfidenceFloor = 1.2 }, "confidence_floor"},
		{"negative key weight", func(c *ResolverConfig) { c.KeyWeight = -0.1 }, "key_weight"},
		{"negative bonus", func(c *ResolverConfig) { c.CityBonus = -1 }, "non-negative"},
		{"bad mismatch policy", func(c *ResolverConfig) { c.CityMismatch = "shrug" }, "city_mismatch"},
		{"max below default", func(c *ResolverConfig) { c.MaxLimit = 2 }, "limits"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultResolverConfig()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGapConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*GapConfig)
		wantErr string
	}{
		{"defaults", func(*GapConfig) {}, ""},
		{"ratio zero", func(c *GapConfig) { c.UnderRepresentedRatio = 0 }, "under_represented_ratio"},
		{"ratio one", func(c *GapConfig) { c.UnderRepresentedRatio = 1 }, "under_represented_ratio"},
		{"over ratio", func(c *GapConfig) { c.OverRepresentedRatio = 1 }, "over_represented_ratio"},
		{"priority order", func(c *GapConfig) { c.HighPriorityGap = 0.01 }, "priority gaps"},
		{"anchor policy", func(c *GapConfig) { c.AnchorPolicy = "sometimes" }, "anchor_policy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultGapConfig()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
