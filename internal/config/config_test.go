package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, int32(10), cfg.Store.MaxConns)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 30, cfg.Server.ImportRatePerMin)
	assert.Equal(t, 20, cfg.Server.MaxUploadMB)
	assert.Equal(t, 5000, cfg.Query.MaxRows)
	assert.Equal(t, 1000, cfg.Query.ListLimit)
	assert.Equal(t, 5000, cfg.Query.ExportLimit)
	assert.Equal(t, 10, cfg.Import.PreviewLimit)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: sqlite
  database_url: file:ledger.db
log:
  level: debug
  format: console
server:
  port: 9090
  allowed_origins:
    - https://faturamento.example.com
query:
  list_limit: 200
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "file:ledger.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"https://faturamento.example.com"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 200, cfg.Query.ListLimit)
	// Defaults still apply for unset values
	assert.Equal(t, 5000, cfg.Query.ExportLimit)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("PRODLEDGER_STORE_DRIVER", "postgres")
	t.Setenv("PRODLEDGER_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("PRODLEDGER_SERVER_PORT", "3000")
	t.Setenv("PRODLEDGER_STORE_DATABASE_URL", "postgres://ledger@db/ledger")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "postgres://ledger@db/ledger", cfg.Store.DatabaseURL)
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store: [unclosed"), 0644))

	_, err := Load()
	require.Error(t, err)
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
	cfg := &Config{}
	cfg.Store.Driver = "postgres"
	cfg.Store.DatabaseURL = "postgres://localhost/ledger"
	cfg.Server.Port = 8080
	cfg.Server.ImportRatePerMin = 30
	cfg.Server.MaxUploadMB = 20
	cfg.Query.MaxRows = 5000
	cfg.Query.ListLimit = 1000
	cfg.Query.ExportLimit = 5000
	return cfg
}

func TestValidate_AllPresent(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("store"))
	assert.NoError(t, cfg.Validate("serve"))
}

func TestValidate_MissingDatabaseURL(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.DatabaseURL = ""
	cfg.Store.Driver = "mysql"

	err := cfg.Validate("store")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")
	assert.Contains(t, err.Error(), `store.driver must be postgres or sqlite, got "mysql"`)
}

func TestValidateServe_InvalidPort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	assert.NoError(t, cfg.Validate("store"))

	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")
}

func TestValidate_LimitBounds(t *testing.T) {
	cfg := validDefaults()

	cfg.Query.ListLimit = 6000
	err := cfg.Validate("store")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query.list_limit")

	cfg.Query.ListLimit = 1000
	cfg.Query.ExportLimit = 0
	err = cfg.Validate("store")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query.export_limit")
}

func TestValidateUnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestRedactURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"postgres://ledger:s3cret@db:5432/ledger?sslmode=disable", "postgres://ledger:xxxxx@db:5432/ledger?sslmode=disable"},
		{"postgres://ledger@db/ledger", "postgres://ledger@db/ledger"},
		{"file:ledger.db", "file:ledger.db"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RedactURL(tt.in))
	}
}

func TestRedactedLeavesOriginalIntact(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.DatabaseURL = "postgres://u:p@h/d"

	red := cfg.Redacted()
	assert.Equal(t, "postgres://u:xxxxx@h/d", red.Store.DatabaseURL)
	assert.Equal(t, "postgres://u:p@h/d", cfg.Store.DatabaseURL)
}
