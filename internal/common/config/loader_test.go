package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func writeConfig(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	err := os.WriteFile(path, []byte(yaml), 0o644)
	assert.NoError(t, err)
	return path
}

const minimalYAML = `
database:
  postgres:
    host: localhost
    database: invoices
    user: app
  redis:
    address: localhost:6379
`

func TestLoadFromFile_AppliesDefaults(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, minimalYAML))
	assert.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "disable", cfg.Database.Postgres.SSLMode)
	assert.Equal(t, 25, cfg.Database.Postgres.MaxConnections)
	assert.Equal(t, 15000, cfg.GenAI.Timeout)
	assert.Equal(t, float64(1000), cfg.Assistant.ConfirmationThreshold)
	assert.Equal(t, 8, cfg.Assistant.RecentEntityCap)
	assert.Equal(t, 5, cfg.Assistant.HistoryWindow)
	assert.Equal(t, 86400, cfg.Assistant.SessionTTL)
	assert.Equal(t, "this_month", cfg.Assistant.DefaultReportPeriod)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadFromFile_ExplicitValuesWin(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, minimalYAML+`
assistant:
  confirmation_threshold: 250
  session_ttl: 3600
logging:
  level: debug
`))
	assert.NoError(t, err)

	assert.Equal(t, float64(250), cfg.Assistant.ConfirmationThreshold)
	assert.Equal(t, 3600, cfg.Assistant.SessionTTL)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadFromFile_MissingDatabaseHostFails(t *testing.T) {
	_, err := LoadFromFile(writeConfig(t, `
database:
  postgres:
    database: invoices
    user: app
  redis:
    address: localhost:6379
`))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "database.postgres.host")
}

func TestLoadFromFile_EmailWithoutSenderFails(t *testing.T) {
	_, err := LoadFromFile(writeConfig(t, minimalYAML+`
notifications:
  email:
    enabled: true
`))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "from_email")
}

func TestGetDuration(t *testing.T) {
	assert.Equal(t, "1.5s", GetDuration(1500).String())
}
