package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
server:
  port: 9090
mysql:
  host: db.internal
  port: 3306
  user: svc
  database: accounts
kafka:
  brokers: ["k1:9092", "k2:9092"]
business:
  max_retry_count: 3
log:
  level: debug
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sample))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "db.internal", cfg.MySQL.Host)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 3, cfg.Business.MaxRetryCount)
	assert.Equal(t, "debug", cfg.Log.Level)

	// 默认值
	assert.Equal(t, int64(1), cfg.Server.WorkerID)
	assert.Equal(t, "account_events", cfg.Kafka.Topic.AccountEvents)
	assert.Equal(t, 10, cfg.Business.LockTimeoutSeconds)
	assert.Equal(t, 100, cfg.Business.HistoryMaxPageSize)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("ACCOUNT_SERVER_PORT", "7070")
	t.Setenv("ACCOUNT_MYSQL_PASSWORD", "s3cret")

	cfg, err := Load(writeConfig(t, sample))
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "s3cret", cfg.MySQL.Password)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
