package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENV", "test-defaults")
	t.Setenv("PORT", "")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, ".", cfg.Server.StaticDir)
	assert.Equal(t, DriverFile, cfg.Storage.Driver)
	assert.Equal(t, "users.json", cfg.Storage.UsersDocument)
	assert.Equal(t, "students.json", cfg.Storage.StudentsDocument)
	assert.Equal(t, "notifications.json", cfg.Storage.NotificationsDocument)
	assert.Empty(t, cfg.NATS.URL)
}

func TestLoadPortFromEnv(t *testing.T) {
	t.Setenv("ENV", "test-port")
	t.Setenv("PORT", "9123")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "9123", cfg.Server.Port)
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	yaml := []byte(`
server:
  port: "8100"
storage:
  driver: redis
  dir: /var/lib/payments
redis:
  addr: redis:6379
  key_prefix: "test:"
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.filetest.yaml"), yaml, 0o644))

	t.Setenv("ENV", "filetest")
	t.Setenv("REDIS_DB", "3")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "8100", cfg.Server.Port)
	assert.Equal(t, DriverRedis, cfg.Storage.Driver)
	assert.Equal(t, "/var/lib/payments", cfg.Storage.Dir)
	assert.Equal(t, "redis:6379", cfg.Redis.Addr)
	assert.Equal(t, "test:", cfg.Redis.KeyPrefix)
	assert.Equal(t, 3, cfg.Redis.DB)
}

func TestLoadRejectsUnknownDriver(t *testing.T) {
	t.Setenv("ENV", "test-driver")
	t.Setenv("STORAGE_DRIVER", "sqlite")

	_, err := Load(t.TempDir())
	assert.Error(t, err)
}
