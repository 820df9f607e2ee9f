package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const minimalYAML = `
server:
  port: 8181
  mode: release
database:
  host: db.internal
  user: coveriq
  password: secret
  db_name: coveriq
`

func TestLoad(t *testing.T) {
	path := writeConfigFile(t, minimalYAML)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8181, cfg.Server.Port)
	assert.Equal(t, "release", cfg.Server.Mode)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	// Unset sections fall back to defaults.
	assert.Equal(t, DefaultRedisAddr, cfg.Redis.Addr)
	assert.Equal(t, DefaultKafkaGroupID, cfg.Kafka.GroupID)
	assert.Equal(t, DefaultLLMModel, cfg.LLM.DefaultModel)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadInvalidConfigFailsValidation(t *testing.T) {
	path := writeConfigFile(t, `
server:
  port: 8181
  mode: bogus
database:
  host: db.internal
  user: coveriq
  db_name: coveriq
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("COVERIQ_DATABASE_HOST", "env-db")
	t.Setenv("COVERIQ_DATABASE_USER", "env-user")
	t.Setenv("COVERIQ_REDIS_ADDR", "env-redis:6379")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "env-db", cfg.Database.Host)
	assert.Equal(t, "env-user", cfg.Database.User)
	assert.Equal(t, "env-redis:6379", cfg.Redis.Addr)
	assert.Equal(t, DefaultServerPort, cfg.Server.Port)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfigFile(t, minimalYAML)
	t.Setenv("COVERIQ_DATABASE_HOST", "override-host")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "override-host", cfg.Database.Host)
}

func TestWatchDeliversChangedConfig(t *testing.T) {
	path := writeConfigFile(t, minimalYAML)

	changed := make(chan *Config, 1)
	Watch(path, func(cfg *Config) {
		select {
		case changed <- cfg:
		default:
		}
	})

	require.NoError(t, os.WriteFile(path, []byte(minimalYAML+`
log:
  level: debug
`), 0o600))

	select {
	case cfg := <-changed:
		assert.Equal(t, "debug", cfg.Log.Level)
		assert.Equal(t, 8181, cfg.Server.Port)
	case <-time.After(5 * time.Second):
		t.Fatal("config change never observed")
	}
}

func TestMustLoadPanicsOnError(t *testing.T) {
	assert.Panics(t, func() {
		MustLoad(filepath.Join(t.TempDir(), "nope.yaml"))
	})
}
