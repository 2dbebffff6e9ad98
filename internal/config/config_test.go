package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"DATABASE_DRIVER", "DATABASE_DSN", "REDIS_HOST", "REDIS_PASSWORD",
		"AI_API_KEY", "AI_BASE_URL", "SERVER_PORT",
	} {
		t.Setenv(key, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.test.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, DriverMemory, cfg.Database.Driver)
	assert.Equal(t, LockLocal, cfg.Lock.Backend)
	assert.Equal(t, 10*time.Second, cfg.Lock.Wait)
	assert.Equal(t, 50, cfg.Audit.DefaultLimit)
	assert.Equal(t, 500, cfg.Audit.MaxLimit)
	assert.False(t, cfg.Audit.RecordRollbacks)
	assert.Equal(t, 30, cfg.RateLimit.RequestsPerMinute)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoad_YAML(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
server:
  port: 9000
  env: prod
  cors_allow_origins: "https://a.example, https://b.example"
database:
  driver: sqlite
  dsn: "file:test.db"
  seed: true
lock:
  wait: 2s
audit:
  record_rollbacks: true
  default_limit: 20
ai:
  timeout: 15s
rate_limit:
  requests_per_minute: -1
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.False(t, cfg.IsDevelopment())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins())
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, "file:test.db", cfg.Database.GetDSN())
	assert.True(t, cfg.Database.Seed)
	assert.Equal(t, 2*time.Second, cfg.Lock.Wait)
	assert.True(t, cfg.Audit.RecordRollbacks)
	assert.Equal(t, 20, cfg.Audit.DefaultLimit)
	assert.Equal(t, 15*time.Second, cfg.AI.Timeout)
	// negative disables rate limiting and survives defaults
	assert.Equal(t, -1, cfg.RateLimit.RequestsPerMinute)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "database:\n  driver: sqlite\nserver:\n  port: 9000\n")

	t.Setenv("DATABASE_DRIVER", "mysql")
	t.Setenv("DATABASE_DSN", "user:pw@tcp(db:3306)/chronicle")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("AI_API_KEY", "sk-test")
	t.Setenv("SERVER_PORT", "7070")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, DriverMySQL, cfg.Database.Driver)
	assert.Equal(t, "user:pw@tcp(db:3306)/chronicle", cfg.Database.GetDSN())
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "cache", cfg.Redis.Host)
	assert.Equal(t, "sk-test", cfg.AI.APIKey)
	assert.Equal(t, 7070, cfg.Server.Port)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		env  map[string]string
	}{
		{name: "unknown driver", yaml: "database:\n  driver: postgres\n"},
		{name: "unknown lock backend", yaml: "lock:\n  backend: etcd\n"},
		{name: "redis lock without redis", yaml: "lock:\n  backend: redis\n"},
		{name: "ai without key", yaml: "ai:\n  enabled: true\n"},
		{name: "bad port env", yaml: "", env: map[string]string{"SERVER_PORT": "http"}},
		{name: "malformed yaml", yaml: "server: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(writeConfig(t, tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestDatabaseConfig_GetDSN(t *testing.T) {
	d := DatabaseConfig{Driver: DriverMySQL, User: "u", Password: "p", Host: "h", Port: 3306, DBName: "c"}
	assert.Equal(t, "u:p@tcp(h:3306)/c?charset=utf8mb4&parseTime=True&loc=UTC", d.GetDSN())

	assert.Equal(t, "campaign.db", DatabaseConfig{Driver: DriverSQLite}.GetDSN())
	assert.Empty(t, DatabaseConfig{Driver: DriverMemory}.GetDSN())
}

func TestLoadDotEnv_Precedence(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("CHRONICLE_TEST_A", "")
	t.Setenv("CHRONICLE_TEST_B", "")
	t.Setenv("CHRONICLE_TEST_C", "from-os")
	require.NoError(t, os.Unsetenv("CHRONICLE_TEST_A"))
	require.NoError(t, os.Unsetenv("CHRONICLE_TEST_B"))

	require.NoError(t, os.WriteFile(".env", []byte("CHRONICLE_TEST_A=base\nCHRONICLE_TEST_B=base\nCHRONICLE_TEST_C=base\n"), 0o600))
	require.NoError(t, os.WriteFile(".env.prod", []byte("CHRONICLE_TEST_A=prod\n"), 0o600))

	loaded := LoadDotEnv("prod")
	assert.Equal(t, []string{".env.prod", ".env"}, loaded)
	assert.Equal(t, "prod", os.Getenv("CHRONICLE_TEST_A"))
	assert.Equal(t, "base", os.Getenv("CHRONICLE_TEST_B"))
	assert.Equal(t, "from-os", os.Getenv("CHRONICLE_TEST_C"))
}
