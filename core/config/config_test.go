package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDefaults(t *testing.T) {
	var cfg Config
	require.NoError(t, Normalize(&cfg))

	assert.Equal(t, RunModeLongpoll, cfg.Telegram.RunMode)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, "pressbot.db", cfg.Database.Path)
	assert.Equal(t, 1, cfg.Database.MaxConnections)
	assert.Equal(t, "public", cfg.Publish.Root)
	assert.Equal(t, 200, cfg.Publish.WordsPerMinute)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.Equal(t, 1, cfg.RateLimit.Burst)
}

func TestNormalizeRejects(t *testing.T) {
	cases := map[string]Config{
		"run mode":       {Telegram: TelegramConfig{RunMode: "carrier-pigeon"}},
		"driver":         {Database: DatabaseConfig{Driver: "mysql"}},
		"postgres host":  {Database: DatabaseConfig{Driver: "postgres", Name: "press"}},
		"exclude update": {RateLimit: RateLimitConfig{ExcludeUpdates: []string{"poll"}}},
		"interval":       {RateLimit: RateLimitConfig{IntervalMS: -1}},
	}
	for name, cfg := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, Normalize(&cfg))
		})
	}
	assert.Error(t, Normalize(nil))
}

func TestNormalizeReportsEveryProblem(t *testing.T) {
	cfg := Config{
		Telegram:  TelegramConfig{RunMode: "fax"},
		RateLimit: RateLimitConfig{IntervalMS: -5},
		Database:  DatabaseConfig{Driver: "postgres"},
	}
	err := Normalize(&cfg)
	require.Error(t, err)
	for _, want := range []string{"run_mode", "interval_ms", "database.host", "database.name"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestNormalizePostgres(t *testing.T) {
	cfg := Config{Database: DatabaseConfig{Driver: "PG", Host: "db", Name: "press"}}
	require.NoError(t, Normalize(&cfg))
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, "5432", cfg.Database.Port)
	assert.Equal(t, "disable", cfg.Database.SSLMode)
	assert.Equal(t, 10, cfg.Database.MaxConnections)
}

func TestNormalizeBot(t *testing.T) {
	cfg := Config{}
	assert.Error(t, NormalizeBot(&cfg), "token is mandatory for the bot")

	cfg = Config{Telegram: TelegramConfig{Token: "t", RunMode: "webhook"}}
	assert.Error(t, NormalizeBot(&cfg), "webhook needs url, listen and port")

	cfg = Config{
		Telegram: TelegramConfig{Token: "t", RunMode: "polling"},
	}
	require.NoError(t, NormalizeBot(&cfg))
	assert.Equal(t, RunModeLongpoll, cfg.Telegram.RunMode)
}

func TestLoadYAMLWithEnvOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
telegram:
  token: from-file
  admin_id: 77
database:
  driver: sqlite
  path: file.db
publish:
  root: out
rate_limit:
  interval_ms: 500
  exclude_updates: [" Callback "]
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv("DB_PATH", filepath.Join(dir, "env.db"))
	t.Setenv("METRICS_LISTEN", ":9100")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.Telegram.Token)
	assert.Equal(t, int64(77), cfg.Telegram.AdminID)
	assert.Equal(t, filepath.Join(dir, "env.db"), cfg.Database.Path)
	assert.Equal(t, ":9100", cfg.Metrics.Listen)
	assert.Equal(t, "out", cfg.Publish.Root)
	assert.Equal(t, []string{UpdateCallback}, cfg.RateLimit.ExcludeUpdates)
}

func TestLoadMissingFileUsesEnv(t *testing.T) {
	t.Setenv("BOT_TOKEN", "env-token")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "env-token", cfg.Telegram.Token)
}

func TestLoadDotEnv(t *testing.T) {
	const key = "PRESSBOT_DOTENV_PROBE"
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(key+"=loaded\n"), 0o600))
	t.Cleanup(func() { _ = os.Unsetenv(key) })

	require.NoError(t, LoadDotEnv(path, filepath.Join(t.TempDir(), "missing.env")))
	assert.Equal(t, "loaded", os.Getenv(key))
}
