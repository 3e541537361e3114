package bootstrap

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/pressbot/core/config"
	coredatabase "github.com/m3rciful/pressbot/core/database"
	"github.com/m3rciful/pressbot/core/store"
)

func testConfig(t *testing.T) *coreconfig.Config {
	t.Helper()
	cfg := &coreconfig.Config{
		Telegram: coreconfig.TelegramConfig{AdminID: 7},
		Database: coreconfig.DatabaseConfig{
			Driver: coreconfig.DriverSQLite,
			Path:   filepath.Join(t.TempDir(), "boot.db"),
		},
	}
	require.NoError(t, coreconfig.Normalize(cfg))
	return cfg
}

func noLogger(*coreconfig.Config) error { return nil }

func TestRunSeedsAdministrator(t *testing.T) {
	cfg := testConfig(t)
	res, err := Run(context.Background(), Options{
		Config:     cfg,
		LoggerInit: noLogger,
		Modules:    Modules{Seeders: []Seeder{AdminSeeder(cfg.Telegram.AdminID), AdminSeeder(0)}},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = res.Close() })

	u, err := res.Repos.Users.Get(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, store.StatusActive, u.Status)

	// seeding twice keeps the account active
	require.NoError(t, AdminSeeder(7).Seed(context.Background(), res.Repos))
}

func TestRunFailures(t *testing.T) {
	_, err := Run(context.Background(), Options{})
	require.Error(t, err)

	boom := errors.New("boom")
	_, err = Run(context.Background(), Options{
		Config:     testConfig(t),
		LoggerInit: func(*coreconfig.Config) error { return boom },
	})
	assert.ErrorIs(t, err, boom)

	_, err = Run(context.Background(), Options{
		Config:     testConfig(t),
		LoggerInit: noLogger,
		Migrate:    func(context.Context, coredatabase.Config) error { return boom },
	})
	assert.ErrorIs(t, err, boom)

	_, err = Run(context.Background(), Options{
		Config:     testConfig(t),
		LoggerInit: noLogger,
		Connect: func(context.Context, coredatabase.Config) (*sqlx.DB, error) {
			return nil, boom
		},
	})
	assert.ErrorIs(t, err, boom)

	_, err = Run(context.Background(), Options{
		Config:     testConfig(t),
		LoggerInit: noLogger,
		Modules: Modules{Seeders: []Seeder{SeederFunc(func(context.Context, *store.Repos) error {
			return boom
		})}},
	})
	assert.ErrorIs(t, err, boom)
}
