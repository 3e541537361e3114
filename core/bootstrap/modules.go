package bootstrap

import (
	"context"
	"log/slog"

	"github.com/m3rciful/pressbot/core/logger"
	"github.com/m3rciful/pressbot/core/store"
)

// Seeder loads reference data once migrations are applied.
type Seeder interface {
	Seed(ctx context.Context, repos *store.Repos) error
}

// SeederFunc adapts a bare function to the Seeder interface.
type SeederFunc func(ctx context.Context, repos *store.Repos) error

// Seed executes the underlying function.
func (f SeederFunc) Seed(ctx context.Context, repos *store.Repos) error {
	return f(ctx, repos)
}

// Modules groups optional bootstrapping hooks.
type Modules struct {
	Seeders []Seeder
}

// AdminSeeder makes sure the configured administrator has an active
// account. A zero id seeds nothing.
func AdminSeeder(adminID int64) Seeder {
	return SeederFunc(func(ctx context.Context, repos *store.Repos) error {
		if adminID == 0 {
			logger.SEED.WarnContext(ctx, "no administrator configured",
				slog.String("event", "seed.admin"),
				slog.String("status", "skip"),
			)
			return nil
		}
		created, err := repos.Users.EnsureActive(ctx, adminID)
		if err != nil {
			return err
		}
		logger.SEED.InfoContext(ctx, "administrator ready",
			slog.String("event", "seed.admin"),
			slog.String("status", "ok"),
			slog.Int64("user_id", adminID),
			slog.Bool("created", created),
		)
		return nil
	})
}
