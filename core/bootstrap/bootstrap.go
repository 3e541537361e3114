// Package bootstrap prepares the infrastructure the bot runs on.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/pressbot/core/config"
	coredatabase "github.com/m3rciful/pressbot/core/database"
	"github.com/m3rciful/pressbot/core/logger"
	"github.com/m3rciful/pressbot/core/store"
)

// Options control the bootstrap pipeline. Nil functions take the real
// implementations.
type Options struct {
	Config *coreconfig.Config

	LoggerInit func(*coreconfig.Config) error
	Connect    func(context.Context, coredatabase.Config) (*sqlx.DB, error)
	Migrate    func(context.Context, coredatabase.Config) error

	Modules Modules
}

// Result exposes the initialized infrastructure.
type Result struct {
	DB    *sqlx.DB
	Repos *store.Repos
}

// Close releases the database connection.
func (r *Result) Close() error {
	if r == nil || r.DB == nil {
		return nil
	}
	return r.DB.Close()
}

type step struct {
	name string
	run  func(ctx context.Context) error
}

// Run initializes the logger, connects to the database, applies migrations
// and runs the seeders, in that order. Nothing stays open on failure.
func Run(ctx context.Context, opts Options) (*Result, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, errors.New("bootstrap: nil config provided")
	}
	opts.withDefaults()

	res := &Result{}
	steps := []step{
		{"logger", func(context.Context) error { return opts.LoggerInit(cfg) }},
		{"database", func(ctx context.Context) (err error) {
			res.DB, err = opts.Connect(ctx, cfg.Database)
			return err
		}},
		{"migrations", func(ctx context.Context) error { return opts.Migrate(ctx, cfg.Database) }},
		{"seed", func(ctx context.Context) error {
			res.Repos = store.New(res.DB)
			for _, s := range opts.Modules.Seeders {
				if err := s.Seed(ctx, res.Repos); err != nil {
					return err
				}
			}
			return nil
		}},
	}
	for _, s := range steps {
		start := time.Now()
		if err := s.run(ctx); err != nil {
			_ = res.Close()
			return nil, fmt.Errorf("bootstrap: %s: %w", s.name, err)
		}
		logger.L.LogAttrs(ctx, slog.LevelDebug, "",
			slog.String("component", "bootstrap"),
			slog.String("event", "bootstrap.step"),
			slog.String("status", "ok"),
			slog.String("step", s.name),
			slog.Duration("duration", logger.RoundMS(time.Since(start))),
		)
	}
	return res, nil
}

func (o *Options) withDefaults() {
	if o.LoggerInit == nil {
		o.LoggerInit = logger.InitLogger
	}
	if o.Connect == nil {
		o.Connect = coredatabase.Connect
	}
	if o.Migrate == nil {
		o.Migrate = coredatabase.RunMigrations
	}
}
