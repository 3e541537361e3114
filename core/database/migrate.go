package database

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	coreconfig "github.com/m3rciful/pressbot/core/config"
	"github.com/m3rciful/pressbot/core/logger"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

const readyTimeout = 30 * time.Second

// MigrationReport describes one migration run.
type MigrationReport struct {
	From, To uint
	// Applied lists the up files run, oldest first.
	Applied []string
	Took    time.Duration
}

func migrationsDir(cfg Config) string {
	if cfg.Driver == coreconfig.DriverPostgres {
		return "migrations/postgres"
	}
	return "migrations/sqlite"
}

// migrateLog routes golang-migrate output to the migration logger.
type migrateLog struct{ ctx context.Context }

func (l migrateLog) Printf(format string, v ...any) {
	logger.MIG.LogAttrs(l.ctx, slog.LevelDebug, "",
		slog.String("event", "migrate.log"),
		slog.String("line", strings.TrimSpace(fmt.Sprintf(format, v...))),
	)
}

func (migrateLog) Verbose() bool { return logger.MIG.Enabled(context.Background(), slog.LevelDebug) }

// RunMigrations applies the embedded up migrations of the configured driver.
func RunMigrations(ctx context.Context, cfg Config) error {
	_, err := Migrate(ctx, cfg)
	return err
}

// Migrate applies the embedded up migrations and reports what changed. A
// database already at the latest version is not an error. Cancelling ctx
// stops after the migration in flight.
func Migrate(ctx context.Context, cfg Config) (MigrationReport, error) {
	var rep MigrationReport
	if err := WaitForDB(ctx, cfg, readyTimeout); err != nil {
		return rep, fmt.Errorf("database not ready: %w", err)
	}
	if err := ensureDir(cfg); err != nil {
		return rep, err
	}

	dir := migrationsDir(cfg)
	files := upFiles(migrationsFS, dir)
	if preview, cut := logger.SummarizeStrings(files, 6); preview != "" {
		logger.MIG.LogAttrs(ctx, slog.LevelDebug, "",
			slog.String("event", "migrate.resolve"),
			slog.String("path", dir),
			slog.Int("files_total", len(files)),
			slog.String("files_preview", preview),
			slog.Bool("files_truncated", cut),
		)
	}

	src, err := iofs.New(migrationsFS, dir)
	if err != nil {
		return rep, fmt.Errorf("open embedded migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, MigrateURL(cfg))
	if err != nil {
		return rep, fmt.Errorf("init migrations: %w", err)
	}
	m.Log = migrateLog{ctx: ctx}
	defer func() {
		if err := errors.Join(m.Close()); err != nil {
			logger.MIG.LogAttrs(ctx, slog.LevelWarn, "",
				slog.String("event", "migrate.close"),
				slog.String("status", "fail"),
				slog.String("err", err.Error()),
			)
		}
	}()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			m.GracefulStop <- true
		case <-done:
		}
	}()

	rep.From, _, _ = m.Version()
	start := time.Now()
	err = m.Up()
	rep.Took = time.Since(start)
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		logger.MIG.LogAttrs(ctx, slog.LevelError, "",
			slog.String("event", "migrate.apply"),
			slog.String("status", "fail"),
			slog.Duration("duration", logger.RoundMS(rep.Took)),
			slog.String("err", err.Error()),
		)
		return rep, fmt.Errorf("apply migrations: %w", err)
	}
	rep.To, _, _ = m.Version()
	rep.Applied = between(files, uint64(rep.From), uint64(rep.To))

	logger.MIG.LogAttrs(ctx, slog.LevelInfo, "",
		slog.String("event", "migrate.summary"),
		slog.String("status", "ok"),
		slog.Uint64("from_ver", uint64(rep.From)),
		slog.Uint64("to_ver", uint64(rep.To)),
		slog.Int("files", len(rep.Applied)),
		slog.Duration("duration", logger.RoundMS(rep.Took)),
	)
	return rep, nil
}

// upFiles lists the up migrations in dir, sorted by name.
func upFiles(fsys fs.FS, dir string) []string {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".up.sql") {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)
	return names
}

func fileVersion(name string) uint64 {
	head, _, _ := strings.Cut(name, "_")
	v, _ := strconv.ParseUint(head, 10, 64)
	return v
}

// between returns the files with a version in (from, to].
func between(files []string, from, to uint64) []string {
	var out []string
	for _, f := range files {
		if v := fileVersion(f); v > from && v <= to {
			out = append(out, f)
		}
	}
	return out
}
