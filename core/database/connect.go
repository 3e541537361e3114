package database

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	coreconfig "github.com/m3rciful/pressbot/core/config"
	"github.com/m3rciful/pressbot/core/logger"
)

const (
	connectTimeout = 5 * time.Second
	readyInterval  = 2 * time.Second
)

// Connect opens a pool for cfg and pings it. sqlite gets a single
// connection.
func Connect(ctx context.Context, cfg Config) (*sqlx.DB, error) {
	if err := ensureDir(cfg); err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	driver := driverName(cfg)
	attrs := []slog.Attr{
		slog.String("event", "db.connect"),
		slog.String("driver", driver),
		slog.String("target", target(cfg)),
	}
	start := time.Now()
	db, err := sqlx.ConnectContext(ctx, driver, DSN(cfg))
	attrs = append(attrs, slog.Duration("duration", logger.RoundMS(time.Since(start))))
	if err != nil {
		logger.DB.LogAttrs(ctx, slog.LevelError, "",
			append(attrs, slog.String("status", "fail"), slog.String("err", err.Error()))...)
		return nil, fmt.Errorf("db connect: %w", err)
	}

	pool := cfg.MaxConnections
	if pool <= 0 || cfg.Driver == coreconfig.DriverSQLite {
		pool = 1
	}
	db.SetMaxOpenConns(pool)
	db.SetMaxIdleConns(pool)
	logger.DB.LogAttrs(ctx, slog.LevelInfo, "",
		append(attrs, slog.String("status", "ok"), slog.Int("pool_open", pool))...)
	return db, nil
}

// ensureDir creates the parent directory of a sqlite database file.
func ensureDir(cfg Config) error {
	if cfg.Driver != coreconfig.DriverSQLite {
		return nil
	}
	dir := filepath.Dir(cfg.Path)
	if dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create database directory: %w", err)
	}
	return nil
}

// WaitForDB pings postgres until it answers, ctx ends or timeout passes.
// sqlite is always ready.
func WaitForDB(ctx context.Context, cfg Config, timeout time.Duration) error {
	if cfg.Driver != coreconfig.DriverPostgres {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	tick := time.NewTicker(readyInterval)
	defer tick.Stop()

	db, err := sqlx.Open("postgres", DSN(cfg))
	if err != nil {
		return err
	}
	defer db.Close()
	for {
		err = db.PingContext(ctx)
		if err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for database: %w", err)
		case <-tick.C:
		}
	}
}
