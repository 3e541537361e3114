package database

import (
	"fmt"
	"net/url"

	coreconfig "github.com/m3rciful/pressbot/core/config"
)

// Config holds database connection settings.
type Config = coreconfig.DatabaseConfig

// driverName maps the configured driver to the database/sql driver name.
func driverName(cfg Config) string {
	if cfg.Driver == coreconfig.DriverPostgres {
		return "postgres"
	}
	return "sqlite3"
}

// DSN returns the database/sql data source name for cfg.
func DSN(cfg Config) string {
	if cfg.Driver == coreconfig.DriverPostgres {
		return fmt.Sprintf(
			"user=%s password=%s host=%s port=%s dbname=%s sslmode=%s",
			cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name, cfg.SSLMode,
		)
	}
	return cfg.Path + "?_foreign_keys=on&_busy_timeout=5000"
}

// MigrateURL returns the golang-migrate database URL for cfg.
func MigrateURL(cfg Config) string {
	if cfg.Driver == coreconfig.DriverPostgres {
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(cfg.User, cfg.Password),
			Host:     cfg.Host + ":" + cfg.Port,
			Path:     "/" + cfg.Name,
			RawQuery: "sslmode=" + url.QueryEscape(cfg.SSLMode),
		}
		return u.String()
	}
	return "sqlite3://" + cfg.Path + "?_foreign_keys=on"
}

// target is the connection target used in log lines; it never includes
// credentials.
func target(cfg Config) string {
	if cfg.Driver == coreconfig.DriverPostgres {
		return cfg.Host + ":" + cfg.Port + "/" + cfg.Name
	}
	return cfg.Path
}
