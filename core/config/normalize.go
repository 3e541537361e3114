package config

import (
	"cmp"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
)

const (
	defaultPublishRoot    = "public"
	defaultWordsPerMinute = 200
	defaultMetricsPath    = "/metrics"
	defaultSQLitePath     = "pressbot.db"
	defaultPostgresPort   = "5432"
	defaultPostgresPool   = 10
)

// Normalize fills defaults and validates cfg. Every problem is reported in
// the returned error. The bot token is checked by NormalizeBot only, so
// offline commands run without it.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return errors.New("config: nil config")
	}
	err := errors.Join(
		cfg.Telegram.normalize(),
		cfg.RateLimit.normalize(),
		cfg.Database.normalize(),
	)
	cfg.Publish.normalize()
	cfg.Metrics.normalize()
	return err
}

// NormalizeBot runs Normalize and checks what the Telegram runtime needs.
func NormalizeBot(cfg *Config) error {
	if err := Normalize(cfg); err != nil {
		return err
	}
	var errs []error
	if cfg.Telegram.Token == "" {
		errs = append(errs, errors.New("telegram.token is required"))
	}
	if cfg.Telegram.RunMode == RunModeWebhook {
		if strings.TrimSpace(cfg.Webhook.URL) == "" {
			errs = append(errs, errors.New("webhook.url is required in webhook mode"))
		}
		if strings.TrimSpace(cfg.Webhook.Listen) == "" {
			errs = append(errs, errors.New("webhook.listen is required in webhook mode"))
		}
		if cfg.Webhook.Port <= 0 {
			errs = append(errs, errors.New("webhook.port must be > 0 in webhook mode"))
		}
	}
	return errors.Join(errs...)
}

func (t *TelegramConfig) normalize() error {
	mode := strings.ToLower(strings.TrimSpace(t.RunMode))
	switch mode {
	case "", "polling", RunModeLongpoll:
		t.RunMode = RunModeLongpoll
	case RunModeWebhook:
		t.RunMode = RunModeWebhook
	default:
		return fmt.Errorf("invalid telegram.run_mode %q; allowed: webhook, longpoll", t.RunMode)
	}
	if t.LongPollTimeoutSeconds < 0 {
		return errors.New("telegram.longpoll_timeout_seconds must be >= 0")
	}
	return nil
}

func (r *RateLimitConfig) normalize() error {
	var errs []error
	if r.IntervalMS < 0 {
		errs = append(errs, errors.New("rate_limit.interval_ms must be >= 0"))
	}
	r.Burst = max(r.Burst, 1)
	known := []string{UpdateCallback, UpdateMessage, UpdateInlineQuery}
	for i, v := range r.ExcludeUpdates {
		kind := strings.ToLower(strings.TrimSpace(v))
		if kind != "" && !slices.Contains(known, kind) {
			errs = append(errs, fmt.Errorf("invalid rate_limit.exclude_updates value %q; allowed: %s",
				v, strings.Join(known, ", ")))
			continue
		}
		r.ExcludeUpdates[i] = kind
	}
	return errors.Join(errs...)
}

func (d *DatabaseConfig) normalize() error {
	switch strings.ToLower(strings.TrimSpace(d.Driver)) {
	case "", DriverSQLite, "sqlite3":
		d.Driver = DriverSQLite
		if strings.TrimSpace(d.Path) == "" {
			d.Path = defaultSQLitePath
		}
		// sqlite serialises writers
		d.MaxConnections = 1
		return nil
	case DriverPostgres, "postgresql", "pg":
		d.Driver = DriverPostgres
	default:
		return fmt.Errorf("invalid database.driver %q; allowed: postgres, sqlite", d.Driver)
	}

	var errs []error
	if strings.TrimSpace(d.Host) == "" {
		errs = append(errs, errors.New("database.host is required for postgres"))
	}
	if strings.TrimSpace(d.Name) == "" {
		errs = append(errs, errors.New("database.name is required for postgres"))
	}
	d.Port = cmp.Or(d.Port, defaultPostgresPort)
	d.SSLMode = cmp.Or(d.SSLMode, "disable")
	if d.MaxConnections <= 0 {
		d.MaxConnections = defaultPostgresPool
	}
	return errors.Join(errs...)
}

func (p *PublishConfig) normalize() {
	p.Root = filepath.Clean(cmp.Or(strings.TrimSpace(p.Root), defaultPublishRoot))
	if p.WordsPerMinute <= 0 {
		p.WordsPerMinute = defaultWordsPerMinute
	}
}

func (m *MetricsConfig) normalize() {
	m.Path = cmp.Or(strings.TrimSpace(m.Path), defaultMetricsPath)
	if !strings.HasPrefix(m.Path, "/") {
		m.Path = "/" + m.Path
	}
}
