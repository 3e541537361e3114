// Package app wires storage, the conversation engine, the bot service and
// the metrics exporter into a runnable Telegram application.
package app

import (
	"context"
	"fmt"

	"github.com/m3rciful/pressbot/core/bootstrap"
	"github.com/m3rciful/pressbot/core/bot"
	coreconfig "github.com/m3rciful/pressbot/core/config"
	"github.com/m3rciful/pressbot/core/conversation"
	"github.com/m3rciful/pressbot/core/metrics"
	"github.com/m3rciful/pressbot/core/publish"
	coretelegram "github.com/m3rciful/pressbot/core/telegram"
	"github.com/m3rciful/pressbot/core/telegram/state"
)

// App is a bootstrapped pressbot.
type App struct {
	cfg      *coreconfig.Config
	infra    *bootstrap.Result
	metrics  *metrics.Exporter
	states   *conversation.Manager
	service  *bot.Service
	telegram *bot.Telegram
}

// Options overrides parts of the bootstrap, mostly for tests.
type Options struct {
	Bootstrap bootstrap.Options
}

// New bootstraps the infrastructure described by cfg and restores the
// stored conversations.
func New(ctx context.Context, cfg *coreconfig.Config, opts Options) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app: nil config")
	}
	bo := opts.Bootstrap
	bo.Config = cfg
	bo.Modules.Seeders = append(bo.Modules.Seeders, bootstrap.AdminSeeder(cfg.Telegram.AdminID))
	infra, err := bootstrap.Run(ctx, bo)
	if err != nil {
		return nil, err
	}

	exp := metrics.New()
	repos := infra.Repos
	states := conversation.NewManager(repos.States, conversation.WithObserver(exp))
	if _, err := states.Reload(ctx, repos.Users); err != nil {
		_ = infra.Close()
		return nil, fmt.Errorf("app: restore conversations: %w", err)
	}

	svc, err := bot.New(bot.Deps{
		States:       states,
		Users:        repos.Users,
		Sites:        repos.Sites,
		Placeholders: repos.Placeholders,
		Posts:        repos.Posts,
		Categories:   repos.Categories,
		Sink:         publish.DirSink{Root: cfg.Publish.Root},
		Composer:     publish.Composer{WordsPerMinute: cfg.Publish.WordsPerMinute},
		Events:       exp,
		AdminID:      cfg.Telegram.AdminID,
	})
	if err != nil {
		_ = infra.Close()
		return nil, fmt.Errorf("app: %w", err)
	}

	return &App{
		cfg:      cfg,
		infra:    infra,
		metrics:  exp,
		states:   states,
		service:  svc,
		telegram: bot.NewTelegram(svc),
	}, nil
}

// Service returns the chat dialogues.
func (a *App) Service() *bot.Service { return a.service }

// Metrics returns the exporter fed by the app.
func (a *App) Metrics() *metrics.Exporter { return a.metrics }

// TelegramRunOptions registers the bot's commands and buttons and returns
// the runtime options. The database is closed when the bot stops.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	reg := coretelegram.NewRegistry()
	if err := a.telegram.Register(reg); err != nil {
		return coretelegram.RunOptions{}, fmt.Errorf("app: register handlers: %w", err)
	}
	mws := coretelegram.DefaultMiddlewares(a.cfg, coretelegram.MiddlewareOptions{
		OnLimited: a.telegram.OnLimited,
		Metrics:   a.metrics,
	})
	mws = append(mws, coretelegram.Middleware{Name: "phase", Use: state.WithPhase(a.states)})

	return coretelegram.RunOptions{
		Config:      a.cfg,
		Registry:    reg,
		Middlewares: mws,
		Routes:      a.telegram.Routes(reg, a.cfg.Telegram.AdminID),
		OnStop: func(context.Context, coretelegram.Runtime) error {
			return a.Close()
		},
	}, nil
}

// Background serves the metrics endpoint when one is configured.
func (a *App) Background(ctx context.Context) error {
	if a.cfg.Metrics.Listen == "" {
		return nil
	}
	return a.metrics.Serve(ctx, a.cfg.Metrics.Listen, a.cfg.Metrics.Path)
}

// Close releases the database.
func (a *App) Close() error {
	return a.infra.Close()
}
