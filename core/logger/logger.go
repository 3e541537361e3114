// Package logger provides the structured slog pipeline used across pressbot:
// one line per event with a component, an event name and a status.
package logger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"runtime"
	"strings"
	"sync"

	"github.com/m3rciful/pressbot/core/buildinfo"
	coreconfig "github.com/m3rciful/pressbot/core/config"
)

var (
	initOnce sync.Once

	stateMu  sync.Mutex
	out      *asyncWriter
	closers  []io.Closer
	shutdown bool

	levelVar     slog.LevelVar
	debugSampler = newSampler(1, 50)
	traceAll     bool

	// L is the base logger. Prefer the component helpers below.
	L *slog.Logger

	// DB logs database events.
	DB *slog.Logger
	// MIG logs migrations.
	MIG *slog.Logger
	// SEED logs bootstrap seeding.
	SEED *slog.Logger
	// TG logs Telegram transport events.
	TG *slog.Logger
	// TWire logs handler registration.
	TWire *slog.Logger
)

// Until InitLogger runs every logger discards its output, so packages and
// tests can log without a configured pipeline.
func init() {
	setBase(slog.New(slog.DiscardHandler))
}

func setBase(base *slog.Logger) {
	L = base
	DB = Component("db")
	MIG = Component("db.migrate")
	SEED = Component("db.seed")
	TG = Component("tg")
	TWire = Component("tg.wire")
}

// InitLogger builds the pipeline described by cfg.Logging. Only the first
// call has an effect.
func InitLogger(cfg *coreconfig.Config) error {
	var err error
	initOnce.Do(func() {
		s := settingsFrom(cfg)
		levelVar.Set(s.level)
		debugSampler.set(s.sampleKeep, s.sampleEvery)
		traceAll = s.trace

		writers, files, openErr := openOutputs(s)
		if openErr != nil {
			err = openErr
			return
		}
		stateMu.Lock()
		out = newAsyncWriter(writers, 64*1024)
		closers = files
		stateMu.Unlock()

		base := slog.New(newHandler(handlerOptions{
			level:  &levelVar,
			out:    out,
			format: s.format,
			order:  s.order,
		}))
		slog.SetDefault(base)
		setBase(base)

		L.LogAttrs(context.Background(), slog.LevelInfo, "startup",
			slog.String("component", "app"),
			slog.String("event", "startup"),
			slog.String("go_version", runtime.Version()),
			slog.String("version", buildinfo.Version),
			slog.String("build_commit", buildinfo.Commit),
			slog.String("build_time", buildinfo.Date),
			slog.String("cfg_profile", s.profile),
		)
	})
	return err
}

// Shutdown flushes buffered output and closes log files.
func Shutdown() error {
	stateMu.Lock()
	defer stateMu.Unlock()
	if shutdown {
		return nil
	}
	shutdown = true

	var errs []error
	if out != nil {
		errs = append(errs, out.Close())
	}
	for _, c := range closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// Component returns L scoped to a component.
func Component(name string) *slog.Logger {
	name = strings.TrimSpace(name)
	if name == "" {
		return L
	}
	return L.With("component", name)
}

// LogEvent writes event through logg, or the logger stored in ctx when logg
// is nil.
func LogEvent(ctx context.Context, logg *slog.Logger, level slog.Level, event string, attrs ...slog.Attr) {
	if logg == nil {
		logg = FromContext(ctx)
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if event != "" {
		attrs = append([]slog.Attr{slog.String("event", event)}, attrs...)
	}
	logg.LogAttrs(ctx, level, "", attrs...)
}

// Event logs event for component at level.
func Event(ctx context.Context, component string, level slog.Level, event string, attrs ...slog.Attr) {
	LogEvent(ctx, Component(component), level, event, attrs...)
}

// Debug logs a debug event for component.
func Debug(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelDebug, event, attrs...)
}

// Info logs an info event for component.
func Info(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelInfo, event, attrs...)
}

// Warn logs a warning event for component.
func Warn(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelWarn, event, attrs...)
}

// Error logs an error event for component.
func Error(ctx context.Context, component, event string, attrs ...slog.Attr) {
	Event(ctx, component, slog.LevelError, event, attrs...)
}

// ShouldSampleDebug reports whether a high-volume debug event should be
// logged. TRACE=1 in the environment lets every event through.
func ShouldSampleDebug() bool {
	return traceAll || debugSampler.allow()
}
