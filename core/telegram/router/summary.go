package router

import (
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/m3rciful/pressbot/core/logger"
	tghelpers "github.com/m3rciful/pressbot/core/telegram/helpers"
	"github.com/m3rciful/pressbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

func summarized(name string, h tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error { return run(c, name, h) }
}

// run calls h under name and logs the summary line. A nil h is logged as
// skipped.
func run(c tele.Context, name string, h tele.HandlerFunc, extra ...slog.Attr) error {
	start := time.Now()
	ctx := tghelpers.WithHandler(c, name)
	if h == nil {
		logger.LogEvent(ctx, logger.TG, slog.LevelInfo, "handler.handled",
			append([]slog.Attr{slog.String("status", "skip"), slog.String("outcome", "ok")}, extra...)...)
		return nil
	}

	err := h(c)

	status := "ok"
	if err != nil {
		status = "fail"
	}
	sent, kb := middleware.Replies(c)
	attrs := []slog.Attr{
		slog.String("status", status),
		slog.String("outcome", status),
		slog.Int("messages", sent),
		slog.Bool("kb", kb),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	}
	if err != nil {
		attrs = append(attrs,
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
			slog.String("err_code", errorCode(err)),
		)
	}
	logger.LogEvent(ctx, logger.TG, slog.LevelInfo, "handler.handled", append(attrs, extra...)...)
	return err
}

// handlerName turns a command or action into a log friendly name.
func handlerName(name string) string {
	name = strings.TrimPrefix(strings.TrimSpace(name), "/")
	if name == "" {
		return "unknown"
	}
	return strings.ToLower(strings.ReplaceAll(name, " ", "_"))
}

// errorCode prefers a Code() string anywhere in the chain and falls back to
// the type name of err.
func errorCode(err error) string {
	var coded interface{ Code() string }
	if errors.As(err, &coded) {
		if code := strings.TrimSpace(coded.Code()); code != "" {
			return strings.ToUpper(strings.ReplaceAll(code, " ", "_"))
		}
	}
	t := reflect.TypeOf(err)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() == "" {
		return "UNKNOWN_ERROR"
	}
	return strings.ToUpper(t.Name())
}
