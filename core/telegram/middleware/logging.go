package middleware

import (
	"log/slog"
	"sync"
	"time"

	"github.com/m3rciful/pressbot/core/logger"
	tghelpers "github.com/m3rciful/pressbot/core/telegram/helpers"
	"github.com/m3rciful/pressbot/core/telegram/keyboard"

	tele "gopkg.in/telebot.v4"
)

// receipts remembers recently logged update IDs, since the logger wraps
// both the global chain and individual routes.
type receipts struct {
	mu   sync.Mutex
	seen map[int]time.Time
	ttl  time.Duration
}

var logged = &receipts{seen: make(map[int]time.Time), ttl: 10 * time.Second}

// first reports whether id is seen for the first time within the TTL.
func (r *receipts) first(id int, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, at := range r.seen {
		if now.Sub(at) > r.ttl {
			delete(r.seen, k)
		}
	}
	if _, ok := r.seen[id]; ok {
		return false
	}
	r.seen[id] = now
	return true
}

// LoggerMiddleware creates the update context with its correlation id and
// logs a sampled receipt line per update.
func LoggerMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		meta := tghelpers.UpdateMeta(c)
		c.Set("rid", meta.RID)
		c.Set("update_start", time.Now())
		ctx := tghelpers.BuildContext(c)

		if logger.ShouldSampleDebug() && logged.first(meta.UpdateID, time.Now()) {
			logger.TG.LogAttrs(ctx, slog.LevelDebug, "", receiptAttrs(c)...)
		}
		return next(c)
	}
}

func receiptAttrs(c tele.Context) []slog.Attr {
	attrs := []slog.Attr{
		slog.String("event", "update.received"),
		slog.String("status", "ok"),
	}
	if chat := c.Chat(); chat != nil {
		attrs = append(attrs, slog.String("chat_type", string(chat.Type)))
	}
	if user := c.Sender(); user != nil {
		attrs = append(attrs,
			slog.String("username", logger.SanitizeLimit(user.Username, 64)),
			slog.String("lang", user.LanguageCode),
		)
	}
	upd := c.Update()
	switch {
	case upd.Callback != nil:
		key, payload := keyboard.Decode(upd.Callback)
		attrs = append(attrs,
			slog.String("cb_key", logger.SanitizeLimit(key, 128)),
			slog.String("payload", logger.SanitizeLimit(payload, 256)),
		)
	case upd.Message != nil:
		if doc := upd.Message.Document; doc != nil {
			attrs = append(attrs,
				slog.String("document", logger.SanitizeLimit(doc.FileName, 128)),
				slog.Int64("size", doc.FileSize),
			)
		}
		attrs = append(attrs, slog.String("payload", logger.SanitizeLimit(c.Text(), 256)))
	}
	return attrs
}
