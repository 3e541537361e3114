package helpers

import (
	"context"

	"github.com/m3rciful/pressbot/core/logger"

	tele "gopkg.in/telebot.v4"
)

const contextKey = "logger_ctx"

// StoreContext keeps ctx on c for the rest of the update.
func StoreContext(c tele.Context, ctx context.Context) {
	if c != nil && ctx != nil {
		c.Set(contextKey, ctx)
	}
}

// ContextFrom returns the context stored on c by StoreContext.
func ContextFrom(c tele.Context) (context.Context, bool) {
	if c == nil {
		return nil, false
	}
	ctx, ok := c.Get(contextKey).(context.Context)
	return ctx, ok
}

// BuildContext returns the update context of c, creating it with the
// update's log metadata on first use.
func BuildContext(c tele.Context) context.Context {
	if ctx, ok := ContextFrom(c); ok {
		return ctx
	}
	ctx := logger.WithLogger(logger.WithMeta(context.Background(), UpdateMeta(c)), logger.TG)
	StoreContext(c, ctx)
	return ctx
}

// UpdateMeta returns the log metadata of the update in c. A correlation id
// set on c under "rid" wins over the derived one.
func UpdateMeta(c tele.Context) logger.Meta {
	var chatID, userID int64
	if chat := c.Chat(); chat != nil {
		chatID = chat.ID
	}
	if user := c.Sender(); user != nil {
		userID = user.ID
	}
	m := logger.NewMeta(c.Update().ID, chatID, userID)
	if rid, _ := c.Get("rid").(string); rid != "" {
		m.RID = rid
	}
	return m
}

// WithHandler records handler in the update context of c.
func WithHandler(c tele.Context, handler string) context.Context {
	ctx := logger.WithHandler(BuildContext(c), handler)
	StoreContext(c, ctx)
	return ctx
}
