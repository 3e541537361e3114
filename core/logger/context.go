package logger

import (
	"context"
	"fmt"
	"log/slog"
)

type ctxKey int

const (
	metaKey ctxKey = iota
	loggerKey
)

// Meta identifies the Telegram update a log line belongs to.
type Meta struct {
	RID      string
	UpdateID int
	UserID   int64
	ChatID   int64
	Handler  string
	Phase    string
}

// NewMeta returns the metadata of an update with its correlation id set to
// updateID:chatID:userID.
func NewMeta(updateID int, chatID, userID int64) Meta {
	return Meta{
		RID:      fmt.Sprintf("%d:%d:%d", updateID, chatID, userID),
		UpdateID: updateID,
		UserID:   userID,
		ChatID:   chatID,
	}
}

// WithMeta stores m in ctx. Log lines written with ctx carry its fields.
func WithMeta(ctx context.Context, m Meta) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, metaKey, m)
}

// MetaFrom returns the metadata stored in ctx, or the zero Meta.
func MetaFrom(ctx context.Context) Meta {
	if ctx == nil {
		return Meta{}
	}
	m, _ := ctx.Value(metaKey).(Meta)
	return m
}

// WithHandler records the handler serving the update.
func WithHandler(ctx context.Context, handler string) context.Context {
	if handler == "" {
		return ctx
	}
	m := MetaFrom(ctx)
	m.Handler = handler
	return WithMeta(ctx, m)
}

// WithPhase records the conversation phase the update was dispatched in.
func WithPhase(ctx context.Context, phase string) context.Context {
	if phase == "" {
		return ctx
	}
	m := MetaFrom(ctx)
	m.Phase = phase
	return WithMeta(ctx, m)
}

// WithLogger stores log in ctx for LogEvent calls without an explicit logger.
func WithLogger(ctx context.Context, log *slog.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if log == nil {
		return ctx
	}
	return context.WithValue(ctx, loggerKey, log)
}

// FromContext returns the logger stored in ctx or L.
func FromContext(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey).(*slog.Logger); ok {
			return l
		}
	}
	return L
}

// fields appends the non-zero metadata of m that the record did not set.
func (m Meta) fields(r *record) {
	r.setDefault("rid", m.RID)
	if m.UpdateID != 0 {
		r.setDefault("update_id", int64(m.UpdateID))
	}
	if m.UserID != 0 {
		r.setDefault("user_id", m.UserID)
	}
	if m.ChatID != 0 {
		r.setDefault("chat_id", m.ChatID)
	}
	r.setDefault("handler", m.Handler)
	r.setDefault("phase", m.Phase)
}
