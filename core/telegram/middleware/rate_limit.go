package middleware

import (
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/m3rciful/pressbot/core/logger"

	tele "gopkg.in/telebot.v4"
)

// Update kinds used by rate limit exclusions.
const (
	KindMessage     = "message"
	KindCallback    = "callback"
	KindInlineQuery = "inline_query"
	KindOther       = "other"
)

// RateLimitOptions configures behaviour of the rate limit middleware.
type RateLimitOptions struct {
	// Interval is the sustained minimum gap between updates of one user.
	Interval time.Duration
	// Burst is how many updates may arrive back to back; at least 1.
	Burst     int
	Exclude   map[string]struct{}
	OnLimited tele.HandlerFunc
	// Limited is called for every dropped update, e.g. to count it.
	Limited func()
	// Now defaults to time.Now.
	Now func() time.Time
}

type userLimiter struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// UpdateKind classifies an update for rate limiting and metrics.
func UpdateKind(upd tele.Update) string {
	switch {
	case upd.Callback != nil:
		return KindCallback
	case upd.Message != nil:
		return KindMessage
	case upd.Query != nil:
		return KindInlineQuery
	}
	return KindOther
}

// RateLimitMiddleware returns a middleware that drops updates of a user
// arriving faster than the configured token bucket allows.
func RateLimitMiddleware(opts RateLimitOptions) tele.MiddlewareFunc {
	if opts.Burst < 1 {
		opts.Burst = 1
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	var (
		limiters   = make(map[int64]*userLimiter)
		limitersMu sync.Mutex
		// idle limiters are refilled completely and can be forgotten
		idleAfter = opts.Interval * time.Duration(opts.Burst) * 4
	)
	allow := func(userID int64, now time.Time) bool {
		limitersMu.Lock()
		defer limitersMu.Unlock()
		if len(limiters) > 1024 {
			for id, ul := range limiters {
				if now.Sub(ul.lastSeen) > idleAfter {
					delete(limiters, id)
				}
			}
		}
		ul, ok := limiters[userID]
		if !ok {
			ul = &userLimiter{lim: rate.NewLimiter(rate.Every(opts.Interval), opts.Burst)}
			limiters[userID] = ul
		}
		ul.lastSeen = now
		return ul.lim.AllowN(now, 1)
	}

	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil || opts.Interval <= 0 {
				return next(c)
			}
			if _, skip := opts.Exclude[UpdateKind(c.Update())]; skip {
				return next(c)
			}
			if allow(user.ID, opts.Now()) {
				return next(c)
			}

			attrs := []any{
				slog.String("event", "tg.rate_limit"),
				slog.Int64("user_id", user.ID),
			}
			if chat := c.Chat(); chat != nil {
				attrs = append(attrs, slog.Int64("chat_id", chat.ID))
			}
			logger.TG.Warn("rate limit", attrs...)
			if opts.Limited != nil {
				opts.Limited()
			}
			if opts.OnLimited != nil {
				_ = opts.OnLimited(c)
			}
			return nil
		}
	}
}
