package telegram

import (
	"strings"
	"time"

	coreconfig "github.com/m3rciful/pressbot/core/config"
	"github.com/m3rciful/pressbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// MetricsHooks receives update outcomes and rate limit drops.
type MetricsHooks interface {
	middleware.UpdateRecorder
	RateLimited()
}

// MiddlewareOptions tunes DefaultMiddlewares.
type MiddlewareOptions struct {
	OnLimited tele.HandlerFunc
	// Metrics may be nil.
	Metrics MetricsHooks
}

// DefaultMiddlewares builds the shared middleware chain for bots. Updates
// of one user are serialized after rate limiting, so a dropped update never
// waits for the lock.
func DefaultMiddlewares(cfg *coreconfig.Config, opts MiddlewareOptions) []Middleware {
	mws := []Middleware{
		{Name: "recover", Use: middleware.RecoverMiddleware},
	}
	if opts.Metrics != nil {
		mws = append(mws, Middleware{Name: "update_metrics", Use: middleware.UpdateMetricsMiddleware(opts.Metrics)})
	}

	if cfg != nil {
		interval := time.Duration(cfg.RateLimit.IntervalMS) * time.Millisecond
		if interval > 0 {
			ex := make(map[string]struct{}, len(cfg.RateLimit.ExcludeUpdates))
			for _, t := range cfg.RateLimit.ExcludeUpdates {
				ex[strings.ToLower(t)] = struct{}{}
			}
			rl := middleware.RateLimitOptions{
				Interval:  interval,
				Burst:     cfg.RateLimit.Burst,
				Exclude:   ex,
				OnLimited: opts.OnLimited,
			}
			if opts.Metrics != nil {
				rl.Limited = opts.Metrics.RateLimited
			}
			mws = append(mws, Middleware{
				Name: "rate_limit",
				Use:  middleware.RateLimitMiddleware(rl),
			})
		}
	}

	mws = append(mws,
		Middleware{Name: "serialize", Use: middleware.SerializeUsers()},
		Middleware{Name: "logger", Use: middleware.LoggerMiddleware},
		Middleware{Name: "metrics", Use: middleware.MessageMetricsMiddleware},
	)

	return mws
}
