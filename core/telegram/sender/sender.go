// Package sender retries outbound Telegram calls.
package sender

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/m3rciful/pressbot/core/logger"
	"github.com/m3rciful/pressbot/core/telegram/netutil"

	tele "gopkg.in/telebot.v4"
)

const component = "tg.sender"

// Options controls retries of outbound calls.
type Options struct {
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration bounds the time spent on a single call, retries included.
	MaxDuration time.Duration
	// MaxFloodWait caps how long a rate limited call waits before retrying.
	// Longer waits fail the call.
	MaxFloodWait time.Duration
}

func (o Options) withDefaults() Options {
	o.MaxRetries = max(o.MaxRetries, 0)
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 2 * time.Second
	}
	if o.MaxDuration <= 0 {
		o.MaxDuration = 12 * time.Second
	}
	if o.MaxFloodWait <= 0 {
		o.MaxFloodWait = 10 * time.Second
	}
	return o
}

// Sender runs outbound Telegram calls in the caller's goroutine, so replies
// of one update arrive in the order they were produced.
type Sender struct {
	opts   Options
	failed atomic.Uint64
	sleep  func(ctx context.Context, d time.Duration) error
}

// New returns a Sender. Zero options take defaults.
func New(opts Options) *Sender {
	return &Sender{opts: opts.withDefaults(), sleep: netutil.Sleep}
}

// ErrorCount returns the number of calls that failed for good.
func (s *Sender) ErrorCount() uint64 {
	return s.failed.Load()
}

// Do runs fn until it succeeds, fails permanently or runs out of attempts
// or time. The last error is returned.
func (s *Sender) Do(ctx context.Context, action string, fn func() error) error {
	if fn == nil {
		return errors.New("telegram sender: nil run function")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	budget, cancel := context.WithTimeout(ctx, s.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	last := s.opts.MaxRetries + 1
	var err error
	for attempt := 1; attempt <= last; attempt++ {
		if cerr := budget.Err(); cerr != nil {
			err = cerr
			break
		}
		if err = fn(); err == nil {
			logger.Debug(ctx, component, "send.success",
				slog.String("action", action),
				slog.Int("attempt", attempt),
				slog.Duration("duration", logger.RoundMS(time.Since(start))),
			)
			return nil
		}
		wait, again := s.backoff(err, attempt)
		if !again || attempt == last {
			break
		}
		logger.Debug(ctx, component, "send.retry",
			slog.String("action", action),
			slog.Int("attempt", attempt),
			slog.Duration("delay", wait),
			slog.String("error_kind", kind(err)),
		)
		if serr := s.sleep(budget, wait); serr != nil {
			err = errors.Join(err, serr)
			break
		}
	}

	s.failed.Add(1)
	logger.Error(ctx, component, "send.fail",
		slog.String("action", action),
		slog.String("err", netutil.Redact(err)),
		slog.String("error_kind", kind(err)),
		slog.Int("attempts", last),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)
	return err
}

// backoff decides whether err is worth another attempt and how long to
// wait first. Flood limits wait exactly what Telegram asks for.
func (s *Sender) backoff(err error, attempt int) (time.Duration, bool) {
	var flood tele.FloodError
	if errors.As(err, &flood) {
		wait := time.Duration(flood.RetryAfter) * time.Second
		return wait, wait <= s.opts.MaxFloodWait
	}
	if netutil.Transient(err) {
		return netutil.Backoff(s.opts.RetryBackoff, attempt), true
	}
	return 0, false
}

func kind(err error) string {
	var flood tele.FloodError
	if errors.As(err, &flood) {
		return netutil.Kind(err, http.StatusTooManyRequests)
	}
	var api *tele.Error
	if errors.As(err, &api) {
		return netutil.Kind(err, api.Code)
	}
	return netutil.Kind(err, 0)
}
