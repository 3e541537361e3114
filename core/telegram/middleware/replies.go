package middleware

import (
	"log/slog"
	"time"

	"github.com/m3rciful/pressbot/core/logger"
	tghelpers "github.com/m3rciful/pressbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

const repliesKey = "replies"

// replies tallies what a handler sent back for one update.
type replies struct {
	count    int
	keyboard bool
}

// counting wraps the outgoing methods of tele.Context. Only successful
// calls are tallied.
type counting struct {
	tele.Context
	r *replies
}

func (c counting) track(err error, opts []any) error {
	if err != nil {
		return err
	}
	c.r.count++
	for _, o := range opts {
		switch v := o.(type) {
		case *tele.SendOptions:
			c.r.keyboard = c.r.keyboard || (v != nil && v.ReplyMarkup != nil)
		case *tele.ReplyMarkup:
			c.r.keyboard = c.r.keyboard || v != nil
		}
	}
	return nil
}

func (c counting) Send(what any, opts ...any) error {
	return c.track(c.Context.Send(what, opts...), opts)
}

func (c counting) Reply(what any, opts ...any) error {
	return c.track(c.Context.Reply(what, opts...), opts)
}

func (c counting) Edit(what any, opts ...any) error {
	return c.track(c.Context.Edit(what, opts...), opts)
}

func (c counting) EditOrSend(what any, opts ...any) error {
	return c.track(c.Context.EditOrSend(what, opts...), opts)
}

func (c counting) EditOrReply(what any, opts ...any) error {
	return c.track(c.Context.EditOrReply(what, opts...), opts)
}

// MessageMetricsMiddleware counts the replies of every update, see Replies.
func MessageMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		r := &replies{}
		c.Set(repliesKey, r)
		return next(counting{Context: c, r: r})
	}
}

// Replies returns how many messages were sent for the update and whether any
// of them carried a keyboard.
func Replies(c tele.Context) (int, bool) {
	if r, ok := c.Get(repliesKey).(*replies); ok {
		return r.count, r.keyboard
	}
	return 0, false
}

// UpdateRecorder receives the outcome of every handled update.
type UpdateRecorder interface {
	Update(kind string, took time.Duration, err error)
}

// UpdateMetricsMiddleware reports the kind, latency and result of updates.
func UpdateMetricsMiddleware(rec UpdateRecorder) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			start := time.Now()
			err := next(c)
			took := time.Since(start)
			rec.Update(UpdateKind(c.Update()), took, err)
			if err != nil {
				n, _ := Replies(c)
				logger.Debug(tghelpers.BuildContext(c), "tg", "update.failed",
					slog.Duration("duration", logger.RoundMS(took)),
					slog.Int("messages", n),
				)
			}
			return err
		}
	}
}
