package state

import (
	"github.com/m3rciful/pressbot/core/logger"
	tghelpers "github.com/m3rciful/pressbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// WithPhase adds the sender's conversation phase to the update context so
// every log line of the update carries it.
func WithPhase(phases Phases) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if user := c.Sender(); user != nil {
				ctx := tghelpers.BuildContext(c)
				tghelpers.StoreContext(c, logger.WithPhase(ctx, phases.Phase(user.ID).String()))
			}
			return next(c)
		}
	}
}
