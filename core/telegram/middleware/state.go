package middleware

import (
	"log/slog"

	"github.com/m3rciful/pressbot/core/conversation"
	"github.com/m3rciful/pressbot/core/logger"
	tghelpers "github.com/m3rciful/pressbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// PhaseGetter reports the conversation phase of a user.
type PhaseGetter interface {
	Phase(userID int64) conversation.Phase
}

// InPhase returns a middleware that lets an update through only while its
// sender is in one of phases. Other updates go to onSkip, which may be nil.
func InPhase(mgr PhaseGetter, onSkip tele.HandlerFunc, phases ...conversation.Phase) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			user := c.Sender()
			if user == nil {
				return nil
			}
			current := mgr.Phase(user.ID)
			ctx := tghelpers.BuildContext(c)
			for _, p := range phases {
				if current == p {
					logger.TG.LogAttrs(ctx, slog.LevelDebug, "",
						slog.String("event", "phase.match"),
						slog.String("phase", current.String()),
					)
					return next(c)
				}
			}
			logger.TG.LogAttrs(ctx, slog.LevelDebug, "",
				slog.String("event", "phase.skip"),
				slog.String("phase", current.String()),
				slog.Int("expected", len(phases)),
			)
			if onSkip != nil {
				return onSkip(c)
			}
			return nil
		}
	}
}
