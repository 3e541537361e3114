package state

import (
	"log/slog"

	"github.com/m3rciful/pressbot/core/conversation"
	"github.com/m3rciful/pressbot/core/logger"
	tghelpers "github.com/m3rciful/pressbot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// Phases is the read side of the conversation engine.
type Phases interface {
	Phase(userID int64) conversation.Phase
	Active(userID int64) bool
}

// Router hands the updates of users in a dialogue to a single handler that
// resumes the dialogue from the stored phase.
type Router struct {
	phases  Phases
	handler tele.HandlerFunc
}

// NewRouter builds a Router over phases. handler receives every update of a
// user whose phase is not idle.
func NewRouter(phases Phases, handler tele.HandlerFunc) *Router {
	return &Router{phases: phases, handler: handler}
}

// Active reports whether the user currently has a dialogue open.
func (r *Router) Active(userID int64) bool {
	return r.phases.Active(userID)
}

// Resume continues the dialogue of the sender.
func (r *Router) Resume(c tele.Context) error {
	userID := c.Sender().ID
	current := r.phases.Phase(userID)
	ctx := tghelpers.BuildContext(c)
	logger.Debug(ctx, "tg", "dialog.resume",
		slog.String("status", "ok"),
		slog.Int64("user_id", userID),
		slog.String("state", current.String()),
	)
	if r.handler == nil {
		return nil
	}
	return r.handler(c)
}
