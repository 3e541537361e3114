// Package router turns a Registry and the conversation engine into telebot
// routes. Every route recovers panics and logs one handler.handled line.
package router

import (
	"context"
	"log/slog"

	"github.com/m3rciful/pressbot/core/logger"
	tg "github.com/m3rciful/pressbot/core/telegram"
	tghelpers "github.com/m3rciful/pressbot/core/telegram/helpers"
	"github.com/m3rciful/pressbot/core/telegram/keyboard"
	"github.com/m3rciful/pressbot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// Dialog is the view of the conversation engine the routes need.
type Dialog interface {
	// Active reports whether the user is in the middle of a dialogue.
	Active(userID int64) bool
	// Resume continues the dialogue of the sender.
	Resume(c tele.Context) error
}

// Fallbacks answer updates that match nothing. Any of them may be nil, the
// update is then logged and dropped.
type Fallbacks struct {
	Text     tele.HandlerFunc
	Document tele.HandlerFunc
	Callback tele.HandlerFunc
}

func wrap(h tele.HandlerFunc) tele.HandlerFunc {
	return middleware.RecoverMiddleware(middleware.LoggerMiddleware(h))
}

func inDialog(d Dialog, c tele.Context) bool {
	return d != nil && c.Sender() != nil && d.Active(c.Sender().ID)
}

// CommandRoutes returns a route per registered command. Admin-only commands
// reject everyone but adminID through onReject.
func CommandRoutes(reg *tg.Registry, adminID int64, onReject tele.HandlerFunc) []tg.Route {
	if reg == nil {
		return nil
	}
	adminOnly := middleware.AdminOnlyMiddleware(middleware.AdminOptions{
		AdminID:  adminID,
		OnReject: onReject,
	})
	cmds := reg.Commands()
	routes := make([]tg.Route, 0, len(cmds))
	for name, cmd := range cmds {
		h := cmd.Handler
		if cmd.AdminOnly {
			h = adminOnly(h)
		}
		routes = append(routes, tg.Route{Endpoint: name, Handler: wrap(summarized(handlerName(name), h))})
	}
	logger.TWire.LogAttrs(context.Background(), slog.LevelInfo, "",
		slog.String("event", "wire.complete"),
		slog.Int("commands", len(cmds)),
		slog.Int("callbacks", len(reg.CallbackActions())),
	)
	return routes
}

// TextRoutes routes text and documents. A dialogue in progress gets both;
// otherwise text may still name a command alias.
func TextRoutes(d Dialog, reg *tg.Registry, fb Fallbacks) []tg.Route {
	text := func(c tele.Context) error {
		if inDialog(d, c) {
			return run(c, "dialog", d.Resume)
		}
		if reg != nil {
			if name, cmd, ok := reg.LookupCommand(c.Text()); ok {
				return run(c, handlerName(name), cmd.Handler)
			}
		}
		return run(c, "unknown_text", fb.Text)
	}
	document := func(c tele.Context) error {
		if inDialog(d, c) {
			return run(c, "dialog_document", d.Resume)
		}
		return run(c, "unexpected_document", fb.Document)
	}
	return []tg.Route{
		{Endpoint: tele.OnText, Handler: wrap(text)},
		{Endpoint: tele.OnDocument, Handler: wrap(document)},
	}
}

// CallbackRoute dispatches button presses by action. The spinner is cleared
// before the handler runs. Unknown actions go to the registry fallback,
// then to fb.Callback.
func CallbackRoute(reg *tg.Registry, fb Fallbacks) tg.Route {
	h := func(c tele.Context) error {
		if c.Callback() == nil {
			return nil
		}
		action := keyboard.Action(c)
		_ = tghelpers.Respond(c, "")
		name := "callback." + handlerName(action)
		key := slog.String("cb_key", action)
		if reg != nil {
			if handler, ok := reg.Callback(action); ok {
				return run(c, name, handler, key)
			}
			if nf := reg.CallbackNotFound(); nf != nil {
				return run(c, name, nf, key, slog.String("reason", "not_found"))
			}
		}
		return run(c, name, fb.Callback, key, slog.String("reason", "not_found"))
	}
	return tg.Route{Endpoint: tele.OnCallback, Handler: wrap(h)}
}
