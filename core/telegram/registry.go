package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/m3rciful/pressbot/core/logger"

	tele "gopkg.in/telebot.v4"
)

// Command is a slash command offered by the bot.
type Command struct {
	Handler     tele.HandlerFunc
	Description string
	// AdminOnly commands are rejected for everyone but the admin and stay
	// out of the command menu.
	AdminOnly bool
	Hidden    bool
	// Aliases are matched when typed as plain text, with or without slash.
	Aliases []string
}

// Registry maps command names and callback actions to handlers. It is
// filled during startup and read concurrently afterwards.
type Registry struct {
	mu        sync.RWMutex
	commands  map[string]Command
	aliases   map[string]string
	callbacks map[string]tele.HandlerFunc
	notFound  tele.HandlerFunc
}

// NewRegistry returns an empty Registry. Unknown callbacks are answered with
// a short notice until SetCallbackNotFound replaces it.
func NewRegistry() *Registry {
	return &Registry{
		commands:  make(map[string]Command),
		aliases:   make(map[string]string),
		callbacks: make(map[string]tele.HandlerFunc),
		notFound: func(c tele.Context) error {
			return c.Respond(&tele.CallbackResponse{Text: "Unsupported action"})
		},
	}
}

func slashed(name string) string {
	name = strings.TrimSpace(name)
	if name == "" || name[0] == '/' {
		return name
	}
	return "/" + name
}

// RegisterCommand adds cmd under name, which must start with a slash.
// Invalid and duplicate registrations are logged and ignored.
func (r *Registry) RegisterCommand(name string, cmd Command) {
	skip := func(reason string) {
		logger.TWire.LogAttrs(context.Background(), slog.LevelWarn, "",
			slog.String("event", "register.command"),
			slog.String("status", "skip"),
			slog.String("name", name),
			slog.String("reason", reason),
		)
	}
	switch {
	case cmd.Handler == nil || cmd.Description == "":
		skip("invalid")
		return
	case !strings.HasPrefix(name, "/"):
		skip("no_slash_prefix")
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.commands[name]; dup {
		skip("duplicate")
		return
	}
	r.commands[name] = cmd
	for _, alias := range cmd.Aliases {
		r.aliases[slashed(alias)] = name
	}
}

// LookupCommand resolves a command name or alias to its canonical name.
func (r *Registry) LookupCommand(name string) (string, Command, bool) {
	name = slashed(name)
	r.mu.RLock()
	defer r.mu.RUnlock()
	if cmd, ok := r.commands[name]; ok {
		return name, cmd, true
	}
	if canonical, ok := r.aliases[name]; ok {
		return canonical, r.commands[canonical], true
	}
	return "", Command{}, false
}

// Commands returns a copy of the registered commands.
func (r *Registry) Commands() map[string]Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return maps.Clone(r.commands)
}

// Menu lists the commands shown to every user, sorted by name.
func (r *Registry) Menu() []tele.Command {
	r.mu.RLock()
	defer r.mu.RUnlock()
	menu := make([]tele.Command, 0, len(r.commands))
	for _, name := range slices.Sorted(maps.Keys(r.commands)) {
		cmd := r.commands[name]
		if cmd.Hidden || cmd.AdminOnly {
			continue
		}
		menu = append(menu, tele.Command{Text: name, Description: cmd.Description})
	}
	return menu
}

// RegisterCallback binds handler to a callback action.
func (r *Registry) RegisterCallback(action string, handler tele.HandlerFunc) error {
	if action == "" || handler == nil {
		return fmt.Errorf("telegram: invalid callback registration %q", action)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.callbacks[action]; dup {
		return fmt.Errorf("telegram: callback already registered: %s", action)
	}
	r.callbacks[action] = handler
	return nil
}

// Callback returns the handler bound to action.
func (r *Registry) Callback(action string) (tele.HandlerFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.callbacks[action]
	return h, ok
}

// CallbackActions returns the registered actions, sorted.
func (r *Registry) CallbackActions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.callbacks))
}

// SetCallbackNotFound replaces the handler for unknown callbacks. nil is
// ignored.
func (r *Registry) SetCallbackNotFound(h tele.HandlerFunc) {
	if h == nil {
		return
	}
	r.mu.Lock()
	r.notFound = h
	r.mu.Unlock()
}

// CallbackNotFound returns the handler for unknown callbacks.
func (r *Registry) CallbackNotFound() tele.HandlerFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.notFound
}

// PublishCommands sets the command menu of bot. Failures are logged only;
// the bot works without a menu.
func (r *Registry) PublishCommands(ctx context.Context, bot *tele.Bot) {
	menu := r.Menu()
	if err := bot.SetCommands(menu); err != nil {
		logger.TWire.LogAttrs(ctx, slog.LevelError, "",
			slog.String("event", "register.menu"),
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		return
	}
	logger.TWire.LogAttrs(ctx, slog.LevelDebug, "",
		slog.String("event", "register.menu"),
		slog.String("status", "ok"),
		slog.Int("commands", len(menu)),
	)
}
