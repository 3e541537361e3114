package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/m3rciful/pressbot/core/conversation"
	"github.com/m3rciful/pressbot/core/logger"
	"github.com/m3rciful/pressbot/core/store"
)

const helpText = `Commands:
/start - register or show your account
/site - configure your site name and domain
/transport - set where pages are published
/template - upload the HTML template of your site
/newpost - write and publish a post
/posts - list your latest posts
/editpost - revise a published post
/featured - mark featured posts
/categories - manage post categories
/status - show your account and site
/cancel - abandon the current step
/reset - forget everything in progress`

// Start registers the sender. New accounts are asked for their name and
// wait for an administrator; active accounts get the help text.
func (s *Service) Start(ctx context.Context, in Input, out Responder) error {
	u, created, err := s.users.Register(ctx, in.UserID, in.Username, in.FullName)
	if err != nil {
		return s.fail(ctx, out, "user.register", err)
	}
	logger.Info(ctx, "bot", "user.start",
		slog.String("status", "ok"),
		slog.Int64("user_id", in.UserID),
		slog.Bool("created", created),
		slog.String("account", u.Status),
	)
	switch u.Status {
	case store.StatusActive:
		return say(ctx, out, "Welcome back!\n\n"+helpText)
	case store.StatusInactive:
		return say(ctx, out, msgInactive)
	}
	if err := s.states.Update(ctx, in.UserID, func(st *conversation.State) error {
		st.Phase = conversation.PhaseRegistering
		st.ClearData()
		return nil
	}); err != nil {
		return s.fail(ctx, out, "user.register", err)
	}
	prompt := "Welcome! How should we call you?"
	if name := strings.TrimSpace(in.FullName); name != "" {
		prompt += " Send - to keep " + name + "."
	}
	return say(ctx, out, prompt)
}

func (s *Service) registerName(ctx context.Context, in Input, out Responder) error {
	name := strings.TrimSpace(in.Text)
	if name == "-" || name == "" {
		name = strings.TrimSpace(in.FullName)
	}
	if name == "" {
		u, err := s.users.Get(ctx, in.UserID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return s.fail(ctx, out, "user.register", err)
		}
		name = strings.TrimSpace(u.FullName)
	}
	if name == "" {
		return say(ctx, out, "Please send your name.")
	}
	if _, _, err := s.users.Register(ctx, in.UserID, in.Username, name); err != nil {
		return s.fail(ctx, out, "user.register", err)
	}
	if err := s.toIdle(ctx, in.UserID); err != nil {
		return s.fail(ctx, out, "user.register", err)
	}
	return say(ctx, out, fmt.Sprintf("Thanks, %s. An administrator will activate your account soon.", name))
}

// Help lists the commands.
func (s *Service) Help(ctx context.Context, _ Input, out Responder) error {
	return say(ctx, out, helpText)
}

// Cancel abandons whatever the user was doing.
func (s *Service) Cancel(ctx context.Context, in Input, out Responder) error {
	if !s.states.Active(in.UserID) {
		return say(ctx, out, "Nothing to cancel.")
	}
	if err := s.toIdle(ctx, in.UserID); err != nil {
		return s.fail(ctx, out, "state.cancel", err)
	}
	return say(ctx, out, "Cancelled.")
}

// Reset forgets the stored conversation of the user.
func (s *Service) Reset(ctx context.Context, in Input, out Responder) error {
	if err := s.states.ResetUser(ctx, in.UserID); err != nil {
		return s.fail(ctx, out, "state.reset", err)
	}
	return say(ctx, out, "Your session was reset.")
}

// Status shows the account, site and conversation of the user.
func (s *Service) Status(ctx context.Context, in Input, out Responder) error {
	u, err := s.users.Get(ctx, in.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return say(ctx, out, msgUnknownUser)
	}
	if err != nil {
		return s.fail(ctx, out, "user.lookup", err)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Account: %s\n", u.Status)
	site, err := s.sites.ByOwner(ctx, in.UserID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		b.WriteString("Site: not configured\n")
	case err != nil:
		return s.fail(ctx, out, "site.lookup", err)
	default:
		fmt.Fprintf(&b, "Site: %s (%s)\n", site.Name, site.URL())
		path := site.PublishPath
		if path == "" {
			path = "(root)"
		}
		fmt.Fprintf(&b, "Publish path: %s\n", path)
		fmt.Fprintf(&b, "Template: %t\n", site.HasTemplate())
	}
	fmt.Fprintf(&b, "Step: %s", s.states.Phase(in.UserID))
	return say(ctx, out, b.String())
}

// Posts lists the latest posts of the user's site.
func (s *Service) Posts(ctx context.Context, in Input, out Responder) error {
	if ok, err := s.requireActive(ctx, in, out); !ok {
		return err
	}
	site, ok, err := s.requireSite(ctx, in, out)
	if !ok {
		return err
	}
	list, err := s.posts.ListBySite(ctx, site.ID, 10)
	if err != nil {
		return s.fail(ctx, out, "post.list", err)
	}
	if len(list) == 0 {
		return say(ctx, out, "No posts yet. Write one with /newpost.")
	}
	var b strings.Builder
	b.WriteString("Latest posts:")
	for _, p := range list {
		mark := ""
		if p.Featured {
			mark = "★ "
		}
		fmt.Fprintf(&b, "\n%s  %s%s  %s/%s", p.PublishedAt.Format("2006-01-02"), mark, p.Title, site.URL(), p.Path)
	}
	return say(ctx, out, b.String())
}

// Activate lets the administrator enable the account given as argument.
func (s *Service) Activate(ctx context.Context, in Input, out Responder) error {
	return s.setAccount(ctx, in, out, store.StatusActive)
}

// Deactivate disables the account given as argument and drops its
// conversation.
func (s *Service) Deactivate(ctx context.Context, in Input, out Responder) error {
	return s.setAccount(ctx, in, out, store.StatusInactive)
}

func (s *Service) setAccount(ctx context.Context, in Input, out Responder, status string) error {
	if s.adminID == 0 || in.UserID != s.adminID {
		return say(ctx, out, msgAdminOnly)
	}
	target, err := strconv.ParseInt(commandArg(in.Text), 10, 64)
	if err != nil || target <= 0 {
		return say(ctx, out, "Usage: /activate <telegram id> or /deactivate <telegram id>")
	}
	err = s.users.SetStatus(ctx, target, status)
	if errors.Is(err, store.ErrNotFound) {
		return say(ctx, out, fmt.Sprintf("User %d has not registered.", target))
	}
	if err != nil {
		return s.fail(ctx, out, "user.status", err)
	}
	if status == store.StatusInactive {
		if err := s.states.ResetUser(ctx, target); err != nil {
			return s.fail(ctx, out, "user.status", err)
		}
	}
	logger.Info(ctx, "bot", "user.status",
		slog.String("status", "ok"),
		slog.Int64("target", target),
		slog.String("account", status),
	)
	return say(ctx, out, fmt.Sprintf("User %d is now %s.", target, status))
}

// commandArg returns the text after a leading /command.
func commandArg(text string) string {
	fields := strings.Fields(text)
	if len(fields) > 0 && strings.HasPrefix(fields[0], "/") {
		fields = fields[1:]
	}
	return strings.Join(fields, " ")
}
