package bot

import (
	"context"
	"errors"
	"log/slog"
	"path"
	"path/filepath"
	"strings"

	"github.com/m3rciful/pressbot/core/conversation"
	"github.com/m3rciful/pressbot/core/logger"
	"github.com/m3rciful/pressbot/core/placeholder"
	"github.com/m3rciful/pressbot/core/store"
)

const (
	siteStepName   = "name"
	siteStepDomain = "domain"
)

// Site starts configuring the name and domain of the user's site.
func (s *Service) Site(ctx context.Context, in Input, out Responder) error {
	if ok, err := s.requireActive(ctx, in, out); !ok {
		return err
	}
	payload := &conversation.SitePayload{Step: siteStepName}
	current, err := s.sites.ByOwner(ctx, in.UserID)
	switch {
	case err == nil:
		payload.SiteID = current.ID
	case !errors.Is(err, store.ErrNotFound):
		return s.fail(ctx, out, "site.lookup", err)
	}
	if err := s.states.Update(ctx, in.UserID, func(st *conversation.State) error {
		st.Phase = conversation.PhaseConfiguringSite
		st.ClearData()
		st.Site = payload
		return nil
	}); err != nil {
		return s.fail(ctx, out, "site.begin", err)
	}
	prompt := "What is the name of your site?"
	if payload.SiteID != 0 {
		prompt = "Your site is " + current.Name + " (" + current.URL() + "). Send a new name."
	}
	return say(ctx, out, prompt, cancelRow())
}

func (s *Service) siteStep(ctx context.Context, in Input, out Responder) error {
	st := s.states.Snapshot(in.UserID)
	if st.Site == nil {
		return s.lostTrack(ctx, in, out)
	}
	text := strings.TrimSpace(in.Text)
	switch st.Site.Step {
	case siteStepName:
		if text == "" {
			return say(ctx, out, "The name cannot be empty.")
		}
		err := s.states.Update(ctx, in.UserID, func(st *conversation.State) error {
			st.Site.Name = text
			st.Site.Step = siteStepDomain
			return nil
		})
		if err != nil {
			return s.fail(ctx, out, "site.name", err)
		}
		return say(ctx, out, "Which domain serves it? For example blog.example.com", cancelRow())
	case siteStepDomain:
		domain, err := normalizeDomain(text)
		if err != nil {
			return rejected(ctx, out, err)
		}
		site, err := s.sites.Save(ctx, in.UserID, st.Site.Name, domain)
		if err != nil {
			return s.fail(ctx, out, "site.save", err)
		}
		if err := s.toIdle(ctx, in.UserID); err != nil {
			return s.fail(ctx, out, "site.save", err)
		}
		logger.Info(ctx, "service.sites", "site.saved",
			slog.String("status", "ok"),
			slog.Int64("site_id", site.ID),
			slog.String("domain", site.Domain),
		)
		return say(ctx, out, "Site saved: "+site.Name+" at "+site.URL()+".\nNext, set the publish path with /transport and upload a template with /template.")
	default:
		return s.lostTrack(ctx, in, out)
	}
}

// normalizeDomain accepts a bare host or a URL and returns the host with
// an optional path, without scheme or trailing slash.
func normalizeDomain(raw string) (string, error) {
	d := strings.TrimSpace(raw)
	d = strings.TrimPrefix(d, "https://")
	d = strings.TrimPrefix(d, "http://")
	d = strings.TrimSuffix(d, "/")
	if d == "" || strings.ContainsAny(d, " \t\n") || !strings.Contains(d, ".") {
		return "", &placeholder.ValidationError{Field: "domain", Reason: "expected a host name such as blog.example.com"}
	}
	return strings.ToLower(d), nil
}

// Transport starts configuring where the user's pages are delivered.
func (s *Service) Transport(ctx context.Context, in Input, out Responder) error {
	if ok, err := s.requireActive(ctx, in, out); !ok {
		return err
	}
	site, ok, err := s.requireSite(ctx, in, out)
	if !ok {
		return err
	}
	if err := s.states.Update(ctx, in.UserID, func(st *conversation.State) error {
		st.Phase = conversation.PhaseConfiguringTransport
		st.ClearData()
		st.Transport = &conversation.TransportPayload{SiteID: site.ID, PublishPath: site.PublishPath}
		return nil
	}); err != nil {
		return s.fail(ctx, out, "transport.begin", err)
	}
	current := site.PublishPath
	if current == "" {
		current = "the publish root"
	}
	return say(ctx, out, "Pages of "+site.Name+" go to "+current+".\nSend a directory relative to the publish root, or - for the root itself.", cancelRow())
}

func (s *Service) transportStep(ctx context.Context, in Input, out Responder) error {
	st := s.states.Snapshot(in.UserID)
	if st.Transport == nil {
		return s.lostTrack(ctx, in, out)
	}
	dir, err := normalizePublishPath(in.Text)
	if err != nil {
		return rejected(ctx, out, err)
	}
	if err := s.sites.SetPublishPath(ctx, st.Transport.SiteID, dir); err != nil {
		return s.fail(ctx, out, "transport.save", err)
	}
	if err := s.toIdle(ctx, in.UserID); err != nil {
		return s.fail(ctx, out, "transport.save", err)
	}
	if dir == "" {
		return say(ctx, out, "Pages will be written to the publish root.")
	}
	return say(ctx, out, "Pages will be written to "+dir+".")
}

func normalizePublishPath(raw string) (string, error) {
	p := strings.TrimSpace(raw)
	if p == "-" || p == "" || p == "/" {
		return "", nil
	}
	p = path.Clean(strings.Trim(filepath.ToSlash(p), "/"))
	if !filepath.IsLocal(filepath.FromSlash(p)) {
		return "", &placeholder.ValidationError{Field: "publish path", Reason: "must stay inside the publish root"}
	}
	return p, nil
}

// lostTrack recovers from a phase whose payload is gone.
func (s *Service) lostTrack(ctx context.Context, in Input, out Responder) error {
	logger.Warn(ctx, "state", "state.payload_missing",
		slog.Int64("user_id", in.UserID),
		slog.String("phase", s.states.Phase(in.UserID).String()),
	)
	if err := s.toIdle(ctx, in.UserID); err != nil {
		return s.fail(ctx, out, "state.recover", err)
	}
	return say(ctx, out, "I lost track of what we were doing. Please start again.")
}
