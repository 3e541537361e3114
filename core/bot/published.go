package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/m3rciful/pressbot/core/conversation"
	"github.com/m3rciful/pressbot/core/logger"
	"github.com/m3rciful/pressbot/core/publish"
	"github.com/m3rciful/pressbot/core/store"
)

const recentPosts = 10

var errNoBody = errors.New("post has no stored article")

// encodePost keeps what the author entered so the post can be revised.
// Dialogue bookkeeping is left out.
func encodePost(p *conversation.PostPayload) (string, error) {
	v := *p
	v.Step, v.EditField, v.CustomIndex = "", "", 0
	v.PostID, v.PublishedPath = "", ""
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode post: %w", err)
	}
	return string(data), nil
}

func decodePost(body string) (*conversation.PostPayload, error) {
	if strings.TrimSpace(body) == "" {
		return nil, errNoBody
	}
	var p conversation.PostPayload
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		return nil, fmt.Errorf("decode post: %w", err)
	}
	return &p, nil
}

func shorten(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

// EditPost lists the latest posts so one can be revised and republished.
func (s *Service) EditPost(ctx context.Context, in Input, out Responder) error {
	if ok, err := s.requireActive(ctx, in, out); !ok {
		return err
	}
	site, ok, err := s.requireSite(ctx, in, out)
	if !ok {
		return err
	}
	if !site.HasTemplate() {
		return say(ctx, out, "Upload a template first with /template.")
	}
	list, err := s.posts.ListBySite(ctx, site.ID, recentPosts)
	if err != nil {
		return s.fail(ctx, out, "post.list", err)
	}
	if len(list) == 0 {
		return say(ctx, out, "No posts yet. Write one with /newpost.")
	}
	if err := s.states.Update(ctx, in.UserID, func(st *conversation.State) error {
		st.Phase = conversation.PhaseEditingContent
		st.ClearData()
		return nil
	}); err != nil {
		return s.fail(ctx, out, "post.revise", err)
	}
	rows := make([][]Button, 0, len(list)+1)
	for _, p := range list {
		rows = append(rows, []Button{{Text: shorten(p.Title, 40), Action: ActOpenPost, Arg: p.ID.String()}})
	}
	return say(ctx, out, "Which post do you want to edit?", append(rows, cancelRow())...)
}

// openPost loads a published post into the editor.
func (s *Service) openPost(ctx context.Context, in Input, out Responder) error {
	if s.states.Snapshot(in.UserID).Post != nil {
		return say(ctx, out, msgExpired)
	}
	id, err := uuid.Parse(in.Arg)
	if err != nil {
		return say(ctx, out, msgExpired)
	}
	site, ok, err := s.requireSite(ctx, in, out)
	if !ok {
		return err
	}
	post, err := s.posts.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) || (err == nil && post.SiteID != site.ID) {
		return say(ctx, out, "That post no longer exists.")
	}
	if err != nil {
		return s.fail(ctx, out, "post.lookup", err)
	}
	p, err := decodePost(post.Body)
	if err != nil {
		logger.Warn(ctx, "service.posts", "post.revise",
			slog.String("status", "skip"),
			slog.String("post_id", post.ID.String()),
			slog.String("err", err.Error()),
		)
		return say(ctx, out, "This post was published before revisions were kept and cannot be edited.", cancelRow())
	}
	p.SiteID = site.ID
	p.PostID = post.ID.String()
	p.PublishedPath = post.Path
	p.Category = post.Category
	if p.Category == publish.DefaultCategory {
		p.Category = ""
	}
	p.PublishedAt = post.PublishedAt.Format(time.RFC3339)
	if err := s.savePost(ctx, in.UserID, p); err != nil {
		return s.fail(ctx, out, "post.revise", err)
	}
	return s.beginEdit(ctx, in, out)
}

// Featured lists the latest posts with a toggle for the featured mark.
func (s *Service) Featured(ctx context.Context, in Input, out Responder) error {
	if ok, err := s.requireActive(ctx, in, out); !ok {
		return err
	}
	site, ok, err := s.requireSite(ctx, in, out)
	if !ok {
		return err
	}
	list, err := s.posts.ListBySite(ctx, site.ID, recentPosts)
	if err != nil {
		return s.fail(ctx, out, "post.list", err)
	}
	if len(list) == 0 {
		return say(ctx, out, "No posts yet. Write one with /newpost.")
	}
	if err := s.states.Update(ctx, in.UserID, func(st *conversation.State) error {
		st.Phase = conversation.PhaseManagingFeatured
		st.ClearData()
		st.Scratch[scratchSiteID] = site.ID
		return nil
	}); err != nil {
		return s.fail(ctx, out, "featured.begin", err)
	}
	return featuredList(ctx, out, list, "")
}

func featuredList(ctx context.Context, out Responder, list []store.Post, note string) error {
	rows := make([][]Button, 0, len(list)+1)
	for _, p := range list {
		mark := "☆ "
		if p.Featured {
			mark = "★ "
		}
		rows = append(rows, []Button{{Text: mark + shorten(p.Title, 40), Action: ActFeature, Arg: p.ID.String()}})
	}
	return say(ctx, out, note+"Tap a post to mark or unmark it as featured. ★ marks featured posts.",
		append(rows, doneRow())...)
}

func (s *Service) toggleFeatured(ctx context.Context, in Input, out Responder) error {
	if in.Action == ActDone {
		return s.finish(ctx, in, out)
	}
	siteID, ok := conversation.Int64Value(s.states.ValueOr(in.UserID, scratchSiteID, nil))
	if !ok {
		return s.lostTrack(ctx, in, out)
	}
	id, err := uuid.Parse(in.Arg)
	if in.Action != ActFeature || err != nil {
		return say(ctx, out, msgExpired)
	}
	post, err := s.posts.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) || (err == nil && post.SiteID != siteID) {
		return say(ctx, out, "That post no longer exists.")
	}
	if err != nil {
		return s.fail(ctx, out, "post.lookup", err)
	}
	if err := s.posts.SetFeatured(ctx, id, !post.Featured); err != nil {
		return s.fail(ctx, out, "post.feature", err)
	}
	logger.Info(ctx, "service.posts", "post.featured",
		slog.String("status", "ok"),
		slog.String("post_id", id.String()),
		slog.Bool("featured", !post.Featured),
	)
	list, err := s.posts.ListBySite(ctx, siteID, recentPosts)
	if err != nil {
		return s.fail(ctx, out, "post.list", err)
	}
	note := post.Title + " is featured.\n\n"
	if post.Featured {
		note = post.Title + " is no longer featured.\n\n"
	}
	return featuredList(ctx, out, list, note)
}
