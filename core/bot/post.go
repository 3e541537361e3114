package bot

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/m3rciful/pressbot/core/conversation"
	"github.com/m3rciful/pressbot/core/logger"
	"github.com/m3rciful/pressbot/core/placeholder"
	"github.com/m3rciful/pressbot/core/publish"
	"github.com/m3rciful/pressbot/core/store"
)

// Post fields in the order they are asked for.
const (
	fieldTitle       = "title"
	fieldDescription = "description"
	fieldImage       = "image"
	fieldImageAlt    = "image_alt"
	fieldCategory    = "category"
	fieldContent     = "content"
	fieldSources     = "sources"
	fieldDate        = "date"

	stepCustom   = "custom"
	customPrefix = "custom:"
)

var postFields = []string{
	fieldTitle, fieldDescription, fieldImage, fieldImageAlt,
	fieldCategory, fieldContent, fieldSources, fieldDate,
}

var fieldPrompts = map[string]string{
	fieldTitle:       "Title of the post?",
	fieldDescription: "Short description for previews and search engines?",
	fieldImage:       "URL of the feature image?",
	fieldImageAlt:    "Alt text of the feature image? Send - to skip.",
	fieldCategory:    "Category? Send - for " + publish.DefaultCategory + ".",
	fieldContent:     "Send the content as HTML or Markdown.",
	fieldSources:     "Sources, one per line? Send - to skip.",
	fieldDate:        "Publication date, like 2025-01-31 or 31.01.2025 14:00? Send - for now.",
}

var fieldNames = map[string]string{
	fieldTitle:       "Title",
	fieldDescription: "Description",
	fieldImage:       "Image",
	fieldImageAlt:    "Image alt",
	fieldCategory:    "Category",
	fieldContent:     "Content",
	fieldSources:     "Sources",
	fieldDate:        "Date",
}

// NewPost starts writing a post for the user's site.
func (s *Service) NewPost(ctx context.Context, in Input, out Responder) error {
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
	if err := s.states.Update(ctx, in.UserID, func(st *conversation.State) error {
		st.Phase = conversation.PhaseCreatingContent
		st.ClearData()
		st.Post = &conversation.PostPayload{SiteID: site.ID, Step: fieldTitle}
		return nil
	}); err != nil {
		return s.fail(ctx, out, "post.begin", err)
	}
	return say(ctx, out, "New post for "+site.Name+".\n"+fieldPrompts[fieldTitle], cancelRow())
}

func (s *Service) catalog(ctx context.Context, siteID int64) (placeholder.Catalog, error) {
	return placeholder.ForSite(ctx, s.placeholders, siteID)
}

// postStep records the answer to the current creation step.
func (s *Service) postStep(ctx context.Context, in Input, out Responder, value string) error {
	st := s.states.Snapshot(in.UserID)
	p := st.Post
	if p == nil {
		return s.lostTrack(ctx, in, out)
	}
	if p.Step == stepCustom {
		return s.customValue(ctx, in, out, p, value)
	}
	if err := s.applyField(p, p.Step, value); err != nil {
		return rejected(ctx, out, err)
	}
	p.Step = nextField(p.Step)
	if err := s.savePost(ctx, in.UserID, p); err != nil {
		return s.fail(ctx, out, "post.step", err)
	}
	if p.Step != stepCustom {
		return s.promptField(ctx, out, p.SiteID, p.Step)
	}
	return s.nextCustom(ctx, in, out, p)
}

// promptField asks for field, offering the site's categories and the file
// upload where they apply.
func (s *Service) promptField(ctx context.Context, out Responder, siteID int64, field string) error {
	var rows [][]Button
	switch field {
	case fieldCategory:
		cats, err := s.categories.List(ctx, siteID)
		if err != nil {
			return s.fail(ctx, out, "post.categories", err)
		}
		for i := 0; i < len(cats); i += 2 {
			row := make([]Button, 0, 2)
			for _, c := range cats[i:min(i+2, len(cats))] {
				row = append(row, Button{Text: c.Name, Action: ActChoice, Arg: c.Name})
			}
			rows = append(rows, row)
		}
	case fieldImage:
		if _, ok := s.sink.(publish.AssetSink); ok {
			rows = append(rows, []Button{{Text: "Upload a file", Action: ActUpload}})
		}
	}
	return say(ctx, out, fieldPrompts[field], append(rows, cancelRow())...)
}

func nextField(field string) string {
	for i, f := range postFields {
		if f == field && i+1 < len(postFields) {
			return postFields[i+1]
		}
	}
	return stepCustom
}

func (s *Service) savePost(ctx context.Context, userID int64, p *conversation.PostPayload) error {
	return s.states.Update(ctx, userID, func(st *conversation.State) error {
		st.Post = p
		return nil
	})
}

// applyField validates value and stores it in p.
func (s *Service) applyField(p *conversation.PostPayload, field, value string) error {
	v := strings.TrimSpace(value)
	skip := v == "-"
	switch field {
	case fieldTitle:
		if publish.Slugify(v) == "" {
			return &placeholder.ValidationError{Field: "title", Reason: "it needs at least one letter or digit"}
		}
		p.Title = v
	case fieldDescription:
		if v == "" {
			return &placeholder.ValidationError{Field: "description", Reason: "it cannot be empty"}
		}
		p.Description = v
	case fieldImage:
		if v == "" || !placeholder.ValidateOptions(placeholder.KindURL, v, nil) {
			return &placeholder.ValidationError{Field: "image", Reason: "expected an http or https URL"}
		}
		p.FeatureImage = v
	case fieldImageAlt:
		if skip {
			v = ""
		}
		p.FeatureImageAlt = v
	case fieldCategory:
		if skip {
			v = ""
		}
		p.Category = v
	case fieldContent:
		if v == "" {
			return &placeholder.ValidationError{Field: "content", Reason: "it cannot be empty"}
		}
		if strings.HasPrefix(v, "<") {
			if err := publish.ValidateHTML(v); err != nil {
				return &placeholder.ValidationError{Field: "content", Reason: err.Error()}
			}
		}
		p.Content = v
	case fieldSources:
		if skip {
			v = ""
		}
		p.Sources = v
	case fieldDate:
		t := s.now()
		if !skip {
			parsed, err := publish.ParseDate(v, t.Location())
			if err != nil {
				return &placeholder.ValidationError{Field: "date", Reason: "use 2025-01-31, 2025-01-31 14:00 or 31.01.2025"}
			}
			t = parsed
		}
		p.PublishedAt = t.Format(time.RFC3339)
	default:
		return fmt.Errorf("unknown post field %q", field)
	}
	return nil
}

// nextCustom asks for the next custom placeholder value, or moves to the
// confirmation when none is left.
func (s *Service) nextCustom(ctx context.Context, in Input, out Responder, p *conversation.PostPayload) error {
	cat, err := s.catalog(ctx, p.SiteID)
	if err != nil {
		return s.fail(ctx, out, "post.custom", err)
	}
	custom := cat.Custom()
	if p.CustomIndex >= len(custom) {
		return s.confirm(ctx, in, out)
	}
	return promptCustom(ctx, out, custom[p.CustomIndex])
}

func promptCustom(ctx context.Context, out Responder, ph placeholder.Placeholder) error {
	text := fmt.Sprintf("%s (%s, %s)? Send - to leave it empty.", label(ph), ph.Token(), ph.Kind)
	var rows [][]Button
	if ph.Kind == placeholder.KindEnumerated {
		for _, opt := range ph.Options {
			rows = append(rows, []Button{{Text: opt, Action: ActChoice, Arg: opt}})
		}
	}
	return say(ctx, out, text, append(rows, cancelRow())...)
}

func (s *Service) customValue(ctx context.Context, in Input, out Responder, p *conversation.PostPayload, value string) error {
	cat, err := s.catalog(ctx, p.SiteID)
	if err != nil {
		return s.fail(ctx, out, "post.custom", err)
	}
	custom := cat.Custom()
	if p.CustomIndex >= len(custom) {
		return s.confirm(ctx, in, out)
	}
	ph := custom[p.CustomIndex]
	if err := setCustom(p, ph, value); err != nil {
		if rerr := rejected(ctx, out, err); rerr != nil {
			return rerr
		}
		return promptCustom(ctx, out, ph)
	}
	p.CustomIndex++
	if err := s.savePost(ctx, in.UserID, p); err != nil {
		return s.fail(ctx, out, "post.custom", err)
	}
	if p.CustomIndex < len(custom) {
		return promptCustom(ctx, out, custom[p.CustomIndex])
	}
	return s.confirm(ctx, in, out)
}

func setCustom(p *conversation.PostPayload, ph placeholder.Placeholder, value string) error {
	v := strings.TrimSpace(value)
	if v == "-" {
		v = ""
	}
	if !ph.Accepts(v) {
		reason := fmt.Sprintf("%q is not a valid %s value", v, ph.Kind)
		if ph.Kind == placeholder.KindEnumerated {
			reason += "; choose one of " + strings.Join(ph.Options, ", ")
		}
		return &placeholder.ValidationError{Field: label(ph), Reason: reason}
	}
	if p.Custom == nil {
		p.Custom = map[string]string{}
	}
	p.Custom[ph.Name] = v
	return nil
}

func article(p *conversation.PostPayload) publish.Article {
	a := publish.Article{
		Title:           p.Title,
		Description:     p.Description,
		FeatureImage:    p.FeatureImage,
		FeatureImageAlt: p.FeatureImageAlt,
		Category:        p.Category,
		Content:         p.Content,
		Sources:         p.Sources,
		Custom:          p.Custom,
	}
	if t, err := time.Parse(time.RFC3339, p.PublishedAt); err == nil {
		a.PublishedAt = t
	}
	return a
}

func publishSite(site store.Site) publish.Site {
	return publish.Site{Name: site.Name, URL: site.URL()}
}

var confirmRow = []Button{
	{Text: "Publish", Action: ActPublish},
	{Text: "Edit", Action: ActEdit},
	{Text: "Cancel", Action: ActCancel},
}

// confirm shows the summary of the post and waits for publish, edit or
// cancel.
func (s *Service) confirm(ctx context.Context, in Input, out Responder) error {
	if err := s.states.Update(ctx, in.UserID, func(st *conversation.State) error {
		if st.Post == nil {
			return conversation.ErrCorruptState
		}
		st.Phase = conversation.PhaseConfirmingPublish
		st.Post.EditField = ""
		return nil
	}); err != nil {
		return s.fail(ctx, out, "post.confirm", err)
	}
	p := s.states.Snapshot(in.UserID).Post
	site, ok, err := s.requireSite(ctx, in, out)
	if !ok {
		return err
	}
	cat, err := s.catalog(ctx, p.SiteID)
	if err != nil {
		return s.fail(ctx, out, "post.confirm", err)
	}
	page, err := s.composer.Preview(site.Template, cat, publishSite(site), article(p))
	if err != nil {
		if rerr := rejected(ctx, out, err); rerr != nil {
			return rerr
		}
		return say(ctx, out, "Fix it with Edit before publishing.", confirmRow)
	}

	var b strings.Builder
	if p.PostID != "" {
		b.WriteString("Revising a published post.\n")
	}
	fmt.Fprintf(&b, "Title: %s\n", p.Title)
	fmt.Fprintf(&b, "Description: %s\n", p.Description)
	category := p.Category
	if category == "" {
		category = publish.DefaultCategory
	}
	fmt.Fprintf(&b, "Category: %s\n", category)
	if t, err := time.Parse(time.RFC3339, p.PublishedAt); err == nil {
		fmt.Fprintf(&b, "Date: %s\n", t.Format("2006-01-02 15:04"))
	}
	for _, ph := range cat.Custom() {
		fmt.Fprintf(&b, "%s: %s\n", label(ph), p.Custom[ph.Name])
	}
	fmt.Fprintf(&b, "Reading time: %d min\n", page.ReadingTime)
	fmt.Fprintf(&b, "URL: %s", page.URL)
	if unresolved := unresolvedNames(site.Template, cat); len(unresolved) > 0 {
		fmt.Fprintf(&b, "\n\nThe template still uses unconfigured placeholders: %s", strings.Join(tokens(unresolved), ", "))
	}
	return say(ctx, out, b.String(), confirmRow)
}

// unresolvedNames lists placeholders of tpl the catalog cannot fill.
func unresolvedNames(tpl string, cat placeholder.Catalog) []string {
	var out []string
	for _, name := range placeholder.Names(tpl) {
		if cat.Classify(name) == placeholder.ClassUnknown {
			out = append(out, name)
		}
	}
	return out
}

func (s *Service) confirmAction(ctx context.Context, in Input, out Responder) error {
	switch in.Action {
	case ActPublish:
		return s.publish(ctx, in, out)
	case ActEdit:
		return s.beginEdit(ctx, in, out)
	}
	return say(ctx, out, msgExpired)
}

func (s *Service) publish(ctx context.Context, in Input, out Responder) error {
	p := s.states.Snapshot(in.UserID).Post
	if p == nil {
		return s.lostTrack(ctx, in, out)
	}
	site, ok, err := s.requireSite(ctx, in, out)
	if !ok {
		return err
	}
	cat, err := s.catalog(ctx, site.ID)
	if err != nil {
		return s.fail(ctx, out, "post.publish", err)
	}
	a := article(p)
	page, err := s.composer.Compose(site.Template, cat, publishSite(site), a)
	if err != nil {
		if isRejection(err) {
			if rerr := rejected(ctx, out, err); rerr != nil {
				return rerr
			}
			return say(ctx, out, "Nothing was published.", confirmRow)
		}
		return s.fail(ctx, out, "post.publish", err)
	}
	body, err := encodePost(p)
	if err != nil {
		return s.fail(ctx, out, "post.publish", err)
	}
	post := &store.Post{
		SiteID:      site.ID,
		Title:       a.Title,
		Slug:        page.Slug,
		Category:    cmp.Or(strings.TrimSpace(a.Category), publish.DefaultCategory),
		Description: a.Description,
		Path:        page.Path,
		PublishedAt: a.PublishedAt,
		Body:        body,
	}
	revising := p.PostID != ""
	if revising {
		if post.ID, err = uuid.Parse(p.PostID); err != nil {
			return s.lostTrack(ctx, in, out)
		}
		if taken, err := s.pathTaken(ctx, post); taken || err != nil {
			if err != nil {
				return s.fail(ctx, out, "post.publish", err)
			}
			return say(ctx, out, "Another post is already published at "+page.URL+". Change the title or the category.", confirmRow)
		}
	}

	location, err := s.sink.Deliver(ctx, site.PublishPath, page)
	if err != nil {
		s.events.Published(err)
		return s.fail(ctx, out, "post.publish", err)
	}
	if revising {
		err = s.posts.Update(ctx, post)
	} else {
		err = s.posts.Record(ctx, post)
	}
	if err != nil {
		s.events.Published(err)
		return s.fail(ctx, out, "post.record", err)
	}
	s.events.Published(nil)
	logger.Info(ctx, "service.posts", "post.published",
		slog.String("status", "ok"),
		slog.Int64("site_id", site.ID),
		slog.String("post_id", post.ID.String()),
		slog.String("location", location),
		slog.Int("reading_time", page.ReadingTime),
		slog.Bool("revision", revising),
	)
	if revising && p.PublishedPath != "" && p.PublishedPath != page.Path {
		s.takeDown(ctx, site.PublishPath, p.PublishedPath)
	}
	if err := s.toIdle(ctx, in.UserID); err != nil {
		return s.fail(ctx, out, "post.publish", err)
	}
	if revising {
		return say(ctx, out, "Updated: "+page.URL)
	}
	return say(ctx, out, "Published: "+page.URL)
}

// pathTaken reports whether another post of the site is published at the
// path of post.
func (s *Service) pathTaken(ctx context.Context, post *store.Post) (bool, error) {
	other, err := s.posts.ByPath(ctx, post.SiteID, post.Path)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return other.ID != post.ID, nil
}

// takeDown removes the page a revised post was published at before. The
// revision is already live, so failures are only logged.
func (s *Service) takeDown(ctx context.Context, publishPath, pagePath string) {
	r, ok := s.sink.(publish.Remover)
	if !ok {
		return
	}
	if err := r.Remove(ctx, publishPath, pagePath); err != nil {
		logger.Warn(ctx, "service.posts", "post.takedown",
			slog.String("status", "fail"),
			slog.String("path", pagePath),
			slog.String("err", err.Error()),
		)
	}
}

func (s *Service) beginEdit(ctx context.Context, in Input, out Responder) error {
	p := s.states.Snapshot(in.UserID).Post
	if p == nil {
		return s.lostTrack(ctx, in, out)
	}
	cat, err := s.catalog(ctx, p.SiteID)
	if err != nil {
		return s.fail(ctx, out, "post.edit", err)
	}
	if err := s.states.Update(ctx, in.UserID, func(st *conversation.State) error {
		st.Phase = conversation.PhaseEditingContent
		st.Post.EditField = ""
		return nil
	}); err != nil {
		return s.fail(ctx, out, "post.edit", err)
	}
	buttons := make([]Button, 0, len(postFields)+len(cat.Custom()))
	for _, f := range postFields {
		buttons = append(buttons, Button{Text: fieldNames[f], Action: ActEditField, Arg: f})
	}
	for _, ph := range cat.Custom() {
		buttons = append(buttons, Button{Text: label(ph), Action: ActEditField, Arg: customPrefix + ph.Name})
	}
	var rows [][]Button
	for i := 0; i < len(buttons); i += 2 {
		rows = append(rows, buttons[i:min(i+2, len(buttons))])
	}
	return say(ctx, out, "Which field do you want to change?", append(rows, cancelRow())...)
}

func (s *Service) editAction(ctx context.Context, in Input, out Responder) error {
	switch in.Action {
	case ActEditField:
		return s.pickField(ctx, in, out)
	case ActOpenPost:
		return s.openPost(ctx, in, out)
	case ActChoice:
		if p := s.states.Snapshot(in.UserID).Post; p != nil &&
			(strings.HasPrefix(p.EditField, customPrefix) || p.EditField == fieldCategory) {
			return s.editValue(ctx, in, out, in.Arg)
		}
	case ActUpload:
		if p := s.states.Snapshot(in.UserID).Post; p != nil && p.EditField == fieldImage {
			return s.beginUpload(ctx, in, out)
		}
	}
	return say(ctx, out, msgExpired)
}

func (s *Service) pickField(ctx context.Context, in Input, out Responder) error {
	p := s.states.Snapshot(in.UserID).Post
	if p == nil {
		return say(ctx, out, msgExpired)
	}
	field := in.Arg
	var custom *placeholder.Placeholder
	if name, ok := strings.CutPrefix(field, customPrefix); ok {
		cat, err := s.catalog(ctx, p.SiteID)
		if err != nil {
			return s.fail(ctx, out, "post.edit", err)
		}
		ph, found := cat.Lookup(name)
		if !found || ph.Origin != placeholder.OriginCustom {
			return say(ctx, out, msgExpired)
		}
		custom = &ph
	} else if _, ok := fieldPrompts[field]; !ok {
		return say(ctx, out, msgExpired)
	}
	if err := s.states.Update(ctx, in.UserID, func(st *conversation.State) error {
		st.Post.EditField = field
		return nil
	}); err != nil {
		return s.fail(ctx, out, "post.edit", err)
	}
	if custom != nil {
		return promptCustom(ctx, out, *custom)
	}
	return s.promptField(ctx, out, p.SiteID, field)
}

// editValue applies the new value of the field being edited and returns to
// the confirmation.
func (s *Service) editValue(ctx context.Context, in Input, out Responder, value string) error {
	p := s.states.Snapshot(in.UserID).Post
	if p == nil {
		return say(ctx, out, "Pick the post to edit with the buttons above, or press Cancel.")
	}
	if p.EditField == "" {
		return say(ctx, out, "Pick the field to change with the buttons above.")
	}
	if name, ok := strings.CutPrefix(p.EditField, customPrefix); ok {
		cat, err := s.catalog(ctx, p.SiteID)
		if err != nil {
			return s.fail(ctx, out, "post.edit", err)
		}
		ph, found := cat.Lookup(name)
		if !found {
			return s.confirm(ctx, in, out)
		}
		if err := setCustom(p, ph, value); err != nil {
			return rejected(ctx, out, err)
		}
	} else if err := s.applyField(p, p.EditField, value); err != nil {
		return rejected(ctx, out, err)
	}
	p.EditField = ""
	if err := s.savePost(ctx, in.UserID, p); err != nil {
		return s.fail(ctx, out, "post.edit", err)
	}
	return s.confirm(ctx, in, out)
}
