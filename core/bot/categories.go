package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/m3rciful/pressbot/core/conversation"
	"github.com/m3rciful/pressbot/core/logger"
	"github.com/m3rciful/pressbot/core/placeholder"
	"github.com/m3rciful/pressbot/core/publish"
	"github.com/m3rciful/pressbot/core/store"
)

// Category dialogue steps.
const (
	catStepName    = "name"
	catStepColor   = "color"
	catStepRename  = "rename"
	catStepRecolor = "recolor"
)

const maxCategoryName = 60

var colorPattern = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}){1,2}$`)

// Categories opens the category manager of the user's site.
func (s *Service) Categories(ctx context.Context, in Input, out Responder) error {
	if ok, err := s.requireActive(ctx, in, out); !ok {
		return err
	}
	site, ok, err := s.requireSite(ctx, in, out)
	if !ok {
		return err
	}
	if err := s.states.Update(ctx, in.UserID, func(st *conversation.State) error {
		st.Phase = conversation.PhaseManagingCategories
		st.ClearData()
		st.Category = &conversation.CategoryPayload{SiteID: site.ID}
		return nil
	}); err != nil {
		return s.fail(ctx, out, "category.begin", err)
	}
	return s.categoryMenu(ctx, out, site.ID, "")
}

func (s *Service) categoryMenu(ctx context.Context, out Responder, siteID int64, note string) error {
	cats, err := s.categories.List(ctx, siteID)
	if err != nil {
		return s.fail(ctx, out, "category.list", err)
	}
	var b strings.Builder
	b.WriteString(note)
	if len(cats) == 0 {
		b.WriteString("No categories yet. Posts without one are filed under " + publish.DefaultCategory + ".")
	} else {
		b.WriteString("Categories:")
		for i, c := range cats {
			fmt.Fprintf(&b, "\n%d. %s  %s  (%s)", i+1, c.Name, c.Color, plural(c.Posts, "post"))
		}
	}
	rows := [][]Button{{{Text: "New category", Action: ActCatNew}}}
	for _, c := range cats {
		id := strconv.FormatInt(c.ID, 10)
		rows = append(rows, []Button{
			{Text: "Rename " + c.Name, Action: ActCatRename, Arg: id},
			{Text: "Color", Action: ActCatColor, Arg: id},
			{Text: "Delete", Action: ActCatDelete, Arg: id},
		})
	}
	return say(ctx, out, b.String(), append(rows, doneRow())...)
}

func doneRow() []Button {
	return []Button{{Text: "Done", Action: ActDone}}
}

func (s *Service) categoryAction(ctx context.Context, in Input, out Responder) error {
	c := s.states.Snapshot(in.UserID).Category
	if c == nil {
		return s.lostTrack(ctx, in, out)
	}
	switch in.Action {
	case ActDone:
		return s.finish(ctx, in, out)
	case ActCatNew:
		return s.categoryAsk(ctx, in, out, 0, catStepName, "Name of the new category?")
	case ActCatRename, ActCatColor, ActCatDelete:
	default:
		return say(ctx, out, msgExpired)
	}

	id, err := strconv.ParseInt(in.Arg, 10, 64)
	if err != nil {
		return say(ctx, out, msgExpired)
	}
	cat, err := s.categories.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) || (err == nil && cat.SiteID != c.SiteID) {
		return s.categoryMenu(ctx, out, c.SiteID, "That category no longer exists.\n\n")
	}
	if err != nil {
		return s.fail(ctx, out, "category.lookup", err)
	}

	switch in.Action {
	case ActCatRename:
		return s.categoryAsk(ctx, in, out, id, catStepRename, "New name for "+cat.Name+"?")
	case ActCatColor:
		return s.categoryAsk(ctx, in, out, id, catStepRecolor,
			fmt.Sprintf("New color for %s, like #FF0000? It is %s now.", cat.Name, cat.Color))
	}
	deleted, moved, err := s.categories.Delete(ctx, id, publish.DefaultCategory)
	if errors.Is(err, store.ErrNotFound) {
		return s.categoryMenu(ctx, out, c.SiteID, "That category no longer exists.\n\n")
	}
	if err != nil {
		return s.fail(ctx, out, "category.delete", err)
	}
	logger.Info(ctx, "service.categories", "category.delete",
		slog.String("status", "ok"),
		slog.Int64("site_id", c.SiteID),
		slog.Int64("category_id", id),
		slog.Int64("moved", moved),
	)
	return s.categoryMenu(ctx, out, c.SiteID,
		fmt.Sprintf("Deleted %s. %s moved to %s.\n\n", deleted.Name, plural(int(moved), "post"), publish.DefaultCategory))
}

func (s *Service) categoryAsk(ctx context.Context, in Input, out Responder, id int64, step, prompt string) error {
	if err := s.states.Update(ctx, in.UserID, func(st *conversation.State) error {
		if st.Category == nil {
			return conversation.ErrCorruptState
		}
		st.Category.CategoryID = id
		st.Category.Step = step
		st.Category.Name = ""
		return nil
	}); err != nil {
		return s.fail(ctx, out, "category.step", err)
	}
	return say(ctx, out, prompt, doneRow())
}

// categoryText handles the answer to the pending category question.
func (s *Service) categoryText(ctx context.Context, in Input, out Responder) error {
	c := s.states.Snapshot(in.UserID).Category
	if c == nil {
		return s.lostTrack(ctx, in, out)
	}
	v := strings.TrimSpace(in.Text)
	switch c.Step {
	case catStepName:
		if err := s.checkCategoryName(ctx, c.SiteID, 0, v); err != nil {
			return s.settle(ctx, out, "category.name", err)
		}
		if err := s.states.Update(ctx, in.UserID, func(st *conversation.State) error {
			st.Category.Step = catStepColor
			st.Category.Name = v
			return nil
		}); err != nil {
			return s.fail(ctx, out, "category.step", err)
		}
		return say(ctx, out, "Color of "+v+", like #FF0000?", doneRow())

	case catStepRename:
		if err := s.checkCategoryName(ctx, c.SiteID, c.CategoryID, v); err != nil {
			return s.settle(ctx, out, "category.name", err)
		}
		moved, err := s.categories.Rename(ctx, c.CategoryID, v)
		switch {
		case errors.Is(err, store.ErrNotFound):
			return s.categoryReset(ctx, in, out, "That category no longer exists.\n\n")
		case errors.Is(err, store.ErrDuplicate):
			return rejected(ctx, out, errNameTaken)
		case err != nil:
			return s.fail(ctx, out, "category.rename", err)
		}
		logger.Info(ctx, "service.categories", "category.rename",
			slog.String("status", "ok"),
			slog.Int64("category_id", c.CategoryID),
			slog.Int64("moved", moved),
		)
		return s.categoryReset(ctx, in, out,
			fmt.Sprintf("Renamed to %s. %s refiled; published pages keep their address until they are republished.\n\n",
				v, plural(int(moved), "post")))

	case catStepColor, catStepRecolor:
		if !colorPattern.MatchString(v) {
			return rejected(ctx, out, &placeholder.ValidationError{Field: "color", Reason: "use a hex color like #FF0000 or #F00"})
		}
		if c.Step == catStepRecolor {
			err := s.categories.Recolor(ctx, c.CategoryID, v)
			if errors.Is(err, store.ErrNotFound) {
				return s.categoryReset(ctx, in, out, "That category no longer exists.\n\n")
			}
			if err != nil {
				return s.fail(ctx, out, "category.recolor", err)
			}
			return s.categoryReset(ctx, in, out, "Color changed to "+v+".\n\n")
		}
		cat, err := s.categories.Create(ctx, c.SiteID, c.Name, v)
		if errors.Is(err, store.ErrDuplicate) {
			return s.categoryReset(ctx, in, out, "A category called "+c.Name+" already exists.\n\n")
		}
		if err != nil {
			return s.fail(ctx, out, "category.create", err)
		}
		logger.Info(ctx, "service.categories", "category.create",
			slog.String("status", "ok"),
			slog.Int64("site_id", c.SiteID),
			slog.Int64("category_id", cat.ID),
		)
		return s.categoryReset(ctx, in, out, "Created "+cat.Name+".\n\n")
	}
	return s.categoryMenu(ctx, out, c.SiteID, "Use the buttons below.\n\n")
}

var errNameTaken = &placeholder.ValidationError{Field: "name", Reason: "another category is already called that"}

// checkCategoryName rejects empty, overlong and taken names. exceptID is
// the category being renamed.
func (s *Service) checkCategoryName(ctx context.Context, siteID, exceptID int64, name string) error {
	switch {
	case publish.Slugify(name) == "":
		return &placeholder.ValidationError{Field: "name", Reason: "it needs at least one letter or digit"}
	case len([]rune(name)) > maxCategoryName:
		return &placeholder.ValidationError{Field: "name", Reason: fmt.Sprintf("use at most %d characters", maxCategoryName)}
	}
	cats, err := s.categories.List(ctx, siteID)
	if err != nil {
		return err
	}
	for _, c := range cats {
		if c.ID != exceptID && strings.EqualFold(c.Name, name) {
			return errNameTaken
		}
	}
	return nil
}

// categoryReset clears the pending question and shows the menu again.
func (s *Service) categoryReset(ctx context.Context, in Input, out Responder, note string) error {
	var siteID int64
	if err := s.states.Update(ctx, in.UserID, func(st *conversation.State) error {
		if st.Category == nil {
			return conversation.ErrCorruptState
		}
		siteID = st.Category.SiteID
		st.Category = &conversation.CategoryPayload{SiteID: siteID}
		return nil
	}); err != nil {
		return s.fail(ctx, out, "category.step", err)
	}
	return s.categoryMenu(ctx, out, siteID, note)
}

// finish closes a manager dialogue.
func (s *Service) finish(ctx context.Context, in Input, out Responder) error {
	if err := s.toIdle(ctx, in.UserID); err != nil {
		return s.fail(ctx, out, "state.finish", err)
	}
	return say(ctx, out, "Done.")
}
