package bot

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"

	"github.com/m3rciful/pressbot/core/conversation"
	"github.com/m3rciful/pressbot/core/logger"
	"github.com/m3rciful/pressbot/core/placeholder"
	"github.com/m3rciful/pressbot/core/publish"
)

const scratchSiteID = "site_id"

// Template asks for the HTML template of the user's site.
func (s *Service) Template(ctx context.Context, in Input, out Responder) error {
	if ok, err := s.requireActive(ctx, in, out); !ok {
		return err
	}
	site, ok, err := s.requireSite(ctx, in, out)
	if !ok {
		return err
	}
	if err := s.states.Update(ctx, in.UserID, func(st *conversation.State) error {
		st.Phase = conversation.PhaseUploadingTemplate
		st.ClearData()
		st.Scratch[scratchSiteID] = site.ID
		return nil
	}); err != nil {
		return s.fail(ctx, out, "template.begin", err)
	}
	return say(ctx, out,
		"Send the HTML template of "+site.Name+" as an .html file or paste it as a message.\n"+
			"It must contain "+strings.Join(tokens(placeholder.RequiredNames()), ", ")+".\n"+
			"Optional: "+strings.Join(tokens(placeholder.OptionalNames()), ", ")+".\n"+
			"Any other {{NAME}} becomes a custom field you fill in for every post.",
		cancelRow())
}

func (s *Service) templateUpload(ctx context.Context, in Input, out Responder) error {
	siteID, ok := conversation.Int64Value(s.states.ValueOr(in.UserID, scratchSiteID, nil))
	if !ok {
		return s.lostTrack(ctx, in, out)
	}
	doc := in.Text
	if in.Document != nil {
		ext := strings.ToLower(filepath.Ext(in.Document.Name))
		if ext != ".html" && ext != ".htm" {
			return say(ctx, out, "Please send an .html file.")
		}
		doc = string(in.Document.Data)
	}
	if strings.TrimSpace(doc) == "" {
		return say(ctx, out, "The template is empty.")
	}
	if err := publish.ValidateHTML(doc); err != nil {
		return say(ctx, out, "The template is not valid HTML: "+err.Error())
	}
	scan := placeholder.ScanTemplate(doc, placeholder.NewCatalog(nil))
	if err := scan.MissingError(); err != nil {
		missing, _ := logger.SummarizeStrings(scan.Missing, 8)
		logger.Info(ctx, "template", "template.rejected",
			slog.Int64("site_id", siteID),
			slog.String("missing", missing),
		)
		return rejected(ctx, out, err)
	}
	if err := s.sites.SetTemplate(ctx, siteID, doc); err != nil {
		return s.fail(ctx, out, "template.save", err)
	}
	logger.Info(ctx, "template", "template.saved",
		slog.String("status", "ok"),
		slog.Int64("site_id", siteID),
		slog.Int("optional", len(scan.Optional)),
		slog.Int("unknown", len(scan.Unknown)),
	)

	summary := fmt.Sprintf("Template saved with %s, %s and %s.",
		plural(len(scan.Required), "required placeholder"),
		plural(len(scan.Optional), "optional placeholder"),
		plural(len(scan.Auto), "automatic placeholder"))
	if imgs := publish.ExtractImages(doc); len(imgs) > 0 {
		summary += "\n" + plural(len(imgs), "local image") + " referenced; upload them next to the published pages."
	}

	if len(scan.Unknown) == 0 {
		if err := s.placeholders.DeleteCustom(ctx, siteID); err != nil {
			return s.fail(ctx, out, "template.save", err)
		}
		if err := s.toIdle(ctx, in.UserID); err != nil {
			return s.fail(ctx, out, "template.save", err)
		}
		return say(ctx, out, summary)
	}

	flow := conversation.NewCustomFlow(siteID, scan.Unknown)
	if err := s.states.Update(ctx, in.UserID, func(st *conversation.State) error {
		st.Phase = conversation.PhaseConfiguringCustomPlaceholder
		st.ClearData()
		st.Custom = flow
		return nil
	}); err != nil {
		return s.fail(ctx, out, "template.flow", err)
	}
	summary += fmt.Sprintf("\nIt also uses %s: %s.", plural(len(scan.Unknown), "unknown placeholder"),
		strings.Join(tokens(scan.Unknown), ", "))
	if err := say(ctx, out, summary); err != nil {
		return err
	}
	return s.promptFlow(ctx, out, flow)
}

func (s *Service) promptFlow(ctx context.Context, out Responder, f *conversation.CustomFlow) error {
	name, ok := f.Name()
	if !ok {
		return nil
	}
	token := placeholder.Token(name)
	switch f.Step {
	case conversation.StepChoose:
		cur, total := f.Progress()
		return say(ctx, out, fmt.Sprintf("Placeholder %d of %d: %s. Configure it as a custom field?", cur, total, token),
			[]Button{{Text: "Configure", Action: ActConfigure}, {Text: "Skip", Action: ActSkip}},
			cancelRow())
	case conversation.StepLabel:
		return say(ctx, out, "Send the label shown when asking for "+token+".")
	case conversation.StepKind:
		row := make([]Button, 0, len(placeholder.Kinds()))
		for _, k := range placeholder.Kinds() {
			row = append(row, Button{Text: string(k), Action: ActKind, Arg: string(k)})
		}
		return say(ctx, out, "What kind of value does "+token+" hold?", row)
	case conversation.StepOptions:
		return say(ctx, out, "Send the allowed values of "+token+" separated by commas.")
	}
	return nil
}

func (s *Service) customAction(ctx context.Context, in Input, out Responder) error {
	switch in.Action {
	case ActConfigure:
		return s.advanceFlow(ctx, in, out, "placeholder.configure", (*conversation.CustomFlow).Configure)
	case ActSkip:
		return s.advanceFlow(ctx, in, out, "placeholder.skip", (*conversation.CustomFlow).Skip)
	case ActKind:
		kind, err := placeholder.ParseKind(in.Arg)
		if err != nil {
			return say(ctx, out, msgExpired)
		}
		return s.advanceFlow(ctx, in, out, "placeholder.kind", func(f *conversation.CustomFlow) error {
			return f.SetKind(kind)
		})
	}
	return say(ctx, out, msgExpired)
}

func (s *Service) customText(ctx context.Context, in Input, out Responder) error {
	flow := s.states.Snapshot(in.UserID).Custom
	if flow == nil {
		return s.lostTrack(ctx, in, out)
	}
	if flow.Done() {
		return s.commitFlow(ctx, in, out, flow)
	}
	switch flow.Step {
	case conversation.StepLabel:
		return s.advanceFlow(ctx, in, out, "placeholder.label", func(f *conversation.CustomFlow) error {
			return f.SetLabel(in.Text)
		})
	case conversation.StepOptions:
		return s.advanceFlow(ctx, in, out, "placeholder.options", func(f *conversation.CustomFlow) error {
			return f.SetOptions(in.Text)
		})
	}
	if err := say(ctx, out, "Please use the buttons."); err != nil {
		return err
	}
	return s.promptFlow(ctx, out, flow)
}

// advanceFlow applies one answer to the custom placeholder flow, then asks
// the next question or commits the finished flow.
func (s *Service) advanceFlow(ctx context.Context, in Input, out Responder, op string, fn func(*conversation.CustomFlow) error) error {
	if cur := s.states.Snapshot(in.UserID).Custom; cur != nil && cur.Done() {
		return s.commitFlow(ctx, in, out, cur)
	}
	err := s.states.Update(ctx, in.UserID, func(st *conversation.State) error {
		if st.Custom == nil {
			return conversation.ErrNoCustomFlow
		}
		return fn(st.Custom)
	})
	flow := s.states.Snapshot(in.UserID).Custom
	if err != nil {
		if serr := s.settle(ctx, out, op, err); serr != nil || !isRejection(err) || flow == nil {
			return serr
		}
		return s.promptFlow(ctx, out, flow)
	}
	if flow.Done() {
		return s.commitFlow(ctx, in, out, flow)
	}
	return s.promptFlow(ctx, out, flow)
}

func (s *Service) commitFlow(ctx context.Context, in Input, out Responder, flow *conversation.CustomFlow) error {
	report, err := flow.Commit(ctx, s.placeholders)
	if err != nil {
		return s.fail(ctx, out, "placeholder.commit", err)
	}
	s.events.PlaceholderCommit(report)
	if err := s.toIdle(ctx, in.UserID); err != nil {
		return s.fail(ctx, out, "placeholder.commit", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Custom placeholders saved: %s.", report)
	for _, f := range report.Failures {
		fmt.Fprintf(&b, "\n%s was not saved: %v", placeholder.Token(f.Name), f.Err)
	}
	if skipped := skippedNames(flow); len(skipped) > 0 {
		fmt.Fprintf(&b, "\nSkipped %s. Posts cannot be published while the template uses them; upload the template again with /template to configure them.",
			strings.Join(tokens(skipped), ", "))
	}
	return say(ctx, out, b.String())
}

func skippedNames(f *conversation.CustomFlow) []string {
	var out []string
	for _, name := range f.Pending {
		if !slices.ContainsFunc(f.Draft, func(r conversation.DraftRecord) bool { return r.Name == name }) {
			out = append(out, name)
		}
	}
	return out
}
