package bot

import (
	"context"
	"log/slog"

	"github.com/m3rciful/pressbot/core/conversation"
	"github.com/m3rciful/pressbot/core/logger"
)

// HandleMessage routes free text and uploaded documents to the step the
// user is on.
func (s *Service) HandleMessage(ctx context.Context, in Input, out Responder) error {
	phase := s.states.Phase(in.UserID)
	logger.Debug(ctx, "state", "state.dispatch",
		slog.Int64("user_id", in.UserID),
		slog.String("phase", phase.String()),
		slog.Bool("document", in.Document != nil),
	)
	if in.Document != nil && phase != conversation.PhaseUploadingTemplate && phase != conversation.PhaseUploadingImage {
		return say(ctx, out, "I was not expecting a file right now.")
	}

	switch phase {
	case conversation.PhaseIdle:
		return say(ctx, out, "Nothing in progress. Send /help to see what I can do.")
	case conversation.PhaseRegistering:
		return s.registerName(ctx, in, out)
	case conversation.PhaseConfiguringSite:
		return s.siteStep(ctx, in, out)
	case conversation.PhaseConfiguringTransport:
		return s.transportStep(ctx, in, out)
	case conversation.PhaseUploadingTemplate:
		return s.templateUpload(ctx, in, out)
	case conversation.PhaseCreatingContent:
		return s.postStep(ctx, in, out, in.Text)
	case conversation.PhaseEditingContent:
		return s.editValue(ctx, in, out, in.Text)
	case conversation.PhaseConfirmingPublish:
		return say(ctx, out, "Publish, edit or cancel the post with the buttons.", confirmRow)
	case conversation.PhaseConfiguringCustomPlaceholder:
		return s.customText(ctx, in, out)
	case conversation.PhaseUploadingImage:
		return s.imageUpload(ctx, in, out)
	case conversation.PhaseManagingCategories:
		return s.categoryText(ctx, in, out)
	case conversation.PhaseManagingFeatured:
		return say(ctx, out, "Tap a post to mark it, or press Done.", doneRow())
	default:
		return s.lostTrack(ctx, in, out)
	}
}

// HandleAction routes a button press. Cancel works in every phase; any
// other action must belong to the phase the user is in.
func (s *Service) HandleAction(ctx context.Context, in Input, out Responder) error {
	if in.Action == ActCancel {
		return s.Cancel(ctx, in, out)
	}
	phase := s.states.Phase(in.UserID)
	switch phase {
	case conversation.PhaseConfiguringCustomPlaceholder:
		return s.customAction(ctx, in, out)
	case conversation.PhaseCreatingContent:
		p := s.states.Snapshot(in.UserID).Post
		switch {
		case p == nil:
		case in.Action == ActChoice && (p.Step == stepCustom || p.Step == fieldCategory):
			return s.postStep(ctx, in, out, in.Arg)
		case in.Action == ActUpload && p.Step == fieldImage:
			return s.beginUpload(ctx, in, out)
		}
	case conversation.PhaseConfirmingPublish:
		return s.confirmAction(ctx, in, out)
	case conversation.PhaseEditingContent:
		return s.editAction(ctx, in, out)
	case conversation.PhaseManagingCategories:
		return s.categoryAction(ctx, in, out)
	case conversation.PhaseManagingFeatured:
		return s.toggleFeatured(ctx, in, out)
	case conversation.PhaseIdle,
		conversation.PhaseRegistering,
		conversation.PhaseConfiguringSite,
		conversation.PhaseConfiguringTransport,
		conversation.PhaseUploadingTemplate,
		conversation.PhaseUploadingImage:
	}
	logger.Debug(ctx, "state", "action.stale",
		slog.Int64("user_id", in.UserID),
		slog.String("phase", phase.String()),
		slog.String("action", in.Action),
	)
	return say(ctx, out, msgExpired)
}
