package bot

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/m3rciful/pressbot/core/conversation"
	"github.com/m3rciful/pressbot/core/logger"
	"github.com/m3rciful/pressbot/core/publish"
)

var imageExts = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true, ".svg": true,
}

// beginUpload waits for the feature image as a file.
func (s *Service) beginUpload(ctx context.Context, in Input, out Responder) error {
	if _, ok := s.sink.(publish.AssetSink); !ok {
		return say(ctx, out, msgExpired)
	}
	if err := s.states.SetPhase(ctx, in.UserID, conversation.PhaseUploadingImage); err != nil {
		return s.fail(ctx, out, "image.begin", err)
	}
	return say(ctx, out, "Send the image as a file (PNG, JPEG, GIF, WebP or SVG), or paste its URL.", cancelRow())
}

// imageUpload stores the uploaded image next to the site's pages and uses
// its address as the feature image. A pasted URL is taken as is.
func (s *Service) imageUpload(ctx context.Context, in Input, out Responder) error {
	p := s.states.Snapshot(in.UserID).Post
	if p == nil {
		return s.lostTrack(ctx, in, out)
	}
	value := in.Text
	if in.Document != nil {
		ext := strings.ToLower(filepath.Ext(in.Document.Name))
		if !imageExts[ext] {
			return say(ctx, out, "Please send a PNG, JPEG, GIF, WebP or SVG file.", cancelRow())
		}
		if len(in.Document.Data) == 0 {
			return say(ctx, out, "The file is empty.", cancelRow())
		}
		assets, ok := s.sink.(publish.AssetSink)
		if !ok {
			return s.lostTrack(ctx, in, out)
		}
		site, ok, err := s.requireSite(ctx, in, out)
		if !ok {
			return err
		}
		base := publish.Slugify(strings.TrimSuffix(in.Document.Name, filepath.Ext(in.Document.Name)))
		if base == "" {
			base = "image"
		}
		name := base + "-" + s.now().Format("20060102150405") + ext
		rel, err := assets.StoreAsset(ctx, site.PublishPath, name, in.Document.Data)
		if err != nil {
			return s.fail(ctx, out, "image.store", err)
		}
		logger.Info(ctx, "service.posts", "image.stored",
			slog.String("status", "ok"),
			slog.Int64("site_id", site.ID),
			slog.String("path", rel),
			slog.Int("bytes", len(in.Document.Data)),
		)
		value = site.URL() + "/" + rel
	}

	editing := p.EditField == fieldImage
	phase := conversation.PhaseCreatingContent
	if editing {
		phase = conversation.PhaseEditingContent
	}
	if err := s.states.SetPhase(ctx, in.UserID, phase); err != nil {
		return s.fail(ctx, out, "image.done", err)
	}
	if editing {
		return s.editValue(ctx, in, out, value)
	}
	return s.postStep(ctx, in, out, value)
}
