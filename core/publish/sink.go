package publish

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/m3rciful/pressbot/core/logger"
)

// Sink delivers rendered pages. publishPath is the site's directory below
// the sink root.
type Sink interface {
	Deliver(ctx context.Context, publishPath string, page Page) (string, error)
}

// AssetSink is implemented by sinks that also store uploaded files such as
// feature images.
type AssetSink interface {
	StoreAsset(ctx context.Context, publishPath, name string, data []byte) (string, error)
}

// Remover is implemented by sinks that can take a page down again.
type Remover interface {
	Remove(ctx context.Context, publishPath, pagePath string) error
}

// AssetDir is the directory below a site's publish path that holds assets.
const AssetDir = "images"

// DirSink writes pages below a local directory.
type DirSink struct {
	Root string
}

// Deliver writes page to {Root}/{publishPath}/{page.Path} and returns the
// written file. The file is replaced atomically.
func (s DirSink) Deliver(ctx context.Context, publishPath string, page Page) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	rel, dst, err := s.resolve(publishPath, page.Path)
	if err != nil {
		return "", err
	}

	start := time.Now()
	err = writeAtomic(dst, []byte(page.HTML))
	attrs := []slog.Attr{
		slog.String("path", rel),
		slog.Int("bytes", len(page.HTML)),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	}
	if err != nil {
		logger.Error(ctx, "publish", "publish.deliver",
			append(attrs, slog.String("status", "fail"), slog.String("err", err.Error()))...)
		return "", err
	}
	logger.Info(ctx, "publish", "publish.deliver", append(attrs, slog.String("status", "ok"))...)
	return dst, nil
}

// StoreAsset writes data to {Root}/{publishPath}/images/{name} and returns
// the path of the asset relative to the site root.
func (s DirSink) StoreAsset(ctx context.Context, publishPath, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if name == "" || name != filepath.Base(name) {
		return "", fmt.Errorf("invalid asset name %q", name)
	}
	rel := path.Join(AssetDir, name)
	_, dst, err := s.resolve(publishPath, rel)
	if err != nil {
		return "", err
	}
	if err := writeAtomic(dst, data); err != nil {
		logger.Error(ctx, "publish", "publish.asset",
			slog.String("status", "fail"),
			slog.String("path", rel),
			slog.String("err", err.Error()),
		)
		return "", err
	}
	logger.Info(ctx, "publish", "publish.asset",
		slog.String("status", "ok"),
		slog.String("path", rel),
		slog.Int("bytes", len(data)),
	)
	return rel, nil
}

// Remove deletes a page written by Deliver. A missing file is not an error.
func (s DirSink) Remove(ctx context.Context, publishPath, pagePath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, dst, err := s.resolve(publishPath, pagePath)
	if err != nil {
		return err
	}
	if err := os.Remove(dst); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", pagePath, err)
	}
	logger.Info(ctx, "publish", "publish.remove",
		slog.String("status", "ok"),
		slog.String("path", pagePath),
	)
	return nil
}

// resolve joins publishPath and rel below Root, refusing paths that leave it.
func (s DirSink) resolve(publishPath, rel string) (string, string, error) {
	joined := filepath.Join(filepath.FromSlash(publishPath), filepath.FromSlash(rel))
	if !filepath.IsLocal(joined) {
		return "", "", fmt.Errorf("publish path %q escapes the publish root", joined)
	}
	return joined, filepath.Join(s.Root, joined), nil
}

func writeAtomic(dst string, data []byte) error {
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".page-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", dst, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", dst, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("rename into %s: %w", dst, err)
	}
	return nil
}
