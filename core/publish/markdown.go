package publish

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(html.WithUnsafe()),
)

// MarkdownToHTML renders a Markdown post body. Raw HTML inside the text is
// kept.
func MarkdownToHTML(src string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("render markdown: %w", err)
	}
	return buf.String(), nil
}

// BodyHTML returns the HTML of a post body. Bodies that already start with a
// tag are taken as HTML; anything else is Markdown.
func BodyHTML(src string) (string, error) {
	trimmed := strings.TrimSpace(src)
	if strings.HasPrefix(trimmed, "<") {
		return trimmed, nil
	}
	return MarkdownToHTML(trimmed)
}
