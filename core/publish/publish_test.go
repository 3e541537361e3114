package publish

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/pressbot/core/placeholder"
)

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Hello World":                "hello-world",
		"  Café con leche  ":         "cafe-con-leche",
		"Año nuevo, ¡vida nueva!":    "ano-nuevo-vida-nueva",
		"Go 1.24 -- what's new?":     "go-124-whats-new",
		"snake_case and   spaces":    "snake-case-and-spaces",
		"Ünïcödé Ñandú":              "unicode-nandu",
		"!!!":                        "",
	}
	for in, want := range cases {
		assert.Equal(t, want, Slugify(in), in)
	}
	assert.Equal(t, DefaultCategory, CategorySlug("  "))
	assert.Equal(t, "tecnologia", CategorySlug("Tecnología"))
}

func TestValidateHTML(t *testing.T) {
	valid := []string{
		"<html><head><title>{{TITLE}}</title></head><body><p>{{CONTENT}}</body></html>",
		`<div class="a"><img src="{{FEATURE_IMAGE}}"><br/><ul><li>one<li>two</ul></div>`,
		"<script>if (a < b) { x() }</script><p>ok</p>",
	}
	for _, doc := range valid {
		assert.NoError(t, ValidateHTML(doc), doc)
	}

	assert.ErrorIs(t, ValidateHTML("  \n"), ErrEmptyHTML)

	err := ValidateHTML("<div>\n<section>\n<p>text</div>")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "</div> closes <section> opened on line 2")

	err = ValidateHTML("<main>\n<article>text</article>")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "<main> is never closed")

	err = ValidateHTML("<b>x</b></i>")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected </i>")
}

func TestReadingTimeAndWords(t *testing.T) {
	assert.Equal(t, 3, Words("<p>one <b>two</b></p><style>.x{}</style><script>var a = 1;</script> three"))
	assert.Equal(t, 1, ReadingTime("<p>short</p>", 200))
	long := "<p>" + strings.Repeat("word ", 500) + "</p>"
	assert.Equal(t, 3, ReadingTime(long, 200))
	assert.Equal(t, 5, ReadingTime(long, 100))
	assert.Equal(t, 3, ReadingTime(long, 0))
}

func TestExtractImages(t *testing.T) {
	doc := `<img src="img/cat.png" alt="Cat"><img src="data:image/png;base64,AA==">
<img src="https://cdn.example.com/x.png"><p><img alt="no src"><img src="/a/b/dog.jpg"/></p>`
	assert.Equal(t, []Image{
		{Src: "img/cat.png", Alt: "Cat", Filename: "cat.png"},
		{Src: "/a/b/dog.jpg", Filename: "dog.jpg"},
	}, ExtractImages(doc))
	assert.Empty(t, ExtractImages("<p>none</p>"))
}

func TestBodyHTML(t *testing.T) {
	out, err := BodyHTML("# Title\n\nSome *text* and a [link](https://example.com).")
	require.NoError(t, err)
	assert.Contains(t, out, "<h1>Title</h1>")
	assert.Contains(t, out, "<em>text</em>")
	assert.Contains(t, out, `<a href="https://example.com">link</a>`)

	out, err = BodyHTML("  <section>already html</section>\n")
	require.NoError(t, err)
	assert.Equal(t, "<section>already html</section>", out)
}

const fullTemplate = `<html><head><title>{{TITLE}} | {{SITE_NAME}}</title>
<meta name="description" content="{{META_DESCRIPTION}}"></head>
<body><img src="{{FEATURE_IMAGE}}" alt="{{FEATURE_IMAGE_ALT}}">
<time>{{PUBLISHED_TIME}}</time> <span>{{POST_MONTH}}</span> <a href="{{SITE_URL}}">home</a>
<link rel="canonical" href="{{ARTICLE_URL}}"><em>{{CATEGORY}}</em> {{READING_TIME}} min
{{CONTENT}}{{SOURCE_LIST}}<footer>{{LAST_MODIFIED}} {{SLUG}} {{AUTHOR}}</footer></body></html>`

func testComposer() Composer {
	return Composer{
		WordsPerMinute: 200,
		Now:            func() time.Time { return time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC) },
	}
}

func TestCompose(t *testing.T) {
	cat := placeholder.NewCatalog([]placeholder.Placeholder{
		{Name: "AUTHOR", Label: "Author", Kind: placeholder.KindText},
		{Name: "SCORE", Label: "Score", Kind: placeholder.KindNumber},
	})
	site := Site{Name: "Ink & Paper", URL: "https://blog.example.com/"}
	a := Article{
		Title:        "Café <Tips>",
		Description:  "Short",
		FeatureImage: "https://img.example.com/c.jpg",
		Category:     "Food",
		Content:      "Hello **world**",
		Sources:      "https://src.example.com\nA book\n",
		PublishedAt:  time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
		Custom:       map[string]string{"AUTHOR": "Ana", "SCORE": " 4.5 "},
	}

	page, err := testComposer().Compose(fullTemplate, cat, site, a)
	require.NoError(t, err)
	assert.Equal(t, "cafe-tips", page.Slug)
	assert.Equal(t, "food/cafe-tips.html", page.Path)
	assert.Equal(t, "https://blog.example.com/food/cafe-tips.html", page.URL)
	assert.Equal(t, 1, page.ReadingTime)

	h := page.HTML
	assert.NotContains(t, h, "{{")
	assert.Contains(t, h, "<title>Café &lt;Tips&gt; | Ink &amp; Paper</title>")
	assert.Contains(t, h, "<time>2026-01-15</time> <span>Jan</span>")
	assert.Contains(t, h, `<link rel="canonical" href="https://blog.example.com/food/cafe-tips.html">`)
	assert.Contains(t, h, "<em>Food</em> 1 min")
	assert.Contains(t, h, "<strong>world</strong>")
	assert.Contains(t, h, `<li><a href="https://src.example.com" rel="noopener">https://src.example.com</a></li><li>A book</li>`)
	assert.Contains(t, h, "<footer>2026-05-02 cafe-tips Ana</footer>")

	a.Custom["SCORE"] = "many"
	_, err = testComposer().Compose(fullTemplate, cat, site, a)
	var verr *placeholder.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "SCORE", verr.Field)
}

func TestComposeMissingAndPreview(t *testing.T) {
	site := Site{Name: "S", URL: "https://s.example.com"}
	a := Article{Title: "T", Content: "<p>x</p>"}

	_, err := testComposer().Compose(fullTemplate, placeholder.Catalog{}, site, a)
	var missing *placeholder.MissingPlaceholdersError
	require.ErrorAs(t, err, &missing)
	assert.Equal(t, []string{"AUTHOR"}, missing.Names)

	page, err := testComposer().Preview(fullTemplate, placeholder.Catalog{}, site, a)
	require.NoError(t, err)
	assert.Contains(t, page.HTML, "{{AUTHOR}}")
	assert.Contains(t, page.HTML, "<time>2026-05-02</time>")
	assert.Contains(t, page.HTML, "<em>general</em>")

	_, err = testComposer().Compose(fullTemplate, placeholder.Catalog{}, site, Article{Title: "?!"})
	require.ErrorAs(t, err, new(*placeholder.ValidationError))
}

func TestDirSink(t *testing.T) {
	root := t.TempDir()
	sink := DirSink{Root: root}
	ctx := context.Background()
	page := Page{Path: "news/hello.html", HTML: "<p>v1</p>"}

	dst, err := sink.Deliver(ctx, "www/blog", page)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "www", "blog", "news", "hello.html"), dst)

	page.HTML = "<p>v2</p>"
	_, err = sink.Deliver(ctx, "www/blog", page)
	require.NoError(t, err)
	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "<p>v2</p>", string(data))

	entries, err := os.ReadDir(filepath.Dir(dst))
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	_, err = sink.Deliver(ctx, "../outside", page)
	assert.Error(t, err)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = sink.Deliver(cancelled, "www", page)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDirSinkAssetsAndRemove(t *testing.T) {
	root := t.TempDir()
	sink := DirSink{Root: root}
	ctx := context.Background()

	rel, err := sink.StoreAsset(ctx, "blog", "cover.png", []byte("png"))
	require.NoError(t, err)
	assert.Equal(t, "images/cover.png", rel)
	data, err := os.ReadFile(filepath.Join(root, "blog", "images", "cover.png"))
	require.NoError(t, err)
	assert.Equal(t, "png", string(data))

	_, err = sink.StoreAsset(ctx, "blog", "../cover.png", nil)
	assert.Error(t, err)
	_, err = sink.StoreAsset(ctx, "../..", "cover.png", nil)
	assert.Error(t, err)

	page := Page{Path: "news/old.html", HTML: "<p>old</p>"}
	dst, err := sink.Deliver(ctx, "blog", page)
	require.NoError(t, err)
	require.NoError(t, sink.Remove(ctx, "blog", page.Path))
	assert.NoFileExists(t, dst)
	require.NoError(t, sink.Remove(ctx, "blog", page.Path))
	assert.Error(t, sink.Remove(ctx, "..", "x.html"))
}

func TestParseDate(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	for input, want := range map[string]time.Time{
		"2025-01-31":           time.Date(2025, 1, 31, 0, 0, 0, 0, loc),
		" 2025-1-5 14:30 ":     time.Date(2025, 1, 5, 14, 30, 0, 0, loc),
		"31.01.2025":           time.Date(2025, 1, 31, 0, 0, 0, 0, loc),
		"2.3.2025 08:15":       time.Date(2025, 3, 2, 8, 15, 0, 0, loc),
		"2025-01-31T10:00:00Z": time.Date(2025, 1, 31, 10, 0, 0, 0, time.UTC),
	} {
		got, err := ParseDate(input, loc)
		require.NoError(t, err, input)
		assert.True(t, want.Equal(got), "%s: got %s", input, got)
	}

	_, err := ParseDate("next tuesday", nil)
	require.Error(t, err)
	got, err := ParseDate("2025-02-01", nil)
	require.NoError(t, err)
	assert.Equal(t, time.UTC, got.Location())
}
