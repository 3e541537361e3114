package publish

import (
	"fmt"
	"maps"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/m3rciful/pressbot/core/placeholder"
)

// DateLayout formats PUBLISHED_TIME and LAST_MODIFIED.
const DateLayout = "2006-01-02"

// Site describes where a page is published.
type Site struct {
	Name string
	// URL is the public base URL, without a trailing slash.
	URL string
}

// Article holds what the author entered for a post.
type Article struct {
	Title           string
	Description     string
	FeatureImage    string
	FeatureImageAlt string
	Category        string
	// Content is HTML or Markdown.
	Content string
	// Sources lists one source per line.
	Sources     string
	PublishedAt time.Time
	// Custom holds the values of the site's custom placeholders.
	Custom map[string]string
}

// Page is a rendered post.
type Page struct {
	Slug     string
	Category string
	// Path is relative to the site's publish path: {category}/{slug}.html.
	Path string
	URL  string
	HTML string
	// ReadingTime is in minutes.
	ReadingTime int
}

// Composer renders articles with a site template.
type Composer struct {
	WordsPerMinute int
	// Now returns the modification time; time.Now when nil.
	Now func() time.Time
}

func (c Composer) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Values builds the placeholder values of a. Text fields are HTML escaped;
// the body and the source list are inserted as HTML. Custom values are
// checked against their declared kind.
func (c Composer) Values(cat placeholder.Catalog, site Site, a Article) (Page, map[string]string, error) {
	slug := Slugify(a.Title)
	if slug == "" {
		return Page{}, nil, &placeholder.ValidationError{Field: "title", Reason: "title produces an empty slug"}
	}
	category := CategorySlug(a.Category)
	body, err := BodyHTML(a.Content)
	if err != nil {
		return Page{}, nil, err
	}
	page := Page{
		Slug:        slug,
		Category:    category,
		Path:        category + "/" + slug + ".html",
		ReadingTime: ReadingTime(body, c.WordsPerMinute),
	}
	base := strings.TrimSuffix(site.URL, "/")
	page.URL = base + "/" + page.Path

	published := a.PublishedAt
	if published.IsZero() {
		published = c.now()
	}
	categoryLabel := strings.TrimSpace(a.Category)
	if categoryLabel == "" {
		categoryLabel = DefaultCategory
	}

	values := map[string]string{
		placeholder.Title:           html.EscapeString(a.Title),
		placeholder.MetaDescription: html.EscapeString(a.Description),
		placeholder.FeatureImage:    html.EscapeString(a.FeatureImage),
		placeholder.FeatureImageAlt: html.EscapeString(a.FeatureImageAlt),
		placeholder.PublishedTime:   published.Format(DateLayout),
		placeholder.Category:        html.EscapeString(categoryLabel),
		placeholder.SiteURL:         html.EscapeString(base),
		placeholder.ArticleURL:      html.EscapeString(page.URL),
		placeholder.Content:         body,
		placeholder.LastModified:    c.now().Format(DateLayout),
		placeholder.ReadingTime:     strconv.Itoa(page.ReadingTime),
		placeholder.SourceList:      SourceList(a.Sources),
		placeholder.PostMonth:       published.Format("Jan"),
		placeholder.SiteName:        html.EscapeString(site.Name),
		placeholder.Slug:            slug,
	}

	for _, p := range cat.Custom() {
		raw := strings.TrimSpace(a.Custom[p.Name])
		if !p.Accepts(raw) {
			return Page{}, nil, &placeholder.ValidationError{
				Field:  p.Name,
				Reason: fmt.Sprintf("%q is not a valid %s value", raw, p.Kind),
			}
		}
		values[p.Name] = html.EscapeString(raw)
	}
	return page, values, nil
}

// Compose renders a with tpl. Placeholders of tpl that have no value make it
// fail with *placeholder.MissingPlaceholdersError.
func (c Composer) Compose(tpl string, cat placeholder.Catalog, site Site, a Article) (Page, error) {
	page, values, err := c.Values(cat, site, a)
	if err != nil {
		return Page{}, err
	}
	out, err := placeholder.Render(tpl, values)
	if err != nil {
		return Page{}, err
	}
	page.HTML = out
	return page, nil
}

// Preview renders a with tpl like Compose but leaves unresolved placeholders
// in place.
func (c Composer) Preview(tpl string, cat placeholder.Catalog, site Site, a Article) (Page, error) {
	page, values, err := c.Values(cat, site, a)
	if err != nil {
		return Page{}, err
	}
	all := maps.Clone(values)
	for _, name := range placeholder.Names(tpl) {
		if _, ok := all[name]; !ok {
			all[name] = placeholder.Token(name)
		}
	}
	out, err := placeholder.Render(tpl, all)
	if err != nil {
		return Page{}, err
	}
	page.HTML = out
	return page, nil
}

// SourceList renders one source per line as an HTML list. Lines that are
// links become anchors.
func SourceList(sources string) string {
	var items []string
	for _, line := range strings.Split(sources, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		esc := html.EscapeString(line)
		if strings.HasPrefix(line, "http://") || strings.HasPrefix(line, "https://") {
			items = append(items, `<li><a href="`+esc+`" rel="noopener">`+esc+`</a></li>`)
			continue
		}
		items = append(items, "<li>"+esc+"</li>")
	}
	if len(items) == 0 {
		return ""
	}
	return "<ul>" + strings.Join(items, "") + "</ul>"
}
