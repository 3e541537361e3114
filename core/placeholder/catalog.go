package placeholder

import (
	"context"
	"fmt"
)

// Class is the outcome of classifying a placeholder name.
type Class int

const (
	ClassUnknown Class = iota
	ClassRequired
	ClassOptional
	ClassAuto
	ClassCustom
)

func (c Class) String() string {
	switch c {
	case ClassRequired:
		return "required"
	case ClassOptional:
		return "optional"
	case ClassAuto:
		return "auto"
	case ClassCustom:
		return "custom"
	default:
		return "unknown"
	}
}

// Builtin placeholder names.
const (
	Title           = "TITLE"
	MetaDescription = "META_DESCRIPTION"
	FeatureImage    = "FEATURE_IMAGE"
	PublishedTime   = "PUBLISHED_TIME"
	Category        = "CATEGORY"
	SiteURL         = "SITE_URL"
	ArticleURL      = "ARTICLE_URL"
	Content         = "CONTENT"

	LastModified    = "LAST_MODIFIED"
	FeatureImageAlt = "FEATURE_IMAGE_ALT"
	ReadingTime     = "READING_TIME"
	SourceList      = "SOURCE_LIST"
	PostMonth       = "POST_MONTH"

	SiteName = "SITE_NAME"
	Slug     = "SLUG"
)

type builtinEntry struct {
	name  string
	label string
	class Class
	kind  Kind
}

// builtinTable is ordered as it is presented to users.
var builtinTable = []builtinEntry{
	{Title, "Post title", ClassRequired, KindText},
	{MetaDescription, "Meta description", ClassRequired, KindText},
	{FeatureImage, "Feature image", ClassRequired, KindURL},
	{PublishedTime, "Publication date", ClassRequired, KindText},
	{Category, "Category", ClassRequired, KindText},
	{SiteURL, "Site URL", ClassRequired, KindURL},
	{ArticleURL, "Article URL (domain + slug)", ClassRequired, KindURL},
	{Content, "HTML content", ClassRequired, KindText},

	{LastModified, "Last modification date", ClassOptional, KindText},
	{FeatureImageAlt, "Feature image alt text", ClassOptional, KindText},
	{ReadingTime, "Estimated reading time", ClassOptional, KindNumber},
	{SourceList, "List of sources", ClassOptional, KindText},
	{PostMonth, "Publication month (Jan, Feb...)", ClassOptional, KindText},

	{SiteName, "Site name", ClassAuto, KindText},
	{Slug, "Slug generated from the title", ClassAuto, KindText},
}

var builtinIndex = func() map[string]builtinEntry {
	m := make(map[string]builtinEntry, len(builtinTable))
	for _, e := range builtinTable {
		m[e.name] = e
	}
	return m
}()

// Builtins returns the builtin catalog in presentation order.
func Builtins() []Placeholder {
	out := make([]Placeholder, 0, len(builtinTable))
	for _, e := range builtinTable {
		out = append(out, e.placeholder())
	}
	return out
}

// RequiredNames returns the names of the required builtins.
func RequiredNames() []string {
	return namesOf(ClassRequired)
}

// OptionalNames returns the names of the optional builtins.
func OptionalNames() []string {
	return namesOf(ClassOptional)
}

// AutoNames returns the names of the builtins filled in automatically.
func AutoNames() []string {
	return namesOf(ClassAuto)
}

func namesOf(c Class) []string {
	var out []string
	for _, e := range builtinTable {
		if e.class == c {
			out = append(out, e.name)
		}
	}
	return out
}

// IsBuiltin reports whether name belongs to the builtin catalog.
func IsBuiltin(name string) bool {
	_, ok := builtinIndex[name]
	return ok
}

func (e builtinEntry) placeholder() Placeholder {
	return Placeholder{
		Name:     e.name,
		Label:    e.label,
		Required: e.class == ClassRequired,
		Kind:     e.kind,
		Origin:   OriginBuiltin,
	}
}

// CustomSource provides the custom placeholders configured for a site.
type CustomSource interface {
	ListCustom(ctx context.Context, siteID int64) ([]Placeholder, error)
}

// Catalog classifies names against the builtin table and an optional set of
// site-scoped custom placeholders. The zero value knows only the builtins.
type Catalog struct {
	custom map[string]Placeholder
	order  []string
}

// NewCatalog builds a catalog with the given custom placeholders merged in.
// Custom entries whose name equals a builtin are ignored.
func NewCatalog(custom []Placeholder) Catalog {
	c := Catalog{custom: make(map[string]Placeholder, len(custom))}
	for _, p := range custom {
		if p.Name == "" || IsBuiltin(p.Name) {
			continue
		}
		if _, dup := c.custom[p.Name]; dup {
			continue
		}
		p.Origin = OriginCustom
		p.Required = false
		c.custom[p.Name] = p
		c.order = append(c.order, p.Name)
	}
	return c
}

// ForSite loads the custom placeholders of siteID and merges them with the
// builtins.
func ForSite(ctx context.Context, src CustomSource, siteID int64) (Catalog, error) {
	if src == nil {
		return Catalog{}, nil
	}
	custom, err := src.ListCustom(ctx, siteID)
	if err != nil {
		return Catalog{}, fmt.Errorf("load custom placeholders for site %d: %w", siteID, err)
	}
	return NewCatalog(custom), nil
}

// Classify returns the class of name. Builtins take precedence over custom
// entries.
func (c Catalog) Classify(name string) Class {
	if e, ok := builtinIndex[name]; ok {
		return e.class
	}
	if _, ok := c.custom[name]; ok {
		return ClassCustom
	}
	return ClassUnknown
}

// Lookup returns the placeholder definition for name.
func (c Catalog) Lookup(name string) (Placeholder, bool) {
	if e, ok := builtinIndex[name]; ok {
		return e.placeholder(), true
	}
	p, ok := c.custom[name]
	return p, ok
}

// Custom returns the custom placeholders in the order they were configured.
func (c Catalog) Custom() []Placeholder {
	out := make([]Placeholder, 0, len(c.order))
	for _, n := range c.order {
		out = append(out, c.custom[n])
	}
	return out
}
