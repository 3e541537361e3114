// Package publish turns a finished post into a rendered page and delivers it
// to the site's publish directory.
package publish

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// DefaultCategory is used when a post has no category.
const DefaultCategory = "general"

// Slugify lowercases s, strips accents and joins the remaining words with
// dashes. Characters other than a-z, 0-9, blanks and dashes are dropped.
func Slugify(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	plain, _, err := transform.String(t, strings.ToLower(s))
	if err != nil {
		plain = strings.ToLower(s)
	}

	var b strings.Builder
	dash := false
	for _, r := range plain {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if dash && b.Len() > 0 {
				b.WriteByte('-')
			}
			dash = false
			b.WriteRune(r)
		case unicode.IsSpace(r), r == '-', r == '_':
			dash = true
		}
	}
	return b.String()
}

// CategorySlug returns the path segment of a category.
func CategorySlug(category string) string {
	if s := Slugify(category); s != "" {
		return s
	}
	return DefaultCategory
}
