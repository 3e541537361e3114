package placeholder

import (
	"regexp"
	"strings"
)

// tokenRe matches {{NAME}}; NAME is anything without braces.
var tokenRe = regexp.MustCompile(`\{\{([^{}]+)\}\}`)

// Scan is the classification of the placeholders referenced by a template.
type Scan struct {
	Required []string
	Optional []string
	Auto     []string
	Custom   []string
	Missing  []string
	Unknown  []string
}

// OK reports whether every required builtin is present.
func (s Scan) OK() bool {
	return len(s.Missing) == 0
}

// MissingError returns the failure for a scan with missing required names,
// or nil.
func (s Scan) MissingError() error {
	if s.OK() {
		return nil
	}
	return newMissingError(s.Missing)
}

// Names extracts the distinct placeholder names referenced by text in
// first-seen order.
func Names(text string) []string {
	matches := tokenRe.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(matches))
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		name := strings.TrimSpace(m[1])
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

// ScanTemplate classifies the placeholders of text against cat. It is a text
// pattern match, so malformed HTML does not prevent discovery. The catalog
// is only read.
func ScanTemplate(text string, cat Catalog) Scan {
	var s Scan
	present := make(map[string]struct{})
	for _, name := range Names(text) {
		present[name] = struct{}{}
		switch cat.Classify(name) {
		case ClassRequired:
			s.Required = append(s.Required, name)
		case ClassOptional:
			s.Optional = append(s.Optional, name)
		case ClassAuto:
			s.Auto = append(s.Auto, name)
		case ClassCustom:
			s.Custom = append(s.Custom, name)
		default:
			s.Unknown = append(s.Unknown, name)
		}
	}
	for _, name := range RequiredNames() {
		if _, ok := present[name]; !ok {
			s.Missing = append(s.Missing, name)
		}
	}
	return s
}
