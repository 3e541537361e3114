// Package placeholder discovers, classifies, validates and substitutes
// {{NAME}} slots inside uploaded HTML templates.
package placeholder

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Kind is the declared value type of a placeholder.
type Kind string

const (
	// KindText accepts any value.
	KindText Kind = "text"
	// KindNumber accepts values that parse as a floating point number.
	KindNumber Kind = "number"
	// KindURL accepts http:// and https:// links.
	KindURL Kind = "url"
	// KindEnumerated accepts one of a fixed list of options.
	KindEnumerated Kind = "enumerated"
)

// Kinds lists every supported kind in display order.
func Kinds() []Kind {
	return []Kind{KindText, KindNumber, KindURL, KindEnumerated}
}

// ParseKind maps user input or a stored column value to a Kind.
// Legacy labels written by earlier deployments are accepted as aliases.
func ParseKind(raw string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "text", "texto", "":
		return KindText, nil
	case "number", "numero", "número":
		return KindNumber, nil
	case "url":
		return KindURL, nil
	case "enumerated", "enum", "desplegable":
		return KindEnumerated, nil
	}
	return "", fmt.Errorf("unknown placeholder kind %q", raw)
}

// Origin tells whether a placeholder is part of the builtin catalog or was
// configured by a site owner.
type Origin string

const (
	OriginBuiltin Origin = "builtin"
	OriginCustom  Origin = "custom"
)

// Placeholder is a named template slot.
type Placeholder struct {
	Name     string
	Label    string
	Required bool
	Kind     Kind
	Options  []string
	Origin   Origin
}

// Token returns the placeholder as written in a template.
func (p Placeholder) Token() string {
	return Token(p.Name)
}

// Accepts reports whether raw is a valid value for p.
func (p Placeholder) Accepts(raw string) bool {
	return ValidateOptions(p.Kind, raw, p.Options)
}

// Token wraps name in the template delimiters.
func Token(name string) string {
	return "{{" + name + "}}"
}

// StripToken removes surrounding delimiters, if present, and trims blanks.
func StripToken(token string) string {
	t := strings.TrimSpace(token)
	if strings.HasPrefix(t, "{{") && strings.HasSuffix(t, "}}") {
		t = strings.TrimSpace(t[2 : len(t)-2])
	}
	return t
}

// ErrNameCollision is returned when a custom placeholder would shadow a
// builtin one.
var ErrNameCollision = errors.New("placeholder name collides with a builtin placeholder")

// ValidationError is a recoverable refusal of user input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

// Code exposes a stable identifier for handler summaries.
func (e *ValidationError) Code() string { return "VALIDATION" }

// MissingPlaceholdersError lists every placeholder that could not be resolved.
type MissingPlaceholdersError struct {
	Names []string
}

func newMissingError(names []string) *MissingPlaceholdersError {
	uniq := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if _, ok := uniq[n]; ok {
			continue
		}
		uniq[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	return &MissingPlaceholdersError{Names: out}
}

func (e *MissingPlaceholdersError) Error() string {
	return "missing placeholders: " + strings.Join(e.Names, ", ")
}

// Code exposes a stable identifier for handler summaries.
func (e *MissingPlaceholdersError) Code() string { return "MISSING_PLACEHOLDER" }
