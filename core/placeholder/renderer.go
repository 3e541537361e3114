package placeholder

import (
	"fmt"
	"strings"
)

// Render substitutes every {{NAME}} in text with values[NAME]. It fails with
// a *MissingPlaceholdersError naming every referenced placeholder without a
// value. Substitution happens in a single pass, so values are never scanned
// for further placeholders.
func Render(text string, values map[string]string) (string, error) {
	var missing []string
	for _, name := range Names(text) {
		if _, ok := values[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return "", newMissingError(missing)
	}
	return tokenRe.ReplaceAllStringFunc(text, func(tok string) string {
		name := strings.TrimSpace(tok[2 : len(tok)-2])
		if name == "" {
			return tok
		}
		return values[name]
	}), nil
}

// RenderAny is Render for arbitrary values, formatted with fmt.Sprint.
// A nil value renders as the empty string.
func RenderAny(text string, values map[string]any) (string, error) {
	str := make(map[string]string, len(values))
	for k, v := range values {
		if v == nil {
			str[k] = ""
			continue
		}
		str[k] = fmt.Sprint(v)
	}
	return Render(text, str)
}
