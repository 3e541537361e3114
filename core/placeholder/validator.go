package placeholder

import (
	"errors"
	"strconv"
	"strings"
)

// Validate checks raw against kind. options is the comma separated list of
// allowed values used by KindEnumerated. Empty values are always accepted;
// optionality is enforced by callers.
func Validate(kind Kind, raw, options string) bool {
	return ValidateOptions(kind, raw, SplitOptions(options))
}

// ValidateOptions is Validate with a pre-split option list.
func ValidateOptions(kind Kind, raw string, options []string) bool {
	if raw == "" {
		return true
	}
	switch kind {
	case KindNumber:
		return isNumber(strings.TrimSpace(raw))
	case KindURL:
		return strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://")
	case KindEnumerated:
		v := strings.TrimSpace(raw)
		for _, opt := range options {
			if strings.TrimSpace(opt) == v {
				return true
			}
		}
		return false
	default:
		return true
	}
}

// isNumber accepts decimal floats. Values too large for a float64 still
// count as numbers; hexadecimal notation does not.
func isNumber(v string) bool {
	digits := strings.TrimLeft(v, "+-")
	if len(digits) > 1 && digits[0] == '0' && (digits[1] == 'x' || digits[1] == 'X') {
		return false
	}
	_, err := strconv.ParseFloat(v, 64)
	return err == nil || errors.Is(err, strconv.ErrRange)
}

// SplitOptions splits a comma separated option string, trimming every entry
// and dropping blanks.
func SplitOptions(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// JoinOptions is the inverse of SplitOptions.
func JoinOptions(opts []string) string {
	return strings.Join(opts, ",")
}
