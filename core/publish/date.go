package publish

import (
	"fmt"
	"strings"
	"time"
)

// dateLayouts are the publication date formats authors may type.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04",
	"2006-1-2 15:04",
	"2006-01-02",
	"2006-1-2",
	"02.01.2006 15:04",
	"2.1.2006 15:04",
	"02.01.2006",
	"2.1.2006",
}

// ParseDate reads a publication date typed by an author. Dates without a
// zone are taken in loc, or UTC when loc is nil.
func ParseDate(input string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	s := strings.TrimSpace(input)
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}
