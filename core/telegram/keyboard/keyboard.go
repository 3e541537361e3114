// Package keyboard builds inline keyboards and decodes the callbacks their
// buttons produce.
package keyboard

import (
	"strings"

	tele "gopkg.in/telebot.v4"
)

// Button is an inline button. Pressing it produces a callback for Action
// carrying Arg.
type Button struct {
	Text   string
	Action string
	Arg    string
}

// Inline builds an inline keyboard, one keyboard row per row. Empty rows
// are dropped.
func Inline(rows ...[]Button) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		line := make([]tele.InlineButton, 0, len(row))
		for _, b := range row {
			var data []string
			if b.Arg != "" {
				data = append(data, b.Arg)
			}
			line = append(line, *markup.Data(b.Text, b.Action, data...).Inline())
		}
		markup.InlineKeyboard = append(markup.InlineKeyboard, line)
	}
	return markup
}

// Decode splits callback data in telebot's "\f<action>|<arg>" encoding. The
// arg may itself contain '|'.
func Decode(cb *tele.Callback) (action, arg string) {
	if cb == nil {
		return "", ""
	}
	if cb.Unique != "" {
		return cb.Unique, cb.Data
	}
	action, arg, _ = strings.Cut(strings.TrimPrefix(cb.Data, "\f"), "|")
	return strings.TrimSpace(action), arg
}

// Action returns the action of the callback of c.
func Action(c tele.Context) string {
	action, _ := Decode(c.Callback())
	return action
}
