package keyboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tele "gopkg.in/telebot.v4"
)

func TestInline(t *testing.T) {
	m := Inline(
		[]Button{{Text: "Publish", Action: "post_publish"}, {Text: "Edit", Action: "post_edit"}},
		nil,
		[]Button{{Text: "number", Action: "ph_kind", Arg: "number"}},
	)
	require.Len(t, m.InlineKeyboard, 2)
	assert.Len(t, m.InlineKeyboard[0], 2)
	assert.Equal(t, "Publish", m.InlineKeyboard[0][0].Text)
	assert.Equal(t, "post_publish", m.InlineKeyboard[0][0].Unique)
	assert.Equal(t, "number", m.InlineKeyboard[1][0].Data)
}

func TestDecode(t *testing.T) {
	cases := []struct {
		cb     *tele.Callback
		action string
		arg    string
	}{
		{nil, "", ""},
		{&tele.Callback{Data: "\fph_kind|number"}, "ph_kind", "number"},
		{&tele.Callback{Data: "\fcancel"}, "cancel", ""},
		{&tele.Callback{Data: "post_field|custom:A|B"}, "post_field", "custom:A|B"},
		{&tele.Callback{Unique: "post_choice", Data: "Red"}, "post_choice", "Red"},
	}
	for _, tc := range cases {
		action, arg := Decode(tc.cb)
		assert.Equal(t, tc.action, action)
		assert.Equal(t, tc.arg, arg)
	}
}
