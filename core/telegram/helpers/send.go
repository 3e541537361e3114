package helpers

import (
	"sync/atomic"

	"github.com/m3rciful/pressbot/core/telegram/sender"

	tele "gopkg.in/telebot.v4"
)

var globalSender atomic.Pointer[sender.Sender]

// SetSender wires the retrying sender used by helper functions. With nil
// helpers call Telegram once.
func SetSender(s *sender.Sender) {
	globalSender.Store(s)
}

func send(c tele.Context, action string, run func() error) error {
	s := globalSender.Load()
	if s == nil {
		return run()
	}
	return s.Do(BuildContext(c), action, run)
}

// SendText sends raw text (no parse mode) to the current recipient.
func SendText(c tele.Context, text string, opts ...*tele.SendOptions) error {
	var sendOpts *tele.SendOptions
	if len(opts) > 0 {
		sendOpts = opts[0]
	}
	return send(c, "send.text", func() error {
		if sendOpts != nil {
			return c.Send(text, sendOpts)
		}
		return c.Send(text)
	})
}

// Respond acknowledges a callback query, clearing the client's spinner.
func Respond(c tele.Context, text string) error {
	if c.Callback() == nil {
		return nil
	}
	return send(c, "callback.respond", func() error {
		if text == "" {
			return c.Respond()
		}
		return c.Respond(&tele.CallbackResponse{Text: text})
	})
}
