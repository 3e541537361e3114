package middleware

import tele "gopkg.in/telebot.v4"

// AdminOptions configures AdminOnlyMiddleware. OnReject answers everyone
// else and may be nil.
type AdminOptions struct {
	AdminID  int64
	OnReject tele.HandlerFunc
}

// AdminOnlyMiddleware lets only the admin through. A zero AdminID rejects
// everyone.
func AdminOnlyMiddleware(opts AdminOptions) tele.MiddlewareFunc {
	return Restrict(func(u *tele.User) bool {
		return opts.AdminID != 0 && u.ID == opts.AdminID
	}, opts.OnReject)
}

// Restrict passes updates whose sender satisfies allow. Others, including
// updates without a sender, go to onReject.
func Restrict(allow func(*tele.User) bool, onReject tele.HandlerFunc) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if u := c.Sender(); u != nil && allow(u) {
				return next(c)
			}
			if onReject == nil {
				return nil
			}
			return onReject(c)
		}
	}
}
