package middleware

import tele "gopkg.in/telebot.v4"

// AccessDeniedText answers callback presses from anyone but the operator.
const AccessDeniedText = "Access denied"

// AdminOptions defines how admin-only checks should behave.
type AdminOptions struct {
	AdminID  int64
	OnReject tele.HandlerFunc
}

// AdminOnlyMiddleware ensures that only the admin user can invoke downstream handlers.
func AdminOnlyMiddleware(opts AdminOptions) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if opts.AdminID != 0 && (c.Sender() == nil || c.Sender().ID != opts.AdminID) {
				if opts.OnReject != nil {
					return opts.OnReject(c)
				}
				return nil
			}
			return next(c)
		}
	}
}

// CallbackAccessMiddleware lets only the operator press inline buttons.
// Other callback presses are answered with an "access denied" alert and
// dropped; messages pass through to the routes.
func CallbackAccessMiddleware(adminID int64) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if c.Callback() == nil || (c.Sender() != nil && c.Sender().ID == adminID) {
				return next(c)
			}
			return c.Respond(&tele.CallbackResponse{Text: AccessDeniedText, ShowAlert: true})
		}
	}
}
