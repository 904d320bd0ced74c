package telegram

import (
	"github.com/m3rciful/relaybot/core/telegram/middleware"
)

// MiddlewareOptions configures DefaultMiddlewares.
type MiddlewareOptions struct {
	// AdminID restricts inline button presses to the operator.
	AdminID int64
	// Exchanges receives pending replies before routing; nil disables interception.
	Exchanges middleware.Deliverer
}

// DefaultMiddlewares builds the shared middleware chain for bots.
func DefaultMiddlewares(opts MiddlewareOptions) []Middleware {
	mws := []Middleware{
		{Name: "recover", Use: middleware.RecoverMiddleware},
		{Name: "logger", Use: middleware.LoggerMiddleware},
		{Name: "metrics", Use: middleware.MetricsMiddleware},
	}
	if opts.AdminID != 0 {
		mws = append(mws, Middleware{Name: "callback_access", Use: middleware.CallbackAccessMiddleware(opts.AdminID)})
	}
	if opts.Exchanges != nil {
		mws = append(mws, Middleware{Name: "exchange", Use: middleware.ExchangeMiddleware(opts.Exchanges)})
	}
	return mws
}
