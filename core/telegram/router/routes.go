package router

import (
	"log/slog"
	"time"

	"github.com/m3rciful/relaybot/core/logger"
	tg "github.com/m3rciful/relaybot/core/telegram"
	tghelpers "github.com/m3rciful/relaybot/core/telegram/helpers"
	"github.com/m3rciful/relaybot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// Bridge returns a telebot handler that feeds events into h.
func Bridge(h Handler) tele.HandlerFunc {
	return func(c tele.Context) error {
		start := time.Now()
		ev, ok := EventFromContext(c)
		if !ok {
			logHandlerSummary(c, "unsupported", start, "skip", "ignored", nil)
			return nil
		}
		if ev.Kind == KindCallback {
			// Stop the client spinner; the handler answers with messages.
			_ = c.Respond()
		}
		name := ev.Kind.String()
		if ev.Kind == KindCommand {
			name = "command." + normalizeHandlerName(ev.Command())
		}
		extras := []slog.Attr{slog.String("kind", ev.Kind.String())}
		return handleWithSummary(c, name, start, "", "", func() error {
			return h.Handle(tghelpers.WithHandler(c, name), ev)
		}, extras...)
	}
}

// EventRoutes binds text, media and callback endpoints to h. Commands are
// bound separately through the registry so they appear in the bot menu.
func EventRoutes(h Handler) []tg.Route {
	bridge := Bridge(h)
	wrap := func(fn tele.HandlerFunc) tele.HandlerFunc {
		return middleware.RecoverMiddleware(middleware.LoggerMiddleware(fn))
	}
	media := func(c tele.Context) error {
		logHandlerSummary(c, "media", time.Now(), "skip", "ignored", nil,
			slog.String("kind", "media"),
		)
		return nil
	}

	routes := []tg.Route{
		{Endpoint: tele.OnText, Handler: wrap(bridge)},
		{Endpoint: tele.OnCallback, Handler: wrap(bridge)},
	}
	for _, ep := range []string{tele.OnPhoto, tele.OnDocument, tele.OnVideo, tele.OnVoice, tele.OnSticker, tele.OnAudio} {
		routes = append(routes, tg.Route{Endpoint: ep, Handler: wrap(media)})
	}

	logger.TWire.Debug("tg.wire",
		slog.String("event", "event_routes"),
		slog.Int("routes", len(routes)),
	)
	return routes
}
