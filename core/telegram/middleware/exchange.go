package middleware

import (
	"log/slog"
	"strings"

	"github.com/m3rciful/relaybot/core/logger"
	"github.com/m3rciful/relaybot/core/telegram/conversation"
	tghelpers "github.com/m3rciful/relaybot/core/telegram/helpers"

	tele "gopkg.in/telebot.v4"
)

// Deliverer accepts replies for open prompt-response exchanges.
type Deliverer interface {
	Deliver(senderID int64, reply conversation.Reply) bool
}

// ExchangeMiddleware offers every plain text message to the open exchanges
// before routing. A consumed message never reaches the downstream handler.
// Commands and callbacks are not offered.
func ExchangeMiddleware(table Deliverer) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			msg := c.Message()
			if table == nil || c.Callback() != nil || msg == nil || msg.Sender == nil {
				return next(c)
			}
			text := msg.Text
			if text == "" || strings.HasPrefix(text, "/") {
				return next(c)
			}
			if !table.Deliver(msg.Sender.ID, conversation.Reply{Text: text, MessageID: msg.ID}) {
				return next(c)
			}
			ctx := tghelpers.BuildContext(c)
			logger.LogEvent(ctx, logger.TG, slog.LevelDebug, "exchange.delivered",
				slog.Int64("user_id", msg.Sender.ID),
				slog.Int("chars", len([]rune(text))),
			)
			return nil
		}
	}
}
