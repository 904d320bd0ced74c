// Package broadcast delivers one operator message to every non-blocked user.
package broadcast

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/m3rciful/relaybot/bot/messages"
	"github.com/m3rciful/relaybot/core/logger"
	"github.com/m3rciful/relaybot/core/telegram/sender"
)

var deliveries = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "relaybot",
	Subsystem: "broadcast",
	Name:      "deliveries_total",
	Help:      "Broadcast deliveries by result.",
}, []string{"result"})

// Recipients lists the ids a broadcast goes to.
type Recipients interface {
	RecipientIDs(ctx context.Context) ([]int64, error)
}

// Tally counts the per-recipient results.
type Tally struct {
	Sent   int
	Failed int
}

// Broadcaster sends broadcasts sequentially.
type Broadcaster struct {
	recipients Recipients
	msg        sender.Messenger
}

// New returns a broadcaster.
func New(r Recipients, msg sender.Messenger) *Broadcaster {
	return &Broadcaster{recipients: r, msg: msg}
}

// Send delivers text to every recipient in order. A failed recipient is
// counted and skipped. Cancellation stops the batch and returns the partial
// tally with the context error.
func (b *Broadcaster) Send(ctx context.Context, text string) (Tally, error) {
	ids, err := b.recipients.RecipientIDs(ctx)
	if err != nil {
		return Tally{}, fmt.Errorf("broadcast: recipients: %w", err)
	}
	start := time.Now()
	body := messages.BroadcastBody(text)
	var t Tally
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return t, err
		}
		if _, err := b.msg.Send(ctx, id, body, nil); err != nil {
			t.Failed++
			deliveries.WithLabelValues("failed").Inc()
			logger.Warn(ctx, "broadcast", "broadcast.send_failed", slog.Int64("target_id", id), logger.Err(err))
			continue
		}
		t.Sent++
		deliveries.WithLabelValues("sent").Inc()
	}
	logger.Info(ctx, "broadcast", "broadcast.done",
		slog.Int("sent", t.Sent),
		slog.Int("failed", t.Failed),
		slog.Duration("duration", logger.Took(start)),
	)
	return t, nil
}
