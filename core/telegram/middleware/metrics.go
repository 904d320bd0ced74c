package middleware

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	tele "gopkg.in/telebot.v4"
)

var (
	updatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "relaybot",
		Subsystem: "updates",
		Name:      "received_total",
		Help:      "Telegram updates received, by kind.",
	}, []string{"kind"})

	handlerErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "relaybot",
		Subsystem: "updates",
		Name:      "errors_total",
		Help:      "Updates whose handler returned an error, by kind.",
	}, []string{"kind"})

	handlerSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "relaybot",
		Subsystem: "updates",
		Name:      "handle_seconds",
		Help:      "Time spent in the dispatch loop per update.",
		Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
	}, []string{"kind"})
)

// UpdateKind classifies an update for metrics and logs.
func UpdateKind(c tele.Context) string {
	upd := c.Update()
	switch {
	case upd.Callback != nil:
		return "callback"
	case upd.Message != nil && upd.Message.Text != "" && upd.Message.Text[0] == '/':
		return "command"
	case upd.Message != nil && upd.Message.Text != "":
		return "text"
	case upd.Message != nil:
		return "media"
	}
	return "other"
}

// MetricsMiddleware counts updates and records handling latency.
func MetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		kind := UpdateKind(c)
		updatesTotal.WithLabelValues(kind).Inc()
		start := time.Now()
		err := next(c)
		handlerSeconds.WithLabelValues(kind).Observe(time.Since(start).Seconds())
		if err != nil {
			handlerErrors.WithLabelValues(kind).Inc()
		}
		return err
	}
}
