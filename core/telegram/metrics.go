package telegram

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	coreconfig "github.com/m3rciful/relaybot/core/config"
	"github.com/m3rciful/relaybot/core/logger"
)

// StartMetricsServer exposes the Prometheus registry on cfg.Listen. It
// returns a stop function; with an empty listen address nothing is started.
func StartMetricsServer(cfg coreconfig.MetricsConfig) func() {
	listen := strings.TrimSpace(cfg.Listen)
	if listen == "" {
		return func() {}
	}
	path := cfg.Path
	if path == "" {
		path = "/metrics"
	}
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.Handler())
	srv := &http.Server{Addr: listen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.TG.Info("metrics listening",
			slog.String("event", "metrics.listen"),
			slog.String("listen", listen),
			slog.String("path", path),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.TG.Error("metrics server failed",
				slog.String("event", "metrics.listen"),
				logger.Err(err),
			)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
