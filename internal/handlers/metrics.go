package handlers

import (
	"net/http"

	"media-curator/internal/logging"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsHandler returns the Prometheus metrics handler
func (h *Handlers) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{
		ErrorLog:          metricsErrorLogger{},
		EnableOpenMetrics: true,
	})
}

type metricsErrorLogger struct{}

func (metricsErrorLogger) Println(v ...any) {
	logging.Warn("metrics: %v", v)
}
