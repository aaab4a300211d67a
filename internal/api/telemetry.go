package api

import (
	"net/http"
	"time"
)

// TelemetryPath is the path for the self-telemetry Prometheus handler.
const TelemetryPath = "/metrics"

// NewTelemetryServer returns an HTTP server that serves the exporter's own
// metrics at TelemetryPath.
func NewTelemetryServer(addr string, metricsHandler http.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(TelemetryPath, metricsHandler)

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
