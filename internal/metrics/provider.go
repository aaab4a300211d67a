package metrics

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
)

const (
	serviceName       = "gamemetrics"
	meterName         = "gamemetrics"
	requestCount      = "rcon_request_count"
	requestLatency    = "rcon_request_latency_seconds"
	playersOnlineLast = "players_online_last"
)

// RCON round trips range from sub-millisecond on loopback up to the 13s
// default read timeout.
var latencyBuckets = []float64{0.001, 0.005, 0.025, 0.1, 0.5, 1, 2.5, 5, 13}

// Provider owns the OpenTelemetry meter provider behind the self-telemetry
// endpoint. Player counts for scrapers are not exported through it.
type Provider struct {
	provider *sdkmetric.MeterProvider
}

// NewProvider wires a Prometheus reader into a meter provider and makes it
// the process-wide default, so recorders built afterwards report through it.
func NewProvider() (*Provider, error) {
	res, err := newResource()
	if err != nil {
		return nil, err
	}
	reader, err := prometheus.New(prometheus.WithNamespace(serviceName))
	if err != nil {
		return nil, fmt.Errorf("create prometheus reader: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
		sdkmetric.WithResource(res),
	)
	otel.SetMeterProvider(mp)
	return &Provider{provider: mp}, nil
}

func newResource() (*resource.Resource, error) {
	host, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("lookup hostname: %w", err)
	}
	return resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceNameKey.String(serviceName),
		semconv.HostNameKey.String(host),
	), nil
}

// Shutdown flushes and stops the meter provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.provider == nil {
		return nil
	}
	return p.provider.Shutdown(ctx)
}

// Handler serves the default Prometheus registry, which the reader registers with.
func (p *Provider) Handler() http.Handler {
	return promhttp.Handler()
}

// NewRCONRecorder builds the request counter and latency histogram from the
// global meter provider.
func NewRCONRecorder() (RCONRecorder, error) {
	meter := otel.Meter(meterName)
	count, err := meter.Int64Counter(requestCount,
		metric.WithDescription("RCON requests by operation and outcome."),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", requestCount, err)
	}
	latency, err := meter.Float64Histogram(requestLatency,
		metric.WithDescription("RCON request duration by operation."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(latencyBuckets...),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", requestLatency, err)
	}
	return &rconRecorder{count: count, latency: latency}, nil
}

// NewPlayerCountRecorder builds the gauge holding the last count served per game.
func NewPlayerCountRecorder() (PlayerCountRecorder, error) {
	gauge, err := otel.Meter(meterName).Int64Gauge(playersOnlineLast,
		metric.WithDescription("Player count returned by the most recent successful scrape."),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", playersOnlineLast, err)
	}
	return &playerCountRecorder{gauge: gauge}, nil
}

type rconRecorder struct {
	count   metric.Int64Counter
	latency metric.Float64Histogram
}

func (r *rconRecorder) RecordRequest(ctx context.Context, op string, errType string, d time.Duration) {
	opAttr := attribute.String("op", op)
	r.count.Add(ctx, 1, metric.WithAttributes(opAttr, attribute.String("error", errType)))
	r.latency.Record(ctx, d.Seconds(), metric.WithAttributes(opAttr))
}

type playerCountRecorder struct {
	gauge metric.Int64Gauge
}

func (r *playerCountRecorder) RecordPlayersOnline(ctx context.Context, game string, count int64) {
	r.gauge.Record(ctx, count, metric.WithAttributes(attribute.String("game", game)))
}
