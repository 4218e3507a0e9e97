package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/attendsync/backend/internal/infrastructure/telemetry"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

const unmatchedRoute = "unknown"

var responseSizeBuckets = []float64{100, 500, 1e3, 5e3, 1e4, 5e4, 1e5, 5e5, 1e6}

// HTTPMetricsConfig holds configuration for HTTP metrics middleware
type HTTPMetricsConfig struct {
	MeterProvider *telemetry.MeterProvider
	Logger        *zap.Logger
}

// httpInstruments records, per route pattern:
//
//	http_server_request_total{http.method,http.route,http.status_code}
//	http_server_request_duration_seconds{http.method,http.route}
//	http_server_response_size_bytes{http.method,http.route}
//	http_server_active_requests
//	http_server_sync_trigger_total{http.route,http.status_code}
type httpInstruments struct {
	requests *telemetry.Counter
	duration *telemetry.Histogram
	size     *telemetry.Histogram
	inFlight metric.Int64UpDownCounter
	triggers *telemetry.Counter
}

func newHTTPInstruments(meter metric.Meter) (*httpInstruments, error) {
	var (
		in  httpInstruments
		err error
	)
	if in.requests, err = telemetry.NewCounter(meter, "http_server_request_total",
		"Admin API requests", "{request}"); err != nil {
		return nil, err
	}
	if in.duration, err = telemetry.NewHistogram(meter, telemetry.HistogramOpts{
		Name:        "http_server_request_duration_seconds",
		Description: "Admin API request latency",
		Unit:        "s",
		Boundaries:  telemetry.HTTPDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if in.size, err = telemetry.NewHistogram(meter, telemetry.HistogramOpts{
		Name:        "http_server_response_size_bytes",
		Description: "Admin API response body size",
		Unit:        "By",
		Boundaries:  responseSizeBuckets,
	}); err != nil {
		return nil, err
	}
	if in.inFlight, err = meter.Int64UpDownCounter("http_server_active_requests",
		metric.WithDescription("Admin API requests in flight"),
		metric.WithUnit("{request}")); err != nil {
		return nil, err
	}
	if in.triggers, err = telemetry.NewCounter(meter, "http_server_sync_trigger_total",
		"Operator triggered sync runs by endpoint and response status", "{run}"); err != nil {
		return nil, err
	}
	return &in, nil
}

func (in *httpInstruments) handle(c *gin.Context) {
	ctx := c.Request.Context()
	start := time.Now()

	in.inFlight.Add(ctx, 1)
	c.Next()
	in.inFlight.Add(ctx, -1)

	route := c.FullPath()
	if route == "" {
		route = unmatchedRoute
	}
	status := telemetry.AttrHTTPStatusCode.Int(c.Writer.Status())
	attrs := []attribute.KeyValue{
		telemetry.AttrHTTPMethod.String(c.Request.Method),
		telemetry.AttrHTTPRoute.String(route),
	}

	in.requests.Inc(ctx, append(attrs, status)...)
	in.duration.RecordDuration(ctx, time.Since(start), attrs...)
	if n := c.Writer.Size(); n > 0 {
		in.size.Record(ctx, float64(n), attrs...)
	}
	if isSyncTrigger(c.Request.Method, route) {
		in.triggers.Inc(ctx, telemetry.AttrHTTPRoute.String(route), status)
	}
}

// isSyncTrigger matches the POST endpoints that start an ingestion or
// reconciliation run
func isSyncTrigger(method, route string) bool {
	return method == http.MethodPost && (strings.Contains(route, "/sync/") || strings.HasSuffix(route, "/run"))
}

// HTTPMetrics records request metrics labelled by route pattern. Without an
// enabled meter provider it only calls the next handler.
func HTTPMetrics(cfg HTTPMetricsConfig) gin.HandlerFunc {
	if cfg.MeterProvider == nil || !cfg.MeterProvider.IsEnabled() {
		return passThrough
	}
	return HTTPMetricsWithMeter(cfg.MeterProvider.Meter("http.server"), cfg.Logger)
}

// HTTPMetricsWithMeter is HTTPMetrics on an explicit meter
func HTTPMetricsWithMeter(meter metric.Meter, log *zap.Logger) gin.HandlerFunc {
	in, err := newHTTPInstruments(meter)
	if err != nil {
		if log != nil {
			log.Warn("HTTP metrics disabled", zap.Error(err))
		}
		return passThrough
	}
	return in.handle
}

func passThrough(c *gin.Context) { c.Next() }
