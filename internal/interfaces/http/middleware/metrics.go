package middleware

import (
	"time"

	"github.com/coliving/backend/internal/infrastructure/telemetry"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// HTTPMetricsConfig selects the meter provider for HTTPMetrics
type HTTPMetricsConfig struct {
	MeterProvider *telemetry.MeterProvider
	Enabled       bool
}

var sizeBuckets = []float64{100, 500, 1e3, 5e3, 1e4, 5e4, 1e5, 5e5, 1e6, 5e6}

type httpInstruments struct {
	requests      *telemetry.Counter
	duration      *telemetry.Histogram
	requestBytes  *telemetry.Histogram
	responseBytes *telemetry.Histogram
	inFlight      metric.Int64UpDownCounter
}

func newHTTPInstruments(meter metric.Meter) (*httpInstruments, error) {
	var (
		in  httpInstruments
		err error
	)
	histogram := func(name, description, unit string, buckets []float64) *telemetry.Histogram {
		if err != nil {
			return nil
		}
		var h *telemetry.Histogram
		h, err = telemetry.NewHistogram(meter, telemetry.HistogramOpts{Name: name, Description: description, Unit: unit, Boundaries: buckets})
		return h
	}

	in.duration = histogram("http_server_request_duration_seconds", "HTTP request latency in seconds", "s", telemetry.HTTPDurationBuckets)
	in.requestBytes = histogram("http_server_request_size_bytes", "HTTP request body size in bytes", "By", sizeBuckets)
	in.responseBytes = histogram("http_server_response_size_bytes", "HTTP response body size in bytes", "By", sizeBuckets)
	if err != nil {
		return nil, err
	}
	if in.requests, err = telemetry.NewCounter(meter, "http_server_request_total", "HTTP requests served", "{request}"); err != nil {
		return nil, err
	}
	in.inFlight, err = meter.Int64UpDownCounter("http_server_active_requests",
		metric.WithDescription("HTTP requests in flight"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}
	return &in, nil
}

// HTTPMetrics records request counts, latency, body sizes and in-flight
// requests. Without an enabled provider it only calls the next handler.
func HTTPMetrics(cfg HTTPMetricsConfig) gin.HandlerFunc {
	if !cfg.Enabled || cfg.MeterProvider == nil || !cfg.MeterProvider.IsEnabled() {
		return passThrough
	}
	return HTTPMetricsWithMeter(cfg.MeterProvider.Meter("http.server"), true)
}

// HTTPMetricsWithMeter is HTTPMetrics on an explicit meter
func HTTPMetricsWithMeter(meter metric.Meter, enabled bool) gin.HandlerFunc {
	if !enabled {
		return passThrough
	}
	in, err := newHTTPInstruments(meter)
	if err != nil {
		return passThrough
	}

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		started := time.Now()
		in.inFlight.Add(ctx, 1)
		defer in.inFlight.Add(ctx, -1)

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		// latency and sizes by method and route only; the counter also gets
		// status and location
		attrs := []attribute.KeyValue{
			telemetry.AttrHTTPMethod.String(c.Request.Method),
			telemetry.AttrHTTPRoute.String(route),
		}
		in.duration.RecordDuration(ctx, time.Since(started), attrs...)
		if n := c.Request.ContentLength; n > 0 {
			in.requestBytes.Record(ctx, float64(n), attrs...)
		}
		if n := c.Writer.Size(); n > 0 {
			in.responseBytes.Record(ctx, float64(n), attrs...)
		}

		attrs = append(attrs, telemetry.AttrHTTPStatusCode.Int(c.Writer.Status()))
		if id := locationIDParam(c); id != "" {
			attrs = append(attrs, telemetry.AttrLocationID.String(id))
		}
		in.requests.Inc(ctx, attrs...)
	}
}

func passThrough(c *gin.Context) { c.Next() }
