package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewTracerProvider(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		core, logs := observer.New(zap.InfoLevel)
		tp, err := NewTracerProvider(context.Background(), Config{}, zap.New(core))
		require.NoError(t, err)

		assert.False(t, tp.IsEnabled())
		assert.NotNil(t, tp.Tracer("test"))
		assert.NoError(t, tp.Shutdown(context.Background()))
		assert.Equal(t, 1, logs.FilterMessage("Tracing disabled").Len())
	})

	t.Run("enabled", func(t *testing.T) {
		// the gRPC exporter dials lazily, so no collector is needed
		tp, err := NewTracerProvider(context.Background(), Config{
			Enabled:           true,
			CollectorEndpoint: "localhost:4317",
			SamplingRatio:     0.5,
			ServiceName:       "coliving-test",
			Environment:       "test",
			Insecure:          true,
		}, zap.NewNop())
		require.NoError(t, err)

		assert.True(t, tp.IsEnabled())
		_, span := tp.Tracer("test").Start(context.Background(), "op")
		span.End()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = tp.Shutdown(ctx)
	})
}

func TestSamplerFor(t *testing.T) {
	tests := []struct {
		ratio float64
		want  string
	}{
		{1, "AlwaysOnSampler"},
		{2, "AlwaysOnSampler"},
		{0, "AlwaysOffSampler"},
		{-1, "AlwaysOffSampler"},
		{0.25, "TraceIDRatioBased{0.25}"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, samplerFor(tt.ratio).Description(), "ratio %v", tt.ratio)
	}
}

func TestNewMeterProvider(t *testing.T) {
	t.Run("disabled hands out working meters", func(t *testing.T) {
		mp, err := NewMeterProvider(context.Background(), MetricsConfig{}, zap.NewNop())
		require.NoError(t, err)

		assert.False(t, mp.IsEnabled())
		c, err := NewCounter(mp.Meter("test"), "noop_total", "noop", "1")
		require.NoError(t, err)
		c.Inc(context.Background())
		assert.NoError(t, mp.Shutdown(context.Background()))
	})

	t.Run("enabled", func(t *testing.T) {
		mp, err := NewMeterProvider(context.Background(), MetricsConfig{
			Enabled:           true,
			CollectorEndpoint: "localhost:4317",
			ServiceName:       "coliving-test",
			Insecure:          true,
		}, zap.NewNop())
		require.NoError(t, err)
		assert.True(t, mp.IsEnabled())

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = mp.Shutdown(ctx)
	})
}

func TestCounter(t *testing.T) {
	reader, provider := newTestMeter(t)
	c, err := NewCounter(provider.Meter("test"), "charges_total", "Charges", "{charges}")
	require.NoError(t, err)

	ctx := context.Background()
	c.Inc(ctx, AttrPaymentMethod.String("visa"))
	c.Add(ctx, 4, AttrPaymentMethod.String("visa"))
	c.Inc(ctx, AttrPaymentMethod.String("cash"))

	data := collect(t, reader)
	assert.Equal(t, int64(5), sumFor(t, data["charges_total"], AttrPaymentMethod.String("visa")))
	assert.Equal(t, int64(6), sumFor(t, data["charges_total"]))
}

func TestHistogram(t *testing.T) {
	reader, provider := newTestMeter(t)
	h, err := NewHistogram(provider.Meter("test"), HistogramOpts{
		Name:       "render_seconds",
		Unit:       "s",
		Boundaries: HTTPDurationBuckets,
	})
	require.NoError(t, err)

	ctx := context.Background()
	h.Record(ctx, 0.02)
	h.RecordDuration(ctx, 1500*time.Millisecond)

	hist, ok := collect(t, reader)["render_seconds"].(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	dp := hist.DataPoints[0]
	assert.Equal(t, uint64(2), dp.Count)
	assert.InDelta(t, 1.52, dp.Sum, 1e-9)
	assert.Equal(t, HTTPDurationBuckets, dp.Bounds)
}
