package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/coliving/backend/internal/infrastructure/telemetry"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// setupTestMeter sets up a test meter provider and reader.
func setupTestMeter(t *testing.T) (*sdkmetric.MeterProvider, *sdkmetric.ManualReader) {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(mp)

	t.Cleanup(func() {
		_ = mp.Shutdown(context.Background())
	})

	return mp, reader
}

// collectMetrics collects metrics from the reader.
func collectMetrics(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()

	var rm metricdata.ResourceMetrics
	err := reader.Collect(context.Background(), &rm)
	require.NoError(t, err)
	return rm
}

// findMetricByName finds a metric by name in the collected metrics.
func findMetricByName(rm metricdata.ResourceMetrics, name string) *metricdata.Metrics {
	for _, sm := range rm.ScopeMetrics {
		for i := range sm.Metrics {
			if sm.Metrics[i].Name == name {
				return &sm.Metrics[i]
			}
		}
	}
	return nil
}
func newMeteredRouter(t *testing.T) (*gin.Engine, *sdkmetric.ManualReader) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mp, reader := setupTestMeter(t)
	router := gin.New()
	router.Use(HTTPMetricsWithMeter(mp.Meter("test"), true))
	return router, reader
}

func sumPoints(m *metricdata.Metrics) []metricdata.DataPoint[int64] {
	if m == nil {
		return nil
	}
	sum, ok := m.Data.(metricdata.Sum[int64])
	if !ok {
		return nil
	}
	return sum.DataPoints
}

func histogramPoints(m *metricdata.Metrics) []metricdata.HistogramDataPoint[float64] {
	if m == nil {
		return nil
	}
	h, ok := m.Data.(metricdata.Histogram[float64])
	if !ok {
		return nil
	}
	return h.DataPoints
}

func TestHTTPMetrics_Disabled(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(HTTPMetrics(HTTPMetricsConfig{Enabled: false}))
	router.GET("/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "ok"})
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/test", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHTTPMetrics_NilMeterProvider(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(HTTPMetrics(HTTPMetricsConfig{Enabled: true, MeterProvider: nil}))
	router.GET("/test", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/test", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestHTTPMetricsWithMeter_RequestCounter(t *testing.T) {
	router, reader := newMeteredRouter(t)
	router.GET("/api/v1/bills/:id", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": c.Param("id")})
	})
	router.POST("/api/v1/bills/:id/payments", func(c *gin.Context) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "invalid state"})
	})

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		req, _ := http.NewRequest(http.MethodGet, "/api/v1/bills/"+uuid.NewString(), nil)
		router.ServeHTTP(w, req)
	}
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/api/v1/bills/"+uuid.NewString()+"/payments", nil)
	router.ServeHTTP(w, req)

	points := sumPoints(findMetricByName(collectMetrics(t, reader), "http_server_request_total"))
	require.Len(t, points, 2)

	counts := map[string]int64{}
	for _, dp := range points {
		method, _ := dp.Attributes.Value(telemetry.AttrHTTPMethod)
		route, _ := dp.Attributes.Value(telemetry.AttrHTTPRoute)
		status, _ := dp.Attributes.Value(telemetry.AttrHTTPStatusCode)
		counts[method.AsString()+" "+route.AsString()+" "+strconv.FormatInt(status.AsInt64(), 10)] = dp.Value
	}
	assert.Equal(t, map[string]int64{
		"GET /api/v1/bills/:id 200":           3,
		"POST /api/v1/bills/:id/payments 422": 1,
	}, counts)
}

func TestHTTPMetricsWithMeter_LocationID(t *testing.T) {
	router, reader := newMeteredRouter(t)
	router.GET("/api/v1/locations/:id/reports/occupancy", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	locationID := uuid.NewString()
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/api/v1/locations/"+locationID+"/reports/occupancy", nil)
	router.ServeHTTP(w, req)

	points := sumPoints(findMetricByName(collectMetrics(t, reader), "http_server_request_total"))
	require.Len(t, points, 1)
	got, ok := points[0].Attributes.Value(telemetry.AttrLocationID)
	require.True(t, ok)
	assert.Equal(t, locationID, got.AsString())
}

func TestHTTPMetricsWithMeter_NoLocationOutsideLocationRoutes(t *testing.T) {
	router, reader := newMeteredRouter(t)
	router.GET("/api/v1/bills/:id", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/api/v1/bills/"+uuid.NewString(), nil)
	router.ServeHTTP(w, req)

	points := sumPoints(findMetricByName(collectMetrics(t, reader), "http_server_request_total"))
	require.Len(t, points, 1)
	_, ok := points[0].Attributes.Value(telemetry.AttrLocationID)
	assert.False(t, ok)
}

func TestHTTPMetricsWithMeter_DurationAndSizes(t *testing.T) {
	router, reader := newMeteredRouter(t)
	router.POST("/api/v1/bills/:id/line-items", func(c *gin.Context) {
		time.Sleep(5 * time.Millisecond)
		c.JSON(http.StatusCreated, gin.H{"total": "12.50"})
	})

	body := `{"description":"Late checkout","amount":"12.50"}`
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/api/v1/bills/"+uuid.NewString()+"/line-items", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	rm := collectMetrics(t, reader)

	duration := histogramPoints(findMetricByName(rm, "http_server_request_duration_seconds"))
	require.Len(t, duration, 1)
	assert.Equal(t, uint64(1), duration[0].Count)
	assert.GreaterOrEqual(t, duration[0].Sum, 0.005)
	_, hasStatus := duration[0].Attributes.Value(telemetry.AttrHTTPStatusCode)
	assert.False(t, hasStatus, "duration is keyed by method and route only")

	requestSize := histogramPoints(findMetricByName(rm, "http_server_request_size_bytes"))
	require.Len(t, requestSize, 1)
	assert.Equal(t, float64(len(body)), requestSize[0].Sum)

	responseSize := histogramPoints(findMetricByName(rm, "http_server_response_size_bytes"))
	require.Len(t, responseSize, 1)
	assert.Equal(t, float64(w.Body.Len()), responseSize[0].Sum)
}

func TestHTTPMetricsWithMeter_ActiveRequests(t *testing.T) {
	router, reader := newMeteredRouter(t)

	var inFlight int64
	router.GET("/slow", func(c *gin.Context) {
		rm := collectMetrics(t, reader)
		points := sumPoints(findMetricByName(rm, "http_server_active_requests"))
		if len(points) == 1 {
			inFlight = points[0].Value
		}
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/slow", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, int64(1), inFlight)
	points := sumPoints(findMetricByName(collectMetrics(t, reader), "http_server_active_requests"))
	require.Len(t, points, 1)
	assert.Equal(t, int64(0), points[0].Value)
}

func TestHTTPMetricsWithMeter_UnmatchedRoute(t *testing.T) {
	router, reader := newMeteredRouter(t)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/nowhere", nil)
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)

	points := sumPoints(findMetricByName(collectMetrics(t, reader), "http_server_request_total"))
	require.Len(t, points, 1)
	route, _ := points[0].Attributes.Value(telemetry.AttrHTTPRoute)
	assert.Equal(t, "unknown", route.AsString())
}

func TestHTTPMetricsWithMeter_Disabled(t *testing.T) {
	router, reader := func() (*gin.Engine, *sdkmetric.ManualReader) {
		gin.SetMode(gin.TestMode)
		mp, reader := setupTestMeter(t)
		r := gin.New()
		r.Use(HTTPMetricsWithMeter(mp.Meter("test"), false))
		return r, reader
	}()
	router.GET("/test", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/test", nil)
	router.ServeHTTP(w, req)

	assert.Nil(t, findMetricByName(collectMetrics(t, reader), "http_server_request_total"))
}
