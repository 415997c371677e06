package router

import (
	"github.com/coliving/backend/internal/infrastructure/config"
	"github.com/coliving/backend/internal/infrastructure/logger"
	"github.com/coliving/backend/internal/interfaces/http/handler"
	"github.com/coliving/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handlers are the HTTP handlers the API is built from
type Handlers struct {
	Billing  *handler.BillingHandler
	Invoices *handler.InvoiceHandler
	Reports  *handler.ReportHandler
	System   *handler.SystemHandler
}

// EngineConfig configures the middleware chain
type EngineConfig struct {
	HTTP    config.HTTPConfig
	Tracing middleware.TracingConfig
	Metrics middleware.HTTPMetricsConfig
	Logger  *zap.Logger
}

// Engine is the assembled gin engine and the limiters it owns
type Engine struct {
	*gin.Engine
	Routes   []Route
	limiters []*middleware.RateLimiter
}

// Close stops the background work of the engine's rate limiters
func (e *Engine) Close() {
	for _, l := range e.limiters {
		l.Stop()
	}
}

// NewEngine builds the API engine. Middleware order:
//  1. RequestID, so every later log line and error body carries it
//  2. request logger and panic recovery
//  3. tracing, span enrichment and HTTP metrics
//  4. security headers, CORS and the body limit
//  5. the optional per-IP rate limit
func NewEngine(cfg EngineConfig, h Handlers) (*Engine, error) {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		return nil, err
	}
	e := &Engine{Engine: engine}

	engine.Use(middleware.RequestID())
	engine.Use(logger.GinMiddleware(log))
	engine.Use(logger.Recovery(log))
	engine.Use(middleware.TracingWithConfig(cfg.Tracing))
	if cfg.Tracing.Enabled {
		engine.Use(middleware.SpanAttributes(), middleware.SpanErrorMarker())
	}
	engine.Use(middleware.HTTPMetrics(cfg.Metrics))
	engine.Use(middleware.Secure())

	cors := middleware.DefaultCORSConfig()
	cors.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	if len(cfg.HTTP.CORSAllowMethods) > 0 {
		cors.AllowMethods = cfg.HTTP.CORSAllowMethods
	}
	if len(cfg.HTTP.CORSAllowHeaders) > 0 {
		cors.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	}
	engine.Use(middleware.CORSWithConfig(cors))

	if cfg.HTTP.MaxBodySize > 0 {
		engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))
	}

	if cfg.HTTP.RateLimitEnabled {
		limiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		e.limiters = append(e.limiters, limiter)
		engine.Use(middleware.RateLimit(limiter))
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	if h.System != nil {
		engine.GET("/health", h.System.Health)
	}

	var chargeLimit []gin.HandlerFunc
	if cfg.HTTP.ChargeRateLimit > 0 && cfg.HTTP.RateLimitWindow > 0 {
		limiter := middleware.NewRateLimiter(cfg.HTTP.ChargeRateLimit, cfg.HTTP.RateLimitWindow)
		e.limiters = append(e.limiters, limiter)
		chargeLimit = append(chargeLimit, middleware.ChargeRateLimit(limiter))
	}

	api := engine.Group(APIPrefix)
	var groups []*Group
	if h.Billing != nil {
		groups = append(groups, billingRoutes(h.Billing, chargeLimit...))
	}
	if h.Invoices != nil {
		groups = append(groups, invoiceRoutes(h.Invoices))
	}
	if h.Reports != nil {
		groups = append(groups, reportRoutes(h.Reports))
	}
	if h.System != nil {
		groups = append(groups, systemRoutes(h.System))
	}
	for _, g := range groups {
		e.Routes = append(e.Routes, g.Mount(api)...)
	}

	return e, nil
}

func billingRoutes(h *handler.BillingHandler, chargeLimit ...gin.HandlerFunc) *Group {
	billing := NewGroup("")

	billing.Group("/bookings").
		POST("/:id/bill/generate", h.GenerateBookingBill)

	billing.Group("/subscriptions").
		POST("/:id/bills", h.GenerateSubscriptionBill).
		POST("/:id/bills/generate", h.GenerateAllBills).
		PUT("/:id/end-date", h.UpdateEndDate)

	billing.Group("/bills").
		GET("/:id", h.GetBill).
		POST("/:id/line-items", h.AddLineItem).
		POST("/:id/adjustments", h.AddAdjustment).
		DELETE("/:id/line-items/:item_id", h.RemoveLineItem).
		POST("/:id/payments", h.RecordPayment).
		POST("/:id/charges", append(chargeLimit, h.ChargeBill)...)

	billing.Group("/payments").
		POST("/:id/refunds", h.IssueRefund)

	return billing
}

func invoiceRoutes(h *handler.InvoiceHandler) *Group {
	return NewGroup("/bills").
		GET("/:id/invoice.pdf", h.GetInvoicePDF).
		POST("/:id/invoice/archive", h.ArchiveInvoice)
}

func reportRoutes(h *handler.ReportHandler) *Group {
	return NewGroup("/locations/:id/reports").
		GET("/occupancy", h.GetOccupancy).
		GET("/occupancy.xlsx", h.ExportOccupancy).
		GET("/payments", h.GetPayments).
		GET("/occupants", h.GetOccupants)
}

func systemRoutes(h *handler.SystemHandler) *Group {
	return NewGroup("/system").
		GET("/info", h.GetSystemInfo)
}
