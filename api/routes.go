package api

import (
	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"

	"github.com/customeros/dmarcstack/api/handlers"
	"github.com/customeros/dmarcstack/api/middleware"
	"github.com/customeros/dmarcstack/config"
	"github.com/customeros/dmarcstack/internal/tracing"
)

const AppSource = "dmarcstack"

// RegisterRoutes sets up all API endpoints
func RegisterRoutes(r *gin.Engine, h *handlers.APIHandlers, cfg *config.AppConfig) {
	if h == nil {
		panic("Handlers cannot be nil")
	}

	r.Use(gin.Recovery())
	r.Use(tracing.RecoveryWithJaeger(opentracing.GlobalTracer()))
	r.Use(middleware.RequestIdMiddleware())

	r.GET("/health", handlers.HealthCheck)

	api := r.Group("/v1")
	api.Use(middleware.APIKeyMiddleware(middleware.APIKeyConfig{
		HeaderName:  middleware.APIKeyHeader,
		ValidAPIKey: cfg.APIKey,
	}))
	api.Use(middleware.CustomContextMiddleware(AppSource))
	api.Use(middleware.TracingMiddleware())
	{
		analytics := api.Group("/analytics")
		{
			analytics.GET("/overview", h.Analytics.Overview())
			analytics.GET("/global", h.Analytics.GlobalStats())
			analytics.GET("/domains", h.Analytics.DomainStats())
			analytics.GET("/timeseries", h.Analytics.TimeSeries())
			analytics.GET("/threats/count", h.Analytics.ThreatIPCount())
		}

		api.GET("/threats", h.Analytics.ActiveThreats())
		api.GET("/domains/:id/rows", h.Analytics.DomainRows())

		rows := api.Group("/rows")
		{
			rows.GET("/:id", h.Rows.GetRow())
			rows.POST("/:id/review", h.Rows.ToggleReviewed())
		}

		limiter := middleware.NewPerMinuteLimiter(cfg.IngestRateLimitPerMinute)
		api.POST("/ingest", middleware.RateLimitMiddleware(limiter), h.Ingest.Ingest())
	}
}
