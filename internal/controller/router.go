package controller

import (
	"log/slog"

	"oee-analytics/internal/middleware"
	"oee-analytics/internal/service"

	"github.com/gin-gonic/gin"
)

// Services bundles what the HTTP surface needs
type Services struct {
	Analytics  service.AnalyticsService
	Production service.ProductionService
	Machines   service.MachineService
	Events     service.EventService
	Health     HealthChecker
}

// NewRouter wires every route onto a fresh gin engine
func NewRouter(svc Services, logger *slog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.StructuredLoggingMiddleware(logger))
	r.Use(middleware.RequestMetrics())

	analytics := NewAnalyticsController(svc.Analytics, logger)
	calculator := NewOEEController(logger)
	production := NewProductionController(svc.Production, logger)
	machines := NewMachineController(svc.Machines, logger)
	events := NewEventController(svc.Events, logger)
	health := NewHealthController(svc.Health)

	r.GET("/healthz", health.Health)
	r.GET("/metrics", middleware.MetricsHandler())

	v1 := r.Group("/v1")
	{
		v1.GET("/analytics/historical", analytics.GetHistoricalAnalytics)
		v1.POST("/oee/calculate", calculator.Calculate)

		records := v1.Group("/production-records")
		{
			records.GET("", production.List)
			records.POST("", production.Upsert)
			records.GET("/:id", production.Get)
			records.PATCH("/:id", production.Update)
			records.DELETE("/:id", production.Delete)
		}

		m := v1.Group("/machines")
		{
			m.GET("", machines.List)
			m.POST("", machines.Create)
			m.GET("/:id", machines.Get)
			m.PATCH("/:id", machines.Update)
			m.POST("/:id/refresh", machines.Refresh)
		}

		v1.GET("/downtime-events", events.ListDowntime)
		v1.POST("/downtime-events", events.RecordDowntime)
		v1.GET("/alerts", events.ListAlerts)
		v1.POST("/alerts", events.RaiseAlert)
	}

	return r
}
