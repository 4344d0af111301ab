package routes

import (
	"net/http"

	"fluoride-monitor/internal/config"
	"fluoride-monitor/internal/delivery/http/handler"
	"fluoride-monitor/internal/logger"
	"fluoride-monitor/internal/middleware"
	"fluoride-monitor/internal/usecase/actuator"
	"fluoride-monitor/internal/usecase/aggregation"
	"fluoride-monitor/internal/usecase/alerting"
	"fluoride-monitor/internal/usecase/ingestion"
	"fluoride-monitor/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Services are the use cases exposed over HTTP.
type Services struct {
	Ingestion   *ingestion.Service
	Aggregation *aggregation.Service
	Actuator    *actuator.Service
	Alerting    *alerting.Service
	Store       handler.Pinger
}

func SetupRoutes(cfg *config.Config, svc *Services) *gin.Engine {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Order: recovery, request ID, metrics, logging, security headers, CORS, request size limit, rate limit
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.LoggingMiddleware())
	router.Use(middleware.SecurityHeadersMiddleware())
	router.Use(middleware.CORSMiddleware(&cfg.CORS))
	router.Use(middleware.RequestSizeLimitMiddleware(middleware.DefaultMaxRequestSize))
	router.Use(middleware.RateLimitMiddleware(cfg.RateLimit.GeneralRPS, cfg.RateLimit.GeneralBurst, "/health", "/metrics"))

	healthHandler := handler.NewHealthHandler(svc.Store)
	router.GET("/health", healthHandler.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	dataHandler := handler.NewDataHandler(svc.Ingestion, svc.Aggregation)
	deviceHandler := handler.NewDeviceHandler(svc.Aggregation, svc.Actuator)
	alertHandler := handler.NewAlertHandler(svc.Alerting)

	api := router.Group("/api")
	{
		dataHandler.RegisterRoutes(api)
		deviceHandler.RegisterRoutes(api)
		alertHandler.RegisterRoutes(api)
	}

	router.NoRoute(func(c *gin.Context) {
		utils.ErrorResponse(c, http.StatusNotFound, "Route not found")
	})

	logger.Info("All routes initialized")
	return router
}
