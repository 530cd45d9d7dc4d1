package main

import (
	"context"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/erp-timetable-proxy/api/swagger"
	"github.com/noah-isme/erp-timetable-proxy/internal/handler"
	"github.com/noah-isme/erp-timetable-proxy/internal/middleware"
	"github.com/noah-isme/erp-timetable-proxy/internal/service"
	"github.com/noah-isme/erp-timetable-proxy/pkg/config"
	"github.com/noah-isme/erp-timetable-proxy/pkg/logger"
	corsmiddleware "github.com/noah-isme/erp-timetable-proxy/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/erp-timetable-proxy/pkg/middleware/requestid"
)

func newRouter(cfg *config.Config, logr *zap.Logger, sessions *service.SessionService, metrics *service.MetricsService, ready func(context.Context) error) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr, "/metrics", "/health"))
	r.Use(middleware.Metrics(metrics))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins, handler.SessionHeader))

	health := handler.NewHealthHandler(metrics, ready)
	r.GET("/", health.Root)
	r.GET("/health", health.Health)
	r.GET("/ready", health.Ready)
	if metrics != nil {
		r.GET("/metrics", health.Prometheus)
	}

	timetable := handler.NewTimetableHandler(sessions)
	r.GET("/get-captcha", timetable.GetCaptcha)
	r.POST("/fetch-timetable", timetable.FetchTimetable)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}
