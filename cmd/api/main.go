package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/erp-timetable-proxy/internal/erp"
	"github.com/noah-isme/erp-timetable-proxy/internal/repository"
	"github.com/noah-isme/erp-timetable-proxy/internal/service"
	"github.com/noah-isme/erp-timetable-proxy/pkg/cache"
	"github.com/noah-isme/erp-timetable-proxy/pkg/config"
	"github.com/noah-isme/erp-timetable-proxy/pkg/logger"
)

// @title ERP Timetable Proxy
// @version 1.0.0
// @description Automates the ERP portal CAPTCHA login and scrapes the student timetable.
// @BasePath /
// @schemes http https

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	var metrics *service.MetricsService
	if cfg.Metrics.Enabled {
		metrics = service.NewMetricsService()
	}

	var redisClient *redis.Client
	var tickets service.TicketRepository
	switch cfg.Session.Store {
	case config.SessionStoreRedis:
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer redisClient.Close() //nolint:errcheck
		tickets = repository.NewRedisTicketRepository(redisClient, cfg.Redis.KeyPrefix, cfg.Session.TTL, logr)
	default:
		tickets = repository.NewMemoryTicketRepository(cfg.Session.Capacity, cfg.Session.TTL, logr)
	}

	portal, err := erp.NewClient(erp.Options{
		BaseURL:          cfg.ERP.BaseURL,
		LoginPath:        cfg.ERP.LoginPath,
		TimetablePath:    cfg.ERP.TimetablePath,
		UserAgent:        cfg.ERP.UserAgent,
		Timeout:          cfg.ERP.Timeout,
		CloudflareBypass: cfg.ERP.CloudflareBypass,
		Markup: erp.Markup{
			CSRFMetaName:  cfg.ERP.CSRFMetaName,
			CaptchaMarker: cfg.ERP.CaptchaMarker,
			LoginMarker:   cfg.ERP.LoginMarker,
		},
		Logger:   logr.Named("erp"),
		Observer: metrics,
	})
	if err != nil {
		logr.Fatal("failed to configure portal client", zap.Error(err))
	}

	sessions := service.NewSessionService(tickets, portal, validator.New(), metrics, logr.Named("session"), service.SessionConfig{
		TTL:                 cfg.Session.TTL,
		DefaultAcademicYear: cfg.ERP.DefaultAcademicYear,
		DefaultSemester:     cfg.ERP.DefaultSemester,
	})

	r := newRouter(cfg, logr, sessions, metrics, cache.Checker(redisClient))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env, "session_store", cfg.Session.Store, "portal", cfg.ERP.BaseURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	// Upstream logins can take up to the portal timeout; let them finish.
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ERP.Timeout+5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
	logr.Info("server stopped")
}
