package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"pulse/internal/admission"
	"pulse/internal/cache"
	"pulse/internal/config"
	cronrunner "pulse/internal/cron"
	"pulse/internal/db"
	"pulse/internal/handler"
	"pulse/internal/logger"
	"pulse/internal/points"
	"pulse/internal/repository"
	gormrepository "pulse/internal/repository/gorm"
	"pulse/internal/repository/memory"
	"pulse/internal/service"
	"pulse/internal/stream"

	_ "pulse/docs"
)

func main() {
	cfgPath := os.Getenv("PULSE_CONFIG")
	if cfgPath == "" {
		cfgPath = "config/config.yaml"
	}

	envOnly := false
	if envOnlyRaw := os.Getenv("PULSE_ENV_ONLY"); envOnlyRaw != "" {
		envOnly = strings.EqualFold(envOnlyRaw, "true") || envOnlyRaw == "1"
	}

	cfg, err := config.Load(cfgPath, envOnly)
	if err != nil {
		panic(err)
	}

	logger, err := logger.New(cfg.Log)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	var store repository.Repository
	switch strings.ToLower(strings.TrimSpace(cfg.Store.Backend)) {
	case "memory":
		logger.Warn("using in-memory signal store; signals are lost on restart")
		store = memory.New()
	default:
		dbConn, err := db.Open(context.Background(), cfg.DB, logger)
		if err != nil {
			logger.Fatal("db open failed", zap.Error(err))
		}
		defer db.Close(dbConn)

		if err := db.AutoMigrate(dbConn); err != nil {
			logger.Fatal("auto-migrate failed", zap.Error(err))
		}
		store = gormrepository.New(dbConn.Gorm)
	}

	displayCache, err := cache.New(cfg.Cache)
	if err != nil {
		logger.Fatal("cache init failed", zap.Error(err))
	}
	var cachePinger handler.Pinger
	if rs, ok := displayCache.(*cache.RedisStore); ok {
		cachePinger = rs
		defer rs.Close()
	}

	gate := &admission.Gate{
		Config: cfg.Pulse,
		Points: points.Calculator{Config: cfg.Points},
		Repo:   store,
		Logger: logger,
	}
	hub := stream.NewHub(logger)
	pulseSvc := &service.PulseService{
		Config:    cfg.Pulse,
		Repo:      store,
		Cache:     displayCache,
		CacheTTL:  cfg.Cache.TTL,
		KeyPrefix: cfg.Cache.KeyPrefix,
		Logger:    logger,
	}
	refreshSvc := &service.RefreshService{
		Config: cfg.Pulse,
		Repo:   store,
		Pulse:  pulseSvc,
		Hub:    hub,
		Logger: logger,
	}

	if strings.EqualFold(cfg.App.Env, "dev") {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(handler.CORSMiddleware())
	engine.Use(handler.RequireBearerMiddleware(cfg.Server.RequireBearer))
	engine.Use(handler.AccessLogMiddleware(logger))

	healthHandler := &handler.HealthHandler{Store: store, Cache: cachePinger}
	healthHandler.Register(engine)
	handler.RegisterDocs(engine)

	signalHandler := &handler.SignalHandler{Gate: gate}
	signalHandler.Register(engine)
	userHandler := &handler.UserHandler{Gate: gate}
	userHandler.Register(engine)
	pulseHandler := &handler.PulseHandler{Pulse: pulseSvc, Hub: hub, Logger: logger}
	pulseHandler.Register(engine)

	engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    cfg.Server.HTTPAddr,
		Handler: engine,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cronRunner := cronrunner.New(logger, ctx)
	if cfg.Cron.Enabled {
		_, err = cronRunner.Add("pulse_refresh", cfg.Cron.PulseRefresh, 0, refreshSvc.Run)
		if err != nil {
			logger.Warn("cron register pulse refresh failed", zap.Error(err))
		}
	}
	cronRunner.Start()
	defer cronRunner.Stop()

	go func() {
		logger.Info("http server starting", zap.String("addr", cfg.Server.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown failed", zap.Error(err))
	}
}
