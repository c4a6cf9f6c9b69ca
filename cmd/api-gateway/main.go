package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/permitdata/ahj-registry-api/api/swagger"
	"github.com/permitdata/ahj-registry-api/internal/handler"
	"github.com/permitdata/ahj-registry-api/internal/middleware"
	"github.com/permitdata/ahj-registry-api/internal/models"
	"github.com/permitdata/ahj-registry-api/internal/registry"
	"github.com/permitdata/ahj-registry-api/internal/repository"
	"github.com/permitdata/ahj-registry-api/internal/service"
	"github.com/permitdata/ahj-registry-api/pkg/cache"
	"github.com/permitdata/ahj-registry-api/pkg/config"
	"github.com/permitdata/ahj-registry-api/pkg/database"
	"github.com/permitdata/ahj-registry-api/pkg/logger"
	corsmiddleware "github.com/permitdata/ahj-registry-api/pkg/middleware/cors"
	reqidmiddleware "github.com/permitdata/ahj-registry-api/pkg/middleware/requestid"
)

// @title AHJ Registry API
// @version 1.0.0
// @description Registry of Authorities Having Jurisdiction with a moderated edit ledger
// @BasePath /api/v1
// @schemes http

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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close()

	metrics := service.NewMetricsService()

	// Redis is optional: without it search just hits the database.
	var cacheRepo service.CacheRepository
	if redisClient, err := cache.NewRedis(cfg.Redis); err != nil {
		logr.Sugar().Warnw("redis unavailable, search cache disabled", "error", err)
	} else {
		defer redisClient.Close()
		cacheRepo = repository.NewCacheRepository(redisClient, logr)
	}
	searchCache := service.NewCacheService(cacheRepo, metrics, cfg.Search.CacheTTL, logr, cfg.Search.CacheEnabled && cacheRepo != nil)

	edits := repository.NewEditRepository(db)
	ahjs := repository.NewAHJRepository(db)
	users := repository.NewUserRepository(db)
	fields := registry.NewAccessor(db, nil)

	engine := service.NewEditEngine(db, edits, fields, logr)
	scheduler := service.NewEditScheduler(engine, metrics, logr, service.SchedulerConfig{
		Interval:   cfg.Edits.ApplyInterval,
		Workers:    cfg.Edits.Workers,
		MaxRetries: cfg.Edits.WorkerRetries,
	})

	editSvc := service.NewEditService(edits, engine, fields, users, fields.Schema(), metrics, cfg.Edits.EffectiveDelay, logr)
	ahjSvc := service.NewAHJService(ahjs, searchCache, cfg.Search.CacheTTL, logr)
	authSvc := service.NewAuthService(users, nil, logr, service.AuthConfig{
		Secret:     cfg.JWT.Secret,
		Expiration: cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Edits.SchedulerEnabled {
		scheduler.Start(ctx)
		defer scheduler.Stop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	registerRoutes(r.Group(cfg.APIPrefix), authSvc, ahjSvc, editSvc)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("shutdown failed", "error", err)
	}
}

func registerRoutes(api *gin.RouterGroup, authSvc *service.AuthService, ahjSvc *service.AHJService, editSvc *service.EditService) {
	authHandler := handler.NewAuthHandler(authSvc)
	ahjHandler := handler.NewAHJHandler(ahjSvc)
	editHandler := handler.NewEditHandler(editSvc)

	api.POST("/auth/login", authHandler.Login)

	api.GET("/ahjs", ahjHandler.Search)
	api.GET("/ahjs/export/csv", ahjHandler.ExportCSV)
	api.GET("/ahjs/export/pdf", ahjHandler.ExportPDF)
	api.GET("/ahjs/:id", ahjHandler.Get)
	api.GET("/ahjs/:id/summary.pdf", ahjHandler.SummaryPDF)
	api.GET("/ahjs/:id/edits/export", middleware.JWT(authSvc), editHandler.ExportHistory)
	api.POST("/ahjs", middleware.JWT(authSvc), middleware.RequireRoles(models.RoleAdmin), ahjHandler.Create)

	editGroup := api.Group("/edits", middleware.JWT(authSvc))
	editGroup.POST("", editHandler.SubmitUpdates)
	editGroup.POST("/additions", editHandler.SubmitAddition)
	editGroup.POST("/deletions", editHandler.SubmitDeletions)
	editGroup.GET("", editHandler.List)
	editGroup.GET("/:id", editHandler.Get)
	editGroup.GET("/:id/resettable", editHandler.Resettable)
	editGroup.POST("/:id/review", editHandler.Review)
	editGroup.POST("/:id/revert", editHandler.Revert)
	editGroup.POST("/:id/reset", editHandler.Reset)
}
