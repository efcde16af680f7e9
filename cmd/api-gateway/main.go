package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/dkv-labs/pps-api/api/swagger"
	"github.com/dkv-labs/pps-api/internal/formengine"
	"github.com/dkv-labs/pps-api/internal/handler"
	"github.com/dkv-labs/pps-api/internal/middleware"
	"github.com/dkv-labs/pps-api/internal/models"
	"github.com/dkv-labs/pps-api/internal/repository"
	"github.com/dkv-labs/pps-api/internal/service"
	"github.com/dkv-labs/pps-api/pkg/cache"
	"github.com/dkv-labs/pps-api/pkg/config"
	"github.com/dkv-labs/pps-api/pkg/database"
	"github.com/dkv-labs/pps-api/pkg/logger"
	corsmiddleware "github.com/dkv-labs/pps-api/pkg/middleware/cors"
	reqidmiddleware "github.com/dkv-labs/pps-api/pkg/middleware/requestid"
	"github.com/dkv-labs/pps-api/pkg/storage"
)

// @title Police Performance System API
// @version 1.0.0
// @description Battalion performance statistics entry, evaluation and reporting
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
		redisClient = nil
	}

	validate := validator.New()
	registry := prometheus.NewRegistry()
	metricsSvc := service.NewMetricsService(registry)

	// repositories
	userRepo := repository.NewUserRepository(db)
	geoRepo := repository.NewGeographyRepository(db)
	metaRepo := repository.NewFormMetaRepository(db)
	statRepo := repository.NewStatisticRepository(db)
	menuRepo := repository.NewMenuRepository(db)
	reportRepo := repository.NewReportRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	// services
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "pps-api",
	})
	userSvc := service.NewUserService(userRepo, validate, logr)
	geoSvc := service.NewGeographyService(geoRepo, logr)
	menuSvc := service.NewMenuService(menuRepo, logr)
	metaSvc := service.NewFormMetaService(metaRepo, cacheRepo, cfg.Performance.MetadataCacheTTL, validate, logr)

	rollup := &formengine.RollupConfig{
		SummaryTopicID: cfg.Rollup.SummaryTopicID,
		SourceTopicID:  cfg.Rollup.SourceTopicID,
		QuestionMap:    cfg.Rollup.QuestionMap,
		SubTopicMap:    cfg.Rollup.SubTopicMap,
	}
	overrides := make([]formengine.StepOverride, 0, len(cfg.Navigation.StepOverrides))
	for _, o := range cfg.Navigation.StepOverrides {
		overrides = append(overrides, formengine.StepOverride{
			Role:     models.UserRole(o.Role),
			ModuleID: o.ModuleID,
			Step:     o.Step,
		})
	}
	perfSvc := service.NewPerformanceService(metaRepo, statRepo, geoRepo, userRepo, rollup, formengine.WalkerConfig{
		MaxModuleProbes: cfg.Navigation.MaxModuleProbes,
		MaxTopicProbes:  cfg.Navigation.MaxTopicProbes,
		ProbeDelay:      cfg.Navigation.ProbeDelay,
		Overrides:       overrides,
	}, metricsSvc, validate, logr)

	dashSvc := service.NewDashboardService(statRepo, metaRepo, geoRepo, cacheRepo, cfg.Dashboard.CacheTTL, logr)

	uploadStore, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init upload storage", "error", err)
	}
	uploadSvc := service.NewUploadService(uploadStore, service.UploadConfig{
		PublicBaseURL: cfg.Uploads.PublicBaseURL,
		MaxSizeBytes:  cfg.Uploads.MaxFileSizeBytes,
		AllowedMIMEs:  cfg.Uploads.AllowedMIMEs,
	}, metricsSvc, logr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var reportSvc *service.ReportService
	if cfg.Reports.Enabled {
		reportStore, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init report storage", "error", err)
		}
		signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)
		reportSvc = service.NewReportService(reportRepo, statRepo, reportStore, signer, metricsSvc, service.ReportServiceConfig{
			WorkerConcurrency: cfg.Reports.WorkerConcurrency,
			WorkerRetries:     cfg.Reports.WorkerRetries,
			CleanupInterval:   cfg.Reports.CleanupInterval,
		}, validate, logr)
		reportSvc.Start(ctx)
		defer reportSvc.Stop()
	}

	// handlers
	authHandler := handler.NewAuthHandler(authSvc)
	userHandler := handler.NewUserHandler(userSvc)
	geoHandler := handler.NewGeographyHandler(geoSvc)
	menuHandler := handler.NewMenuHandler(menuSvc)
	metaHandler := handler.NewFormMetaHandler(metaSvc)
	perfHandler := handler.NewPerformanceHandler(perfSvc)
	uploadHandler := handler.NewUploadHandler(uploadSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unready"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", authHandler.Logout)
		auth.PUT("/password", middleware.JWT(authSvc), authHandler.ChangePassword)
		auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)
	}

	secured := api.Group("")
	secured.Use(middleware.JWT(authSvc))

	adminOnly := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin)
	anyRole := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleDSP, models.RoleBattalion)

	users := secured.Group("/users", adminOnly)
	{
		users.GET("", userHandler.List)
		users.POST("", userHandler.Create)
		users.GET("/:id", userHandler.Get)
		users.PUT("/:id", userHandler.Update)
		users.DELETE("/:id", userHandler.Delete)
	}

	geo := secured.Group("/geography", anyRole)
	{
		geo.GET("/states", geoHandler.States)
		geo.GET("/states/:stateId/ranges", geoHandler.Ranges)
		geo.GET("/ranges/:rangeId/districts", geoHandler.Districts)
		geo.GET("/districts/:districtId/battalions", geoHandler.Battalions)
		geo.GET("/battalions/:battalionId/companies", geoHandler.Companies)
	}

	secured.GET("/menus", anyRole, menuHandler.List)

	meta := secured.Group("", anyRole)
	{
		meta.GET("/modules", metaHandler.Modules)
		meta.GET("/modules/:moduleId/topics", metaHandler.Topics)
	}

	metaAdmin := secured.Group("", adminOnly)
	{
		metaAdmin.POST("/modules", metaHandler.CreateModule)
		metaAdmin.PUT("/modules/:id", metaHandler.UpdateModule)
		metaAdmin.POST("/topics", metaHandler.CreateTopic)
		metaAdmin.PUT("/topics/:id", metaHandler.UpdateTopic)
		metaAdmin.POST("/subtopics", metaHandler.CreateSubTopic)
		metaAdmin.PUT("/subtopics/:id", metaHandler.UpdateSubTopic)
		metaAdmin.POST("/questions", metaHandler.CreateQuestion)
		metaAdmin.PUT("/questions/:id", metaHandler.UpdateQuestion)
	}

	perf := secured.Group("/performance", anyRole)
	{
		perf.GET("/form", perfHandler.GetForm)
		perf.POST("/form", perfHandler.Save)
		perf.POST("/navigate", perfHandler.Navigate)
	}

	uploads := secured.Group("/uploads", anyRole)
	{
		uploads.POST("", uploadHandler.Upload)
	}
	api.GET("/uploads/:filename", uploadHandler.Serve)

	if cfg.Dashboard.Enabled {
		dashHandler := handler.NewDashboardHandler(dashSvc)
		secured.GET("/dashboard/summary", middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleDSP), dashHandler.Summary)
	}

	if reportSvc != nil {
		reportHandler := handler.NewReportHandler(reportSvc)
		reports := secured.Group("/reports", anyRole)
		{
			reports.POST("", reportHandler.Create)
			reports.GET("", reportHandler.ListMine)
			reports.GET("/:id", reportHandler.Get)
		}
		api.GET("/downloads/reports", reportHandler.Download)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{Addr: addr, Handler: r}

	go func() {
		logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	logr.Sugar().Infow("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
}
