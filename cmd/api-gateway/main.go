package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/codequest-edu/codequest-api/api/swagger"
	"github.com/codequest-edu/codequest-api/internal/handler"
	"github.com/codequest-edu/codequest-api/internal/middleware"
	"github.com/codequest-edu/codequest-api/internal/models"
	"github.com/codequest-edu/codequest-api/internal/repository"
	"github.com/codequest-edu/codequest-api/internal/service"
	"github.com/codequest-edu/codequest-api/internal/tools"
	rediscache "github.com/codequest-edu/codequest-api/pkg/cache"
	"github.com/codequest-edu/codequest-api/pkg/config"
	"github.com/codequest-edu/codequest-api/pkg/database"
	"github.com/codequest-edu/codequest-api/pkg/logger"
	corsmiddleware "github.com/codequest-edu/codequest-api/pkg/middleware/cors"
	reqidmiddleware "github.com/codequest-edu/codequest-api/pkg/middleware/requestid"
	"github.com/codequest-edu/codequest-api/pkg/storage"
)

// @title CodeQuest API
// @version 1.0.0
// @description Code quality analysis platform with missions, achievements and rankings
// @BasePath /api
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

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	redisClient, err := rediscache.NewRedis(cfg.Redis)
	if err != nil {
		logr.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer redisClient.Close() //nolint:errcheck

	uploadStore, err := storage.NewLocalStorage(cfg.Uploads.StorageDir)
	if err != nil {
		logr.Fatal("failed to init upload storage", zap.Error(err))
	}
	reportStore, err := storage.NewLocalStorage(cfg.Reports.StorageDir)
	if err != nil {
		logr.Fatal("failed to init report storage", zap.Error(err))
	}
	signer := storage.NewSignedURLSigner(cfg.Reports.SignedURLSecret, cfg.Reports.SignedURLTTL)

	userRepo := repository.NewUserRepository(db)
	analysisRepo := repository.NewAnalysisRepository(db)
	missionRepo := repository.NewMissionRepository(db)
	achievementRepo := repository.NewAchievementRepository(db)
	reportRepo := repository.NewReportRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	cacheSvc := service.NewCacheService(cacheRepo, logr)
	metricsSvc := service.NewMetricsService(cacheSvc)
	workspaceSvc := service.NewWorkspaceService(uploadStore, cfg.Uploads, logr)
	missionSvc := service.NewMissionService(missionRepo, cfg.Analysis, metricsSvc, logr)
	achievementSvc := service.NewAchievementService(achievementRepo, analysisRepo, missionRepo, cfg.Achievements.Enabled, metricsSvc, logr)
	rankingSvc := service.NewRankingService(analysisRepo, achievementRepo, cacheSvc, cfg.Rankings, logr)

	executor := tools.NewExecutor([]tools.Runner{
		tools.NewSpotBugsRunner(cfg.Analysis.MavenCommand),
		tools.NewPMDRunner(cfg.Analysis.MavenCommand),
		tools.NewSemgrepRunner(cfg.Analysis.SemgrepCommand),
		tools.NewESLintRunner(cfg.Analysis.ESLintCommand),
	}, cfg.Analysis.ToolTimeout, logr)

	analysisSvc := service.NewAnalysisService(analysisRepo, workspaceSvc, executor, missionSvc, achievementSvc, rankingSvc, metricsSvc, logr)
	reportSvc := service.NewReportService(reportRepo, analysisRepo, missionRepo, reportStore, signer, cfg.Reports, logr)

	authSvc := service.NewAuthService(userRepo, achievementRepo, validator.New(), logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "codequest-api",
		Audience:           []string{"codequest"},
	})

	authHandler := handler.NewAuthHandler(authSvc)
	analysisHandler := handler.NewAnalysisHandler(analysisSvc, missionSvc)
	missionHandler := handler.NewMissionHandler(missionSvc)
	achievementHandler := handler.NewAchievementHandler(achievementSvc)
	rankingHandler := handler.NewRankingHandler(rankingSvc)
	reportHandler := handler.NewReportHandler(reportSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)
	userHandler := handler.NewUserHandler(authSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)

		authed := auth.Group("", middleware.JWT(authSvc))
		authed.POST("/logout", authHandler.Logout)
		authed.POST("/change-password", authHandler.ChangePassword)
		authed.GET("/me", authHandler.Me)
	}

	analyses := api.Group("/analyses")
	{
		analyses.POST("", middleware.OptionalJWT(authSvc), analysisHandler.Submit)

		authed := analyses.Group("", middleware.JWT(authSvc))
		authed.GET("", analysisHandler.List)
		authed.GET("/summary", analysisHandler.Summary)
		authed.GET("/:id", analysisHandler.Get)
		authed.DELETE("/:id", analysisHandler.Delete)
		authed.GET("/:id/missions/summary", missionHandler.Summary)
	}

	missions := api.Group("/missions", middleware.JWT(authSvc))
	{
		missions.GET("", missionHandler.List)
		missions.GET("/:id", missionHandler.Get)
		missions.POST("/:id/fix", missionHandler.MarkFixed)
		missions.POST("/:id/skip", missionHandler.MarkSkipped)
	}

	achievements := api.Group("/achievements", middleware.JWT(authSvc))
	{
		achievements.GET("", achievementHandler.List)
		achievements.GET("/stats", achievementHandler.Stats)
	}

	rankings := api.Group("/rankings")
	{
		rankings.GET("", rankingHandler.Top)
		rankings.GET("/stats", rankingHandler.Stats)
		rankings.GET("/me", middleware.JWT(authSvc), rankingHandler.Me)
	}

	reports := api.Group("/reports")
	{
		reports.GET("/download/:token", reportHandler.Download)

		authed := reports.Group("", middleware.JWT(authSvc))
		authed.POST("", reportHandler.Create)
		authed.GET("/:id", reportHandler.Status)
	}

	admin := api.Group("/admin", middleware.JWT(authSvc), middleware.RequireRoles(models.RoleAdmin))
	{
		admin.GET("/metrics", metricsHandler.Snapshot)
		admin.GET("/users", userHandler.List)
		admin.DELETE("/users/:id", userHandler.Deactivate)
	}

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reportSvc.StartWorkers(rootCtx)
	defer reportSvc.StopWorkers()

	go runSweeper(rootCtx, cfg.Uploads.CleanupInterval, workspaceSvc.Sweep)
	go runSweeper(rootCtx, cfg.Reports.CleanupInterval, reportSvc.Sweep)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: r,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Fatalw("server failed", "error", err)
		}
	}()

	<-rootCtx.Done()
	logr.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Warn("graceful shutdown failed", zap.Error(err))
	}
}

func runSweeper(ctx context.Context, interval time.Duration, sweep func()) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweep()
		}
	}
}
