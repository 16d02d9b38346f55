package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/mess-attendance-api/internal/handler"
	"github.com/noah-isme/mess-attendance-api/internal/middleware"
	"github.com/noah-isme/mess-attendance-api/internal/repository"
	"github.com/noah-isme/mess-attendance-api/internal/service"
	"github.com/noah-isme/mess-attendance-api/pkg/cache"
	"github.com/noah-isme/mess-attendance-api/pkg/config"
	"github.com/noah-isme/mess-attendance-api/pkg/database"
	"github.com/noah-isme/mess-attendance-api/pkg/jobs"
	"github.com/noah-isme/mess-attendance-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/mess-attendance-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/mess-attendance-api/pkg/middleware/requestid"
	"github.com/noah-isme/mess-attendance-api/pkg/storage"
)

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
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(cfg.Redis)
	if err != nil {
		// The feed cache is an optimization; the API stays up without it.
		logr.Sugar().Warnw("redis unavailable, feed caching disabled", "error", err)
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	exportStore, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init export storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)

	studentRepo := repository.NewStudentRepository(db)
	scanRepo := repository.NewAttendanceRepository(db)
	jobRepo := repository.NewExportJobRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, logr)

	metricsSvc := service.NewMetricsService()
	rosterSvc := service.NewRosterService(studentRepo, nil, logr)
	attendanceSvc := service.NewAttendanceService(scanRepo, studentRepo, cacheRepo, metricsSvc, nil, logr, service.AttendanceServiceConfig{
		CacheTTL:     cfg.Attendance.CacheTTL,
		FeedMaxRows:  cfg.Attendance.FeedMaxRows,
		DefaultLabel: cfg.Attendance.DefaultLabel,
	})
	exportSvc := service.NewExportService(attendanceSvc, exportStore, signer, service.ExportConfig{
		APIPrefix: cfg.APIPrefix,
		ResultTTL: cfg.Exports.SignedURLTTL,
	}, logr, nil, nil)
	worker := service.NewExportWorker(jobRepo, exportSvc, cfg.Exports.WorkerRetries, logr)
	queue := jobs.NewQueue("exports", worker.Handle, jobs.QueueConfig{
		Workers:    cfg.Exports.WorkerConcurrency,
		MaxRetries: cfg.Exports.WorkerRetries,
		Logger:     logr,
	})
	jobSvc := service.NewExportJobService(jobRepo, queue, exportSvc, logr, service.ExportJobServiceConfig{
		ResultTTL:       cfg.Exports.SignedURLTTL,
		CleanupInterval: cfg.Exports.CleanupInterval,
		MaxRetries:      cfg.Exports.WorkerRetries,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	queue.Start(ctx)
	defer queue.Stop()
	jobSvc.RecoverPendingJobs(ctx)
	jobSvc.StartCleanup(ctx)

	studentHandler := handler.NewStudentHandler(rosterSvc)
	attendanceHandler := handler.NewAttendanceHandler(attendanceSvc)
	exportHandler := handler.NewExportHandler(jobSvc)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})
	r.GET("/metrics", metricsHandler.Prometheus)

	api := r.Group(cfg.APIPrefix)
	{
		api.GET("/students", studentHandler.List)
		api.POST("/students", studentHandler.Register)
		api.GET("/students/:uniqueId", studentHandler.Get)
		api.PUT("/students/:uniqueId", studentHandler.Update)
		api.DELETE("/students/:uniqueId", studentHandler.Unregister)

		api.POST("/attendance", attendanceHandler.Mark)
		api.GET("/attendance", attendanceHandler.Track)
		api.GET("/attendance/grid", attendanceHandler.Grid)

		api.POST("/exports", exportHandler.Create)
		api.GET("/exports/:id", exportHandler.Status)
		api.GET("/export/:token", exportHandler.Download)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
