// Package main runs the presence/activity tracker HTTP server with WebSocket
// status push and graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/wfh-tracker/backend/config"
	"github.com/wfh-tracker/backend/internal/activity"
	"github.com/wfh-tracker/backend/internal/aggregator"
	"github.com/wfh-tracker/backend/internal/events"
	"github.com/wfh-tracker/backend/internal/middleware"
	"github.com/wfh-tracker/backend/internal/realtime"
	"github.com/wfh-tracker/backend/internal/screenshots"
	"github.com/wfh-tracker/backend/internal/sessions"
	"github.com/wfh-tracker/backend/internal/status"
	"github.com/wfh-tracker/backend/internal/worker"
	"github.com/wfh-tracker/backend/pkg/database"
	"github.com/wfh-tracker/backend/pkg/queue"
	"github.com/wfh-tracker/backend/pkg/redis"
	"github.com/wfh-tracker/backend/pkg/response"
	"github.com/wfh-tracker/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), database.PoolSettings{
		MaxConns: int32(cfg.Database.MaxConns),
		MinConns: int32(cfg.Database.MinConns),
	}, logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var s3Client *storage.S3
	if cfg.AWS.Region != "" {
		s3Cfg := storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			ScreenshotsBucket:    cfg.AWS.ScreenshotsBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}
		s3Client, err = storage.NewS3(ctx, s3Cfg, logger)
		if err != nil {
			logger.Warn("s3 disabled", zap.Error(err))
		}
	}

	// Realtime status push: updates route through Redis pub/sub so every
	// instance delivers to its own dashboard clients.
	redisPubSub := realtime.NewRedisPubSub(rdb.Client, logger)
	hub := realtime.NewHub(logger, redisPubSub)

	subCtx, subCancel := context.WithCancel(context.Background())
	defer subCancel()
	if err := redisPubSub.Subscribe(subCtx, hub.DeliverLocal); err != nil {
		logger.Warn("status subscription failed, local-only broadcast", zap.Error(err))
		hub = realtime.NewHub(logger, nil)
	}

	// Stores
	sessionRepo := sessions.NewRepository(pool)
	windowRepo := activity.NewRepository(pool)
	screenshotRepo := screenshots.NewRepository(pool)

	// Aggregation engine with write-behind flushing
	jobQueue := queue.NewQueue(rdb.Client, logger)
	engine := aggregator.NewEngine(aggregator.Config{
		ActivityGap: cfg.Tracker.ActivityGap,
		Flusher:     jobQueue,
		Status:      hub,
		Sessions:    sessionRepo,
		Windows:     windowRepo,
		Logger:      logger,
	})

	// Ingest
	normalizer := events.NewNormalizer(cfg.Tracker.ClockSkew)
	eventHandler := events.NewHandler(normalizer, engine, cfg.Tracker.Channel, logger)

	// Query surface
	statusHandler := status.NewHandler(engine, cfg.Tracker.HistoryDays)

	// Screenshot metadata relay
	screenshotHandler := screenshots.NewHandler(screenshotRepo, s3Client, logger)

	// Flush worker (in-process; cmd/worker runs the same loop standalone)
	flusher := worker.NewFlusher(sessionRepo, windowRepo, jobQueue, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Ingest (voice-channel listener and activity sampler collaborators)
	router.POST("/events", eventHandler.SubmitEvent)
	router.POST("/activity", eventHandler.SubmitActivity)

	// Query surface (dashboard collaborator)
	router.GET("/status", statusHandler.GetAllStatuses)
	router.GET("/status/:user_id", statusHandler.GetStatus)
	router.GET("/users/:user_id/history", statusHandler.GetHistory)
	router.GET("/users/:user_id/summary", statusHandler.GetDailySummary)
	router.GET("/report", statusHandler.GetReport)
	router.GET("/stats", statusHandler.GetStats)

	// Screenshots (metadata + storage relay)
	router.POST("/screenshots", screenshotHandler.Create)
	router.POST("/screenshots/upload-url", screenshotHandler.GenerateUploadURL)
	router.POST("/screenshots/upload", screenshotHandler.Upload)
	router.GET("/users/:user_id/screenshots", screenshotHandler.ListByUser)

	// WebSocket status push
	router.GET("/ws", realtime.ServeWs(hub, logger))

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	go flusher.Run(workerCtx)
	logger.Info("flush worker started")

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	workerCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
