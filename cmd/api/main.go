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
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/creativeops/thumbselect/internal/cache"
	"github.com/creativeops/thumbselect/internal/config"
	"github.com/creativeops/thumbselect/internal/database"
	"github.com/creativeops/thumbselect/internal/frame"
	"github.com/creativeops/thumbselect/internal/logging"
	"github.com/creativeops/thumbselect/internal/middleware"
	"github.com/creativeops/thumbselect/internal/queue"
	"github.com/creativeops/thumbselect/internal/selector"
	"github.com/creativeops/thumbselect/internal/storage"
	"github.com/creativeops/thumbselect/internal/tracing"
	"github.com/creativeops/thumbselect/internal/upload"
	"github.com/creativeops/thumbselect/internal/webhook"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to initialize logging: %v", err)
	}

	if cfg.Tracing.Enabled {
		_, closer, err := tracing.Init(cfg.Tracing)
		if err != nil {
			logger.Fatalf("Failed to initialize tracing: %v", err)
		}
		defer closer.Close()
	}

	db, err := database.New(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	repo := database.NewRepository(db)

	stor, err := storage.New(cfg.Storage)
	if err != nil {
		logger.Fatalf("Failed to initialize storage: %v", err)
	}

	redis, err := cache.New(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		logger.Fatalf("Failed to connect to redis: %v", err)
	}
	defer redis.Close()

	publisher, err := queue.New(cfg.Queue)
	if err != nil {
		logger.Fatalf("Failed to connect to queue: %v", err)
	}
	defer publisher.Close()

	hooks := webhook.NewNotifier(cfg.Webhooks, logger)
	defer hooks.Flush()

	if err := os.MkdirAll(cfg.Selector.TempDir, 0o755); err != nil {
		logger.Fatalf("Failed to create temp dir: %v", err)
	}

	frames := frame.New(cfg.Selector.FFmpegPath, cfg.Selector.FFprobePath, cfg.Selector.TempDir, cfg.Selector.JPEGQuality)

	sessions := selector.NewManager(selector.Deps{
		Frames:  frames,
		Blobs:   stor,
		Records: repo,
		Log:     logger,
	}, selector.Options{
		ProbeTimeout: cfg.Selector.ProbeTimeout,
	})

	reaper := selector.NewReaper(sessions, time.Minute, cfg.Selector.SessionMaxIdle, logger)
	reaper.Start()
	defer reaper.Stop()

	uploads := upload.NewService(cfg.Selector.TempDir, upload.DefaultPartSize, logger)
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for range ticker.C {
			if n := uploads.PruneExpired(); n > 0 {
				logger.Infof("Pruned %d expired uploads", n)
			}
		}
	}()

	api := &API{
		store:    repo,
		blobs:    stor,
		cache:    redis,
		events:   publisher,
		hooks:    hooks,
		frames:   frames,
		sessions: sessions,
		uploads:  uploads,
		log:      logger,
		tempDir:  cfg.Selector.TempDir,
		assetTTL: cfg.Redis.AssetTTL,
	}

	router := setupRouter(api, cfg, logger)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Infof("Starting API server on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatalf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server stopped")
}

func setupRouter(api *API, cfg *config.Config, logger *logging.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(logger))

	limiter := middleware.NewRateLimiter(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst)
	go limiter.Cleanup(time.Minute, 10*time.Minute)
	router.Use(middleware.RateLimit(limiter))

	router.GET("/health", api.healthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		// Assets
		v1.GET("/assets", api.listAssets)
		v1.POST("/assets", api.uploadAsset)
		v1.GET("/assets/:id", api.getAsset)
		v1.DELETE("/assets/:id", api.deleteAsset)

		// Chunked source uploads
		v1.POST("/uploads", api.initUpload)
		v1.PUT("/uploads/:id/parts/:part", api.putUploadPart)
		v1.POST("/uploads/:id/complete", api.completeUpload)
		v1.DELETE("/uploads/:id", api.abortUpload)

		// Thumbnail selection sessions
		v1.POST("/sessions", api.openSession)
		v1.GET("/sessions/:id", api.getSession)
		v1.POST("/sessions/:id/seek", api.seekSession)
		v1.POST("/sessions/:id/reset", api.resetSession)
		v1.POST("/sessions/:id/playback", api.togglePlayback)
		v1.POST("/sessions/:id/thumbnail", api.uploadSessionThumbnail)
		v1.POST("/sessions/:id/save", api.saveSessionThumbnail)
		v1.POST("/sessions/:id/close", api.closeSession)
	}

	return router
}
