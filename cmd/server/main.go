package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/rueidis"
	"go.uber.org/zap"

	"github.com/creator-shield/youtube-sync-go/internal/config"
	"github.com/creator-shield/youtube-sync-go/internal/db"
	"github.com/creator-shield/youtube-sync-go/internal/db/repository"
	"github.com/creator-shield/youtube-sync-go/internal/handler"
	"github.com/creator-shield/youtube-sync-go/internal/middleware"
	"github.com/creator-shield/youtube-sync-go/internal/platform"
	"github.com/creator-shield/youtube-sync-go/internal/queue"
	"github.com/creator-shield/youtube-sync-go/internal/service/deletion"
	"github.com/creator-shield/youtube-sync-go/internal/service/events"
	"github.com/creator-shield/youtube-sync-go/internal/service/projection"
	syncsvc "github.com/creator-shield/youtube-sync-go/internal/service/sync"
	"github.com/creator-shield/youtube-sync-go/internal/service/token"
	"github.com/creator-shield/youtube-sync-go/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.File); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx := context.Background()

	pool, err := db.NewPool(ctx, &db.Config{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.Name,
		SSLMode:         "disable",
		MaxConns:        int32(cfg.Database.MaxConnections),
		MinConns:        int32(cfg.Database.MinConnections),
		MaxConnLifetime: cfg.Database.MaxLifetime,
		MaxConnIdleTime: cfg.Database.MaxIdleTime,
	})
	if err != nil {
		logger.Log.Fatal("failed to initialize database", zap.Error(err))
	}
	defer db.Close(pool)

	logger.Log.Info("database connection established",
		zap.String("host", cfg.Database.Host),
		zap.Int("max_conns", cfg.Database.MaxConnections),
	)

	cache, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress: []string{fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)},
		Password:    cfg.Redis.Password,
		SelectDB:    cfg.Redis.DB,
	})
	if err != nil {
		logger.Log.Fatal("failed to initialize cache client", zap.Error(err))
	}
	defer cache.Close()

	publisher, err := events.NewPublisher(&cfg.RabbitMQ)
	if err != nil {
		logger.Log.Fatal("failed to initialize event publisher", zap.Error(err))
	}
	defer publisher.Close()

	channelRepo := repository.NewChannelRepository(pool)
	videoRepo := repository.NewVideoRepository(pool)
	commentRepo := repository.NewCommentRepository(pool)
	cursorRepo := repository.NewCommentCursorRepository(pool)
	tokenRepo := repository.NewOAuthTokenRepository(pool)

	tokens := token.NewManager(tokenRepo, cfg.OAuth)
	client := platform.NewClient(cfg.YouTube.APIKeys, cfg.YouTube.EnableFallback)
	dispatcher := queue.NewDispatcher(cache)

	projector := projection.NewService(cache, dispatcher, videoRepo, commentRepo, cursorRepo, client, tokens, cfg.Sync)
	engine := syncsvc.NewEngine(channelRepo, videoRepo, client, tokens, projector, cfg.Sync)
	deletionService := deletion.NewService(commentRepo, videoRepo, channelRepo, cfg.Deletion.MaxRetries)

	syncHandler := handler.NewSyncHandler(engine, publisher)
	deletionHandler := handler.NewDeletionHandler(deletionService)
	healthHandler := handler.NewHealthHandler(pool, cache, publisher)

	router := gin.New()
	router.Use(gin.Recovery())

	api := router.Group("/api")
	if len(cfg.Server.APIKeys) > 0 {
		api.Use(middleware.NewAPIKeyAuth(cfg.Server.APIKeys).Handler())
	} else {
		logger.Log.Warn("no API keys configured, API endpoints are unauthenticated")
	}
	{
		api.POST("/sync/full", syncHandler.StartFullSync)
		api.POST("/sync/incremental", syncHandler.StartIncrementalSync)
		api.DELETE("/comments/video/:videoId/filtered/async", deletionHandler.RequestByVideo)
		api.DELETE("/comments/channel/:channelId/filtered/async", deletionHandler.RequestByChannel)
		api.GET("/comments/deletion-status/:requestId", deletionHandler.Status)
	}

	router.GET("/health", healthHandler.ReadinessProbe)
	router.GET("/health/live", healthHandler.LivenessProbe)
	router.GET("/health/ready", healthHandler.ReadinessProbe)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Log.Info("server starting", zap.Int("port", cfg.Server.Port))
		serverErrors <- server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Log.Fatal("server error", zap.Error(err))
	case sig := <-shutdown:
		logger.Log.Info("shutdown signal received", zap.String("signal", sig.String()))

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Log.Error("graceful shutdown failed", zap.Error(err))
			if err := server.Close(); err != nil {
				logger.Log.Error("failed to close server", zap.Error(err))
			}
			os.Exit(1)
		}

		logger.Log.Info("server stopped gracefully")
	}
}
