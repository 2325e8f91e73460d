package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/creator-shield/youtube-sync-go/internal/config"
	"github.com/creator-shield/youtube-sync-go/internal/db"
	"github.com/creator-shield/youtube-sync-go/internal/db/repository"
	"github.com/creator-shield/youtube-sync-go/internal/platform"
	"github.com/creator-shield/youtube-sync-go/internal/service/deletion"
	"github.com/creator-shield/youtube-sync-go/internal/service/events"
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

	logger.Log.Info("deletion worker starting",
		zap.Duration("poll_interval", cfg.Deletion.PollInterval),
		zap.Int("batch_size", cfg.Deletion.BatchSize),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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

	logger.Log.Info("database connection established")

	publisher, err := events.NewPublisher(&cfg.RabbitMQ)
	if err != nil {
		logger.Log.Fatal("failed to initialize event publisher", zap.Error(err))
	}
	defer publisher.Close()

	commentRepo := repository.NewCommentRepository(pool)
	tokenRepo := repository.NewOAuthTokenRepository(pool)

	tokens := token.NewManager(tokenRepo, cfg.OAuth)
	client := platform.NewClient(cfg.YouTube.APIKeys, cfg.YouTube.EnableFallback)

	worker := deletion.NewWorker(commentRepo, tokens, client, cfg.Deletion)
	worker.SetPublisher(publisher)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-shutdown
		logger.Log.Info("shutdown signal received", zap.String("signal", sig.String()))
		cancel()
	}()

	worker.Run(ctx)

	logger.Log.Info("deletion worker stopped gracefully")
}
