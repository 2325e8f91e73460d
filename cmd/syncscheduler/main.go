package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/rueidis"
	"go.uber.org/zap"

	"github.com/creator-shield/youtube-sync-go/internal/config"
	"github.com/creator-shield/youtube-sync-go/internal/db"
	"github.com/creator-shield/youtube-sync-go/internal/db/repository"
	"github.com/creator-shield/youtube-sync-go/internal/platform"
	"github.com/creator-shield/youtube-sync-go/internal/queue"
	"github.com/creator-shield/youtube-sync-go/internal/service/projection"
	syncsvc "github.com/creator-shield/youtube-sync-go/internal/service/sync"
	"github.com/creator-shield/youtube-sync-go/internal/service/token"
	"github.com/creator-shield/youtube-sync-go/pkg/logger"
)

const defaultSyncInterval = time.Hour

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

	interval := defaultSyncInterval
	if raw := os.Getenv("APP_SYNC_INTERVAL"); raw != "" {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			logger.Log.Warn("invalid sync interval, using default",
				zap.String("value", raw),
				zap.Duration("default", defaultSyncInterval),
			)
		} else {
			interval = parsed
		}
	}

	logger.Log.Info("sync scheduler starting", zap.Duration("interval", interval))

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

	cache, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress: []string{fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port)},
		Password:    cfg.Redis.Password,
		SelectDB:    cfg.Redis.DB,
	})
	if err != nil {
		logger.Log.Fatal("failed to initialize cache client", zap.Error(err))
	}
	defer cache.Close()

	channelRepo := repository.NewChannelRepository(pool)
	videoRepo := repository.NewVideoRepository(pool)
	commentRepo := repository.NewCommentRepository(pool)
	cursorRepo := repository.NewCommentCursorRepository(pool)
	tokenRepo := repository.NewOAuthTokenRepository(pool)

	tokens := token.NewManager(tokenRepo, cfg.OAuth)
	client := platform.NewClient(cfg.YouTube.APIKeys, cfg.YouTube.EnableFallback)
	dispatcher := queue.NewDispatcher(cache)

	// Scheduled passes can skip cache projection (and with it comment
	// fetching) when only the relational store needs to stay fresh.
	var projector syncsvc.Projector
	if os.Getenv("APP_SYNC_SKIP_COMMENTS") != "true" {
		projector = projection.NewService(cache, dispatcher, videoRepo, commentRepo, cursorRepo, client, tokens, cfg.Sync)
	} else {
		logger.Log.Info("cache projection disabled for scheduled passes")
	}
	engine := syncsvc.NewEngine(channelRepo, videoRepo, client, tokens, projector, cfg.Sync)

	scheduler := &Scheduler{tokens: tokenRepo, engine: engine}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Log.Info("running initial sync pass")
	scheduler.RunOnce(ctx)

	for {
		select {
		case <-ticker.C:
			logger.Log.Info("running scheduled sync pass")
			scheduler.RunOnce(ctx)
		case sig := <-shutdown:
			logger.Log.Info("shutdown signal received", zap.String("signal", sig.String()))
			logger.Log.Info("sync scheduler stopped gracefully")
			return
		}
	}
}

// Scheduler walks every user with an active token pair and advances
// their channels from the stored watermarks.
type Scheduler struct {
	tokens repository.OAuthTokenRepository
	engine *syncsvc.Engine
}

// RunOnce runs one incremental sync pass. Per-user failures are logged
// and the pass moves on to the next user.
func (s *Scheduler) RunOnce(ctx context.Context) {
	userIDs, err := s.tokens.ListActiveUserIDs(ctx)
	if err != nil {
		logger.Log.Error("failed to list active users", zap.Error(err))
		return
	}

	if len(userIDs) == 0 {
		logger.Log.Info("no users with active tokens")
		return
	}

	var succeeded, failed int
	for _, userID := range userIDs {
		result, err := s.engine.StartIncrementalSync(ctx, userID, "")
		if err != nil {
			logger.Log.Error("incremental sync failed",
				zap.Int64("user_id", userID),
				zap.Error(err),
			)
			failed++
			continue
		}

		logger.Log.Info("incremental sync completed",
			zap.Int64("user_id", userID),
			zap.Int("channels_synced", result.ChannelsSynced),
			zap.Int("videos_synced", result.VideosSynced),
		)
		succeeded++
	}

	logger.Log.Info("sync pass completed",
		zap.Int("total", len(userIDs)),
		zap.Int("successful", succeeded),
		zap.Int("failed", failed),
	)
}
