package deletion

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/creator-shield/youtube-sync-go/internal/config"
	"github.com/creator-shield/youtube-sync-go/internal/db/repository"
	"github.com/creator-shield/youtube-sync-go/internal/metrics"
	"github.com/creator-shield/youtube-sync-go/internal/platform"
	"github.com/creator-shield/youtube-sync-go/internal/service/events"
	"github.com/creator-shield/youtube-sync-go/pkg/logger"
)

// Deleter removes a comment on the platform with the owner's token.
type Deleter interface {
	DeleteComment(ctx context.Context, accessToken, commentID string) error
}

// TokenSource supplies the channel owner's access token.
type TokenSource interface {
	ValidAccessToken(ctx context.Context, userID int64) (string, error)
}

// Worker drains PENDING_DELETE comments in polled batches. Each failure
// burns one retry; quota failures push the next attempt out by the
// configured backoff, everything else becomes eligible again immediately.
type Worker struct {
	comments  repository.CommentRepository
	tokens    TokenSource
	deleter   Deleter
	publisher *events.Publisher
	cfg       config.DeletionConfig
}

// NewWorker creates a deletion worker.
func NewWorker(
	comments repository.CommentRepository,
	tokens TokenSource,
	deleter Deleter,
	cfg config.DeletionConfig,
) *Worker {
	return &Worker{
		comments: comments,
		tokens:   tokens,
		deleter:  deleter,
		cfg:      cfg,
	}
}

// SetPublisher enables batch-completion events. Optional.
func (w *Worker) SetPublisher(publisher *events.Publisher) {
	w.publisher = publisher
}

// Run polls for due work until the context is canceled.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	logger.Log.Info("deletion worker started",
		zap.Duration("poll_interval", w.cfg.PollInterval),
		zap.Int("batch_size", w.cfg.BatchSize),
		zap.Int("max_retries", w.cfg.MaxRetries),
	)

	for {
		if _, err := w.ProcessBatch(ctx); err != nil {
			logger.Log.Error("deletion batch failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			logger.Log.Info("deletion worker stopped")
			return
		case <-ticker.C:
		}
	}
}

// ProcessBatch handles one batch of due comments and returns how many it
// touched.
func (w *Worker) ProcessBatch(ctx context.Context) (int, error) {
	due, err := w.comments.DuePendingDeletions(ctx, w.cfg.MaxRetries, w.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("select due deletions: %w", err)
	}
	if len(due) == 0 {
		return 0, nil
	}

	metrics.DeletionBatchSize.Observe(float64(len(due)))

	for _, item := range due {
		w.processOne(ctx, item)
	}

	if err := w.publisher.Publish(ctx, events.NewEvent(events.TypeDeletionBatchCompleted, 0, map[string]any{
		"batch_size": len(due),
	})); err != nil {
		logger.Log.Warn("failed to publish deletion batch event", zap.Error(err))
	}

	return len(due), nil
}

func (w *Worker) processOne(ctx context.Context, item *repository.PendingDeletion) {
	comment := item.Comment

	err := w.deleteOnPlatform(ctx, item)

	switch {
	case err == nil:
		comment.MarkDeleted()
		metrics.DeletionOutcomes.WithLabelValues("deleted").Inc()
	case platform.IsNotFound(err):
		// Already gone upstream. Terminal, and the retry count stays put.
		comment.MarkNotFound()
		metrics.DeletionOutcomes.WithLabelValues("not_found").Inc()
	case platform.IsQuotaError(err):
		comment.ScheduleRetry(w.cfg.QuotaBackoff)
		metrics.DeletionOutcomes.WithLabelValues("quota").Inc()
		logger.Log.Warn("deletion hit quota, backing off",
			zap.String("comment_id", comment.PlatformCommentID),
			zap.Int("retry_count", comment.RetryCount),
			zap.Duration("backoff", w.cfg.QuotaBackoff),
		)
	default:
		comment.ScheduleRetry(0)
		metrics.DeletionOutcomes.WithLabelValues("retry").Inc()
		logger.Log.Warn("deletion attempt failed",
			zap.String("comment_id", comment.PlatformCommentID),
			zap.Int("retry_count", comment.RetryCount),
			zap.Error(err),
		)
	}

	if err != nil && !platform.IsNotFound(err) && comment.RetriesExhausted(w.cfg.MaxRetries) {
		logger.Log.Error("deletion retries exhausted",
			zap.String("comment_id", comment.PlatformCommentID),
			zap.Int("retry_count", comment.RetryCount),
		)
	}

	if err := w.comments.UpdateDeletionState(ctx, comment); err != nil {
		logger.Log.Error("failed to update deletion state",
			zap.String("comment_id", comment.PlatformCommentID),
			zap.Error(err),
		)
	}
}

func (w *Worker) deleteOnPlatform(ctx context.Context, item *repository.PendingDeletion) error {
	accessToken, err := w.tokens.ValidAccessToken(ctx, item.UserID)
	if err != nil {
		return fmt.Errorf("resolve access token: %w", err)
	}
	return w.deleter.DeleteComment(ctx, accessToken, item.Comment.PlatformCommentID)
}
