package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/creator-shield/youtube-sync-go/internal/db"
	"github.com/creator-shield/youtube-sync-go/internal/db/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PendingDeletion pairs a claimed comment with the user who owns the
// channel it was posted on, so the worker can fetch that user's token.
type PendingDeletion struct {
	Comment *models.Comment
	UserID  int64
}

// DeletionProgress summarizes one deletion request batch.
type DeletionProgress struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}

// CommentRepository defines operations for managing comments and their
// deletion state machine.
type CommentRepository interface {
	// Upsert creates a comment or refreshes its text and counters by
	// platform comment id. Status fields are never overwritten here.
	Upsert(ctx context.Context, comment *models.Comment) error

	// ClaimFilteredByVideo atomically moves a video's filtered ACTIVE
	// comments into PENDING_DELETE under the given request id. Returns the
	// number of comments claimed.
	ClaimFilteredByVideo(ctx context.Context, requestID uuid.UUID, videoID int64) (int64, error)

	// ClaimFilteredByChannel is ClaimFilteredByVideo across every video of
	// a channel.
	ClaimFilteredByChannel(ctx context.Context, requestID uuid.UUID, channelID int64) (int64, error)

	// DuePendingDeletions selects PENDING_DELETE comments whose next
	// attempt time has passed and whose retry budget is not exhausted.
	DuePendingDeletions(ctx context.Context, maxRetries, limit int) ([]*PendingDeletion, error)

	// UpdateDeletionState writes back status, retry count and next attempt
	// time. The update only applies while the row is still PENDING_DELETE,
	// which keeps terminal states sticky.
	UpdateDeletionState(ctx context.Context, comment *models.Comment) error

	// ProgressByRequest reports totals for one deletion request batch.
	ProgressByRequest(ctx context.Context, requestID uuid.UUID, maxRetries int) (*DeletionProgress, error)
}

type commentRepository struct {
	pool *pgxpool.Pool
}

// NewCommentRepository creates a new CommentRepository.
func NewCommentRepository(pool *pgxpool.Pool) CommentRepository {
	return &commentRepository{pool: pool}
}

func (r *commentRepository) Upsert(ctx context.Context, comment *models.Comment) error {
	query := `
		INSERT INTO comments (video_id, platform_comment_id, author_name, text, filtered,
		                      status, published_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (platform_comment_id) DO UPDATE
		SET text = EXCLUDED.text,
		    author_name = EXCLUDED.author_name,
		    updated_at = EXCLUDED.updated_at
		RETURNING id, status, retry_count, created_at, updated_at
	`

	err := r.pool.QueryRow(ctx, query,
		comment.VideoID,
		comment.PlatformCommentID,
		comment.AuthorName,
		comment.Text,
		comment.Filtered,
		comment.Status,
		comment.PublishedAt,
		comment.CreatedAt,
		comment.UpdatedAt,
	).Scan(
		&comment.ID,
		&comment.Status,
		&comment.RetryCount,
		&comment.CreatedAt,
		&comment.UpdatedAt,
	)

	if err != nil {
		return db.WrapError(err, "upsert comment")
	}

	return nil
}

func (r *commentRepository) ClaimFilteredByVideo(ctx context.Context, requestID uuid.UUID, videoID int64) (int64, error) {
	// Conditional update: only ACTIVE rows can be claimed, so two
	// concurrent requests never both own the same comment.
	query := `
		UPDATE comments
		SET status = $1,
		    request_id = $2,
		    retry_count = 0,
		    next_attempt_at = now(),
		    updated_at = now()
		WHERE video_id = $3 AND filtered AND status = $4
	`

	result, err := r.pool.Exec(ctx, query,
		models.CommentStatusPendingDelete, requestID, videoID, models.CommentStatusActive)
	if err != nil {
		return 0, db.WrapError(err, "claim filtered comments by video")
	}

	return result.RowsAffected(), nil
}

func (r *commentRepository) ClaimFilteredByChannel(ctx context.Context, requestID uuid.UUID, channelID int64) (int64, error) {
	query := `
		UPDATE comments
		SET status = $1,
		    request_id = $2,
		    retry_count = 0,
		    next_attempt_at = now(),
		    updated_at = now()
		WHERE filtered AND status = $3
		  AND video_id IN (SELECT id FROM videos WHERE channel_id = $4)
	`

	result, err := r.pool.Exec(ctx, query,
		models.CommentStatusPendingDelete, requestID, models.CommentStatusActive, channelID)
	if err != nil {
		return 0, db.WrapError(err, "claim filtered comments by channel")
	}

	return result.RowsAffected(), nil
}

func (r *commentRepository) DuePendingDeletions(ctx context.Context, maxRetries, limit int) ([]*PendingDeletion, error) {
	query := `
		SELECT c.id, c.video_id, c.platform_comment_id, c.author_name, c.text, c.filtered,
		       c.status, c.retry_count, c.next_attempt_at, c.request_id, c.published_at,
		       c.created_at, c.updated_at, ch.user_id
		FROM comments c
		JOIN videos v ON v.id = c.video_id
		JOIN channels ch ON ch.id = v.channel_id
		WHERE c.status = $1
		  AND c.retry_count < $2
		  AND c.next_attempt_at <= now()
		ORDER BY c.next_attempt_at
		LIMIT $3
	`

	rows, err := r.pool.Query(ctx, query, models.CommentStatusPendingDelete, maxRetries, limit)
	if err != nil {
		return nil, db.WrapError(err, "select due pending deletions")
	}
	defer rows.Close()

	var items []*PendingDeletion
	for rows.Next() {
		item := &PendingDeletion{Comment: &models.Comment{}}
		c := item.Comment
		err := rows.Scan(
			&c.ID,
			&c.VideoID,
			&c.PlatformCommentID,
			&c.AuthorName,
			&c.Text,
			&c.Filtered,
			&c.Status,
			&c.RetryCount,
			&c.NextAttemptAt,
			&c.RequestID,
			&c.PublishedAt,
			&c.CreatedAt,
			&c.UpdatedAt,
			&item.UserID,
		)
		if err != nil {
			return nil, fmt.Errorf("scan pending deletion: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending deletions: %w", err)
	}

	return items, nil
}

func (r *commentRepository) UpdateDeletionState(ctx context.Context, comment *models.Comment) error {
	var next time.Time
	if comment.NextAttemptAt != nil {
		next = *comment.NextAttemptAt
	} else {
		next = time.Now()
	}

	query := `
		UPDATE comments
		SET status = $1,
		    retry_count = $2,
		    next_attempt_at = $3,
		    updated_at = now()
		WHERE id = $4 AND status = $5
	`

	result, err := r.pool.Exec(ctx, query,
		comment.Status, comment.RetryCount, next, comment.ID, models.CommentStatusPendingDelete)
	if err != nil {
		return db.WrapError(err, "update comment deletion state")
	}

	if result.RowsAffected() == 0 {
		return db.WrapError(pgx.ErrNoRows, "update comment deletion state")
	}

	return nil
}

func (r *commentRepository) ProgressByRequest(ctx context.Context, requestID uuid.UUID, maxRetries int) (*DeletionProgress, error) {
	query := `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE status IN ($2, $3)),
		       COUNT(*) FILTER (WHERE status = $4 AND retry_count >= $5)
		FROM comments
		WHERE request_id = $1
	`

	progress := &DeletionProgress{}
	err := r.pool.QueryRow(ctx, query,
		requestID,
		models.CommentStatusDeleted,
		models.CommentStatusNotFound,
		models.CommentStatusPendingDelete,
		maxRetries,
	).Scan(&progress.Total, &progress.Completed, &progress.Failed)
	if err != nil {
		return nil, db.WrapError(err, "deletion progress by request")
	}

	if progress.Total == 0 {
		return nil, db.WrapError(pgx.ErrNoRows, "deletion progress by request")
	}

	return progress, nil
}
