package repository

import (
	"context"
	"time"

	"github.com/creator-shield/youtube-sync-go/internal/db"

	"github.com/jackc/pgx/v5/pgxpool"
)

// CommentCursorRepository persists per-video comment sync cursors. The
// cache holds a hot copy; this table is the durable fallback.
type CommentCursorRepository interface {
	// Get returns the last comment sync time for a video, or ErrNotFound.
	Get(ctx context.Context, platformVideoID string) (time.Time, error)

	// Set stores the last comment sync time for a video.
	Set(ctx context.Context, platformVideoID string, syncedAt time.Time) error
}

type commentCursorRepository struct {
	pool *pgxpool.Pool
}

// NewCommentCursorRepository creates a new CommentCursorRepository.
func NewCommentCursorRepository(pool *pgxpool.Pool) CommentCursorRepository {
	return &commentCursorRepository{pool: pool}
}

func (r *commentCursorRepository) Get(ctx context.Context, platformVideoID string) (time.Time, error) {
	query := `SELECT last_synced_at FROM comment_sync_cursors WHERE platform_video_id = $1`

	var syncedAt time.Time
	err := r.pool.QueryRow(ctx, query, platformVideoID).Scan(&syncedAt)
	if err != nil {
		return time.Time{}, db.WrapError(err, "get comment sync cursor")
	}

	return syncedAt, nil
}

func (r *commentCursorRepository) Set(ctx context.Context, platformVideoID string, syncedAt time.Time) error {
	query := `
		INSERT INTO comment_sync_cursors (platform_video_id, last_synced_at, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (platform_video_id) DO UPDATE
		SET last_synced_at = EXCLUDED.last_synced_at,
		    updated_at = now()
	`

	_, err := r.pool.Exec(ctx, query, platformVideoID, syncedAt)
	if err != nil {
		return db.WrapError(err, "set comment sync cursor")
	}

	return nil
}
