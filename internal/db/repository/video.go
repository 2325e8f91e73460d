package repository

import (
	"context"
	"fmt"

	"github.com/creator-shield/youtube-sync-go/internal/db"
	"github.com/creator-shield/youtube-sync-go/internal/db/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// VideoRepository defines operations for managing videos.
type VideoRepository interface {
	// Upsert creates a video or refreshes its metadata and stats by
	// platform video id.
	Upsert(ctx context.Context, video *models.Video) error

	// GetByPlatformID retrieves a single video by platform video id.
	GetByPlatformID(ctx context.Context, platformVideoID string) (*models.Video, error)

	// ListByChannel retrieves a channel's videos, newest first.
	ListByChannel(ctx context.Context, channelID int64, limit int) ([]*models.Video, error)

	// TopByViews retrieves a channel's most viewed videos.
	TopByViews(ctx context.Context, channelID int64, limit int) ([]*models.Video, error)

	// ListByPlatformIDs retrieves videos matching the given platform ids.
	ListByPlatformIDs(ctx context.Context, platformVideoIDs []string) ([]*models.Video, error)
}

type videoRepository struct {
	pool *pgxpool.Pool
}

// NewVideoRepository creates a new VideoRepository.
func NewVideoRepository(pool *pgxpool.Pool) VideoRepository {
	return &videoRepository{pool: pool}
}

func (r *videoRepository) Upsert(ctx context.Context, video *models.Video) error {
	query := `
		INSERT INTO videos (channel_id, platform_video_id, title, tags, published_at,
		                    view_count, like_count, comment_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (platform_video_id) DO UPDATE
		SET title = EXCLUDED.title,
		    tags = EXCLUDED.tags,
		    view_count = EXCLUDED.view_count,
		    like_count = EXCLUDED.like_count,
		    comment_count = EXCLUDED.comment_count,
		    updated_at = EXCLUDED.updated_at
		RETURNING id, created_at, updated_at
	`

	err := r.pool.QueryRow(ctx, query,
		video.ChannelID,
		video.PlatformVideoID,
		video.Title,
		video.Tags,
		video.PublishedAt,
		video.ViewCount,
		video.LikeCount,
		video.CommentCount,
		video.CreatedAt,
		video.UpdatedAt,
	).Scan(
		&video.ID,
		&video.CreatedAt,
		&video.UpdatedAt,
	)

	if err != nil {
		return db.WrapError(err, "upsert video")
	}

	return nil
}

func (r *videoRepository) GetByPlatformID(ctx context.Context, platformVideoID string) (*models.Video, error) {
	query := `
		SELECT id, channel_id, platform_video_id, title, tags, published_at,
		       view_count, like_count, comment_count, created_at, updated_at
		FROM videos
		WHERE platform_video_id = $1
	`

	video := &models.Video{}
	err := r.pool.QueryRow(ctx, query, platformVideoID).Scan(
		&video.ID,
		&video.ChannelID,
		&video.PlatformVideoID,
		&video.Title,
		&video.Tags,
		&video.PublishedAt,
		&video.ViewCount,
		&video.LikeCount,
		&video.CommentCount,
		&video.CreatedAt,
		&video.UpdatedAt,
	)

	if err != nil {
		return nil, db.WrapError(err, "get video by platform id")
	}

	return video, nil
}

func (r *videoRepository) ListByChannel(ctx context.Context, channelID int64, limit int) ([]*models.Video, error) {
	query := `
		SELECT id, channel_id, platform_video_id, title, tags, published_at,
		       view_count, like_count, comment_count, created_at, updated_at
		FROM videos
		WHERE channel_id = $1
		ORDER BY published_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, channelID, limit)
	if err != nil {
		return nil, db.WrapError(err, "list videos by channel")
	}
	defer rows.Close()

	return scanVideos(rows)
}

func (r *videoRepository) TopByViews(ctx context.Context, channelID int64, limit int) ([]*models.Video, error) {
	query := `
		SELECT id, channel_id, platform_video_id, title, tags, published_at,
		       view_count, like_count, comment_count, created_at, updated_at
		FROM videos
		WHERE channel_id = $1
		ORDER BY view_count DESC, published_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, channelID, limit)
	if err != nil {
		return nil, db.WrapError(err, "top videos by views")
	}
	defer rows.Close()

	return scanVideos(rows)
}

func (r *videoRepository) ListByPlatformIDs(ctx context.Context, platformVideoIDs []string) ([]*models.Video, error) {
	if len(platformVideoIDs) == 0 {
		return nil, nil
	}

	query := `
		SELECT id, channel_id, platform_video_id, title, tags, published_at,
		       view_count, like_count, comment_count, created_at, updated_at
		FROM videos
		WHERE platform_video_id = ANY($1)
	`

	rows, err := r.pool.Query(ctx, query, platformVideoIDs)
	if err != nil {
		return nil, db.WrapError(err, "list videos by platform ids")
	}
	defer rows.Close()

	return scanVideos(rows)
}

// Helper function to scan multiple videos from query results
func scanVideos(rows pgx.Rows) ([]*models.Video, error) {
	var videos []*models.Video

	for rows.Next() {
		video := &models.Video{}
		err := rows.Scan(
			&video.ID,
			&video.ChannelID,
			&video.PlatformVideoID,
			&video.Title,
			&video.Tags,
			&video.PublishedAt,
			&video.ViewCount,
			&video.LikeCount,
			&video.CommentCount,
			&video.CreatedAt,
			&video.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan video: %w", err)
		}
		videos = append(videos, video)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate videos: %w", err)
	}

	return videos, nil
}
