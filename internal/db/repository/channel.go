package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/creator-shield/youtube-sync-go/internal/db"
	"github.com/creator-shield/youtube-sync-go/internal/db/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ChannelRepository defines operations for managing channels.
type ChannelRepository interface {
	// Upsert creates a channel or updates its metadata by platform channel id.
	Upsert(ctx context.Context, channel *models.Channel) error

	// GetByPlatformID retrieves a user's channel by platform channel id,
	// including soft-deleted rows.
	GetByPlatformID(ctx context.Context, userID int64, platformChannelID string) (*models.Channel, error)

	// GetByID retrieves a single channel by internal id.
	GetByID(ctx context.Context, id int64) (*models.Channel, error)

	// ListByUser retrieves all of a user's channels. Soft-deleted rows are
	// included only when includeDeleted is set.
	ListByUser(ctx context.Context, userID int64, includeDeleted bool) ([]*models.Channel, error)

	// Restore clears the soft-delete marker.
	Restore(ctx context.Context, id int64) error

	// SoftDelete marks a channel deleted without removing its rows.
	SoftDelete(ctx context.Context, id int64) error

	// AdvanceWatermark sets last_synced_at and moves last_video_published_at
	// forward, never backward.
	AdvanceWatermark(ctx context.Context, id int64, syncedAt time.Time, latestPublished *time.Time) error
}

type channelRepository struct {
	pool *pgxpool.Pool
}

// NewChannelRepository creates a new ChannelRepository.
func NewChannelRepository(pool *pgxpool.Pool) ChannelRepository {
	return &channelRepository{pool: pool}
}

func (r *channelRepository) Upsert(ctx context.Context, channel *models.Channel) error {
	query := `
		INSERT INTO channels (user_id, platform_channel_id, title, uploads_playlist_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (platform_channel_id) DO UPDATE
		SET title = EXCLUDED.title,
		    uploads_playlist_id = EXCLUDED.uploads_playlist_id,
		    updated_at = EXCLUDED.updated_at
		RETURNING id, last_synced_at, last_video_published_at, deleted_at, created_at, updated_at
	`

	err := r.pool.QueryRow(ctx, query,
		channel.UserID,
		channel.PlatformChannelID,
		channel.Title,
		channel.UploadsPlaylistID,
		channel.CreatedAt,
		channel.UpdatedAt,
	).Scan(
		&channel.ID,
		&channel.LastSyncedAt,
		&channel.LastVideoPublishedAt,
		&channel.DeletedAt,
		&channel.CreatedAt,
		&channel.UpdatedAt,
	)

	if err != nil {
		return db.WrapError(err, "upsert channel")
	}

	return nil
}

func (r *channelRepository) GetByPlatformID(ctx context.Context, userID int64, platformChannelID string) (*models.Channel, error) {
	query := `
		SELECT id, user_id, platform_channel_id, title, uploads_playlist_id,
		       last_synced_at, last_video_published_at, deleted_at, created_at, updated_at
		FROM channels
		WHERE user_id = $1 AND platform_channel_id = $2
	`

	channel := &models.Channel{}
	err := r.pool.QueryRow(ctx, query, userID, platformChannelID).Scan(
		&channel.ID,
		&channel.UserID,
		&channel.PlatformChannelID,
		&channel.Title,
		&channel.UploadsPlaylistID,
		&channel.LastSyncedAt,
		&channel.LastVideoPublishedAt,
		&channel.DeletedAt,
		&channel.CreatedAt,
		&channel.UpdatedAt,
	)

	if err != nil {
		return nil, db.WrapError(err, "get channel by platform id")
	}

	return channel, nil
}

func (r *channelRepository) GetByID(ctx context.Context, id int64) (*models.Channel, error) {
	query := `
		SELECT id, user_id, platform_channel_id, title, uploads_playlist_id,
		       last_synced_at, last_video_published_at, deleted_at, created_at, updated_at
		FROM channels
		WHERE id = $1
	`

	channel := &models.Channel{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&channel.ID,
		&channel.UserID,
		&channel.PlatformChannelID,
		&channel.Title,
		&channel.UploadsPlaylistID,
		&channel.LastSyncedAt,
		&channel.LastVideoPublishedAt,
		&channel.DeletedAt,
		&channel.CreatedAt,
		&channel.UpdatedAt,
	)

	if err != nil {
		return nil, db.WrapError(err, "get channel by id")
	}

	return channel, nil
}

func (r *channelRepository) ListByUser(ctx context.Context, userID int64, includeDeleted bool) ([]*models.Channel, error) {
	query := `
		SELECT id, user_id, platform_channel_id, title, uploads_playlist_id,
		       last_synced_at, last_video_published_at, deleted_at, created_at, updated_at
		FROM channels
		WHERE user_id = $1
	`
	if !includeDeleted {
		query += ` AND deleted_at IS NULL`
	}
	query += ` ORDER BY id`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, db.WrapError(err, "list channels by user")
	}
	defer rows.Close()

	return scanChannels(rows)
}

func (r *channelRepository) Restore(ctx context.Context, id int64) error {
	query := `UPDATE channels SET deleted_at = NULL, updated_at = now() WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return db.WrapError(err, "restore channel")
	}

	if result.RowsAffected() == 0 {
		return db.WrapError(pgx.ErrNoRows, "restore channel")
	}

	return nil
}

func (r *channelRepository) SoftDelete(ctx context.Context, id int64) error {
	query := `UPDATE channels SET deleted_at = now(), updated_at = now() WHERE id = $1 AND deleted_at IS NULL`

	result, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return db.WrapError(err, "soft delete channel")
	}

	if result.RowsAffected() == 0 {
		return db.WrapError(pgx.ErrNoRows, "soft delete channel")
	}

	return nil
}

func (r *channelRepository) AdvanceWatermark(ctx context.Context, id int64, syncedAt time.Time, latestPublished *time.Time) error {
	// GREATEST keeps the video watermark monotonically non-decreasing even
	// when concurrent passes race.
	query := `
		UPDATE channels
		SET last_synced_at = $2,
		    last_video_published_at = CASE
		        WHEN $3::timestamptz IS NULL THEN last_video_published_at
		        ELSE GREATEST(COALESCE(last_video_published_at, $3::timestamptz), $3::timestamptz)
		    END,
		    updated_at = now()
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query, id, syncedAt, latestPublished)
	if err != nil {
		return db.WrapError(err, "advance channel watermark")
	}

	if result.RowsAffected() == 0 {
		return db.WrapError(pgx.ErrNoRows, "advance channel watermark")
	}

	return nil
}

// Helper function to scan multiple channels from query results
func scanChannels(rows pgx.Rows) ([]*models.Channel, error) {
	var channels []*models.Channel

	for rows.Next() {
		channel := &models.Channel{}
		err := rows.Scan(
			&channel.ID,
			&channel.UserID,
			&channel.PlatformChannelID,
			&channel.Title,
			&channel.UploadsPlaylistID,
			&channel.LastSyncedAt,
			&channel.LastVideoPublishedAt,
			&channel.DeletedAt,
			&channel.CreatedAt,
			&channel.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}
		channels = append(channels, channel)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate channels: %w", err)
	}

	return channels, nil
}
