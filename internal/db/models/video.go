package models

import "time"

// Video represents a single video belonging to a channel. Stats are
// denormalized from the platform and refreshed on every sync pass.
type Video struct {
	ID              int64     `db:"id" json:"id"`
	ChannelID       int64     `db:"channel_id" json:"channel_id"`
	PlatformVideoID string    `db:"platform_video_id" json:"platform_video_id"`
	Title           string    `db:"title" json:"title"`
	Tags            []string  `db:"tags" json:"tags"`
	PublishedAt     time.Time `db:"published_at" json:"published_at"`
	ViewCount       int64     `db:"view_count" json:"view_count"`
	LikeCount       int64     `db:"like_count" json:"like_count"`
	CommentCount    int64     `db:"comment_count" json:"comment_count"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// NewVideo creates a new Video under the given channel.
func NewVideo(channelID int64, platformVideoID, title string, publishedAt time.Time) *Video {
	now := time.Now()
	return &Video{
		ChannelID:       channelID,
		PlatformVideoID: platformVideoID,
		Title:           title,
		PublishedAt:     publishedAt,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// UpdateStats refreshes the denormalized counters.
func (v *Video) UpdateStats(views, likes, comments int64) {
	v.ViewCount = views
	v.LikeCount = likes
	v.CommentCount = comments
	v.UpdatedAt = time.Now()
}
