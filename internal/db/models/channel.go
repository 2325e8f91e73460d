package models

import "time"

// ChannelState describes where a channel sits in its sync lifecycle.
type ChannelState string

// Channel lifecycle states. Unknown channels exist on the platform but not in
// the store; Restoring is a soft-deleted channel being brought back by a full sync.
const (
	ChannelStateUnknown   ChannelState = "UNKNOWN"
	ChannelStateActive    ChannelState = "ACTIVE"
	ChannelStateDeleted   ChannelState = "DELETED"
	ChannelStateRestoring ChannelState = "RESTORING"
)

// Channel represents a YouTube channel owned by a user.
type Channel struct {
	ID                   int64      `db:"id" json:"id"`
	UserID               int64      `db:"user_id" json:"user_id"`
	PlatformChannelID    string     `db:"platform_channel_id" json:"platform_channel_id"`
	Title                string     `db:"title" json:"title"`
	UploadsPlaylistID    string     `db:"uploads_playlist_id" json:"uploads_playlist_id"`
	LastSyncedAt         *time.Time `db:"last_synced_at" json:"last_synced_at"`
	LastVideoPublishedAt *time.Time `db:"last_video_published_at" json:"last_video_published_at"`
	DeletedAt            *time.Time `db:"deleted_at" json:"deleted_at"`
	CreatedAt            time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time  `db:"updated_at" json:"updated_at"`
}

// NewChannel creates a new Channel for the given user.
func NewChannel(userID int64, platformChannelID, title, uploadsPlaylistID string) *Channel {
	now := time.Now()
	return &Channel{
		UserID:            userID,
		PlatformChannelID: platformChannelID,
		Title:             title,
		UploadsPlaylistID: uploadsPlaylistID,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// State reports the channel's current lifecycle state.
func (c *Channel) State() ChannelState {
	if c.DeletedAt != nil {
		return ChannelStateDeleted
	}
	return ChannelStateActive
}

// Restore clears the soft-delete marker.
func (c *Channel) Restore() {
	c.DeletedAt = nil
	c.UpdatedAt = time.Now()
}

// AdvanceWatermark moves the sync cursors forward. lastSyncedAt always
// advances; the video watermark only moves if the new value is later.
func (c *Channel) AdvanceWatermark(syncedAt time.Time, latestPublished *time.Time) {
	c.LastSyncedAt = &syncedAt
	if latestPublished == nil {
		return
	}
	if c.LastVideoPublishedAt == nil || latestPublished.After(*c.LastVideoPublishedAt) {
		t := *latestPublished
		c.LastVideoPublishedAt = &t
	}
	c.UpdatedAt = time.Now()
}
