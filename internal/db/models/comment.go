package models

import (
	"time"

	"github.com/google/uuid"
)

// Comment status constants. DELETED and NOT_FOUND are terminal and sticky:
// once reached a comment never transitions again.
const (
	CommentStatusActive        = "ACTIVE"
	CommentStatusPendingDelete = "PENDING_DELETE"
	CommentStatusDeleted       = "DELETED"
	CommentStatusNotFound      = "NOT_FOUND"
)

// Comment represents a platform comment on one of our videos. Filtered
// comments are the ones flagged by the moderation agents; the deletion
// worker drives PENDING_DELETE rows through their retry state machine.
type Comment struct {
	ID                int64      `db:"id" json:"id"`
	VideoID           int64      `db:"video_id" json:"video_id"`
	PlatformCommentID string     `db:"platform_comment_id" json:"platform_comment_id"`
	AuthorName        string     `db:"author_name" json:"author_name"`
	Text              string     `db:"text" json:"text"`
	Filtered          bool       `db:"filtered" json:"filtered"`
	Status            string     `db:"status" json:"status"`
	RetryCount        int        `db:"retry_count" json:"retry_count"`
	NextAttemptAt     *time.Time `db:"next_attempt_at" json:"next_attempt_at"`
	RequestID         *uuid.UUID `db:"request_id" json:"request_id"`
	PublishedAt       time.Time  `db:"published_at" json:"published_at"`
	CreatedAt         time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time  `db:"updated_at" json:"updated_at"`
}

// NewComment creates a new ACTIVE comment under the given video.
func NewComment(videoID int64, platformCommentID, authorName, text string, publishedAt time.Time) *Comment {
	now := time.Now()
	return &Comment{
		VideoID:           videoID,
		PlatformCommentID: platformCommentID,
		AuthorName:        authorName,
		Text:              text,
		Status:            CommentStatusActive,
		PublishedAt:       publishedAt,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// IsTerminal reports whether the comment has reached a sticky final status.
func (c *Comment) IsTerminal() bool {
	return c.Status == CommentStatusDeleted || c.Status == CommentStatusNotFound
}

// MarkDeleted records a successful platform delete.
func (c *Comment) MarkDeleted() {
	c.Status = CommentStatusDeleted
	c.UpdatedAt = time.Now()
}

// MarkNotFound records an upstream "already gone" response. Treated as
// success; the retry count is left untouched.
func (c *Comment) MarkNotFound() {
	c.Status = CommentStatusNotFound
	c.UpdatedAt = time.Now()
}

// ScheduleRetry increments the retry count and sets when the next
// attempt becomes eligible.
func (c *Comment) ScheduleRetry(backoff time.Duration) {
	c.RetryCount++
	next := time.Now().Add(backoff)
	c.NextAttemptAt = &next
	c.UpdatedAt = time.Now()
}

// RetriesExhausted reports whether the comment has used up its retry budget.
func (c *Comment) RetriesExhausted(maxRetries int) bool {
	return c.RetryCount >= maxRetries
}
