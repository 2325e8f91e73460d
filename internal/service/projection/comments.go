package projection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/creator-shield/youtube-sync-go/internal/db/models"
	"github.com/creator-shield/youtube-sync-go/internal/platform"
	"github.com/creator-shield/youtube-sync-go/pkg/logger"
)

// fetchComments pages a video's comment threads newest first. A zero
// since means take everything up to maxComments; otherwise paging stops
// at the first comment at or before the cursor. maxComments of zero means
// uncapped.
func (s *Service) fetchComments(ctx context.Context, videoID string, since time.Time, maxComments int, fallback platform.TokenProvider) ([]platform.CommentInfo, error) {
	var collected []platform.CommentInfo
	pageToken := ""
	stalePages := 0

	for page := 0; page < maxCommentPages; page++ {
		resp, err := s.api.FetchCommentPage(ctx, videoID, pageToken, fallback)
		if err != nil {
			if errors.Is(err, platform.ErrCommentsDisabled) {
				return nil, nil
			}
			return nil, fmt.Errorf("fetch comment page: %w", err)
		}

		newOnPage := 0
		for _, comment := range resp.Comments {
			if !since.IsZero() && !comment.PublishedAt.After(since) {
				return collected, nil
			}
			collected = append(collected, comment)
			newOnPage++
			if maxComments > 0 && len(collected) >= maxComments {
				return collected, nil
			}
		}

		if newOnPage == 0 {
			stalePages++
			if stalePages >= maxStaleCommentPages {
				return collected, nil
			}
		} else {
			stalePages = 0
		}

		if resp.NextPageToken == "" {
			return collected, nil
		}
		pageToken = resp.NextPageToken
	}

	return collected, nil
}

// cachedComment is the JSON shape stored per field in video:{id}:comments.
type cachedComment struct {
	CommentID   string    `json:"comment_id"`
	ParentID    string    `json:"parent_id,omitempty"`
	Author      string    `json:"author"`
	Text        string    `json:"text"`
	LikeCount   int64     `json:"like_count"`
	ReplyCount  int64     `json:"reply_count"`
	PublishedAt time.Time `json:"published_at"`
}

// cacheComments writes the fetched comments into the video's comment
// hash field by field, in place. Entries from earlier passes are never
// deleted first, so a crash mid-write or a pass that finds nothing new
// leaves the previous cache intact.
func (s *Service) cacheComments(ctx context.Context, videoID string, comments []platform.CommentInfo, initial bool) error {
	key := videoCommentsKey(videoID)

	if len(comments) > 0 {
		cmd := s.client.B().Hset().Key(key).FieldValue()
		for _, comment := range comments {
			entry := cachedComment{
				CommentID:   comment.ID,
				ParentID:    comment.ParentID,
				Author:      comment.AuthorName,
				Text:        comment.Text,
				LikeCount:   comment.LikeCount,
				ReplyCount:  comment.ReplyCount,
				PublishedAt: comment.PublishedAt,
			}
			data, err := json.Marshal(entry)
			if err != nil {
				return fmt.Errorf("marshal cached comment: %w", err)
			}
			cmd = cmd.FieldValue(comment.ID, string(data))
		}
		if err := s.client.Do(ctx, cmd.Build()).Error(); err != nil {
			return fmt.Errorf("write cached comments: %w", err)
		}

		err := s.client.Do(ctx,
			s.client.B().Expire().Key(key).Seconds(int64(s.cfg.CacheTTL.Seconds())).Build(),
		).Error()
		if err != nil {
			return fmt.Errorf("expire cached comments: %w", err)
		}
	}

	if initial {
		err := s.client.Do(ctx,
			s.client.B().Set().Key(videoCommentsInitKey(videoID)).Value("1").Ex(s.cfg.CacheTTL).Build(),
		).Error()
		if err != nil {
			return fmt.Errorf("set comments init flag: %w", err)
		}
	}

	return nil
}

// persistComments upserts fetched comments as relational rows. Rows carry
// the deletion state machine, so existing status fields are never
// clobbered by a re-fetch.
func (s *Service) persistComments(ctx context.Context, video *models.Video, comments []platform.CommentInfo) {
	for _, info := range comments {
		comment := models.NewComment(video.ID, info.ID, info.AuthorName, info.Text, info.PublishedAt)
		if err := s.comments.Upsert(ctx, comment); err != nil {
			logger.Log.Warn("failed to persist comment",
				zap.String("video_id", video.PlatformVideoID),
				zap.String("comment_id", info.ID),
				zap.Error(err),
			)
		}
	}
}

// commentCursor returns where the next incremental comment pass should
// stop: the hot cache copy, then the durable cursor row, then a fixed
// lookback window.
func (s *Service) commentCursor(ctx context.Context, videoID string) time.Time {
	raw, err := s.client.Do(ctx, s.client.B().Get().Key(videoLastSyncKey(videoID)).Build()).ToString()
	if err == nil {
		if t, parseErr := time.Parse(time.RFC3339, raw); parseErr == nil {
			return t
		}
	}

	if t, err := s.cursors.Get(ctx, videoID); err == nil {
		return t
	}

	return time.Now().Add(-defaultCursorLookback)
}

// advanceCommentCursor records the newest comment time seen, in the cache
// and in the durable cursor row. A zero time leaves the cursor alone.
func (s *Service) advanceCommentCursor(ctx context.Context, videoID string, newest time.Time) {
	if newest.IsZero() {
		return
	}

	err := s.client.Do(ctx,
		s.client.B().Set().Key(videoLastSyncKey(videoID)).Value(newest.UTC().Format(time.RFC3339)).Ex(s.cfg.CacheTTL).Build(),
	).Error()
	if err != nil {
		s.logVideoFailure("cache comment cursor", videoID, err)
	}

	if err := s.cursors.Set(ctx, videoID, newest); err != nil {
		s.logVideoFailure("store comment cursor", videoID, err)
	}
}

func newestCommentTime(comments []platform.CommentInfo) time.Time {
	var newest time.Time
	for _, c := range comments {
		if c.PublishedAt.After(newest) {
			newest = c.PublishedAt
		}
	}
	return newest
}
