// Package deletion drives asynchronous removal of filtered comments from
// the platform, one claimed batch at a time.
package deletion

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/creator-shield/youtube-sync-go/internal/db"
	"github.com/creator-shield/youtube-sync-go/internal/db/repository"
	"github.com/creator-shield/youtube-sync-go/pkg/logger"
)

// Request is the receipt returned when a deletion batch is accepted.
type Request struct {
	RequestID     uuid.UUID `json:"request_id"`
	TotalComments int64     `json:"total_comments"`
}

// Progress reports how far one deletion request has come. A comment
// counts as failed once its retry budget is used up.
type Progress struct {
	Total       int     `json:"total"`
	Completed   int     `json:"completed"`
	Failed      int     `json:"failed"`
	Percent     float64 `json:"percent"`
	IsCompleted bool    `json:"is_completed"`
}

// Service accepts deletion requests and reports their progress. The
// worker, running separately, does the actual platform deletes.
type Service struct {
	comments   repository.CommentRepository
	videos     repository.VideoRepository
	channels   repository.ChannelRepository
	maxRetries int
}

// NewService creates a deletion request service.
func NewService(
	comments repository.CommentRepository,
	videos repository.VideoRepository,
	channels repository.ChannelRepository,
	maxRetries int,
) *Service {
	return &Service{
		comments:   comments,
		videos:     videos,
		channels:   channels,
		maxRetries: maxRetries,
	}
}

// RequestByVideo claims every filtered ACTIVE comment on the video for a
// fresh request id. Claiming is a conditional update, so a comment
// already owned by another request is never claimed twice. Videos on
// another user's channel surface as not found.
func (s *Service) RequestByVideo(ctx context.Context, userID int64, platformVideoID string) (*Request, error) {
	video, err := s.videos.GetByPlatformID(ctx, platformVideoID)
	if err != nil {
		return nil, err
	}

	owner, err := s.channels.GetByID(ctx, video.ChannelID)
	if err != nil {
		return nil, fmt.Errorf("load video channel: %w", err)
	}
	if owner.UserID != userID {
		return nil, fmt.Errorf("video %s: %w", platformVideoID, db.ErrNotFound)
	}

	requestID := uuid.New()
	claimed, err := s.comments.ClaimFilteredByVideo(ctx, requestID, video.ID)
	if err != nil {
		return nil, fmt.Errorf("claim filtered comments: %w", err)
	}

	logger.Log.Info("deletion request accepted",
		zap.String("request_id", requestID.String()),
		zap.String("video_id", platformVideoID),
		zap.Int64("total_comments", claimed),
	)

	return &Request{RequestID: requestID, TotalComments: claimed}, nil
}

// RequestByChannel claims every filtered ACTIVE comment across the
// channel's videos for a fresh request id.
func (s *Service) RequestByChannel(ctx context.Context, userID int64, platformChannelID string) (*Request, error) {
	channel, err := s.channels.GetByPlatformID(ctx, userID, platformChannelID)
	if err != nil {
		return nil, err
	}

	requestID := uuid.New()
	claimed, err := s.comments.ClaimFilteredByChannel(ctx, requestID, channel.ID)
	if err != nil {
		return nil, fmt.Errorf("claim filtered comments: %w", err)
	}

	logger.Log.Info("deletion request accepted",
		zap.String("request_id", requestID.String()),
		zap.String("channel_id", platformChannelID),
		zap.Int64("total_comments", claimed),
	)

	return &Request{RequestID: requestID, TotalComments: claimed}, nil
}

// Progress reports totals for a request. Unknown request ids surface as
// the repository's not-found error.
func (s *Service) Progress(ctx context.Context, requestID uuid.UUID) (*Progress, error) {
	counts, err := s.comments.ProgressByRequest(ctx, requestID, s.maxRetries)
	if err != nil {
		return nil, err
	}

	done := counts.Completed + counts.Failed
	progress := &Progress{
		Total:       counts.Total,
		Completed:   counts.Completed,
		Failed:      counts.Failed,
		IsCompleted: done >= counts.Total,
	}
	if counts.Total > 0 {
		progress.Percent = float64(done) / float64(counts.Total) * 100
	}

	return progress, nil
}
