package projection

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/rueidis"
	"go.uber.org/zap"

	"github.com/creator-shield/youtube-sync-go/internal/config"
	"github.com/creator-shield/youtube-sync-go/internal/db/models"
	"github.com/creator-shield/youtube-sync-go/internal/db/repository"
	"github.com/creator-shield/youtube-sync-go/internal/metrics"
	"github.com/creator-shield/youtube-sync-go/internal/platform"
	"github.com/creator-shield/youtube-sync-go/internal/queue"
	syncsvc "github.com/creator-shield/youtube-sync-go/internal/service/sync"
	"github.com/creator-shield/youtube-sync-go/pkg/logger"
)

// Comment pagination limits. Paging stops after maxCommentPages pages or
// five consecutive pages that yield nothing new.
const (
	maxCommentPages       = 50
	maxStaleCommentPages  = 5
	defaultCursorLookback = 30 * 24 * time.Hour
)

// PlatformAPI is the slice of the platform client the projector needs.
type PlatformAPI interface {
	FetchCommentPage(ctx context.Context, videoID, pageToken string, fallback platform.TokenProvider) (*platform.CommentPage, error)
	FetchTranscript(ctx context.Context, accessToken, videoID string) (string, error)
}

// TokenSource supplies user access tokens for transcript downloads.
type TokenSource interface {
	ValidAccessToken(ctx context.Context, userID int64) (string, error)
	Provider(userID int64) platform.TokenProvider
}

// TaskDispatcher pushes agent tasks. Satisfied by queue.Dispatcher.
type TaskDispatcher interface {
	Enqueue(ctx context.Context, task queue.Task) error
}

// Service projects committed channel batches into the agent cache.
type Service struct {
	client     rueidis.Client
	dispatcher TaskDispatcher
	videos     repository.VideoRepository
	comments   repository.CommentRepository
	cursors    repository.CommentCursorRepository
	api        PlatformAPI
	tokens     TokenSource
	cfg        config.SyncConfig
}

// NewService creates a cache projector.
func NewService(
	client rueidis.Client,
	dispatcher TaskDispatcher,
	videos repository.VideoRepository,
	comments repository.CommentRepository,
	cursors repository.CommentCursorRepository,
	api PlatformAPI,
	tokens TokenSource,
	cfg config.SyncConfig,
) *Service {
	return &Service{
		client:     client,
		dispatcher: dispatcher,
		videos:     videos,
		comments:   comments,
		cursors:    cursors,
		api:        api,
		tokens:     tokens,
		cfg:        cfg,
	}
}

// Project mirrors one committed channel batch into the cache. Individual
// video failures are logged and skipped so one broken video cannot hold
// back the rest of the channel.
func (s *Service) Project(ctx context.Context, req syncsvc.ProjectionRequest) error {
	var err error
	switch req.Mode {
	case syncsvc.ModeFirstSync:
		err = s.projectFull(ctx, req)
	case syncsvc.ModeFollowUp:
		err = s.projectIncremental(ctx, req)
	case syncsvc.ModeRefreshOnly:
		err = s.refreshMetadata(ctx, req)
	default:
		return fmt.Errorf("unknown projection mode %q", req.Mode)
	}
	if err == nil {
		metrics.ProjectionsCompleted.WithLabelValues(string(req.Mode)).Inc()
	}
	return err
}

// projectFull caches the channel's top videos with their initial comment
// slices and transcripts, then queues one profiling task for the channel.
func (s *Service) projectFull(ctx context.Context, req syncsvc.ProjectionRequest) error {
	top, err := s.videos.TopByViews(ctx, req.Channel.ID, s.cfg.TopVideosPerChannel)
	if err != nil {
		return fmt.Errorf("load top videos: %w", err)
	}
	if len(top) == 0 {
		return nil
	}

	topIDs := make([]string, 0, len(top))
	for _, v := range top {
		topIDs = append(topIDs, v.PlatformVideoID)
	}

	if err := s.writeTopVideoSet(ctx, req.Channel.PlatformChannelID, topIDs); err != nil {
		return err
	}

	fallback := s.tokens.Provider(req.UserID)

	for _, video := range top {
		if err := s.writeVideoMeta(ctx, video); err != nil {
			s.logVideoFailure("write video meta", video.PlatformVideoID, err)
			continue
		}

		if s.isProcessed(ctx, video.PlatformVideoID) {
			continue
		}

		comments, err := s.fetchComments(ctx, video.PlatformVideoID, time.Time{}, s.cfg.MaxCommentsInitial, fallback)
		if err != nil {
			s.logVideoFailure("fetch initial comments", video.PlatformVideoID, err)
			continue
		}

		s.persistComments(ctx, video, comments)

		if err := s.cacheComments(ctx, video.PlatformVideoID, comments, true); err != nil {
			s.logVideoFailure("cache initial comments", video.PlatformVideoID, err)
			continue
		}

		s.advanceCommentCursor(ctx, video.PlatformVideoID, newestCommentTime(comments))
		s.projectTranscript(ctx, req.UserID, video.PlatformVideoID)
		s.markProcessed(ctx, video.PlatformVideoID)
	}

	task, err := queue.NewProfilingTask(req.Channel.PlatformChannelID, topIDs)
	if err != nil {
		return err
	}
	if err := s.dispatcher.Enqueue(ctx, task); err != nil {
		return fmt.Errorf("enqueue profiling task: %w", err)
	}

	return nil
}

// projectIncremental caches comments newer than each video's cursor and
// queues one filtering task carrying exactly the synced video ids.
func (s *Service) projectIncremental(ctx context.Context, req syncsvc.ProjectionRequest) error {
	if len(req.VideoIDs) == 0 {
		return nil
	}

	videos, err := s.videos.ListByPlatformIDs(ctx, req.VideoIDs)
	if err != nil {
		return fmt.Errorf("load synced videos: %w", err)
	}

	fallback := s.tokens.Provider(req.UserID)

	for _, video := range videos {
		if err := s.writeVideoMeta(ctx, video); err != nil {
			s.logVideoFailure("write video meta", video.PlatformVideoID, err)
			continue
		}

		since := s.commentCursor(ctx, video.PlatformVideoID)

		comments, err := s.fetchComments(ctx, video.PlatformVideoID, since, s.cfg.MaxCommentsPerVideo, fallback)
		if err != nil {
			s.logVideoFailure("fetch new comments", video.PlatformVideoID, err)
			continue
		}

		s.persistComments(ctx, video, comments)

		if err := s.cacheComments(ctx, video.PlatformVideoID, comments, false); err != nil {
			s.logVideoFailure("cache new comments", video.PlatformVideoID, err)
			continue
		}

		s.advanceCommentCursor(ctx, video.PlatformVideoID, newestCommentTime(comments))
	}

	task, err := queue.NewFilteringTask(req.Channel.PlatformChannelID, req.VideoIDs)
	if err != nil {
		return err
	}
	if err := s.dispatcher.Enqueue(ctx, task); err != nil {
		return fmt.Errorf("enqueue filtering task: %w", err)
	}

	return nil
}

// refreshMetadata rewrites video metadata and the top set without touching
// comments or queueing agent work.
func (s *Service) refreshMetadata(ctx context.Context, req syncsvc.ProjectionRequest) error {
	if len(req.VideoIDs) == 0 {
		return nil
	}

	videos, err := s.videos.ListByPlatformIDs(ctx, req.VideoIDs)
	if err != nil {
		return fmt.Errorf("load synced videos: %w", err)
	}

	for _, video := range videos {
		if err := s.writeVideoMeta(ctx, video); err != nil {
			s.logVideoFailure("write video meta", video.PlatformVideoID, err)
		}
	}

	top, err := s.videos.TopByViews(ctx, req.Channel.ID, s.cfg.TopVideosPerChannel)
	if err != nil {
		return fmt.Errorf("load top videos: %w", err)
	}
	if len(top) == 0 {
		return nil
	}

	topIDs := make([]string, 0, len(top))
	for _, v := range top {
		topIDs = append(topIDs, v.PlatformVideoID)
	}
	return s.writeTopVideoSet(ctx, req.Channel.PlatformChannelID, topIDs)
}

func (s *Service) logVideoFailure(op, videoID string, err error) {
	logger.Log.Warn("projection step failed",
		zap.String("op", op),
		zap.String("video_id", videoID),
		zap.Error(err),
	)
}

// videoMeta is the JSON shape agents read from video:{id}:meta:json.
type videoMeta struct {
	VideoID      string    `json:"video_id"`
	ChannelID    int64     `json:"channel_id"`
	Title        string    `json:"title"`
	Tags         []string  `json:"tags"`
	PublishedAt  time.Time `json:"published_at"`
	ViewCount    int64     `json:"view_count"`
	LikeCount    int64     `json:"like_count"`
	CommentCount int64     `json:"comment_count"`
}

func (s *Service) writeVideoMeta(ctx context.Context, video *models.Video) error {
	meta := videoMeta{
		VideoID:      video.PlatformVideoID,
		ChannelID:    video.ChannelID,
		Title:        video.Title,
		Tags:         video.Tags,
		PublishedAt:  video.PublishedAt,
		ViewCount:    video.ViewCount,
		LikeCount:    video.LikeCount,
		CommentCount: video.CommentCount,
	}

	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal video meta: %w", err)
	}

	err = s.client.Do(ctx,
		s.client.B().Set().Key(videoMetaKey(video.PlatformVideoID)).Value(string(data)).Ex(s.cfg.CacheTTL).Build(),
	).Error()
	if err != nil {
		return fmt.Errorf("set video meta: %w", err)
	}
	return nil
}

func (s *Service) writeTopVideoSet(ctx context.Context, channelID string, videoIDs []string) error {
	key := channelTopVideosKey(channelID)

	if err := s.client.Do(ctx, s.client.B().Del().Key(key).Build()).Error(); err != nil {
		return fmt.Errorf("clear top video set: %w", err)
	}

	err := s.client.Do(ctx,
		s.client.B().Sadd().Key(key).Member(videoIDs...).Build(),
	).Error()
	if err != nil {
		return fmt.Errorf("write top video set: %w", err)
	}

	err = s.client.Do(ctx,
		s.client.B().Expire().Key(key).Seconds(int64(s.cfg.CacheTTL.Seconds())).Build(),
	).Error()
	if err != nil {
		return fmt.Errorf("expire top video set: %w", err)
	}
	return nil
}

func (s *Service) isProcessed(ctx context.Context, videoID string) bool {
	n, err := s.client.Do(ctx, s.client.B().Exists().Key(videoProcessedKey(videoID)).Build()).AsInt64()
	return err == nil && n > 0
}

func (s *Service) markProcessed(ctx context.Context, videoID string) {
	err := s.client.Do(ctx,
		s.client.B().Set().Key(videoProcessedKey(videoID)).Value("1").Ex(s.cfg.ProcessedTTL).Build(),
	).Error()
	if err != nil {
		s.logVideoFailure("mark processed", videoID, err)
	}
}

func (s *Service) projectTranscript(ctx context.Context, userID int64, videoID string) {
	accessToken, err := s.tokens.ValidAccessToken(ctx, userID)
	if err != nil {
		s.logVideoFailure("transcript token", videoID, err)
		return
	}

	transcript, err := s.api.FetchTranscript(ctx, accessToken, videoID)
	if err != nil {
		if !platform.IsNotFound(err) {
			s.logVideoFailure("fetch transcript", videoID, err)
		}
		return
	}
	if transcript == "" {
		return
	}

	err = s.client.Do(ctx,
		s.client.B().Set().Key(videoTranscriptKey(videoID)).Value(transcript).Ex(s.cfg.CacheTTL).Build(),
	).Error()
	if err != nil {
		s.logVideoFailure("cache transcript", videoID, err)
	}
}
