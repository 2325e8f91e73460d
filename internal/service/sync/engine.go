// Package sync reconciles a user's channels and videos from the platform
// into the relational store, then hands committed batches to the cache
// projector.
package sync

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/creator-shield/youtube-sync-go/internal/config"
	"github.com/creator-shield/youtube-sync-go/internal/db"
	"github.com/creator-shield/youtube-sync-go/internal/db/models"
	"github.com/creator-shield/youtube-sync-go/internal/db/repository"
	"github.com/creator-shield/youtube-sync-go/internal/metrics"
	"github.com/creator-shield/youtube-sync-go/internal/platform"
	"github.com/creator-shield/youtube-sync-go/pkg/logger"
)

// Mode selects how much of a channel's history a sync pass covers.
type Mode string

// Sync modes. First sync backfills a capped slice of newest videos,
// follow-up walks forward from the watermark, refresh-only re-reads stats
// for videos already stored.
const (
	ModeFirstSync   Mode = "FIRST_SYNC"
	ModeFollowUp    Mode = "FOLLOW_UP"
	ModeRefreshOnly Mode = "REFRESH_ONLY"
)

// PlatformAPI is the slice of the platform client the engine needs.
type PlatformAPI interface {
	FetchMyChannels(ctx context.Context, accessToken string) ([]platform.ChannelInfo, error)
	FetchPlaylistPage(ctx context.Context, playlistID, pageToken string, maxResults int64, fallback platform.TokenProvider) (*platform.PlaylistPage, error)
	FetchVideoStats(ctx context.Context, videoIDs []string, fallback platform.TokenProvider) ([]platform.VideoStats, error)
}

// TokenSource supplies user access tokens and lazy fallback providers.
type TokenSource interface {
	ValidAccessToken(ctx context.Context, userID int64) (string, error)
	Provider(userID int64) platform.TokenProvider
}

// ProjectionRequest describes one committed channel batch for the cache
// projector.
type ProjectionRequest struct {
	UserID   int64
	Channel  *models.Channel
	VideoIDs []string
	Mode     Mode
}

// Projector receives each channel batch after its rows are committed.
type Projector interface {
	Project(ctx context.Context, req ProjectionRequest) error
}

// Result summarizes one sync pass across a user's channels.
type Result struct {
	ChannelsSynced   int `json:"channels_synced"`
	ChannelsFailed   int `json:"channels_failed"`
	ChannelsCreated  int `json:"channels_created"`
	ChannelsRestored int `json:"channels_restored"`
	ChannelsRemoved  int `json:"channels_removed"`
	VideosSynced     int `json:"videos_synced"`
}

// Engine drives channel and video synchronization for one user at a time.
type Engine struct {
	channels  repository.ChannelRepository
	videos    repository.VideoRepository
	api       PlatformAPI
	tokens    TokenSource
	projector Projector
	cfg       config.SyncConfig
}

// NewEngine creates a sync engine. projector may be nil when cache
// projection is not wired.
func NewEngine(
	channels repository.ChannelRepository,
	videos repository.VideoRepository,
	api PlatformAPI,
	tokens TokenSource,
	projector Projector,
	cfg config.SyncConfig,
) *Engine {
	return &Engine{
		channels:  channels,
		videos:    videos,
		api:       api,
		tokens:    tokens,
		projector: projector,
		cfg:       cfg,
	}
}

// StartFullSync syncs every channel the user owns, creating channels that
// are new on the platform and walking their video history.
func (e *Engine) StartFullSync(ctx context.Context, userID int64) (*Result, error) {
	return e.syncChannels(ctx, userID, true)
}

// StartIncrementalSync advances already-known channels from their
// watermarks with a follow-up walk of each uploads playlist. Channels not
// yet in the store are left for a full sync. A non-empty platform channel
// id restricts the pass to that one channel.
func (e *Engine) StartIncrementalSync(ctx context.Context, userID int64, platformChannelID string) (*Result, error) {
	if platformChannelID != "" {
		return e.syncSingleChannel(ctx, userID, platformChannelID)
	}
	return e.syncChannels(ctx, userID, false)
}

// syncSingleChannel runs one video pass for a single stored channel,
// skipping the platform channel listing entirely.
func (e *Engine) syncSingleChannel(ctx context.Context, userID int64, platformChannelID string) (*Result, error) {
	channel, err := e.channels.GetByPlatformID(ctx, userID, platformChannelID)
	if err != nil {
		return nil, fmt.Errorf("load channel %s: %w", platformChannelID, err)
	}
	if channel.State() == models.ChannelStateDeleted {
		return nil, fmt.Errorf("channel %s: %w", platformChannelID, db.ErrNotFound)
	}

	result := &Result{}
	targets := []syncTarget{{channel: channel, mode: e.modeFor(channel, false)}}
	if err := e.syncTargets(ctx, userID, targets, result); err != nil {
		return result, err
	}
	return result, nil
}

func (e *Engine) syncChannels(ctx context.Context, userID int64, alwaysSyncVideos bool) (*Result, error) {
	accessToken, err := e.tokens.ValidAccessToken(ctx, userID)
	if err != nil {
		return nil, err
	}

	result := &Result{}

	targets, err := e.reconcileChannels(ctx, userID, accessToken, alwaysSyncVideos, result)
	if err != nil {
		return nil, err
	}

	if err := e.syncTargets(ctx, userID, targets, result); err != nil {
		return result, err
	}

	logger.Log.Info("sync pass completed",
		zap.Int64("user_id", userID),
		zap.Bool("full", alwaysSyncVideos),
		zap.Int("channels_synced", result.ChannelsSynced),
		zap.Int("channels_failed", result.ChannelsFailed),
		zap.Int("videos_synced", result.VideosSynced),
	)

	return result, nil
}

// syncTargets runs the video pass for each target channel. Only a reauth
// failure aborts the loop; every other error is isolated per channel.
func (e *Engine) syncTargets(ctx context.Context, userID int64, targets []syncTarget, result *Result) error {
	fallback := e.tokens.Provider(userID)

	for _, target := range targets {
		synced, latestPublished, err := e.syncVideos(ctx, target.channel, target.mode, fallback)
		if err != nil {
			if platform.IsReauthRequired(err) {
				return err
			}
			logger.Log.Error("channel sync failed",
				zap.Int64("user_id", userID),
				zap.String("channel_id", target.channel.PlatformChannelID),
				zap.String("mode", string(target.mode)),
				zap.Error(err),
			)
			metrics.SyncPasses.WithLabelValues(string(target.mode), "error").Inc()
			result.ChannelsFailed++
			continue
		}

		// The watermark only advances once the pass committed cleanly.
		if err := e.channels.AdvanceWatermark(ctx, target.channel.ID, time.Now(), latestPublished); err != nil {
			logger.Log.Error("failed to advance watermark",
				zap.Int64("channel_id", target.channel.ID),
				zap.Error(err),
			)
			result.ChannelsFailed++
			continue
		}

		result.ChannelsSynced++
		result.VideosSynced += len(synced)
		metrics.SyncPasses.WithLabelValues(string(target.mode), "ok").Inc()
		metrics.VideosSynced.Add(float64(len(synced)))

		e.project(ctx, ProjectionRequest{
			UserID:   userID,
			Channel:  target.channel,
			VideoIDs: synced,
			Mode:     target.mode,
		})
	}

	return nil
}

// project runs the cache projector after a channel batch commits. Cache
// failures degrade the projection, never the sync pass.
func (e *Engine) project(ctx context.Context, req ProjectionRequest) {
	if e.projector == nil {
		return
	}
	if err := e.projector.Project(ctx, req); err != nil {
		logger.Log.Error("cache projection failed",
			zap.Int64("user_id", req.UserID),
			zap.String("channel_id", req.Channel.PlatformChannelID),
			zap.String("mode", string(req.Mode)),
			zap.Error(err),
		)
	}
}

type syncTarget struct {
	channel *models.Channel
	mode    Mode
}

// reconcileChannels aligns stored channels with the platform's channel
// list and decides the sync mode for each survivor.
func (e *Engine) reconcileChannels(ctx context.Context, userID int64, accessToken string, alwaysSyncVideos bool, result *Result) ([]syncTarget, error) {
	stored, err := e.channels.ListByUser(ctx, userID, true)
	if err != nil {
		return nil, fmt.Errorf("list stored channels: %w", err)
	}

	storedByPlatformID := make(map[string]*models.Channel, len(stored))
	for _, ch := range stored {
		storedByPlatformID[ch.PlatformChannelID] = ch
	}

	remote, listErr := e.api.FetchMyChannels(ctx, accessToken)
	if listErr != nil {
		if platform.IsReauthRequired(listErr) {
			return nil, listErr
		}
		// Channel listing is best effort. When the platform refuses the
		// list call, the stored channels still get their video pass.
		logger.Log.Warn("channel listing failed, falling back to stored channels",
			zap.Int64("user_id", userID),
			zap.Error(listErr),
		)

		var targets []syncTarget
		for _, ch := range stored {
			if ch.State() == models.ChannelStateDeleted {
				continue
			}
			targets = append(targets, syncTarget{channel: ch, mode: e.modeFor(ch, false)})
		}
		return targets, nil
	}

	remoteIDs := make(map[string]bool, len(remote))
	var targets []syncTarget

	for _, info := range remote {
		remoteIDs[info.ID] = true

		existing, known := storedByPlatformID[info.ID]
		if !known {
			// Incremental passes never create channels. A channel first
			// seen by the engine waits for the next full sync.
			if !alwaysSyncVideos {
				continue
			}

			channel := models.NewChannel(userID, info.ID, info.Title, info.UploadsPlaylistID)
			if err := e.channels.Upsert(ctx, channel); err != nil {
				logger.Log.Error("failed to create channel",
					zap.String("channel_id", info.ID),
					zap.Error(err),
				)
				result.ChannelsFailed++
				continue
			}

			result.ChannelsCreated++
			targets = append(targets, syncTarget{channel: channel, mode: ModeFirstSync})
			continue
		}

		restoring := existing.State() == models.ChannelStateDeleted
		if restoring {
			// Deleted channels only come back through a full sync.
			if !alwaysSyncVideos {
				continue
			}
			if err := e.channels.Restore(ctx, existing.ID); err != nil {
				logger.Log.Error("failed to restore channel",
					zap.Int64("channel_id", existing.ID),
					zap.Error(err),
				)
				result.ChannelsFailed++
				continue
			}
			existing.Restore()
			result.ChannelsRestored++
		}

		existing.Title = info.Title
		if info.UploadsPlaylistID != "" {
			existing.UploadsPlaylistID = info.UploadsPlaylistID
		}
		if err := e.channels.Upsert(ctx, existing); err != nil {
			logger.Log.Error("failed to update channel metadata",
				zap.Int64("channel_id", existing.ID),
				zap.Error(err),
			)
			result.ChannelsFailed++
			continue
		}

		targets = append(targets, syncTarget{channel: existing, mode: e.modeFor(existing, restoring)})
	}

	// Channels gone from the platform are soft deleted so a later
	// reappearance restores their history instead of starting over.
	for _, ch := range stored {
		if remoteIDs[ch.PlatformChannelID] || ch.State() == models.ChannelStateDeleted {
			continue
		}
		if err := e.channels.SoftDelete(ctx, ch.ID); err != nil {
			logger.Log.Error("failed to soft delete channel",
				zap.Int64("channel_id", ch.ID),
				zap.Error(err),
			)
			continue
		}
		result.ChannelsRemoved++
	}

	return targets, nil
}

// modeFor picks the sync mode for an existing channel. A restored or
// never-synced channel gets the full backfill; a channel whose uploads
// playlist is unknown cannot be walked, so its stored videos only get a
// stats refresh.
func (e *Engine) modeFor(ch *models.Channel, restoring bool) Mode {
	if restoring || ch.LastSyncedAt == nil {
		return ModeFirstSync
	}
	if ch.UploadsPlaylistID == "" {
		return ModeRefreshOnly
	}
	return ModeFollowUp
}

// syncVideos runs one video pass for a channel and returns the platform
// ids it touched plus the newest publish time seen.
func (e *Engine) syncVideos(ctx context.Context, channel *models.Channel, mode Mode, fallback platform.TokenProvider) ([]string, *time.Time, error) {
	if mode == ModeRefreshOnly {
		ids, err := e.refreshStoredStats(ctx, channel, fallback)
		return ids, nil, err
	}

	items, err := e.discoverVideos(ctx, channel, mode, fallback)
	if err != nil {
		return nil, nil, err
	}
	if len(items) == 0 {
		return nil, nil, nil
	}

	ids := make([]string, 0, len(items))
	publishedByID := make(map[string]time.Time, len(items))
	var latest time.Time
	for _, item := range items {
		ids = append(ids, item.VideoID)
		publishedByID[item.VideoID] = item.PublishedAt
		if item.PublishedAt.After(latest) {
			latest = item.PublishedAt
		}
	}

	synced, err := e.storeVideoStats(ctx, channel, ids, publishedByID, fallback)
	if err != nil {
		return nil, nil, err
	}

	var latestPublished *time.Time
	if !latest.IsZero() {
		latestPublished = &latest
	}
	return synced, latestPublished, nil
}

// discoverVideos pages the uploads playlist newest first. First syncs stop
// at the backfill cap; follow-ups stop at the watermark or the run cap.
func (e *Engine) discoverVideos(ctx context.Context, channel *models.Channel, mode Mode, fallback platform.TokenProvider) ([]platform.PlaylistItem, error) {
	if channel.UploadsPlaylistID == "" {
		return nil, nil
	}

	limit := e.cfg.MaxVideosInitial
	if mode == ModeFollowUp {
		limit = e.cfg.MaxVideosPerRun
	}
	if limit <= 0 {
		return nil, nil
	}

	var watermark time.Time
	if mode == ModeFollowUp && channel.LastVideoPublishedAt != nil {
		watermark = *channel.LastVideoPublishedAt
	}

	var items []platform.PlaylistItem
	pageToken := ""

	for len(items) < limit {
		pageSize := int64(limit - len(items))
		page, err := e.api.FetchPlaylistPage(ctx, channel.UploadsPlaylistID, pageToken, pageSize, fallback)
		if err != nil {
			if platform.IsNotFound(err) {
				// Playlist gone usually means the channel has no uploads.
				return items, nil
			}
			return nil, fmt.Errorf("fetch playlist page: %w", err)
		}

		for _, item := range page.Items {
			if !watermark.IsZero() && !item.PublishedAt.After(watermark) {
				return items, nil
			}
			items = append(items, item)
			if len(items) >= limit {
				return items, nil
			}
		}

		if page.NextPageToken == "" {
			break
		}
		pageToken = page.NextPageToken
	}

	return items, nil
}

// storeVideoStats fetches stats in batches and upserts each video row.
// Individual video failures are logged and skipped.
func (e *Engine) storeVideoStats(ctx context.Context, channel *models.Channel, ids []string, publishedByID map[string]time.Time, fallback platform.TokenProvider) ([]string, error) {
	var synced []string

	for _, batch := range platform.BatchIDs(ids, 50) {
		stats, err := e.api.FetchVideoStats(ctx, batch, fallback)
		if err != nil {
			return nil, fmt.Errorf("fetch video stats: %w", err)
		}

		for _, vs := range stats {
			publishedAt := vs.PublishedAt
			if publishedAt.IsZero() {
				publishedAt = publishedByID[vs.VideoID]
			}

			video := models.NewVideo(channel.ID, vs.VideoID, vs.Title, publishedAt)
			video.Tags = vs.Tags
			video.UpdateStats(vs.ViewCount, vs.LikeCount, vs.CommentCount)

			if err := e.videos.Upsert(ctx, video); err != nil {
				logger.Log.Error("failed to upsert video",
					zap.String("video_id", vs.VideoID),
					zap.Error(err),
				)
				continue
			}
			synced = append(synced, vs.VideoID)
		}
	}

	return synced, nil
}

// refreshStoredStats re-reads stats for the channel's stored top videos
// without discovering new uploads.
func (e *Engine) refreshStoredStats(ctx context.Context, channel *models.Channel, fallback platform.TokenProvider) ([]string, error) {
	videos, err := e.videos.TopByViews(ctx, channel.ID, e.cfg.TopVideosPerChannel)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("load stored videos: %w", err)
	}
	if len(videos) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(videos))
	publishedByID := make(map[string]time.Time, len(videos))
	for _, v := range videos {
		ids = append(ids, v.PlatformVideoID)
		publishedByID[v.PlatformVideoID] = v.PublishedAt
	}

	return e.storeVideoStats(ctx, channel, ids, publishedByID, fallback)
}
