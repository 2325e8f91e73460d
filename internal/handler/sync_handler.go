// Package handler provides HTTP request handlers for the application.
package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/creator-shield/youtube-sync-go/internal/db"
	"github.com/creator-shield/youtube-sync-go/internal/models"
	"github.com/creator-shield/youtube-sync-go/internal/platform"
	"github.com/creator-shield/youtube-sync-go/internal/service/events"
	syncsvc "github.com/creator-shield/youtube-sync-go/internal/service/sync"
	"github.com/creator-shield/youtube-sync-go/internal/validation"
	"github.com/creator-shield/youtube-sync-go/pkg/logger"
)

// respondError writes the standard error envelope.
func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, models.ErrorResponse{
		Timestamp: time.Now(),
		Status:    status,
		Error:     http.StatusText(status),
		Message:   message,
		Path:      c.Request.URL.Path,
	})
}

// errorStatus maps domain errors onto HTTP status codes.
func errorStatus(err error) int {
	switch {
	case db.IsNotFound(err) || platform.IsNotFound(err):
		return http.StatusNotFound
	case platform.IsReauthRequired(err):
		return http.StatusUnauthorized
	case platform.IsQuotaError(err) || errors.Is(err, platform.ErrNoAvailableCredential):
		return http.StatusTooManyRequests
	case errors.Is(err, platform.ErrTransient):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// SyncService is the engine surface the handler needs.
type SyncService interface {
	StartFullSync(ctx context.Context, userID int64) (*syncsvc.Result, error)
	StartIncrementalSync(ctx context.Context, userID int64, platformChannelID string) (*syncsvc.Result, error)
}

// SyncHandler handles sync trigger endpoints.
type SyncHandler struct {
	engine    SyncService
	publisher *events.Publisher
}

// NewSyncHandler creates a new SyncHandler instance.
func NewSyncHandler(engine SyncService, publisher *events.Publisher) *SyncHandler {
	return &SyncHandler{
		engine:    engine,
		publisher: publisher,
	}
}

// StartFullSync runs a full channel and video sync for a user.
func (h *SyncHandler) StartFullSync(c *gin.Context) {
	h.runSync(c, true)
}

// StartIncrementalSync advances known channels from their watermarks,
// optionally restricted to a single channel.
func (h *SyncHandler) StartIncrementalSync(c *gin.Context) {
	h.runSync(c, false)
}

func (h *SyncHandler) runSync(c *gin.Context, full bool) {
	var req models.SyncRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, "userId is required")
		return
	}

	if !full && req.ChannelID != "" {
		if err := validation.ValidateChannelID(req.ChannelID); err != nil {
			respondError(c, http.StatusBadRequest, err.Error())
			return
		}
	}

	ctx := c.Request.Context()

	var result *syncsvc.Result
	var err error
	if full {
		result, err = h.engine.StartFullSync(ctx, req.UserID)
	} else {
		result, err = h.engine.StartIncrementalSync(ctx, req.UserID, req.ChannelID)
	}
	if err != nil {
		logger.Log.Error("sync request failed",
			zap.Int64("user_id", req.UserID),
			zap.Bool("full", full),
			zap.Error(err),
		)
		respondError(c, errorStatus(err), err.Error())
		return
	}

	if err := h.publisher.Publish(ctx, events.NewEvent(events.TypeSyncCompleted, req.UserID, map[string]any{
		"full":            full,
		"channels_synced": result.ChannelsSynced,
		"videos_synced":   result.VideosSynced,
	})); err != nil {
		logger.Log.Warn("failed to publish sync event",
			zap.Int64("user_id", req.UserID),
			zap.Error(err),
		)
	}

	c.JSON(http.StatusOK, result)
}
