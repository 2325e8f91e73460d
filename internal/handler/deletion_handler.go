package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/creator-shield/youtube-sync-go/internal/models"
	"github.com/creator-shield/youtube-sync-go/internal/service/deletion"
	"github.com/creator-shield/youtube-sync-go/internal/validation"
	"github.com/creator-shield/youtube-sync-go/pkg/logger"
)

// DeletionService is the service surface the handler needs.
type DeletionService interface {
	RequestByVideo(ctx context.Context, userID int64, platformVideoID string) (*deletion.Request, error)
	RequestByChannel(ctx context.Context, userID int64, platformChannelID string) (*deletion.Request, error)
	Progress(ctx context.Context, requestID uuid.UUID) (*deletion.Progress, error)
}

// DeletionHandler handles async comment deletion endpoints.
type DeletionHandler struct {
	service DeletionService
}

// NewDeletionHandler creates a new DeletionHandler instance.
func NewDeletionHandler(service DeletionService) *DeletionHandler {
	return &DeletionHandler{service: service}
}

// RequestByVideo claims a video's filtered comments for deletion and
// returns a request receipt. The actual deletes happen asynchronously.
func (h *DeletionHandler) RequestByVideo(c *gin.Context) {
	videoID := c.Param("videoId")
	if err := validation.ValidateVideoID(videoID); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	userID, err := strconv.ParseInt(c.Query("userId"), 10, 64)
	if err != nil || userID <= 0 {
		respondError(c, http.StatusBadRequest, "userId query parameter is required")
		return
	}

	req, err := h.service.RequestByVideo(c.Request.Context(), userID, videoID)
	if err != nil {
		logger.Log.Error("video deletion request failed",
			zap.String("video_id", videoID),
			zap.Int64("user_id", userID),
			zap.Error(err),
		)
		respondError(c, errorStatus(err), err.Error())
		return
	}

	c.JSON(http.StatusAccepted, models.DeletionAcceptedDTO{
		RequestID:     req.RequestID.String(),
		TotalComments: req.TotalComments,
	})
}

// RequestByChannel claims filtered comments across a whole channel.
func (h *DeletionHandler) RequestByChannel(c *gin.Context) {
	channelID := c.Param("channelId")
	if err := validation.ValidateChannelID(channelID); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	userID, err := strconv.ParseInt(c.Query("userId"), 10, 64)
	if err != nil || userID <= 0 {
		respondError(c, http.StatusBadRequest, "userId query parameter is required")
		return
	}

	req, err := h.service.RequestByChannel(c.Request.Context(), userID, channelID)
	if err != nil {
		logger.Log.Error("channel deletion request failed",
			zap.String("channel_id", channelID),
			zap.Int64("user_id", userID),
			zap.Error(err),
		)
		respondError(c, errorStatus(err), err.Error())
		return
	}

	c.JSON(http.StatusAccepted, models.DeletionAcceptedDTO{
		RequestID:     req.RequestID.String(),
		TotalComments: req.TotalComments,
	})
}

// Status reports progress for one deletion request.
func (h *DeletionHandler) Status(c *gin.Context) {
	requestID, err := uuid.Parse(c.Param("requestId"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "requestId must be a valid UUID")
		return
	}

	progress, err := h.service.Progress(c.Request.Context(), requestID)
	if err != nil {
		respondError(c, errorStatus(err), err.Error())
		return
	}

	c.JSON(http.StatusOK, models.DeletionProgressDTO{
		RequestID:   requestID.String(),
		Total:       progress.Total,
		Completed:   progress.Completed,
		Failed:      progress.Failed,
		Percent:     progress.Percent,
		IsCompleted: progress.IsCompleted,
	})
}
