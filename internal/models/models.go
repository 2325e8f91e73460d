// Package models contains the HTTP DTOs for the sync service.
package models

import "time"

// SyncRequestDTO identifies the user whose channels should be synced. An
// incremental request may name one channel; an empty ChannelID covers
// every stored channel.
type SyncRequestDTO struct {
	UserID    int64  `json:"userId" binding:"required"`
	ChannelID string `json:"channelId"`
}

// DeletionAcceptedDTO is the receipt for an accepted deletion request.
type DeletionAcceptedDTO struct {
	RequestID     string `json:"requestId"`
	TotalComments int64  `json:"totalComments"`
}

// DeletionProgressDTO reports how far a deletion request has come.
type DeletionProgressDTO struct {
	RequestID   string  `json:"requestId"`
	Total       int     `json:"total"`
	Completed   int     `json:"completed"`
	Failed      int     `json:"failed"`
	Percent     float64 `json:"percent"`
	IsCompleted bool    `json:"isCompleted"`
}

// ErrorResponse represents an error response.
//
//nolint:govet // fieldalignment: Accept minor memory overhead for better readability
type ErrorResponse struct {
	Timestamp time.Time `json:"timestamp"`
	Status    int       `json:"status"`
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Path      string    `json:"path"`
}
