//go:build integration

package repository

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creator-shield/youtube-sync-go/internal/db"
	"github.com/creator-shield/youtube-sync-go/internal/db/models"
	"github.com/creator-shield/youtube-sync-go/internal/db/testutil"
)

// seedVideo creates a channel and a video to hang comments off.
func seedVideo(t *testing.T, td *testutil.TestDatabase) *models.Video {
	t.Helper()
	ctx := context.Background()

	channel := models.NewChannel(1, "UC1234567890abcdefghijkl", "Test Channel", "UU1234567890abcdefghijkl")
	require.NoError(t, NewChannelRepository(td.Pool).Upsert(ctx, channel))

	video := models.NewVideo(channel.ID, "dQw4w9WgXcQ", "Test Video", time.Now().Add(-time.Hour))
	require.NoError(t, NewVideoRepository(td.Pool).Upsert(ctx, video))

	return video
}

// seedComments inserts n filtered ACTIVE comments on the video.
func seedComments(t *testing.T, repo CommentRepository, videoID int64, n int) []*models.Comment {
	t.Helper()
	ctx := context.Background()

	comments := make([]*models.Comment, 0, n)
	for i := 0; i < n; i++ {
		comment := models.NewComment(videoID,
			fmt.Sprintf("comment-%d", i), "Author", "spam text",
			time.Now().Add(-time.Duration(i)*time.Minute))
		comment.Filtered = true
		require.NoError(t, repo.Upsert(ctx, comment))
		comments = append(comments, comment)
	}
	return comments
}

func TestCommentRepository_Upsert(t *testing.T) {
	td := testutil.SetupTestDatabase(t)
	defer td.Cleanup(t)

	repo := NewCommentRepository(td.Pool)
	ctx := context.Background()

	t.Run("refresh never overwrites deletion status", func(t *testing.T) {
		td.TruncateTables(t)
		video := seedVideo(t, td)

		comment := models.NewComment(video.ID, "c1", "Author", "original", time.Now())
		comment.Filtered = true
		require.NoError(t, repo.Upsert(ctx, comment))

		requestID := uuid.New()
		claimed, err := repo.ClaimFilteredByVideo(ctx, requestID, video.ID)
		require.NoError(t, err)
		require.EqualValues(t, 1, claimed)

		// A later sync pass re-upserts the same comment.
		refresh := models.NewComment(video.ID, "c1", "Author", "edited text", time.Now())
		require.NoError(t, repo.Upsert(ctx, refresh))

		assert.Equal(t, models.CommentStatusPendingDelete, refresh.Status)
	})
}

func TestCommentRepository_Claim(t *testing.T) {
	td := testutil.SetupTestDatabase(t)
	defer td.Cleanup(t)

	repo := NewCommentRepository(td.Pool)
	ctx := context.Background()

	t.Run("claims only filtered active comments", func(t *testing.T) {
		td.TruncateTables(t)
		video := seedVideo(t, td)
		seedComments(t, repo, video.ID, 3)

		unfiltered := models.NewComment(video.ID, "clean", "Author", "fine", time.Now())
		require.NoError(t, repo.Upsert(ctx, unfiltered))

		claimed, err := repo.ClaimFilteredByVideo(ctx, uuid.New(), video.ID)
		require.NoError(t, err)
		assert.EqualValues(t, 3, claimed)
	})

	t.Run("second request claims nothing", func(t *testing.T) {
		td.TruncateTables(t)
		video := seedVideo(t, td)
		seedComments(t, repo, video.ID, 5)

		first, err := repo.ClaimFilteredByVideo(ctx, uuid.New(), video.ID)
		require.NoError(t, err)
		assert.EqualValues(t, 5, first)

		second, err := repo.ClaimFilteredByVideo(ctx, uuid.New(), video.ID)
		require.NoError(t, err)
		assert.Zero(t, second)
	})

	t.Run("claim by channel spans all its videos", func(t *testing.T) {
		td.TruncateTables(t)
		video := seedVideo(t, td)
		seedComments(t, repo, video.ID, 2)

		videoRepo := NewVideoRepository(td.Pool)
		other := models.NewVideo(video.ChannelID, "AAAAAAAAAAA", "Other Video", time.Now())
		require.NoError(t, videoRepo.Upsert(ctx, other))
		seedComments(t, repo, other.ID, 2)

		claimed, err := repo.ClaimFilteredByChannel(ctx, uuid.New(), video.ChannelID)
		require.NoError(t, err)
		assert.EqualValues(t, 4, claimed)
	})
}

func TestCommentRepository_DeletionState(t *testing.T) {
	td := testutil.SetupTestDatabase(t)
	defer td.Cleanup(t)

	repo := NewCommentRepository(td.Pool)
	ctx := context.Background()

	t.Run("terminal states are sticky", func(t *testing.T) {
		td.TruncateTables(t)
		video := seedVideo(t, td)
		seedComments(t, repo, video.ID, 1)

		_, err := repo.ClaimFilteredByVideo(ctx, uuid.New(), video.ID)
		require.NoError(t, err)

		due, err := repo.DuePendingDeletions(ctx, 3, 10)
		require.NoError(t, err)
		require.Len(t, due, 1)

		comment := due[0].Comment
		comment.MarkDeleted()
		require.NoError(t, repo.UpdateDeletionState(ctx, comment))

		// A second writeback against the now-DELETED row must not land.
		comment.Status = models.CommentStatusNotFound
		err = repo.UpdateDeletionState(ctx, comment)
		assert.True(t, db.IsNotFound(err))

		none, err := repo.DuePendingDeletions(ctx, 3, 10)
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("exhausted retries stop being selected", func(t *testing.T) {
		td.TruncateTables(t)
		video := seedVideo(t, td)
		seedComments(t, repo, video.ID, 1)

		_, err := repo.ClaimFilteredByVideo(ctx, uuid.New(), video.ID)
		require.NoError(t, err)

		for i := 0; i < 3; i++ {
			due, err := repo.DuePendingDeletions(ctx, 3, 10)
			require.NoError(t, err)
			require.Len(t, due, 1)

			comment := due[0].Comment
			comment.ScheduleRetry(0)
			require.NoError(t, repo.UpdateDeletionState(ctx, comment))
		}

		due, err := repo.DuePendingDeletions(ctx, 3, 10)
		require.NoError(t, err)
		assert.Empty(t, due)
	})

	t.Run("backed off comments are not yet due", func(t *testing.T) {
		td.TruncateTables(t)
		video := seedVideo(t, td)
		seedComments(t, repo, video.ID, 1)

		_, err := repo.ClaimFilteredByVideo(ctx, uuid.New(), video.ID)
		require.NoError(t, err)

		due, err := repo.DuePendingDeletions(ctx, 3, 10)
		require.NoError(t, err)
		require.Len(t, due, 1)

		comment := due[0].Comment
		comment.ScheduleRetry(time.Hour)
		require.NoError(t, repo.UpdateDeletionState(ctx, comment))

		none, err := repo.DuePendingDeletions(ctx, 3, 10)
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("due rows carry the channel owner", func(t *testing.T) {
		td.TruncateTables(t)
		video := seedVideo(t, td)
		seedComments(t, repo, video.ID, 1)

		_, err := repo.ClaimFilteredByVideo(ctx, uuid.New(), video.ID)
		require.NoError(t, err)

		due, err := repo.DuePendingDeletions(ctx, 3, 10)
		require.NoError(t, err)
		require.Len(t, due, 1)
		assert.EqualValues(t, 1, due[0].UserID)
	})
}

func TestCommentRepository_ProgressByRequest(t *testing.T) {
	td := testutil.SetupTestDatabase(t)
	defer td.Cleanup(t)

	repo := NewCommentRepository(td.Pool)
	ctx := context.Background()

	t.Run("counts completed and failed", func(t *testing.T) {
		td.TruncateTables(t)
		video := seedVideo(t, td)
		seedComments(t, repo, video.ID, 4)

		requestID := uuid.New()
		claimed, err := repo.ClaimFilteredByVideo(ctx, requestID, video.ID)
		require.NoError(t, err)
		require.EqualValues(t, 4, claimed)

		due, err := repo.DuePendingDeletions(ctx, 3, 10)
		require.NoError(t, err)
		require.Len(t, due, 4)

		// One deleted, one already gone upstream, one out of retries,
		// one still pending.
		due[0].Comment.MarkDeleted()
		require.NoError(t, repo.UpdateDeletionState(ctx, due[0].Comment))

		due[1].Comment.MarkNotFound()
		require.NoError(t, repo.UpdateDeletionState(ctx, due[1].Comment))

		for i := 0; i < 3; i++ {
			due[2].Comment.ScheduleRetry(0)
		}
		require.NoError(t, repo.UpdateDeletionState(ctx, due[2].Comment))

		progress, err := repo.ProgressByRequest(ctx, requestID, 3)
		require.NoError(t, err)
		assert.Equal(t, 4, progress.Total)
		assert.Equal(t, 2, progress.Completed)
		assert.Equal(t, 1, progress.Failed)
	})

	t.Run("unknown request id returns not found", func(t *testing.T) {
		td.TruncateTables(t)

		_, err := repo.ProgressByRequest(ctx, uuid.New(), 3)
		assert.True(t, db.IsNotFound(err))
	})
}
