package deletion

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creator-shield/youtube-sync-go/internal/db"
	"github.com/creator-shield/youtube-sync-go/internal/db/models"
)

type fakeVideoStore struct {
	videos map[string]*models.Video
}

func newFakeVideoStore() *fakeVideoStore {
	return &fakeVideoStore{videos: make(map[string]*models.Video)}
}

func (f *fakeVideoStore) Upsert(_ context.Context, video *models.Video) error {
	f.videos[video.PlatformVideoID] = video
	return nil
}

func (f *fakeVideoStore) GetByPlatformID(_ context.Context, platformVideoID string) (*models.Video, error) {
	v, ok := f.videos[platformVideoID]
	if !ok {
		return nil, db.WrapError(pgx.ErrNoRows, "get video by platform id")
	}
	return v, nil
}

func (f *fakeVideoStore) ListByChannel(context.Context, int64, int) ([]*models.Video, error) {
	return nil, nil
}

func (f *fakeVideoStore) TopByViews(context.Context, int64, int) ([]*models.Video, error) {
	return nil, nil
}

func (f *fakeVideoStore) ListByPlatformIDs(context.Context, []string) ([]*models.Video, error) {
	return nil, nil
}

type fakeChannelStore struct {
	channels map[int64]*models.Channel
}

func newFakeChannelStore() *fakeChannelStore {
	return &fakeChannelStore{channels: make(map[int64]*models.Channel)}
}

func (f *fakeChannelStore) Upsert(_ context.Context, channel *models.Channel) error {
	f.channels[channel.ID] = channel
	return nil
}

func (f *fakeChannelStore) GetByPlatformID(_ context.Context, userID int64, platformChannelID string) (*models.Channel, error) {
	for _, ch := range f.channels {
		if ch.UserID == userID && ch.PlatformChannelID == platformChannelID {
			return ch, nil
		}
	}
	return nil, db.WrapError(pgx.ErrNoRows, "get channel by platform id")
}

func (f *fakeChannelStore) GetByID(_ context.Context, id int64) (*models.Channel, error) {
	ch, ok := f.channels[id]
	if !ok {
		return nil, db.WrapError(pgx.ErrNoRows, "get channel by id")
	}
	return ch, nil
}

func (f *fakeChannelStore) ListByUser(context.Context, int64, bool) ([]*models.Channel, error) {
	return nil, nil
}

func (f *fakeChannelStore) Restore(context.Context, int64) error { return nil }

func (f *fakeChannelStore) SoftDelete(context.Context, int64) error { return nil }

func (f *fakeChannelStore) AdvanceWatermark(context.Context, int64, time.Time, *time.Time) error {
	return nil
}

// seedOwnedVideo stores a channel for userID and one video on it with a
// filtered ACTIVE comment.
func seedOwnedVideo(t *testing.T, channels *fakeChannelStore, videos *fakeVideoStore, comments *fakeCommentStore, userID int64) *models.Video {
	t.Helper()
	ctx := context.Background()

	channel := models.NewChannel(userID, "UC1234567890abcdefghijkl", "Channel", "UU1234567890abcdefghijkl")
	channel.ID = userID * 100
	require.NoError(t, channels.Upsert(ctx, channel))

	video := models.NewVideo(channel.ID, "dQw4w9WgXcQ", "Video", time.Now().Add(-time.Hour))
	video.ID = 1
	require.NoError(t, videos.Upsert(ctx, video))

	comment := models.NewComment(video.ID, "c1", "Author", "spam", time.Now().Add(-time.Minute))
	comment.Filtered = true
	require.NoError(t, comments.Upsert(ctx, comment))

	return video
}

func TestRequestByVideo(t *testing.T) {
	ctx := context.Background()

	t.Run("claims the owner's filtered comments", func(t *testing.T) {
		channels := newFakeChannelStore()
		videos := newFakeVideoStore()
		comments := newFakeCommentStore()
		seedOwnedVideo(t, channels, videos, comments, 1)

		svc := NewService(comments, videos, channels, 3)

		req, err := svc.RequestByVideo(ctx, 1, "dQw4w9WgXcQ")
		require.NoError(t, err)
		assert.EqualValues(t, 1, req.TotalComments)
		assert.NotEqual(t, "", req.RequestID.String())
	})

	t.Run("another user's video surfaces as not found", func(t *testing.T) {
		channels := newFakeChannelStore()
		videos := newFakeVideoStore()
		comments := newFakeCommentStore()
		seedOwnedVideo(t, channels, videos, comments, 2)

		svc := NewService(comments, videos, channels, 3)

		_, err := svc.RequestByVideo(ctx, 1, "dQw4w9WgXcQ")
		assert.True(t, db.IsNotFound(err))

		for _, c := range comments.comments {
			assert.Equal(t, models.CommentStatusActive, c.Status, "nothing may be claimed for a non-owner")
		}
	})

	t.Run("unknown video surfaces as not found", func(t *testing.T) {
		svc := NewService(newFakeCommentStore(), newFakeVideoStore(), newFakeChannelStore(), 3)

		_, err := svc.RequestByVideo(ctx, 1, "AAAAAAAAAAA")
		assert.True(t, db.IsNotFound(err))
	})
}

func TestRequestByChannel(t *testing.T) {
	ctx := context.Background()

	t.Run("another user's channel surfaces as not found", func(t *testing.T) {
		channels := newFakeChannelStore()
		videos := newFakeVideoStore()
		comments := newFakeCommentStore()
		seedOwnedVideo(t, channels, videos, comments, 2)

		svc := NewService(comments, videos, channels, 3)

		_, err := svc.RequestByChannel(ctx, 1, "UC1234567890abcdefghijkl")
		assert.True(t, db.IsNotFound(err))
	})
}
