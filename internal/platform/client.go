package platform

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"

	"github.com/creator-shield/youtube-sync-go/internal/metrics"
)

// TokenProvider lazily supplies a user's OAuth access token. It is only
// invoked when the credential pool is exhausted and fallback is enabled.
type TokenProvider func(ctx context.Context) (string, error)

// ChannelInfo is the channel shape read calls return.
type ChannelInfo struct {
	ID                string
	Title             string
	UploadsPlaylistID string
}

// PlaylistItem is one entry of an uploads playlist page.
type PlaylistItem struct {
	VideoID     string
	Title       string
	PublishedAt time.Time
}

// PlaylistPage is a single page of playlist items, newest first.
type PlaylistPage struct {
	Items         []PlaylistItem
	NextPageToken string
}

// VideoStats carries a video's metadata and denormalized counters.
type VideoStats struct {
	VideoID      string
	Title        string
	Tags         []string
	PublishedAt  time.Time
	ViewCount    int64
	LikeCount    int64
	CommentCount int64
}

// CommentInfo is one comment, top level or reply.
type CommentInfo struct {
	ID          string
	ParentID    string
	AuthorName  string
	Text        string
	LikeCount   int64
	ReplyCount  int64
	PublishedAt time.Time
	UpdatedAt   time.Time
}

// CommentPage is a single page of comment threads with replies flattened in.
type CommentPage struct {
	Comments      []CommentInfo
	NextPageToken string
}

// Client wraps the YouTube Data API v3 behind the credential pool. Read
// calls rotate API keys; writes and deletes always use a user token.
type Client struct {
	pool           CredentialPool
	enableFallback bool

	mu       sync.Mutex
	services map[string]*youtube.Service
}

// NewClient creates a platform client over the given API key pool.
func NewClient(apiKeys []string, enableFallback bool) *Client {
	return &Client{
		pool:           NewCredentialPool(apiKeys),
		enableFallback: enableFallback,
		services:       make(map[string]*youtube.Service),
	}
}

func (c *Client) keyService(ctx context.Context, apiKey string) (*youtube.Service, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if svc, ok := c.services[apiKey]; ok {
		return svc, nil
	}

	svc, err := youtube.NewService(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create youtube service: %w", err)
	}

	c.services[apiKey] = svc
	return svc, nil
}

func (c *Client) tokenService(ctx context.Context, accessToken string) (*youtube.Service, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
	svc, err := youtube.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("create youtube service: %w", err)
	}
	return svc, nil
}

// classify maps an API error and counts quota rejections per operation.
func classify(op string, err error) error {
	err = ClassifyError(err)
	if IsQuotaError(err) {
		metrics.QuotaErrors.WithLabelValues(op).Inc()
	}
	return err
}

// run executes fn under key rotation, falling back to the caller's OAuth
// token when the pool is exhausted and fallback is enabled.
func (c *Client) run(ctx context.Context, op string, fallback TokenProvider, fn func(svc *youtube.Service) error) error {
	attempt := func(apiKey string) error {
		svc, err := c.keyService(ctx, apiKey)
		if err != nil {
			return err
		}
		return classify(op, fn(svc))
	}

	var fallbackFn func() error
	if c.enableFallback && fallback != nil {
		fallbackFn = func() error {
			token, err := fallback(ctx)
			if err != nil {
				return err
			}
			svc, err := c.tokenService(ctx, token)
			if err != nil {
				return err
			}
			return classify(op, fn(svc))
		}
	}

	return withRotation(c.pool, attempt, fallbackFn)
}

// FetchMyChannels lists the channels owned by the token's user.
func (c *Client) FetchMyChannels(ctx context.Context, accessToken string) ([]ChannelInfo, error) {
	svc, err := c.tokenService(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	resp, err := svc.Channels.List([]string{"snippet", "contentDetails"}).
		Mine(true).
		Context(ctx).
		Do()
	if err != nil {
		return nil, classify("channels_list", err)
	}

	channels := make([]ChannelInfo, 0, len(resp.Items))
	for _, item := range resp.Items {
		info := ChannelInfo{ID: item.Id}
		if item.Snippet != nil {
			info.Title = item.Snippet.Title
		}
		if item.ContentDetails != nil && item.ContentDetails.RelatedPlaylists != nil {
			info.UploadsPlaylistID = item.ContentDetails.RelatedPlaylists.Uploads
		}
		channels = append(channels, info)
	}

	return channels, nil
}

// FetchPlaylistPage fetches one page of an uploads playlist, newest first.
func (c *Client) FetchPlaylistPage(ctx context.Context, playlistID, pageToken string, maxResults int64, fallback TokenProvider) (*PlaylistPage, error) {
	if maxResults <= 0 || maxResults > 50 {
		maxResults = 50
	}

	var page *PlaylistPage
	err := c.run(ctx, "playlist_items", fallback, func(svc *youtube.Service) error {
		call := svc.PlaylistItems.List([]string{"snippet", "contentDetails"}).
			PlaylistId(playlistID).
			MaxResults(maxResults).
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		resp, err := call.Do()
		if err != nil {
			return err
		}

		page = &PlaylistPage{NextPageToken: resp.NextPageToken}
		for _, item := range resp.Items {
			pi := PlaylistItem{}
			if item.ContentDetails != nil {
				pi.VideoID = item.ContentDetails.VideoId
				pi.PublishedAt = parseTime(item.ContentDetails.VideoPublishedAt)
			}
			if item.Snippet != nil {
				pi.Title = item.Snippet.Title
				if pi.PublishedAt.IsZero() {
					pi.PublishedAt = parseTime(item.Snippet.PublishedAt)
				}
			}
			if pi.VideoID != "" {
				page.Items = append(page.Items, pi)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return page, nil
}

// FetchVideoStats fetches metadata and counters for up to 50 videos in one
// batch call.
func (c *Client) FetchVideoStats(ctx context.Context, videoIDs []string, fallback TokenProvider) ([]VideoStats, error) {
	if len(videoIDs) == 0 {
		return nil, nil
	}
	if len(videoIDs) > 50 {
		return nil, fmt.Errorf("too many video IDs (max 50, got %d)", len(videoIDs))
	}

	var stats []VideoStats
	err := c.run(ctx, "videos_list", fallback, func(svc *youtube.Service) error {
		resp, err := svc.Videos.List([]string{"snippet", "statistics"}).
			Id(videoIDs...).
			Context(ctx).
			Do()
		if err != nil {
			return err
		}

		stats = make([]VideoStats, 0, len(resp.Items))
		for _, item := range resp.Items {
			vs := VideoStats{VideoID: item.Id}
			if item.Snippet != nil {
				vs.Title = item.Snippet.Title
				vs.Tags = item.Snippet.Tags
				vs.PublishedAt = parseTime(item.Snippet.PublishedAt)
			}
			if item.Statistics != nil {
				vs.ViewCount = int64(item.Statistics.ViewCount)
				vs.LikeCount = int64(item.Statistics.LikeCount)
				vs.CommentCount = int64(item.Statistics.CommentCount)
			}
			stats = append(stats, vs)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return stats, nil
}

// FetchCommentPage fetches one page of a video's comment threads ordered
// by time, replies included.
func (c *Client) FetchCommentPage(ctx context.Context, videoID, pageToken string, fallback TokenProvider) (*CommentPage, error) {
	var page *CommentPage
	err := c.run(ctx, "comment_threads", fallback, func(svc *youtube.Service) error {
		call := svc.CommentThreads.List([]string{"snippet", "replies"}).
			VideoId(videoID).
			Order("time").
			MaxResults(100).
			TextFormat("plainText").
			Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		resp, err := call.Do()
		if err != nil {
			return err
		}

		page = &CommentPage{NextPageToken: resp.NextPageToken}
		for _, thread := range resp.Items {
			if thread.Snippet == nil || thread.Snippet.TopLevelComment == nil {
				continue
			}

			top := mapComment(thread.Snippet.TopLevelComment)
			top.ReplyCount = thread.Snippet.TotalReplyCount
			page.Comments = append(page.Comments, top)

			if thread.Replies != nil {
				for _, reply := range thread.Replies.Comments {
					page.Comments = append(page.Comments, mapComment(reply))
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return page, nil
}

// DeleteComment removes a comment on the platform using the owner's token.
func (c *Client) DeleteComment(ctx context.Context, accessToken, commentID string) error {
	svc, err := c.tokenService(ctx, accessToken)
	if err != nil {
		return err
	}

	if err := svc.Comments.Delete(commentID).Context(ctx).Do(); err != nil {
		return classify("comments_delete", err)
	}

	return nil
}

// FetchTranscript downloads a video's caption track as plain text,
// preferring Korean, then English, then whatever exists. Returns
// ErrNotFound when the video has no caption tracks.
func (c *Client) FetchTranscript(ctx context.Context, accessToken, videoID string) (string, error) {
	svc, err := c.tokenService(ctx, accessToken)
	if err != nil {
		return "", err
	}

	resp, err := svc.Captions.List([]string{"snippet"}, videoID).Context(ctx).Do()
	if err != nil {
		return "", classify("captions_list", err)
	}

	var korean, english, fallback *youtube.Caption
	for _, caption := range resp.Items {
		if caption.Snippet == nil {
			continue
		}
		switch caption.Snippet.Language {
		case "ko":
			korean = caption
		case "en":
			if english == nil {
				english = caption
			}
		default:
			if fallback == nil {
				fallback = caption
			}
		}
		if korean != nil {
			break
		}
	}

	selected := korean
	if selected == nil {
		selected = english
	}
	if selected == nil {
		selected = fallback
	}
	if selected == nil {
		return "", fmt.Errorf("%w: no caption tracks for video %s", ErrNotFound, videoID)
	}

	download, err := svc.Captions.Download(selected.Id).Context(ctx).Download()
	if err != nil {
		return "", classify("captions_download", err)
	}
	defer download.Body.Close()

	body, err := io.ReadAll(download.Body)
	if err != nil {
		return "", fmt.Errorf("read caption body: %w", err)
	}

	return CleanTranscript(string(body)), nil
}

func mapComment(comment *youtube.Comment) CommentInfo {
	info := CommentInfo{ID: comment.Id}
	if comment.Snippet != nil {
		info.ParentID = comment.Snippet.ParentId
		info.AuthorName = comment.Snippet.AuthorDisplayName
		info.Text = comment.Snippet.TextDisplay
		info.LikeCount = comment.Snippet.LikeCount
		info.PublishedAt = parseTime(comment.Snippet.PublishedAt)
		info.UpdatedAt = parseTime(comment.Snippet.UpdatedAt)
	}
	return info
}

// parseTime parses RFC3339 timestamps from the API; zero time on failure.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// BatchIDs splits a list of ids into batches of at most batchSize (max 50,
// the platform's batch limit).
func BatchIDs(ids []string, batchSize int) [][]string {
	if batchSize <= 0 || batchSize > 50 {
		batchSize = 50
	}

	var batches [][]string
	for i := 0; i < len(ids); i += batchSize {
		end := i + batchSize
		if end > len(ids) {
			end = len(ids)
		}
		batches = append(batches, ids[i:end])
	}

	return batches
}

var xmlTagPattern = regexp.MustCompile(`<[^>]+>`)

// CleanTranscript strips caption markup down to plain text.
func CleanTranscript(raw string) string {
	cleaned := xmlTagPattern.ReplaceAllString(raw, "")
	replacer := strings.NewReplacer(
		"&lt;", "<",
		"&gt;", ">",
		"&amp;", "&",
		"&quot;", `"`,
		"&#39;", "'",
	)
	return strings.TrimSpace(replacer.Replace(cleaned))
}
