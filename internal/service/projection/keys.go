// Package projection mirrors committed sync batches into the Redis cache
// the analysis agents read, and hands them their work queue tasks.
package projection

import "fmt"

// Cache key schema. The agents read these keys directly, so the layout is
// part of the contract with them.
func channelTopVideosKey(channelID string) string {
	return fmt.Sprintf("channel:%s:top20_video_ids", channelID)
}

func videoMetaKey(videoID string) string {
	return fmt.Sprintf("video:%s:meta:json", videoID)
}

func videoCommentsKey(videoID string) string {
	return fmt.Sprintf("video:%s:comments", videoID)
}

func videoCommentsInitKey(videoID string) string {
	return fmt.Sprintf("video:%s:comments:init", videoID)
}

func videoLastSyncKey(videoID string) string {
	return fmt.Sprintf("video:%s:last_sync_time", videoID)
}

func videoProcessedKey(videoID string) string {
	return fmt.Sprintf("video:%s:processed", videoID)
}

func videoTranscriptKey(videoID string) string {
	return fmt.Sprintf("video:%s:transcript", videoID)
}
