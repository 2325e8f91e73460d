// Package queue hands analysis work to the downstream agents over Redis
// lists. Each agent pops JSON task envelopes from its own queue.
package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Task type tags carried in the envelope.
const (
	TypeProfiling = "profiling"
	TypeFiltering = "filtering"
)

// Task is a unit of agent work. Exactly one variant exists per type tag.
type Task interface {
	// Type returns the envelope tag for this task variant.
	Type() string
}

// ProfilingTask asks the profiling agent to build a creator profile from a
// channel's freshly cached videos.
type ProfilingTask struct {
	TaskID    string    `json:"task_id"`
	ChannelID string    `json:"channel_id"`
	VideoIDs  []string  `json:"video_ids"`
	CreatedAt time.Time `json:"created_at"`
}

// NewProfilingTask creates a profiling task for the given channel.
func NewProfilingTask(channelID string, videoIDs []string) (*ProfilingTask, error) {
	if channelID == "" {
		return nil, fmt.Errorf("channel ID is required")
	}
	if len(videoIDs) == 0 {
		return nil, fmt.Errorf("at least one video ID is required")
	}

	return &ProfilingTask{
		TaskID:    uuid.New().String(),
		ChannelID: channelID,
		VideoIDs:  videoIDs,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Type returns the profiling envelope tag.
func (t *ProfilingTask) Type() string { return TypeProfiling }

// FilteringTask asks the filtering agent to scan the cached comments of the
// listed videos.
type FilteringTask struct {
	TaskID    string    `json:"task_id"`
	ChannelID string    `json:"channel_id"`
	VideoIDs  []string  `json:"video_ids"`
	CreatedAt time.Time `json:"created_at"`
}

// NewFilteringTask creates a filtering task for the given channel.
func NewFilteringTask(channelID string, videoIDs []string) (*FilteringTask, error) {
	if channelID == "" {
		return nil, fmt.Errorf("channel ID is required")
	}
	if len(videoIDs) == 0 {
		return nil, fmt.Errorf("at least one video ID is required")
	}

	return &FilteringTask{
		TaskID:    uuid.New().String(),
		ChannelID: channelID,
		VideoIDs:  videoIDs,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Type returns the filtering envelope tag.
func (t *FilteringTask) Type() string { return TypeFiltering }

// envelope wraps a task with its type tag on the wire.
type envelope struct {
	Type string          `json:"type"`
	Task json.RawMessage `json:"task"`
}

// MarshalTask serializes a task into its tagged envelope.
func MarshalTask(task Task) ([]byte, error) {
	inner, err := json.Marshal(task)
	if err != nil {
		return nil, fmt.Errorf("marshal task: %w", err)
	}

	data, err := json.Marshal(envelope{Type: task.Type(), Task: inner})
	if err != nil {
		return nil, fmt.Errorf("marshal task envelope: %w", err)
	}

	return data, nil
}

// UnmarshalTask deserializes a tagged envelope into the matching variant.
func UnmarshalTask(data []byte) (Task, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("unmarshal task envelope: %w", err)
	}

	switch env.Type {
	case TypeProfiling:
		var task ProfilingTask
		if err := json.Unmarshal(env.Task, &task); err != nil {
			return nil, fmt.Errorf("unmarshal profiling task: %w", err)
		}
		return &task, nil
	case TypeFiltering:
		var task FilteringTask
		if err := json.Unmarshal(env.Task, &task); err != nil {
			return nil, fmt.Errorf("unmarshal filtering task: %w", err)
		}
		return &task, nil
	default:
		return nil, fmt.Errorf("unknown task type %q", env.Type)
	}
}
