package queue

import (
	"context"
	"fmt"

	"github.com/redis/rueidis"
	"go.uber.org/zap"

	"github.com/creator-shield/youtube-sync-go/internal/metrics"
	"github.com/creator-shield/youtube-sync-go/pkg/logger"
)

// Agent queue keys. Agents consume with blocking pops on their own key.
const (
	profilingQueueKey = "profiling_agent:tasks:queue"
	filteringQueueKey = "filtering_agent:tasks:queue"
)

// Dispatcher pushes task envelopes onto the agent queues.
type Dispatcher struct {
	client rueidis.Client
}

// NewDispatcher creates a dispatcher over the given Redis client.
func NewDispatcher(client rueidis.Client) *Dispatcher {
	return &Dispatcher{client: client}
}

func queueKey(taskType string) (string, error) {
	switch taskType {
	case TypeProfiling:
		return profilingQueueKey, nil
	case TypeFiltering:
		return filteringQueueKey, nil
	default:
		return "", fmt.Errorf("unknown task type %q", taskType)
	}
}

// Enqueue serializes the task and pushes it onto its agent's queue.
func (d *Dispatcher) Enqueue(ctx context.Context, task Task) error {
	key, err := queueKey(task.Type())
	if err != nil {
		return err
	}

	data, err := MarshalTask(task)
	if err != nil {
		return err
	}

	err = d.client.Do(ctx,
		d.client.B().Lpush().Key(key).Element(string(data)).Build(),
	).Error()
	if err != nil {
		return fmt.Errorf("enqueue %s task: %w", task.Type(), err)
	}

	metrics.TasksEnqueued.WithLabelValues(task.Type()).Inc()
	logger.Log.Info("task enqueued",
		zap.String("task_type", task.Type()),
		zap.String("queue", key),
	)

	return nil
}

// QueueLength returns the number of pending tasks for the given type.
func (d *Dispatcher) QueueLength(ctx context.Context, taskType string) (int64, error) {
	key, err := queueKey(taskType)
	if err != nil {
		return 0, err
	}

	n, err := d.client.Do(ctx, d.client.B().Llen().Key(key).Build()).AsInt64()
	if err != nil {
		return 0, fmt.Errorf("queue length for %s: %w", taskType, err)
	}

	return n, nil
}
