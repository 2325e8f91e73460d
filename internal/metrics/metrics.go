// Package metrics exposes Prometheus counters for the sync pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CredentialRotations counts how often a read call moved past a
	// quota-exhausted API key.
	CredentialRotations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "youtube_sync_credential_rotations_total",
		Help: "Number of API key rotations caused by quota errors.",
	})

	// QuotaErrors counts quota-class rejections by operation.
	QuotaErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "youtube_sync_quota_errors_total",
		Help: "Number of quota-class errors returned by the platform.",
	}, []string{"operation"})

	// SyncPasses counts sync passes by mode and outcome.
	SyncPasses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "youtube_sync_passes_total",
		Help: "Number of channel sync passes.",
	}, []string{"mode", "outcome"})

	// VideosSynced counts videos written during sync passes.
	VideosSynced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "youtube_sync_videos_synced_total",
		Help: "Number of videos upserted by sync passes.",
	})

	// ProjectionsCompleted counts cache projections by mode.
	ProjectionsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "youtube_sync_projections_total",
		Help: "Number of cache projections completed.",
	}, []string{"mode"})

	// TasksEnqueued counts agent tasks pushed to the work queues.
	TasksEnqueued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "youtube_sync_agent_tasks_enqueued_total",
		Help: "Number of agent tasks pushed to Redis queues.",
	}, []string{"task_type"})

	// DeletionOutcomes counts deletion attempts by result.
	DeletionOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "youtube_sync_deletion_outcomes_total",
		Help: "Number of comment deletion attempts by outcome.",
	}, []string{"outcome"})

	// DeletionBatchSize observes how many comments each worker batch held.
	DeletionBatchSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "youtube_sync_deletion_batch_size",
		Help:    "Comments handled per deletion worker batch.",
		Buckets: prometheus.LinearBuckets(0, 2, 8),
	})
)
