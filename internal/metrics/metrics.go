// Package metrics exposes Prometheus instrumentation for the research
// pipeline. Collectors are registered on the default registry and served
// from /metrics when the HTTP transport is active.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TasksSubmitted counts research tasks accepted for execution.
	TasksSubmitted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "inquest",
		Name:      "tasks_submitted_total",
		Help:      "Number of research tasks submitted.",
	})

	// TasksCompleted counts tasks that reached the completed status,
	// including tasks completed through a review decision.
	TasksCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "inquest",
		Name:      "tasks_completed_total",
		Help:      "Number of research tasks completed.",
	})

	// TasksFailed counts tasks that reached the failed status.
	TasksFailed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "inquest",
		Name:      "tasks_failed_total",
		Help:      "Number of research tasks that failed.",
	})

	// TasksReviewRouted counts drafts routed to human review.
	TasksReviewRouted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "inquest",
		Name:      "tasks_review_routed_total",
		Help:      "Number of drafts routed to human review.",
	})

	// ReviewDecisions counts review resolutions by decision.
	ReviewDecisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "inquest",
		Name:      "review_decisions_total",
		Help:      "Number of review decisions by kind.",
	}, []string{"decision"})

	// StageDuration observes wall-clock time spent per pipeline stage.
	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "inquest",
		Name:      "stage_duration_seconds",
		Help:      "Duration of pipeline stages in seconds.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"stage"})
)
