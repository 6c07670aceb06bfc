// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Jobs currently being handled by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	// WorkflowTransitions counts approval actions by outcome
	// (ok, conflict, denied, not_found, error).
	WorkflowTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "veripass_workflow_transitions_total",
			Help: "Registration workflow actions by outcome",
		},
		[]string{"action", "outcome"},
	)

	NotificationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "veripass_notifications_created_total",
			Help: "In-app notifications created",
		},
		[]string{"type"},
	)

	// EmailDeliveries counts send attempts. path is "immediate" or "queue".
	EmailDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "veripass_email_deliveries_total",
			Help: "Email send attempts by delivery path and result",
		},
		[]string{"path", "result"},
	)

	EmailQueueSweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "veripass_email_queue_sweep_duration_seconds",
			Help:    "Duration of one email queue processing run",
			Buckets: prometheus.DefBuckets,
		},
	)
)
