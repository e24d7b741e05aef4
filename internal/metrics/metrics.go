package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Claim results
const (
	ClaimClaimed         = "claimed"
	ClaimNotFound        = "not_found"
	ClaimAlreadyRunning  = "already_running"
	ClaimAlreadyFinished = "already_finished"
	ClaimError           = "error"
)

// Notification outcomes
const (
	NotifyDelivered = "delivered"
	NotifyFailed    = "failed"
	NotifySkipped   = "skipped"
)

var (
	JobsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatcher_jobs_created_total",
		Help: "Total number of jobs created",
	})

	JobClaimsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatcher_job_claims_total",
		Help: "Run requests by claim result",
	}, []string{"result"})

	JobExecutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatcher_job_executions_total",
		Help: "Finished job executions by terminal status",
	}, []string{"status"})

	JobExecutionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "dispatcher_job_execution_duration_seconds",
		Help:    "Time spent running work units in seconds",
		Buckets: prometheus.DefBuckets,
	})

	JobsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dispatcher_jobs_in_flight",
		Help: "Work units currently executing",
	})

	RecoveredJobsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "dispatcher_recovered_jobs_total",
		Help: "Running jobs marked failed at startup",
	})

	NotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dispatcher_notifications_total",
		Help: "Completion notifications by sink and outcome",
	}, []string{"sink", "outcome"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dispatcher_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route", "status"})

	EventSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "dispatcher_event_subscribers",
		Help: "Connected websocket clients",
	})
)
