package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidscreen_runs_total",
		Help: "Total number of processing runs, by terminal status",
	}, []string{"status"})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vidscreen_stage_duration_seconds",
		Help:    "Duration of each pipeline stage",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
	}, []string{"stage"})

	FramesExtractedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "vidscreen_frames_extracted_total",
		Help: "Total number of frames extracted across all runs",
	})

	FramesClassifiedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidscreen_frames_classified_total",
		Help: "Frames sent to the classifier, by provider and outcome",
	}, []string{"provider", "outcome"})

	ClassifierRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidscreen_classifier_retries_total",
		Help: "Total number of classifier retries",
	}, []string{"provider"})

	ClassifierLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vidscreen_classifier_request_seconds",
		Help:    "Latency of single classifier HTTP calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider"})

	RiskTiersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidscreen_risk_tiers_total",
		Help: "Completed analyses, by risk tier",
	}, []string{"tier"})

	ActiveRuns = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vidscreen_active_runs",
		Help: "Number of runs currently in progress",
	})

	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "vidscreen_queue_depth",
		Help: "Jobs waiting in the in-process queue",
	})

	NotificationErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "vidscreen_notification_errors_total",
		Help: "Notification deliveries that failed, by transport",
	}, []string{"transport"})
)
