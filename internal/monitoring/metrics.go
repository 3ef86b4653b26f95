package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AcquisitionsTotal tracks finished acquisitions by outcome
	AcquisitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vibe_acquisitions_total",
			Help: "Total number of finished acquisitions",
		},
		[]string{"status"},
	)

	// AcquisitionDuration tracks end-to-end acquisition time
	AcquisitionDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vibe_acquisition_duration_seconds",
			Help:    "Acquisition duration in seconds",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10), // 1s to ~17min
		},
	)

	// DownloadAttemptsTotal tracks individual transfer attempts by outcome
	DownloadAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vibe_download_attempts_total",
			Help: "Total number of transfer attempts",
		},
		[]string{"outcome"},
	)

	// DownloadBytesTotal tracks total bytes persisted
	DownloadBytesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vibe_download_bytes_total",
			Help: "Total bytes downloaded and persisted",
		},
	)

	// ActiveJobs tracks the number of jobs in the registry
	ActiveJobs = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "vibe_active_jobs",
			Help: "Number of in-flight acquisition jobs",
		},
	)

	// ErrorsTotal tracks errors by type
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vibe_errors_total",
			Help: "Total number of errors",
		},
		[]string{"type"},
	)

	// PlaybackEventsTotal tracks queue engine transitions
	PlaybackEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vibe_playback_events_total",
			Help: "Total number of playback events",
		},
		[]string{"event"},
	)
)

// RecordAcquisitionComplete records a persisted acquisition
func RecordAcquisitionComplete(duration time.Duration, bytes int64) {
	AcquisitionsTotal.WithLabelValues("completed").Inc()
	AcquisitionDuration.Observe(duration.Seconds())
	DownloadBytesTotal.Add(float64(bytes))
}

// RecordAcquisitionFailed records a failed acquisition
func RecordAcquisitionFailed(errorType string) {
	AcquisitionsTotal.WithLabelValues("failed").Inc()
	ErrorsTotal.WithLabelValues(errorType).Inc()
}

// RecordAttempt records the outcome of one transfer attempt
func RecordAttempt(outcome string) {
	DownloadAttemptsTotal.WithLabelValues(outcome).Inc()
}

// SetActiveJobs updates the active jobs gauge
func SetActiveJobs(count int) {
	ActiveJobs.Set(float64(count))
}

// RecordPlaybackEvent records a playback transition
func RecordPlaybackEvent(event string) {
	PlaybackEventsTotal.WithLabelValues(event).Inc()
}

// RecordError records an error
func RecordError(errorType string) {
	ErrorsTotal.WithLabelValues(errorType).Inc()
}
