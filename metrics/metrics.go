// Package metrics provides Prometheus metrics for the capture and
// analysis pipelines.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "specter"

var (
	// audioChunksTotal is a counter of fixed-size audio chunks produced.
	audioChunksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_chunks_total",
			Help:      "Total number of fixed-size audio chunks produced by the capture pipeline",
		},
	)

	// audioBatchesTotal is a counter of transport units flushed.
	audioBatchesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_batches_total",
			Help:      "Total number of audio transport units flushed",
		},
	)

	// audioBatchBytes is a histogram of flushed transport unit sizes.
	audioBatchBytes = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "audio_batch_bytes",
			Help:      "Size in bytes of flushed audio transport units",
			Buckets:   []float64{1024, 4096, 8192, 16384, 32768, 65536},
		},
	)

	// transcriptEventsTotal is a counter of transcription events by type.
	transcriptEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcript_events_total",
			Help:      "Total number of transcription events received",
		},
		[]string{"type"}, // type: delta, done, error
	)

	// streamEventsTotal is a counter of analysis stream events by channel.
	streamEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_events_total",
			Help:      "Total number of analysis stream events by channel",
		},
		[]string{"channel", "kind"},
	)

	// requestsActive is a gauge of in-flight analysis requests.
	requestsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "requests_active",
			Help:      "Number of in-flight analysis requests",
		},
	)

	// requestDuration is a histogram of end-to-end analysis request duration.
	requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "End-to-end analysis request duration in seconds",
			Buckets:   []float64{.25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"status"}, // status: success, error, canceled
	)

	// staleEventsSuppressedTotal counts events dropped because their
	// session was cleared or replaced while the request was in flight.
	staleEventsSuppressedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_events_suppressed_total",
			Help:      "Total events suppressed because the originating session was stale",
		},
	)

	// screenshotRetriesTotal counts screenshot capture retry attempts.
	screenshotRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "screenshot_retries_total",
			Help:      "Total screenshot capture retry attempts",
		},
	)

	// allMetrics is a list of all metrics for registration.
	allMetrics = []prometheus.Collector{
		audioChunksTotal,
		audioBatchesTotal,
		audioBatchBytes,
		transcriptEventsTotal,
		streamEventsTotal,
		requestsActive,
		requestDuration,
		staleEventsSuppressedTotal,
		screenshotRetriesTotal,
	}
)

// RecordAudioChunk records one produced audio chunk.
func RecordAudioChunk() {
	audioChunksTotal.Inc()
}

// RecordBatchFlush records one flushed transport unit of the given size.
func RecordBatchFlush(bytes int) {
	audioBatchesTotal.Inc()
	audioBatchBytes.Observe(float64(bytes))
}

// RecordTranscriptEvent records a transcription event by type.
func RecordTranscriptEvent(eventType string) {
	transcriptEventsTotal.WithLabelValues(eventType).Inc()
}

// RecordStreamEvent records an analysis stream event.
func RecordStreamEvent(channel, kind string) {
	streamEventsTotal.WithLabelValues(channel, kind).Inc()
}

// RecordRequestStart records an analysis request entering flight.
func RecordRequestStart() {
	requestsActive.Inc()
}

// RecordRequestEnd records an analysis request leaving flight.
func RecordRequestEnd(status string, durationSeconds float64) {
	requestsActive.Dec()
	requestDuration.WithLabelValues(status).Observe(durationSeconds)
}

// RecordStaleSuppressed records an event suppressed for a stale session.
func RecordStaleSuppressed() {
	staleEventsSuppressedTotal.Inc()
}

// RecordScreenshotRetry records a screenshot capture retry attempt.
func RecordScreenshotRetry() {
	screenshotRetriesTotal.Inc()
}
