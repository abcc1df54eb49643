// Package metrics holds the prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FramesCaptured = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "facerec_frames_captured_total",
		Help: "Frames stored in the capture slot.",
	}, []string{"source"})

	CaptureErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "facerec_capture_errors_total",
		Help: "Failed transport reads, each followed by a backoff.",
	}, []string{"source"})

	DecodeErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "facerec_decode_errors_total",
		Help: "Extracted JPEG frames that failed to decode.",
	}, []string{"source"})

	DemuxerResets = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "facerec_demuxer_resets_total",
		Help: "Times the MJPEG demuxer dropped its buffer for lack of an end marker.",
	}, []string{"source"})

	Ticks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "facerec_ticks_total",
		Help: "Recognition ticks by outcome.",
	}, []string{"outcome"})

	TickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "facerec_tick_duration_seconds",
		Help:    "Time spent reading, detecting and classifying per tick.",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 10),
	})

	PresenceEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "facerec_presence_events_total",
		Help: "Login and logout events emitted.",
	}, []string{"kind"})

	DetectionActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "facerec_detection_active",
		Help: "1 while recognition ticks are processed, 0 while paused.",
	})
)
