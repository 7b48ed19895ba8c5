package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	stageLocator    = "locator"
	stageRecognizer = "recognizer"
)

var (
	framesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardscan_frames_total",
			Help: "Frames processed by outcome",
		},
		[]string{"status"}, // recognized, line_only, no_line, skipped, reused, fault
	)

	stageInvocations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cardscan_stage_invocations_total",
			Help: "Detector invocations by stage and outcome",
		},
		[]string{"stage", "outcome"}, // outcome: ok, error, panic
	)

	stageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cardscan_stage_duration_seconds",
			Help:    "Detector invocation time in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"stage"},
	)

	digitsReusedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cardscan_digits_reused_total",
		Help: "Frames that reused cached digits because the recognizer was throttled",
	})

	detectionsPerFrame = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cardscan_digit_detections",
		Help:    "Digit detections returned per recognizer invocation",
		Buckets: []float64{0, 1, 4, 8, 12, 16, 19, 24},
	})
)
