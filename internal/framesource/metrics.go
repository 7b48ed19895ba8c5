package framesource

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var framesDropped = promauto.NewCounter(prometheus.CounterOpts{
	Name: "cardscan_source_frames_dropped_total",
	Help: "Frames overwritten in the mailbox before the pipeline read them",
})
