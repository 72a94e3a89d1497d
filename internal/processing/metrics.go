package processing

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Per-node execution metrics exported alongside the in-memory Stats map
// (spec.md §4.1 NEW addition), scraped via the HTTP introspection server's
// /metrics endpoint.
var (
	nodeFramesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "photoacoustic_node_frames_total",
		Help: "Frames processed by a graph node.",
	}, []string{"node_id"})

	nodeErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "photoacoustic_node_errors_total",
		Help: "Frames a graph node failed to process.",
	}, []string{"node_id"})

	nodeProcessingSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "photoacoustic_node_processing_seconds",
		Help:    "Per-frame processing latency of a graph node.",
		Buckets: prometheus.DefBuckets,
	}, []string{"node_id"})
)

func observeNodeExecution(nodeID string, elapsedSeconds float64, ok bool) {
	nodeFramesTotal.WithLabelValues(nodeID).Inc()
	if !ok {
		nodeErrorsTotal.WithLabelValues(nodeID).Inc()
	}
	nodeProcessingSeconds.WithLabelValues(nodeID).Observe(elapsedSeconds)
}
