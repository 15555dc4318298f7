package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	stageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "medialink_stage_duration_seconds",
		Help:    "Duration of transform pipeline stages in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage", "status"})

	stagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "medialink_stages_total",
		Help: "Total number of transform stages run",
	}, []string{"stage", "status"})
)

func observeStage(stage Stage, status string, d time.Duration) {
	stageDuration.WithLabelValues(string(stage), status).Observe(d.Seconds())
	stagesTotal.WithLabelValues(string(stage), status).Inc()
}
