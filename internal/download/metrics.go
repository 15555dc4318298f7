package download

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var downloadDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "medialink_download_duration_seconds",
	Help:    "Duration of media acquisitions in seconds",
	Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
}, []string{"path", "status"})

func observeDownload(path, status string, d time.Duration) {
	downloadDuration.WithLabelValues(path, status).Observe(d.Seconds())
}
