package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DownloadMetrics records token issuance and download streaming outcomes.
type DownloadMetrics struct {
	tokensIssued *prometheus.CounterVec
	downloads    *prometheus.CounterVec
	duration     *prometheus.HistogramVec
}

// NewDownloadMetrics registers the download metrics on the provided registerer.
func NewDownloadMetrics(reg prometheus.Registerer) *DownloadMetrics {
	if reg == nil {
		return &DownloadMetrics{}
	}
	tokensIssued := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "download_tokens_issued",
		Help: "Download token requests by outcome.",
	}, []string{"outcome"})
	downloads := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "downloads_total",
		Help: "Download stream attempts by outcome.",
	}, []string{"outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "download_duration_seconds",
		Help:    "Duration of download streams in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	reg.MustRegister(tokensIssued, downloads, duration)
	return &DownloadMetrics{
		tokensIssued: tokensIssued,
		downloads:    downloads,
		duration:     duration,
	}
}

// IncTokenIssued increments the token counter for the named outcome.
func (d *DownloadMetrics) IncTokenIssued(outcome string) {
	if d == nil || d.tokensIssued == nil {
		return
	}
	d.tokensIssued.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// IncDownload increments the download counter for the named outcome.
func (d *DownloadMetrics) IncDownload(outcome string) {
	if d == nil || d.downloads == nil {
		return
	}
	d.downloads.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// ObserveDuration records how long a download stream took.
func (d *DownloadMetrics) ObserveDuration(outcome string, duration time.Duration) {
	if d == nil || d.duration == nil {
		return
	}
	d.duration.WithLabelValues(normalizeLabel(outcome)).Observe(duration.Seconds())
}

func normalizeLabel(outcome string) string {
	if outcome == "" {
		return "unknown"
	}
	return outcome
}
