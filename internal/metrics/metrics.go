// Package metrics records per-hostname feed failure counters for
// alerting. Metrics are pushed to a Pushgateway at the end of a run;
// with no gateway configured the recorder is collect-only.
package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/infblueocean/newsriver/internal/logging"
)

const (
	publisherArticlesMetric = "publisher_articles_count"
	publisherURLErrMetric   = "publisher_url_error_count"
)

// Recorder owns the pipeline's alerting gauges.
type Recorder struct {
	registry *prometheus.Registry
	gateway  string

	emptyFeeds  *prometheus.GaugeVec
	fetchErrors *prometheus.GaugeVec
}

// NewRecorder creates a Recorder pushing to gatewayURL (may be empty).
func NewRecorder(gatewayURL string) *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		gateway:  gatewayURL,
		emptyFeeds: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: publisherArticlesMetric,
			Help: "Feeds that parsed to zero articles",
		}, []string{"url"}),
		fetchErrors: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: publisherURLErrMetric,
			Help: "Feeds that failed to download",
		}, []string{"url"}),
	}
	r.registry.MustRegister(r.emptyFeeds, r.fetchErrors)
	return r
}

// label turns a hostname into a metric label the way the alerting
// rules expect it.
func label(hostname string) string {
	return strings.ReplaceAll(hostname, ".", "_")
}

// FeedFetchError records a feed download failure for hostname.
func (r *Recorder) FeedFetchError(hostname string) {
	r.fetchErrors.WithLabelValues(label(hostname)).Inc()
}

// EmptyFeed records a feed that parsed to zero articles. Parsed-but-
// empty and failed-to-parse share one metric on purpose: they alert
// the same way.
func (r *Recorder) EmptyFeed(hostname string) {
	r.emptyFeeds.WithLabelValues(label(hostname)).Inc()
}

// Push sends the collected gauges to the configured gateway. A push
// failure is logged, never fatal: metrics are best-effort.
func (r *Recorder) Push(job string) {
	if r.gateway == "" {
		return
	}
	if err := push.New(r.gateway, job).Gatherer(r.registry).Push(); err != nil {
		logging.Error("Failed to push metrics", "gateway", r.gateway, "error", err)
	}
}
