// Package metrics exposes the feed engine's prometheus counters.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector implements feed.Metrics on top of a prometheus registry.
type Collector struct {
	records       *prometheus.CounterVec
	conflicts     prometheus.Counter
	feedRequests  *prometheus.CounterVec
	degraded      prometheus.Counter
	expandLatency prometheus.Histogram
}

// NewCollector registers the feed metrics on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shelflog_feed_records_total",
			Help: "Recorded activity by outcome",
		}, []string{"outcome"}),
		conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shelflog_feed_conflicts_total",
			Help: "Record operations aborted with a retryable conflict",
		}),
		feedRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shelflog_feed_requests_total",
			Help: "Feed page requests by scope",
		}, []string{"scope"}),
		degraded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "shelflog_feed_degraded_total",
			Help: "Entries rendered with partial data",
		}),
		expandLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "shelflog_feed_expand_seconds",
			Help:    "Entry reconstruction latency in seconds",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.records,
		c.conflicts,
		c.feedRequests,
		c.degraded,
		c.expandLatency,
	)

	return c
}

func (c *Collector) RecordOutcome(outcome string) {
	c.records.WithLabelValues(outcome).Inc()
}

func (c *Collector) RecordConflict() {
	c.conflicts.Inc()
}

func (c *Collector) RecordFeedRequest(scope string) {
	c.feedRequests.WithLabelValues(scope).Inc()
}

func (c *Collector) RecordDegraded() {
	c.degraded.Inc()
}

func (c *Collector) ObserveExpand(d time.Duration) {
	c.expandLatency.Observe(d.Seconds())
}

// Handler returns the scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
