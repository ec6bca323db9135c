// Package metrics provides Prometheus metrics for feed sync runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"FeedAggregator/internal/ports"
)

const namespace = "feedaggregator"

// Recorder owns the collectors and the registry they are exposed from.
type Recorder struct {
	registry *prometheus.Registry

	feedSyncs    *prometheus.CounterVec
	syncDuration *prometheus.HistogramVec
	upserts      *prometheus.CounterVec
	itemErrors   prometheus.Counter
}

var _ ports.SyncRecorder = (*Recorder)(nil)

// NewRecorder registers the collectors on a fresh registry, together with the
// Go runtime and process collectors.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		feedSyncs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "feed_syncs_total",
				Help:      "Total number of feed syncs by outcome",
			},
			[]string{"source", "status"},
		),
		syncDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "feed_sync_duration_seconds",
				Help:      "Duration of one feed sync in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"source"},
		),
		upserts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "update_upserts_total",
				Help:      "Total number of canonical update upserts by result",
			},
			[]string{"result"},
		),
		itemErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "item_errors_total",
				Help:      "Total number of items rejected during transform, match or persist",
			},
		),
	}
}

// ObserveFeedSync records one feed's outcome and duration.
func (r *Recorder) ObserveFeedSync(source string, failed bool, duration time.Duration) {
	status := "success"
	if failed {
		status = "failure"
	}
	r.feedSyncs.WithLabelValues(source, status).Inc()
	r.syncDuration.WithLabelValues(source).Observe(duration.Seconds())
}

// ObserveUpserts records the result of one bulk upsert.
func (r *Recorder) ObserveUpserts(created, updated, failed uint) {
	r.upserts.WithLabelValues("created").Add(float64(created))
	r.upserts.WithLabelValues("updated").Add(float64(updated))
	r.upserts.WithLabelValues("failed").Add(float64(failed))
}

// ObserveItemErrors adds per-item errors of one feed.
func (r *Recorder) ObserveItemErrors(count uint) {
	r.itemErrors.Add(float64(count))
}

// Handler exposes the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
