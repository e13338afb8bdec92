package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder collects pipeline metrics on its own registry.
// Constructed explicitly and injected; lifecycle is tied to the
// pipeline instance, never a process-wide singleton.
type Recorder struct {
	registry *prometheus.Registry

	fetchesTotal   *prometheus.CounterVec
	cacheOpsTotal  *prometheus.CounterVec
	retriesTotal   prometheus.Counter
	rateLimitWaits prometheus.Counter

	fetchDuration prometheus.Histogram
	batchDuration prometheus.Histogram
	eligibleCount prometheus.Gauge
}

// New creates a Recorder with a private registry
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		fetchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "uvscan_fetches_total",
				Help: "Total symbol fetches by outcome",
			},
			[]string{"outcome"}, // success, failure, cache_hit
		),
		cacheOpsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "uvscan_cache_ops_total",
				Help: "Cache lookups by tier and result",
			},
			[]string{"tier", "result"}, // fast|persistent, hit|miss
		),
		retriesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "uvscan_fetch_retries_total",
				Help: "Total fetch retry attempts",
			},
		),
		rateLimitWaits: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "uvscan_rate_limit_waits_total",
				Help: "Times a fetch had to wait for tokens",
			},
		),
		fetchDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "uvscan_fetch_duration_seconds",
				Help:    "Duration of provider fetches in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		batchDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "uvscan_batch_duration_seconds",
				Help:    "Duration of full batch runs in seconds",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
			},
		),
		eligibleCount: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "uvscan_last_batch_eligible",
				Help: "Eligible candidates in the most recent batch",
			},
		),
	}
}

// Handler returns an HTTP handler exposing this recorder's registry
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// RecordFetch counts a fetch outcome: success, failure or cache_hit
func (r *Recorder) RecordFetch(outcome string) {
	r.fetchesTotal.WithLabelValues(outcome).Inc()
}

// RecordCacheOp counts a cache lookup per tier
func (r *Recorder) RecordCacheOp(tier, result string) {
	r.cacheOpsTotal.WithLabelValues(tier, result).Inc()
}

// RecordRetry counts one retry attempt
func (r *Recorder) RecordRetry() {
	r.retriesTotal.Inc()
}

// RecordRateLimitWait counts one token wait
func (r *Recorder) RecordRateLimitWait() {
	r.rateLimitWaits.Inc()
}

// RecordFetchDuration records one provider fetch duration
func (r *Recorder) RecordFetchDuration(seconds float64) {
	r.fetchDuration.Observe(seconds)
}

// RecordBatch records batch duration and the eligible count
func (r *Recorder) RecordBatch(seconds float64, eligible int) {
	r.batchDuration.Observe(seconds)
	r.eligibleCount.Set(float64(eligible))
}
