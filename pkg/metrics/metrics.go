// Package metrics registers and exposes the coordinator's Prometheus
// metrics, registered at package init time and scraped over HTTP.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// PendingJobsTotal is the size of each queue's pending-advertisement
	// set in the JobIndex.
	PendingJobsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "compactord_pending_jobs_total",
			Help: "Number of pending compaction advertisements by queue",
		},
		[]string{"queue"},
	)

	RunningCompactionsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "compactord_running_compactions_total",
			Help: "Number of in-flight reserved compactions",
		},
	)

	DispatchLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "compactord_dispatch_latency_seconds",
			Help:    "Time taken by GetCompactionJob to return a job or the empty sentinel",
			Buckets: prometheus.DefBuckets,
		},
	)

	JobsDispatchedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "compactord_jobs_dispatched_total",
			Help: "Total number of jobs successfully reserved and handed to a compactor",
		},
		[]string{"queue"},
	)

	PollCyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "compactord_poll_cycles_total",
			Help: "Total number of QueuePoller cycles completed",
		},
	)

	PollFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "compactord_poll_failures_total",
			Help: "Total number of per-tablet-server queueSummaries RPC failures",
		},
		[]string{"tserver"},
	)

	PollDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "compactord_poll_duration_seconds",
			Help:    "Time taken by one QueuePoller fan-out cycle",
			Buckets: prometheus.DefBuckets,
		},
	)

	CompletionRetryExhaustedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "compactord_completion_retry_exhausted_total",
			Help: "Total number of compactionCompleted notifications that exhausted their retry budget, leaving an orphan entry",
		},
	)

	UnknownCompactionIDTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "compactord_unknown_compaction_id_total",
			Help: "Total number of inbound RPCs that referenced an unknown externalCompactionId",
		},
		[]string{"method"},
	)

	MembershipRemovalsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "compactord_membership_removals_total",
			Help: "Total number of tablet-server removal events processed by the MembershipReactor",
		},
	)

	RPCRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "compactord_rpc_requests_total",
			Help: "Total number of inbound RPCs by method and outcome",
		},
		[]string{"method", "outcome"},
	)
)

func init() {
	prometheus.MustRegister(
		PendingJobsTotal,
		RunningCompactionsTotal,
		DispatchLatency,
		JobsDispatchedTotal,
		PollCyclesTotal,
		PollFailuresTotal,
		PollDuration,
		CompletionRetryExhaustedTotal,
		UnknownCompactionIDTotal,
		MembershipRemovalsTotal,
		RPCRequestsTotal,
	)
}

// Handler returns the Prometheus HTTP handler for scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a small helper for timing operations and observing the
// elapsed duration into a histogram.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the elapsed time into histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the elapsed time into the histogram vec
// member selected by labelValues.
func (t *Timer) ObserveDurationVec(histogram *prometheus.HistogramVec, labelValues ...string) {
	histogram.WithLabelValues(labelValues...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
