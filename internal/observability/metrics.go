package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	pushTotal    *prometheus.CounterVec
	pushDuration *prometheus.HistogramVec

	remoteCallDuration *prometheus.HistogramVec
	remoteRetriesTotal *prometheus.CounterVec
	remoteErrorsTotal  *prometheus.CounterVec

	driftEntries     *prometheus.GaugeVec
	filesIndexed     prometheus.Gauge
	checkpointResume prometheus.Counter

	verificationDuration prometheus.Histogram
	verificationFailures prometheus.Counter

	syncRunsTotal   *prometheus.CounterVec
	syncRunDuration prometheus.Histogram
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			pushTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "push_total",
					Help: "Total file pushes by collection and status.",
				},
				[]string{"collection", "status"},
			),
			pushDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "push_duration_seconds",
					Help:    "File push duration in seconds by collection.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"collection"},
			),
			remoteCallDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "remote_call_duration_seconds",
					Help:    "Remote store call duration in seconds by operation.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"operation"},
			),
			remoteRetriesTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "remote_retries_total",
					Help: "Total retried remote calls by operation.",
				},
				[]string{"operation"},
			),
			remoteErrorsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "remote_errors_total",
					Help: "Total failed remote calls by operation and class.",
				},
				[]string{"operation", "class"},
			),
			driftEntries: prometheus.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "drift_entries",
					Help: "Drift entries found by the last detector run, by class.",
				},
				[]string{"class"},
			),
			filesIndexed: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "files_indexed",
					Help: "Files currently tracked by the checksum store.",
				},
			),
			checkpointResume: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "checkpoint_resumes_total",
					Help: "Total bulk operations resumed from a checkpoint.",
				},
			),
			verificationDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "verification_duration_seconds",
					Help:    "Read-after-write verification duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			verificationFailures: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "verification_failures_total",
					Help: "Total verification failures and timeouts.",
				},
			),
			syncRunsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "sync_runs_total",
					Help: "Total sync runs by mode and outcome.",
				},
				[]string{"mode", "outcome"},
			),
			syncRunDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "sync_run_duration_seconds",
					Help:    "End-to-end sync run duration in seconds.",
					Buckets: []float64{.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
				},
			),
		}

		prometheus.MustRegister(
			m.pushTotal,
			m.pushDuration,
			m.remoteCallDuration,
			m.remoteRetriesTotal,
			m.remoteErrorsTotal,
			m.driftEntries,
			m.filesIndexed,
			m.checkpointResume,
			m.verificationDuration,
			m.verificationFailures,
			m.syncRunsTotal,
			m.syncRunDuration,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

func RecordPush(collection string, duration time.Duration, success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.pushTotal.WithLabelValues(collection, status).Inc()
	m.pushDuration.WithLabelValues(collection).Observe(duration.Seconds())
}

func RecordRemoteCall(operation string, duration time.Duration) {
	getMetrics().remoteCallDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func RecordRemoteRetry(operation string) {
	getMetrics().remoteRetriesTotal.WithLabelValues(operation).Inc()
}

func RecordRemoteError(operation, class string) {
	getMetrics().remoteErrorsTotal.WithLabelValues(operation, class).Inc()
}

func SetDriftEntries(class string, count int) {
	getMetrics().driftEntries.WithLabelValues(class).Set(float64(count))
}

func SetFilesIndexed(count int) {
	getMetrics().filesIndexed.Set(float64(count))
}

func RecordCheckpointResume() {
	getMetrics().checkpointResume.Inc()
}

func RecordVerification(duration time.Duration, passed bool) {
	m := getMetrics()
	m.verificationDuration.Observe(duration.Seconds())
	if !passed {
		m.verificationFailures.Inc()
	}
}

func RecordSyncRun(mode string, duration time.Duration, outcome string) {
	m := getMetrics()
	m.syncRunsTotal.WithLabelValues(mode, outcome).Inc()
	m.syncRunDuration.Observe(duration.Seconds())
}
