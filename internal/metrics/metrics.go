// Package metrics holds the Prometheus collectors for error reporting, retention
// sweeps, the recent-errors probe and the HTTP API.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Report outcomes.
const (
	OutcomeSaved  = "saved"
	OutcomeFailed = "failed"
)

// Sweep run results.
const (
	SweepOK      = "ok"
	SweepError   = "error"
	SweepSkipped = "skipped"
)

// Package-level collectors. They are registered via Register.
var (
	regOK atomic.Bool

	reports = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "apperrors",
			Subsystem: "reporter",
			Name:      "reports_total",
			Help:      "Number of reported application errors by outcome.",
		}, []string{"outcome"},
	)
	sweepRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "apperrors",
			Subsystem: "cleanup",
			Name:      "runs_total",
			Help:      "Number of retention sweeps by result.",
		}, []string{"job", "result"},
	)
	sweepDeleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "apperrors",
			Subsystem: "cleanup",
			Name:      "deleted_total",
			Help:      "Number of error records removed by retention sweeps.",
		}, []string{"job", "status"},
	)
	sweepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "apperrors",
			Subsystem: "cleanup",
			Name:      "duration_seconds",
			Help:      "Duration of retention sweeps.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"job"},
	)
	recentErrors = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "apperrors",
			Subsystem: "health",
			Name:      "recent_errors",
			Help:      "Unresolved errors seen in the probe window at the last health check.",
		},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "apperrors",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Number of HTTP requests by method and status code.",
		}, []string{"method", "code"},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{reports, sweepRuns, sweepDeleted, sweepDuration, recentErrors, httpRequests}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler serves the metrics of the DefaultGatherer.
func Handler() http.Handler { return promhttp.Handler() }

// HandlerFor serves the metrics of g.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// The helpers below no-op until Register has been called.

func IncReport(outcome string) {
	if regOK.Load() {
		reports.WithLabelValues(outcome).Inc()
	}
}

func IncSweepRun(job, result string) {
	if regOK.Load() {
		sweepRuns.WithLabelValues(job, result).Inc()
	}
}

func AddSweepDeleted(job, status string, n int64) {
	if regOK.Load() && n > 0 {
		sweepDeleted.WithLabelValues(job, status).Add(float64(n))
	}
}

func ObserveSweepDuration(job string, seconds float64) {
	if regOK.Load() {
		sweepDuration.WithLabelValues(job).Observe(seconds)
	}
}

func SetRecentErrors(n int64) {
	if regOK.Load() {
		recentErrors.Set(float64(n))
	}
}

func IncHTTPRequest(method string, code int) {
	if regOK.Load() {
		httpRequests.WithLabelValues(method, strconv.Itoa(code)).Inc()
	}
}
