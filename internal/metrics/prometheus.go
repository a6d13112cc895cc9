package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	syncOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arcasync_sync_operations_total",
			Help: "Reconciliation operations by job, operation and outcome.",
		},
		[]string{"job", "op", "outcome"},
	)
	jobRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arcasync_job_runs_total",
			Help: "Completed job runs by final status.",
		},
		[]string{"job", "status"},
	)
	jobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "arcasync_job_duration_seconds",
			Help:    "Job run durations.",
			Buckets: []float64{1, 5, 15, 60, 300, 900, 1800, 3600},
		},
		[]string{"job"},
	)
	remoteRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arcasync_remote_requests_total",
			Help: "PrestaShop webservice calls by method, resource and status class.",
		},
		[]string{"method", "resource", "status"},
	)
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "arcasync_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "endpoint", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "arcasync_http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"method", "endpoint", "status"},
	)
)

func init() {
	prometheus.MustRegister(syncOperationsTotal)
	prometheus.MustRegister(jobRunsTotal)
	prometheus.MustRegister(jobDuration)
	prometheus.MustRegister(remoteRequestsTotal)
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpRequestDuration)
}

// RecordOperation counts one create/update/delete attempt
func RecordOperation(job, op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	syncOperationsTotal.WithLabelValues(job, op, outcome).Inc()
}

// RecordJobRun records the end of a job run
func RecordJobRun(job, status string, duration time.Duration) {
	jobRunsTotal.WithLabelValues(job, status).Inc()
	jobDuration.WithLabelValues(job).Observe(duration.Seconds())
}

// RecordRemoteRequest counts a PrestaShop call; statusCode 0 means transport failure
func RecordRemoteRequest(method, resource string, statusCode int) {
	status := classifyStatus(statusCode)
	if statusCode == 0 {
		status = "transport_error"
	}
	remoteRequestsTotal.WithLabelValues(method, resource, status).Inc()
}

// RecordRequest records metrics for an HTTP request served by the trigger surface
func RecordRequest(method, endpoint string, statusCode int, duration time.Duration) {
	status := classifyStatus(statusCode)
	httpRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint, status).Observe(duration.Seconds())
}

// classifyStatus maps an HTTP status code to its class
func classifyStatus(statusCode int) string {
	if statusCode >= 100 && statusCode < 600 {
		return strconv.Itoa(statusCode/100) + "xx"
	}
	return "unknown"
}

// MetricsHandler returns the Prometheus exposition handler
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
