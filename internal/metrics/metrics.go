package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Skip reasons recorded on RecordsSkipped.
const (
	ReasonNoCVE          = "no_cve"
	ReasonAlreadyTracked = "already_tracked"
)

// Metrics holds the counters of one run. Each run owns a private registry so that
// the values can be pushed to a Pushgateway once the process is done.
type Metrics struct {
	Registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	RecordsTotal   prometheus.Counter
	RecordsSkipped *prometheus.CounterVec
	IssuesCreated  prometheus.Counter
	CVEsReported   prometheus.Counter
	LastRunSuccess prometheus.Gauge
	RunDuration    prometheus.Gauge
}

// NewMetrics creates and registers all metrics on a fresh registry
func NewMetrics() *Metrics {
	m := &Metrics{Registry: prometheus.NewRegistry()}

	m.HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quay2jira_http_requests_total",
			Help: "Total number of outgoing HTTP requests",
		},
		[]string{"service", "method", "code"},
	)

	m.HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quay2jira_http_request_duration_seconds",
			Help:    "Duration of outgoing HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "method"},
	)

	m.RecordsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quay2jira_records_total",
			Help: "Vulnerability records processed",
		},
	)

	m.RecordsSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quay2jira_records_skipped_total",
			Help: "Vulnerability records skipped without filing an issue",
		},
		[]string{"reason"},
	)

	m.IssuesCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quay2jira_issues_created_total",
			Help: "Issues filed in the tracker",
		},
	)

	m.CVEsReported = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quay2jira_cves_reported_total",
			Help: "New CVE identifiers filed in the tracker",
		},
	)

	m.LastRunSuccess = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "quay2jira_last_run_success",
			Help: "1 if the last run completed, 0 if it failed",
		},
	)

	m.RunDuration = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "quay2jira_run_duration_seconds",
			Help: "Wall time of the last run",
		},
	)

	m.Registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.RecordsTotal,
		m.RecordsSkipped,
		m.IssuesCreated,
		m.CVEsReported,
		m.LastRunSuccess,
		m.RunDuration,
	)

	return m
}

// InstrumentClient wraps the transport of hc so requests to service are counted and timed.
func (m *Metrics) InstrumentClient(service string, hc *http.Client) *http.Client {
	next := hc.Transport
	if next == nil {
		next = http.DefaultTransport
	}

	labels := prometheus.Labels{"service": service}
	instrumented := *hc
	instrumented.Transport = promhttp.InstrumentRoundTripperCounter(
		m.HTTPRequestsTotal.MustCurryWith(labels),
		promhttp.InstrumentRoundTripperDuration(
			m.HTTPRequestDuration.MustCurryWith(labels),
			next,
		),
	)
	return &instrumented
}

// ObserveRun records the outcome of a run that started at start.
func (m *Metrics) ObserveRun(start time.Time, err error) {
	m.RunDuration.Set(time.Since(start).Seconds())
	if err != nil {
		m.LastRunSuccess.Set(0)
		return
	}
	m.LastRunSuccess.Set(1)
}

// Push sends every metric of the run to the Pushgateway at url under job.
func (m *Metrics) Push(ctx context.Context, url, job string, grouping map[string]string) error {
	pusher := push.New(url, job).Gatherer(m.Registry)
	for name, value := range grouping {
		pusher = pusher.Grouping(name, value)
	}
	return pusher.PushContext(ctx)
}

// Handler returns an HTTP handler exposing the run's registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
