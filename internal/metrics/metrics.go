// Package metrics holds the Prometheus collectors exposed by the gate on
// its metrics server.
package metrics

import (
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Label values for the status lookup counter.
const (
	LookupHit   = "hit"
	LookupMiss  = "miss"
	LookupError = "error"
)

// Label values for the admin check counter.
const (
	AdminGranted = "granted"
	AdminDenied  = "denied"
	AdminError   = "error"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	namespace string

	// Application metrics
	AppInfo             *prometheus.GaugeVec
	AppUptimeSeconds    prometheus.Counter
	AppStartTimeSeconds prometheus.Gauge
	AppGoGoroutines     prometheus.Gauge

	// HTTP metrics
	HTTPRequestsTotal          *prometheus.CounterVec
	HTTPRequestDurationSeconds *prometheus.HistogramVec
	HTTPResponseSizeBytes      *prometheus.HistogramVec
	HTTPRequestsInFlight       *prometheus.GaugeVec

	// Health check metrics
	HealthCheckStatus               *prometheus.GaugeVec
	HealthCheckDurationSeconds      *prometheus.HistogramVec
	HealthCheckLastSuccessTimestamp *prometheus.GaugeVec
	HealthCheckFailuresTotal        *prometheus.CounterVec

	// Maintenance metrics
	MaintenanceActive    prometheus.Gauge
	StatusLookupsTotal   *prometheus.CounterVec
	StatusWritesTotal    *prometheus.CounterVec
	AdminChecksTotal     *prometheus.CounterVec
	GateDecisionsTotal   *prometheus.CounterVec
	EventsPublishedTotal *prometheus.CounterVec
	PruneRunsTotal       *prometheus.CounterVec
	PrunedRecordsTotal   prometheus.Counter
	CacheClusterMembers  prometheus.Gauge
	StoreDurationSeconds *prometheus.HistogramVec

	registry *prometheus.Registry
}

// NewMetrics creates a new Metrics instance on a private registry.
func NewMetrics(namespace string, buildInfo map[string]string) *Metrics {
	m := &Metrics{
		namespace: namespace,
		registry:  prometheus.NewRegistry(),
	}

	m.AppInfo = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "app_info",
		Help:      "Application build information",
	}, []string{"version", "commit", "build_date", "go_version"})

	m.AppUptimeSeconds = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "app_uptime_seconds",
		Help:      "Application uptime in seconds",
	})

	m.AppStartTimeSeconds = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "app_start_time_seconds",
		Help:      "Unix timestamp of service start",
	})

	m.AppGoGoroutines = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "app_go_goroutines",
		Help:      "Number of goroutines",
	})

	m.HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	m.HTTPRequestDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"method", "path", "status"})

	m.HTTPResponseSizeBytes = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_response_size_bytes",
		Help:      "HTTP response size in bytes",
		Buckets:   prometheus.ExponentialBuckets(100, 10, 7),
	}, []string{"method", "path"})

	m.HTTPRequestsInFlight = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "http_requests_in_flight",
		Help:      "Current number of HTTP requests being processed",
	}, []string{"method", "path"})

	m.HealthCheckStatus = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "health_check_status",
		Help:      "Health check status (1 for healthy, 0 for unhealthy)",
	}, []string{"check_name", "status"})

	m.HealthCheckDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "health_check_duration_seconds",
		Help:      "Health check duration in seconds",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"check_name"})

	m.HealthCheckLastSuccessTimestamp = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "health_check_last_success_timestamp",
		Help:      "Unix timestamp of last successful health check",
	}, []string{"check_name"})

	m.HealthCheckFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "health_check_failures_total",
		Help:      "Total number of health check failures",
	}, []string{"check_name"})

	m.MaintenanceActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "maintenance_active",
		Help:      "Last observed maintenance flag (1 when active)",
	})

	m.StatusLookupsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "status_lookups_total",
		Help:      "Maintenance status lookups by cache result",
	}, []string{"result"})

	m.StatusWritesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "status_writes_total",
		Help:      "Maintenance status writes by requested state and outcome",
	}, []string{"active", "status"})

	m.AdminChecksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "admin_checks_total",
		Help:      "Administrator session checks by result",
	}, []string{"result"})

	m.GateDecisionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "gate_decisions_total",
		Help:      "Request gate decisions",
	}, []string{"decision"})

	m.EventsPublishedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_published_total",
		Help:      "Status change events published by outcome",
	}, []string{"status"})

	m.PruneRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "prune_runs_total",
		Help:      "Maintenance history prune runs by outcome",
	}, []string{"status"})

	m.PrunedRecordsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "pruned_records_total",
		Help:      "Maintenance history records removed by pruning",
	})

	m.CacheClusterMembers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "cache_cluster_members",
		Help:      "Members of the shared status cache cluster",
	})

	m.StoreDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "store_operation_duration_seconds",
		Help:      "Maintenance store operation duration in seconds",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	}, []string{"operation"})

	m.register()

	m.AppInfo.WithLabelValues(
		buildInfo["version"],
		buildInfo["commit"],
		buildInfo["date"],
		runtime.Version(),
	).Set(1)

	m.AppStartTimeSeconds.Set(float64(time.Now().Unix()))

	return m
}

// register registers all metrics with the registry.
func (m *Metrics) register() {
	m.registry.MustRegister(
		m.AppInfo,
		m.AppUptimeSeconds,
		m.AppStartTimeSeconds,
		m.AppGoGoroutines,
		m.HTTPRequestsTotal,
		m.HTTPRequestDurationSeconds,
		m.HTTPResponseSizeBytes,
		m.HTTPRequestsInFlight,
		m.HealthCheckStatus,
		m.HealthCheckDurationSeconds,
		m.HealthCheckLastSuccessTimestamp,
		m.HealthCheckFailuresTotal,
		m.MaintenanceActive,
		m.StatusLookupsTotal,
		m.StatusWritesTotal,
		m.AdminChecksTotal,
		m.GateDecisionsTotal,
		m.EventsPublishedTotal,
		m.PruneRunsTotal,
		m.PrunedRecordsTotal,
		m.CacheClusterMembers,
		m.StoreDurationSeconds,
	)

	m.registry.MustRegister(prometheus.NewGoCollector())
	m.registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
}

// Registry returns the Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// UpdateRuntimeMetrics updates the goroutine gauge.
func (m *Metrics) UpdateRuntimeMetrics() {
	m.AppGoGoroutines.Set(float64(runtime.NumGoroutine()))
}

// ObserveStatus records a status lookup result and the flag it produced.
func (m *Metrics) ObserveStatus(result string, active bool) {
	m.StatusLookupsTotal.WithLabelValues(result).Inc()
	if active {
		m.MaintenanceActive.Set(1)
	} else {
		m.MaintenanceActive.Set(0)
	}
}

// ObserveWrite records the outcome of a maintenance status write.
func (m *Metrics) ObserveWrite(active bool, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.StatusWritesTotal.WithLabelValues(strconv.FormatBool(active), status).Inc()
}

// ObserveStore records how long a store operation took.
func (m *Metrics) ObserveStore(operation string, start time.Time) {
	m.StoreDurationSeconds.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
