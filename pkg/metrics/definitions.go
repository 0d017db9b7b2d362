package metrics

import "github.com/prometheus/client_golang/prometheus"

// Kind is the type of a metric.
type Kind int

const (
	KindCounter Kind = iota
	KindGauge
	KindHistogram
)

func (k Kind) String() string {
	switch k {
	case KindCounter:
		return "counter"
	case KindGauge:
		return "gauge"
	case KindHistogram:
		return "histogram"
	default:
		return "unknown"
	}
}

// Definition declares a metric. Names and label sets are part of the
// contract with dashboards and alerts and must not change between releases.
type Definition struct {
	Name    string
	Help    string
	Kind    Kind
	Labels  []string
	Buckets []float64
}

// Metric names exposed by the service.
const (
	HTTPRequestsTotal       = "http_requests_total"
	HTTPErrorsTotal         = "http_errors_total"
	HTTPRequestDuration     = "http_request_duration_seconds"
	HTTPRequestsInFlight    = "http_requests_in_flight"
	HealthCheckTotal        = "health_check_total"
	DependencyUp            = "dependency_up"
	DependencyCheckDuration = "dependency_check_duration_seconds"
	LoadSimCallsTotal       = "loadsim_calls_total"
	StoreErrorsTotal        = "store_errors_total"

	ResponseTimeAvg = "response_time_avg_ms"
	UptimeSeconds   = "uptime_seconds"
	AppInfo         = "app_info"
	CPUPercent      = "cpu_percent"
)

// DefaultDefinitions is the catalogue registered by New.
var DefaultDefinitions = []Definition{
	{
		Name:   HTTPRequestsTotal,
		Help:   "Total number of HTTP requests",
		Kind:   KindCounter,
		Labels: []string{"method", "path", "status"},
	},
	{
		Name:   HTTPErrorsTotal,
		Help:   "Total number of HTTP responses with status >= 400",
		Kind:   KindCounter,
		Labels: []string{"method", "path", "status"},
	},
	{
		Name:    HTTPRequestDuration,
		Help:    "HTTP request latency in seconds",
		Kind:    KindHistogram,
		Labels:  []string{"method", "path"},
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	},
	{
		Name: HTTPRequestsInFlight,
		Help: "Number of HTTP requests being served",
		Kind: KindGauge,
	},
	{
		Name:   HealthCheckTotal,
		Help:   "Total number of health evaluations by resulting status",
		Kind:   KindCounter,
		Labels: []string{"status"},
	},
	{
		Name:   DependencyUp,
		Help:   "Result of the last dependency check (1=ok, 0=failed)",
		Kind:   KindGauge,
		Labels: []string{"dependency", "critical"},
	},
	{
		Name:    DependencyCheckDuration,
		Help:    "Latency of dependency checks in seconds",
		Kind:    KindHistogram,
		Labels:  []string{"dependency"},
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2},
	},
	{
		Name:   LoadSimCallsTotal,
		Help:   "Total number of simulated calls by outcome",
		Kind:   KindCounter,
		Labels: []string{"outcome"},
	},
	{
		Name:   StoreErrorsTotal,
		Help:   "Total number of failed shared store operations",
		Kind:   KindCounter,
		Labels: []string{"operation"},
	},
}

func defaultBuckets(def Definition) []float64 {
	if len(def.Buckets) > 0 {
		return def.Buckets
	}
	return prometheus.DefBuckets
}
