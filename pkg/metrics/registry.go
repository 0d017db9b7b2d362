// Package metrics is the metrics store of the service: a private Prometheus
// registry with a fixed catalogue of metrics, a window of recent latency
// samples and the text exposition served on /metrics.
//
// Only metrics declared in the catalogue can be written. Unknown names fail
// with ErrUnknownMetric and label sets that do not match the declaration fail
// with ErrLabelMismatch, so exposed series stay stable across restarts.
package metrics

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"slices"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
)

var (
	ErrUnknownMetric = errors.New("metrics: unknown metric")
	ErrLabelMismatch = errors.New("metrics: label set does not match definition")
	ErrWrongKind     = errors.New("metrics: operation not supported by metric kind")
	ErrNegativeDelta = errors.New("metrics: counters cannot decrease")
)

// Labels maps label names to values.
type Labels map[string]string

// Registry is safe for concurrent use by all request handlers.
type Registry struct {
	registry   *prometheus.Registry
	defs       map[string]Definition
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
	window     *SampleWindow
	startTime  time.Time
	workerID   string
	storage    string
}

type options struct {
	definitions       []Definition
	windowSize        int
	startTime         time.Time
	workerID          string
	storage           string
	runtimeCollectors bool
}

// Option configures a Registry.
type Option func(*options)

// WithDefinitions registers extra definitions next to the default catalogue.
func WithDefinitions(defs ...Definition) Option {
	return func(o *options) {
		o.definitions = append(o.definitions, defs...)
	}
}

// WithWindowSize sets how many latency samples are kept for averages.
func WithWindowSize(size int) Option {
	return func(o *options) {
		o.windowSize = size
	}
}

// WithStartTime overrides the process start time used for uptime.
func WithStartTime(t time.Time) Option {
	return func(o *options) {
		o.startTime = t
	}
}

// WithWorkerID sets the worker_id label of app_info. Defaults to the pid.
func WithWorkerID(id string) Option {
	return func(o *options) {
		o.workerID = id
	}
}

// WithStorage sets the storage label of app_info.
func WithStorage(name string) Option {
	return func(o *options) {
		o.storage = name
	}
}

// WithoutRuntimeCollectors skips the Go runtime and process collectors.
func WithoutRuntimeCollectors() Option {
	return func(o *options) {
		o.runtimeCollectors = false
	}
}

// New builds a Registry holding the default catalogue.
func New(opts ...Option) (*Registry, error) {
	o := options{
		windowSize:        DefaultWindowSize,
		startTime:         time.Now(),
		workerID:          strconv.Itoa(os.Getpid()),
		storage:           "in-memory",
		runtimeCollectors: true,
	}
	for _, opt := range opts {
		opt(&o)
	}

	r := &Registry{
		registry:   prometheus.NewRegistry(),
		defs:       make(map[string]Definition),
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
		window:     NewSampleWindow(o.windowSize),
		startTime:  o.startTime,
		workerID:   o.workerID,
		storage:    o.storage,
	}

	defs := append(append([]Definition{}, DefaultDefinitions...), o.definitions...)
	for _, def := range defs {
		if err := r.register(def); err != nil {
			return nil, err
		}
	}

	if err := r.registerBuiltins(o.runtimeCollectors); err != nil {
		return nil, err
	}

	return r, nil
}

func (r *Registry) register(def Definition) error {
	if _, exists := r.defs[def.Name]; exists {
		return fmt.Errorf("metrics: duplicate definition %q", def.Name)
	}

	var collector prometheus.Collector
	switch def.Kind {
	case KindCounter:
		vec := prometheus.NewCounterVec(prometheus.CounterOpts{Name: def.Name, Help: def.Help}, def.Labels)
		r.counters[def.Name] = vec
		collector = vec
	case KindGauge:
		vec := prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: def.Name, Help: def.Help}, def.Labels)
		r.gauges[def.Name] = vec
		collector = vec
	case KindHistogram:
		vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    def.Name,
			Help:    def.Help,
			Buckets: defaultBuckets(def),
		}, def.Labels)
		r.histograms[def.Name] = vec
		collector = vec
	default:
		return fmt.Errorf("metrics: %q has unsupported kind %d", def.Name, def.Kind)
	}

	if err := r.registry.Register(collector); err != nil {
		return fmt.Errorf("metrics: register %q: %w", def.Name, err)
	}

	r.defs[def.Name] = def
	return nil
}

func (r *Registry) registerBuiltins(runtimeCollectors bool) error {
	builtins := []prometheus.Collector{
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: UptimeSeconds,
			Help: "Application uptime in seconds",
		}, func() float64 {
			return time.Since(r.startTime).Seconds()
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: ResponseTimeAvg,
			Help: "Average response time of the most recent requests in milliseconds",
		}, func() float64 {
			return r.window.Average()
		}),
	}

	info := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: AppInfo,
		Help: "Application information",
	}, []string{"worker_id", "storage"})
	info.WithLabelValues(r.workerID, r.storage).Set(1)
	builtins = append(builtins, info)

	if runtimeCollectors {
		builtins = append(builtins,
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Name: CPUPercent,
				Help: "Host CPU usage percentage since the previous scrape",
			}, func() float64 {
				return cpuPercent(context.Background())
			}),
		)
	}

	for _, c := range builtins {
		if err := r.registry.Register(c); err != nil {
			return fmt.Errorf("metrics: register builtin collector: %w", err)
		}
	}
	return nil
}

// Increment adds one to a counter.
func (r *Registry) Increment(name string, labels Labels) error {
	return r.Add(name, labels, 1)
}

// Add adds delta to a counter. Negative deltas are rejected.
func (r *Registry) Add(name string, labels Labels, delta float64) error {
	if delta < 0 {
		return fmt.Errorf("%w: %s delta %v", ErrNegativeDelta, name, delta)
	}

	vec, err := r.counterVec(name)
	if err != nil {
		return err
	}

	counter, err := vec.GetMetricWith(prometheus.Labels(labels))
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrLabelMismatch, name, err)
	}

	counter.Add(delta)
	return nil
}

// Set sets a gauge to value.
func (r *Registry) Set(name string, labels Labels, value float64) error {
	gauge, err := r.gauge(name, labels)
	if err != nil {
		return err
	}
	gauge.Set(value)
	return nil
}

// AddGauge adds delta, which may be negative, to a gauge.
func (r *Registry) AddGauge(name string, labels Labels, delta float64) error {
	gauge, err := r.gauge(name, labels)
	if err != nil {
		return err
	}
	gauge.Add(delta)
	return nil
}

// Observe records value in a histogram. Request durations also feed the
// sample window, in milliseconds.
func (r *Registry) Observe(name string, labels Labels, value float64) error {
	def, ok := r.defs[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownMetric, name)
	}
	if def.Kind != KindHistogram {
		return fmt.Errorf("%w: observe on %s %s", ErrWrongKind, def.Kind, name)
	}

	observer, err := r.histograms[name].GetMetricWith(prometheus.Labels(labels))
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrLabelMismatch, name, err)
	}

	observer.Observe(value)
	if name == HTTPRequestDuration {
		r.window.Add(value * 1000)
	}
	return nil
}

// Value reads back a counter or gauge. For histograms it returns the sample count.
func (r *Registry) Value(name string, labels Labels) (float64, error) {
	def, ok := r.defs[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownMetric, name)
	}

	var (
		metric prometheus.Metric
		err    error
	)
	switch def.Kind {
	case KindCounter:
		metric, err = r.counters[name].GetMetricWith(prometheus.Labels(labels))
	case KindGauge:
		metric, err = r.gauges[name].GetMetricWith(prometheus.Labels(labels))
	case KindHistogram:
		var observer prometheus.Observer
		observer, err = r.histograms[name].GetMetricWith(prometheus.Labels(labels))
		if err == nil {
			metric = observer.(prometheus.Metric)
		}
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrLabelMismatch, name, err)
	}

	pb := &dto.Metric{}
	if err := metric.Write(pb); err != nil {
		return 0, fmt.Errorf("metrics: read %s: %w", name, err)
	}

	switch def.Kind {
	case KindCounter:
		return pb.GetCounter().GetValue(), nil
	case KindGauge:
		return pb.GetGauge().GetValue(), nil
	default:
		return float64(pb.GetHistogram().GetSampleCount()), nil
	}
}

// Sum adds up every series of a counter whose labels contain match.
func (r *Registry) Sum(name string, match Labels) (float64, error) {
	def, ok := r.defs[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownMetric, name)
	}
	if def.Kind != KindCounter {
		return 0, fmt.Errorf("%w: sum on %s %s", ErrWrongKind, def.Kind, name)
	}

	families, err := r.registry.Gather()
	if err != nil {
		return 0, fmt.Errorf("metrics: gather: %w", err)
	}

	var total float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if labelsMatch(m.GetLabel(), match) {
				total += m.GetCounter().GetValue()
			}
		}
	}
	return total, nil
}

// DeleteSeries drops every series of name whose labels contain match and
// returns how many were removed. Use it when the thing a series describes is
// gone, so a scrape stops reporting its last value.
func (r *Registry) DeleteSeries(name string, match Labels) (int, error) {
	def, ok := r.defs[name]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownMetric, name)
	}
	if len(match) == 0 {
		return 0, fmt.Errorf("%w: %s: empty match", ErrLabelMismatch, name)
	}
	for label := range match {
		if !slices.Contains(def.Labels, label) {
			return 0, fmt.Errorf("%w: %s has no label %q", ErrLabelMismatch, name, label)
		}
	}

	switch def.Kind {
	case KindCounter:
		return r.counters[name].DeletePartialMatch(prometheus.Labels(match)), nil
	case KindGauge:
		return r.gauges[name].DeletePartialMatch(prometheus.Labels(match)), nil
	default:
		return r.histograms[name].DeletePartialMatch(prometheus.Labels(match)), nil
	}
}

func labelsMatch(pairs []*dto.LabelPair, match Labels) bool {
	for name, want := range match {
		found := false
		for _, pair := range pairs {
			if pair.GetName() == name && pair.GetValue() == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Snapshot renders every registered metric in the Prometheus text format.
// Each series is read atomically; the snapshot as a whole is not a transaction.
func (r *Registry) Snapshot() ([]byte, error) {
	families, err := r.registry.Gather()
	if err != nil && len(families) == 0 {
		return nil, fmt.Errorf("metrics: gather: %w", err)
	}

	var buf bytes.Buffer
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(&buf, mf); err != nil {
			return nil, fmt.Errorf("metrics: encode %s: %w", mf.GetName(), err)
		}
	}
	return buf.Bytes(), nil
}

// Handler serves the registry in the exposition format negotiated with the scraper.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	})
}

// Gatherer exposes the underlying registry.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// Window returns the latency sample window.
func (r *Registry) Window() *SampleWindow {
	return r.window
}

// StartTime is the time uptime is measured from.
func (r *Registry) StartTime() time.Time {
	return r.startTime
}

// WorkerID identifies this process in app_info.
func (r *Registry) WorkerID() string {
	return r.workerID
}

// Definitions returns the registered catalogue.
func (r *Registry) Definitions() []Definition {
	out := make([]Definition, 0, len(r.defs))
	for _, def := range r.defs {
		out = append(out, def)
	}
	return out
}

func (r *Registry) counterVec(name string) (*prometheus.CounterVec, error) {
	def, ok := r.defs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMetric, name)
	}
	if def.Kind != KindCounter {
		return nil, fmt.Errorf("%w: increment on %s %s", ErrWrongKind, def.Kind, name)
	}
	return r.counters[name], nil
}

func (r *Registry) gauge(name string, labels Labels) (prometheus.Gauge, error) {
	def, ok := r.defs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMetric, name)
	}
	if def.Kind != KindGauge {
		return nil, fmt.Errorf("%w: set on %s %s", ErrWrongKind, def.Kind, name)
	}

	gauge, err := r.gauges[name].GetMetricWith(prometheus.Labels(labels))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrLabelMismatch, name, err)
	}
	return gauge, nil
}
