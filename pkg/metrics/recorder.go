package metrics

import (
	"context"
	"errors"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/JailtonJunior94/observable-service/pkg/observability"
	"github.com/JailtonJunior94/observable-service/pkg/store"
)

const defaultStoreTimeout = time.Second

// RequestRecord is the outcome of one served HTTP request.
type RequestRecord struct {
	Method   string
	Path     string
	Status   int
	Duration time.Duration
}

// Recorder writes request outcomes to the registry of this process and to the
// store shared by every replica.
type Recorder struct {
	registry     *Registry
	store        store.Store
	logger       observability.Logger
	storeTimeout time.Duration
	sampleLimit  int
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithStoreTimeout bounds each write to the shared store.
func WithStoreTimeout(d time.Duration) RecorderOption {
	return func(r *Recorder) {
		if d > 0 {
			r.storeTimeout = d
		}
	}
}

// WithSampleLimit sets how many latency samples the shared store keeps.
func WithSampleLimit(n int) RecorderOption {
	return func(r *Recorder) {
		if n > 0 {
			r.sampleLimit = n
		}
	}
}

// NewRecorder creates a Recorder. A nil store keeps everything local.
func NewRecorder(registry *Registry, s store.Store, logger observability.Logger, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		registry:     registry,
		store:        s,
		logger:       logger,
		storeTimeout: defaultStoreTimeout,
		sampleLimit:  store.DefaultSampleLimit,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Registry returns the registry written by the recorder.
func (r *Recorder) Registry() *Registry {
	return r.registry
}

// Store returns the shared store, nil when none is used.
func (r *Recorder) Store() store.Store {
	return r.store
}

// RecordRequest counts the request and its latency. Store failures are logged
// and counted but never returned, so a broken cache cannot fail a request.
func (r *Recorder) RecordRequest(ctx context.Context, rec RequestRecord) error {
	status := strconv.Itoa(rec.Status)
	labels := Labels{"method": rec.Method, "path": rec.Path, "status": status}

	if err := r.registry.Increment(HTTPRequestsTotal, labels); err != nil {
		return err
	}
	if rec.Status >= 400 {
		if err := r.registry.Increment(HTTPErrorsTotal, labels); err != nil {
			return err
		}
	}
	if err := r.registry.Observe(HTTPRequestDuration, Labels{"method": rec.Method, "path": rec.Path}, rec.Duration.Seconds()); err != nil {
		return err
	}

	if r.store != nil {
		r.recordShared(ctx, rec, status)
	}
	return nil
}

func (r *Recorder) recordShared(ctx context.Context, rec RequestRecord, status string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.storeTimeout)
	defer cancel()

	if _, err := r.store.IncrBy(ctx, store.KeyRequestsTotal, 1); err != nil {
		r.storeFailed(ctx, "incr", err)
		return
	}
	if _, err := r.store.IncrBy(ctx, store.KeyEndpointPrefix+rec.Method+" "+rec.Path, 1); err != nil {
		r.storeFailed(ctx, "incr", err)
	}
	if rec.Status >= 400 {
		if _, err := r.store.IncrBy(ctx, store.KeyErrorsTotal, 1); err != nil {
			r.storeFailed(ctx, "incr", err)
		}
		if _, err := r.store.IncrBy(ctx, store.KeyErrorsByStatus+status, 1); err != nil {
			r.storeFailed(ctx, "incr", err)
		}
	}

	ms := float64(rec.Duration) / float64(time.Millisecond)
	if err := r.store.PushSample(ctx, store.KeyResponseTimes, ms, r.sampleLimit); err != nil {
		r.storeFailed(ctx, "push_sample", err)
	}
}

func (r *Recorder) storeFailed(ctx context.Context, operation string, err error) {
	_ = r.registry.Increment(StoreErrorsTotal, Labels{"operation": operation})
	r.logger.Warn(ctx, "failed to record metrics in shared store",
		observability.String("storage", r.store.Name()),
		observability.String("operation", operation),
		observability.Error(err),
	)
}

// Summary is the JSON view of the service metrics.
type Summary struct {
	RequestsTotal   int64            `json:"requests_total"`
	ErrorsTotal     int64            `json:"errors_total"`
	ErrorsByStatus  map[string]int64 `json:"errors_by_status"`
	Uptime          float64          `json:"uptime"`
	ResponseTimeAvg float64          `json:"response_time_avg"`
	ResponseTimeP95 float64          `json:"response_time_p95"`
	MemoryUsageMB   float64          `json:"memory_usage_mb"`
	CPUPercent      float64          `json:"cpu_percent"`
	Goroutines      int              `json:"goroutines"`
	StorageType     string           `json:"storage_type"`
	WorkerID        string           `json:"worker_id"`
	EndpointMetrics map[string]int64 `json:"endpoint_metrics"`
}

// Summary builds the JSON view. Counters and latencies come from the shared
// store when it answers, otherwise from this process only.
func (r *Recorder) Summary(ctx context.Context) (Summary, error) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	summary := Summary{
		ErrorsByStatus:  map[string]int64{},
		EndpointMetrics: map[string]int64{},
		Uptime:          time.Since(r.registry.StartTime()).Seconds(),
		MemoryUsageMB:   float64(mem.HeapInuse) / (1024 * 1024),
		CPUPercent:      cpuPercent(ctx),
		Goroutines:      runtime.NumGoroutine(),
		StorageType:     "in-memory",
		WorkerID:        r.registry.WorkerID(),
	}

	if r.store != nil {
		summary.StorageType = r.store.Name()
		err := r.sharedSummary(ctx, &summary)
		if err == nil {
			return summary, nil
		}
		r.storeFailed(ctx, "summary", err)
	}

	return r.localSummary(summary)
}

func (r *Recorder) sharedSummary(ctx context.Context, summary *Summary) error {
	ctx, cancel := context.WithTimeout(ctx, r.storeTimeout)
	defer cancel()

	total, err := r.store.Get(ctx, store.KeyRequestsTotal)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	errorsTotal, err := r.store.Get(ctx, store.KeyErrorsTotal)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	byStatus, err := r.store.Counters(ctx, store.KeyErrorsByStatus)
	if err != nil {
		return err
	}
	endpoints, err := r.store.Counters(ctx, store.KeyEndpointPrefix)
	if err != nil {
		return err
	}
	samples, err := r.store.Samples(ctx, store.KeyResponseTimes)
	if err != nil {
		return err
	}

	summary.RequestsTotal = total
	summary.ErrorsTotal = errorsTotal
	for key, v := range byStatus {
		summary.ErrorsByStatus[strings.TrimPrefix(key, store.KeyErrorsByStatus)] = v
	}
	for key, v := range endpoints {
		summary.EndpointMetrics[strings.TrimPrefix(key, store.KeyEndpointPrefix)] = v
	}
	summary.ResponseTimeAvg = average(samples)
	summary.ResponseTimeP95 = percentile(samples, 95)

	if started, err := r.store.GetString(ctx, store.KeyStartTime); err == nil {
		if nanos, err := strconv.ParseInt(started, 10, 64); err == nil {
			summary.Uptime = time.Since(time.Unix(0, nanos)).Seconds()
		}
	}
	return nil
}

func (r *Recorder) localSummary(summary Summary) (Summary, error) {
	families, err := r.registry.Gatherer().Gather()
	if err != nil {
		return summary, err
	}

	for _, mf := range families {
		if mf.GetName() != HTTPRequestsTotal {
			continue
		}
		for _, m := range mf.GetMetric() {
			var method, path, status string
			for _, pair := range m.GetLabel() {
				switch pair.GetName() {
				case "method":
					method = pair.GetValue()
				case "path":
					path = pair.GetValue()
				case "status":
					status = pair.GetValue()
				}
			}

			count := int64(m.GetCounter().GetValue())
			summary.RequestsTotal += count
			summary.EndpointMetrics[method+" "+path] += count
			if code, err := strconv.Atoi(status); err == nil && code >= 400 {
				summary.ErrorsTotal += count
				summary.ErrorsByStatus[status] += count
			}
		}
	}

	window := r.registry.Window()
	summary.ResponseTimeAvg = window.Average()
	summary.ResponseTimeP95 = window.Percentile(95)
	return summary, nil
}

func average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}
