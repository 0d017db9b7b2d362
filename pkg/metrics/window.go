package metrics

import (
	"math"
	"sort"
	"sync"
)

// DefaultWindowSize is the number of latency samples kept in memory.
const DefaultWindowSize = 1000

// SampleWindow keeps the most recent samples in a fixed-size ring.
type SampleWindow struct {
	mu      sync.Mutex
	samples []float64
	next    int
	full    bool
}

// NewSampleWindow creates a window holding up to size samples.
func NewSampleWindow(size int) *SampleWindow {
	if size <= 0 {
		size = DefaultWindowSize
	}
	return &SampleWindow{samples: make([]float64, size)}
}

// Add appends a sample, evicting the oldest once the window is full.
func (w *SampleWindow) Add(v float64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.samples[w.next] = v
	w.next++
	if w.next == len(w.samples) {
		w.next = 0
		w.full = true
	}
}

// Len returns the number of samples held.
func (w *SampleWindow) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.len()
}

func (w *SampleWindow) len() int {
	if w.full {
		return len(w.samples)
	}
	return w.next
}

// Values returns a copy of the samples, oldest first.
func (w *SampleWindow) Values() []float64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	n := w.len()
	out := make([]float64, 0, n)
	if w.full {
		out = append(out, w.samples[w.next:]...)
	}
	out = append(out, w.samples[:w.next]...)
	return out
}

// Average returns the mean of the samples, 0 when empty.
func (w *SampleWindow) Average() float64 {
	values := w.Values()
	if len(values) == 0 {
		return 0
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Percentile returns the nearest-rank percentile p in [0, 100], 0 when empty.
func (w *SampleWindow) Percentile(p float64) float64 {
	return percentile(w.Values(), p)
}

func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}

	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	switch {
	case p <= 0:
		return sorted[0]
	case p >= 100:
		return sorted[len(sorted)-1]
	}

	rank := int(math.Ceil(p / 100 * float64(len(sorted))))
	return sorted[rank-1]
}
