package store

import (
	"context"
	"strings"
	"sync"
)

// Memory is a process-local Store.
type Memory struct {
	mu       sync.RWMutex
	counters map[string]int64
	samples  map[string]*sampleRing
	strings  map[string]string
	closed   bool
}

// NewMemory creates an empty in-process store.
func NewMemory() *Memory {
	return &Memory{
		counters: make(map[string]int64),
		samples:  make(map[string]*sampleRing),
		strings:  make(map[string]string),
	}
}

func (m *Memory) Name() string {
	return "in-memory"
}

func (m *Memory) Ping(context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}
	return nil
}

func (m *Memory) IncrBy(_ context.Context, key string, delta int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, ErrClosed
	}
	m.counters[key] += delta
	return m.counters[key], nil
}

func (m *Memory) Get(_ context.Context, key string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.counters[key]
	if !ok {
		return 0, ErrNotFound
	}
	return value, nil
}

func (m *Memory) Counters(_ context.Context, prefix string) (map[string]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string]int64)
	for key, value := range m.counters {
		if strings.HasPrefix(key, prefix) {
			result[key] = value
		}
	}
	return result, nil
}

func (m *Memory) PushSample(_ context.Context, key string, value float64, limit int) error {
	if limit <= 0 {
		limit = DefaultSampleLimit
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}

	ring, ok := m.samples[key]
	if !ok {
		ring = &sampleRing{}
		m.samples[key] = ring
	}
	ring.push(value, limit)
	return nil
}

func (m *Memory) Samples(_ context.Context, key string) ([]float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ring, ok := m.samples[key]
	if !ok {
		return []float64{}, nil
	}
	return ring.newest(), nil
}

func (m *Memory) SetNX(_ context.Context, key string, value string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false, ErrClosed
	}
	if _, ok := m.strings[key]; ok {
		return false, nil
	}
	m.strings[key] = value
	return true, nil
}

func (m *Memory) GetString(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.strings[key]
	if !ok {
		return "", ErrNotFound
	}
	return value, nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// sampleRing keeps the last len(buf) samples. next is the slot the following
// push writes to, so the newest sample sits just before it.
type sampleRing struct {
	buf  []float64
	next int
	size int
}

func (r *sampleRing) push(value float64, limit int) {
	if len(r.buf) != limit {
		r.resize(limit)
	}
	r.buf[r.next] = value
	r.next = (r.next + 1) % len(r.buf)
	if r.size < len(r.buf) {
		r.size++
	}
}

// newest returns a copy of the samples, newest first.
func (r *sampleRing) newest() []float64 {
	out := make([]float64, r.size)
	for i := range out {
		out[i] = r.buf[(r.next-1-i+len(r.buf))%len(r.buf)]
	}
	return out
}

func (r *sampleRing) resize(limit int) {
	kept := r.newest()
	if len(kept) > limit {
		kept = kept[:limit]
	}

	r.buf = make([]float64, limit)
	for i, v := range kept {
		r.buf[len(kept)-1-i] = v
	}
	r.size = len(kept)
	r.next = len(kept) % limit
}
