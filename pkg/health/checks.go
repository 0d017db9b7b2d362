package health

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/disk"

	"github.com/JailtonJunior94/observable-service/pkg/store"
)

const (
	CacheCheckName  = "cache"
	MemoryCheckName = "memory"
	DiskCheckName   = "disk"
)

// CacheCheck pings the shared store.
func CacheCheck(s store.Store, critical bool) Check {
	return Check{
		Name:     CacheCheckName,
		Critical: critical,
		Probe: func(ctx context.Context) error {
			return s.Ping(ctx)
		},
	}
}

// MemoryCheck fails when the heap in use exceeds limitMB. It never makes the
// service unhealthy: the orchestrator restarts on OOM anyway.
func MemoryCheck(limitMB int) Check {
	limit := uint64(limitMB) * 1024 * 1024
	return Check{
		Name: MemoryCheckName,
		Probe: func(context.Context) error {
			var mem runtime.MemStats
			runtime.ReadMemStats(&mem)
			if mem.HeapInuse > limit {
				return fmt.Errorf("heap in use %dMB above limit %dMB", mem.HeapInuse/(1024*1024), limitMB)
			}
			return nil
		},
	}
}

// DiskCheck fails when the filesystem holding path is fuller than
// limitPercent. Like MemoryCheck it only degrades the service.
func DiskCheck(path string, limitPercent float64) Check {
	return Check{
		Name: DiskCheckName,
		Probe: func(ctx context.Context) error {
			usage, err := disk.UsageWithContext(ctx, path)
			if err != nil {
				return fmt.Errorf("disk usage of %s: %w", path, err)
			}
			if usage.UsedPercent >= limitPercent {
				return fmt.Errorf("disk %s %.1f%% used, limit %.1f%%", path, usage.UsedPercent, limitPercent)
			}
			return nil
		},
	}
}

var ErrReservedCheck = errors.New("health: check name belongs to a built-in dependency")

// Fault is a simulated dependency failure set by an operator.
type Fault struct {
	Name     string    `json:"name"`
	Critical bool      `json:"critical"`
	Message  string    `json:"message"`
	Since    time.Time `json:"since"`
}

// FaultSet injects failing dependencies into an evaluator, so alerts and
// probes can be exercised without breaking a real dependency.
type FaultSet struct {
	mu        sync.Mutex
	faults    map[string]Fault
	evaluator *Evaluator
}

// NewFaultSet creates an empty fault set bound to evaluator.
func NewFaultSet(evaluator *Evaluator) *FaultSet {
	return &FaultSet{
		faults:    make(map[string]Fault),
		evaluator: evaluator,
	}
}

// Set forces the dependency name to fail until cleared.
func (f *FaultSet) Set(name string, critical bool, message string) (Fault, error) {
	if name == "" {
		return Fault{}, ErrInvalidCheck
	}
	if message == "" {
		message = "simulated failure"
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, owned := f.faults[name]; !owned && f.evaluator.Has(name) {
		return Fault{}, fmt.Errorf("%w: %s", ErrReservedCheck, name)
	}

	fault := Fault{Name: name, Critical: critical, Message: message, Since: time.Now().UTC()}
	err := f.evaluator.Register(Check{
		Name:     name,
		Critical: critical,
		Probe: func(context.Context) error {
			return errors.New(message)
		},
	})
	if err != nil {
		return Fault{}, err
	}

	f.faults[name] = fault
	return fault, nil
}

// Clear removes a fault and reports whether it was set.
func (f *FaultSet) Clear(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.faults[name]; !ok {
		return false
	}
	delete(f.faults, name)
	f.evaluator.Unregister(name)
	return true
}

// List returns the active faults sorted by name.
func (f *FaultSet) List() []Fault {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]Fault, 0, len(f.faults))
	for _, fault := range f.faults {
		out = append(out, fault)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
