package usecase

import (
	"errors"
	"sort"
	"sync"

	"github.com/docstream/ocrkit/internal/core/domain"
	"github.com/docstream/ocrkit/internal/core/ports"
)

// Registry holds the configured providers for one orchestrator. It is an
// explicit object rather than a package-level table so several independently
// configured orchestrators can coexist in a process.
type Registry struct {
	mu          sync.RWMutex
	providers   map[string]ports.Provider
	descriptors map[string]domain.Descriptor
	order       []string
	stats       map[string]*perfAccumulator
}

type perfAccumulator struct {
	totalRequests      int64
	successfulRequests int64
	failedRequests     int64
	totalDuration      float64
}

func NewRegistry() *Registry {
	return &Registry{
		providers:   make(map[string]ports.Provider),
		descriptors: make(map[string]domain.Descriptor),
		stats:       make(map[string]*perfAccumulator),
	}
}

// Register adds a provider under its own name. Re-registering a name replaces
// the provider and descriptor but keeps the original registration position,
// so tie-breaks stay deterministic.
func (r *Registry) Register(p ports.Provider, priority int, costPerRequest float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := p.Name()
	if _, exists := r.providers[name]; !exists {
		r.order = append(r.order, name)
	}
	r.providers[name] = p
	r.descriptors[name] = domain.Descriptor{
		Name:           name,
		Kind:           p.Kind(),
		Priority:       priority,
		CostPerRequest: costPerRequest,
	}
}

func (r *Registry) Provider(name string) (ports.Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	return p, ok
}

// FallbackOrder lists provider names sorted by ascending priority, then by
// registration order.
func (r *Registry) FallbackOrder() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := append([]string(nil), r.order...)
	position := make(map[string]int, len(names))
	for i, name := range r.order {
		position[name] = i
	}
	sort.SliceStable(names, func(i, j int) bool {
		pi, pj := r.descriptors[names[i]].Priority, r.descriptors[names[j]].Priority
		if pi != pj {
			return pi < pj
		}
		return position[names[i]] < position[names[j]]
	})
	return names
}

// Descriptors reports every registered provider in fallback order with a
// fresh availability check.
func (r *Registry) Descriptors() []domain.Descriptor {
	names := r.FallbackOrder()

	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Descriptor, 0, len(names))
	for _, name := range names {
		d := r.descriptors[name]
		d.Available = r.providers[name].IsAvailable()
		out = append(out, d)
	}
	return out
}

func (r *Registry) descriptor(name string) domain.Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.descriptors[name]
}

// RecordAttempt folds one completed provider call into the in-process
// performance stats. Average duration is over successful requests only.
func (r *Registry) RecordAttempt(name string, success bool, durationSeconds float64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	acc, ok := r.stats[name]
	if !ok {
		acc = &perfAccumulator{}
		r.stats[name] = acc
	}
	acc.totalRequests++
	if success {
		acc.successfulRequests++
		acc.totalDuration += durationSeconds
	} else {
		acc.failedRequests++
	}
}

func (r *Registry) PerformanceStats(name string) domain.PerformanceStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stats[name].snapshot()
}

func (r *Registry) AllPerformanceStats() map[string]domain.PerformanceStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]domain.PerformanceStats, len(r.stats))
	for name, acc := range r.stats {
		out[name] = acc.snapshot()
	}
	return out
}

func (acc *perfAccumulator) snapshot() domain.PerformanceStats {
	if acc == nil {
		return domain.PerformanceStats{}
	}
	stats := domain.PerformanceStats{
		TotalRequests:      acc.totalRequests,
		SuccessfulRequests: acc.successfulRequests,
		FailedRequests:     acc.failedRequests,
	}
	if acc.successfulRequests > 0 {
		stats.AverageDurationSeconds = acc.totalDuration / float64(acc.successfulRequests)
	}
	return stats
}

// Cleanup releases every provider's resources, collecting failures instead of
// stopping at the first one.
func (r *Registry) Cleanup() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var errs []error
	for _, name := range r.order {
		if err := r.providers[name].Cleanup(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
