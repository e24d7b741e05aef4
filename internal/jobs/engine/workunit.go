package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/cuongbtq/job-dispatcher/internal/jobs/domain"
)

// WorkUnit is the pluggable body of a job. Implementations must return
// promptly once ctx is done.
type WorkUnit interface {
	Execute(ctx context.Context, job domain.Job) error
}

// WorkUnitFunc adapts a function to WorkUnit.
type WorkUnitFunc func(ctx context.Context, job domain.Job) error

func (f WorkUnitFunc) Execute(ctx context.Context, job domain.Job) error {
	return f(ctx, job)
}

// DelayWorkUnit simulates processing by waiting Duration.
type DelayWorkUnit struct {
	Duration time.Duration
}

func (d DelayWorkUnit) Execute(ctx context.Context, _ domain.Job) error {
	timer := time.NewTimer(d.Duration)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("job execution canceled: %w", ctx.Err())
	}
}

// Registry maps task names to work units, falling back to a default.
type Registry struct {
	mu       sync.RWMutex
	units    map[string]WorkUnit
	fallback WorkUnit
}

// NewRegistry returns a registry that resolves unknown task names to fallback.
func NewRegistry(fallback WorkUnit) *Registry {
	return &Registry{
		units:    make(map[string]WorkUnit),
		fallback: fallback,
	}
}

// Register binds taskName to unit. Registering the same name twice panics.
func (r *Registry) Register(taskName string, unit WorkUnit) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.units[taskName]; exists {
		panic(fmt.Sprintf("work unit already registered for task %q", taskName))
	}
	r.units[taskName] = unit
}

// Resolve returns the unit for taskName, or the fallback.
func (r *Registry) Resolve(taskName string) WorkUnit {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if unit, ok := r.units[taskName]; ok {
		return unit
	}
	return r.fallback
}

// Names lists the registered task names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.units))
	for name := range r.units {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
