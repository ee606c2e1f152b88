// Package scheduler runs Majordomo's periodic jobs: a fixed registry of
// built-in maintenance jobs and a dynamic set of user-authored tasks.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Job is one periodic unit of work. The registry owns the tick cadence;
// the job owns what a tick does.
type Job interface {
	// Tick runs one iteration. Errors are logged, never fatal.
	Tick(ctx context.Context) error
}

// JobFunc adapts a function to the Job interface.
type JobFunc func(ctx context.Context) error

// Tick implements Job.
func (f JobFunc) Tick(ctx context.Context) error { return f(ctx) }

// Metadata describes a registered job.
type Metadata struct {
	// Name is the human-readable job name.
	Name string
	// Description explains what the job does.
	Description string
	// DefaultInterval is the initial tick interval.
	DefaultInterval time.Duration
	// MinInterval is the floor enforced on interval updates. A rail
	// against configuration mistakes that could flood external APIs.
	MinInterval time.Duration
	// Enabled is the initial enabled state.
	Enabled bool
}

// Status reports one job's current configuration.
type Status struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Enabled     bool   `json:"enabled"`
	IntervalMs  int64  `json:"interval_ms"`
	MinMs       int64  `json:"min_interval_ms"`
}

// registration is one job plus its live settings.
type registration struct {
	id       string
	job      Job
	meta     Metadata
	enabled  bool
	interval time.Duration
}

// Registry holds the fixed catalog of long-lived periodic jobs. Register
// everything before StartAll; updates to enabled state and interval take
// effect on the next tick without a restart.
type Registry struct {
	mu      sync.RWMutex
	jobs    map[string]*registration
	started bool
	logf    func(format string, args ...interface{})
}

// NewRegistry creates an empty Registry. logf receives job errors and may
// be nil.
func NewRegistry(logf func(format string, args ...interface{})) *Registry {
	if logf == nil {
		logf = func(string, ...interface{}) {}
	}
	return &Registry{
		jobs: make(map[string]*registration),
		logf: logf,
	}
}

// Register adds a job to the catalog. Registering after StartAll or reusing
// an id is an error.
func (r *Registry) Register(id string, job Job, meta Metadata) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return fmt.Errorf("register %s: registry already started", id)
	}
	if _, exists := r.jobs[id]; exists {
		return fmt.Errorf("register %s: duplicate job id", id)
	}

	interval := meta.DefaultInterval
	if interval < meta.MinInterval {
		interval = meta.MinInterval
	}

	r.jobs[id] = &registration{
		id:       id,
		job:      job,
		meta:     meta,
		enabled:  meta.Enabled,
		interval: interval,
	}
	return nil
}

// StartAll launches one ticker loop per registered job. Loops stop when ctx
// is cancelled.
func (r *Registry) StartAll(ctx context.Context) {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return
	}
	r.started = true
	regs := make([]*registration, 0, len(r.jobs))
	for _, reg := range r.jobs {
		regs = append(regs, reg)
	}
	r.mu.Unlock()

	for _, reg := range regs {
		go r.runLoop(ctx, reg)
	}
}

// runLoop ticks one job. The interval is re-read each round so updates take
// effect without restarting the loop.
func (r *Registry) runLoop(ctx context.Context, reg *registration) {
	for {
		r.mu.RLock()
		interval := reg.interval
		r.mu.RUnlock()

		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}

		// Enablement is checked after the wait so a job disabled
		// mid-interval never fires a final tick.
		r.mu.RLock()
		enabled := reg.enabled
		r.mu.RUnlock()
		if !enabled {
			continue
		}
		if err := reg.job.Tick(ctx); err != nil {
			r.logf("[scheduler] job %s: %v", reg.id, err)
		}
	}
}

// List reports every registered job sorted by id.
func (r *Registry) List() []Status {
	r.mu.RLock()
	defer r.mu.RUnlock()

	statuses := make([]Status, 0, len(r.jobs))
	for _, reg := range r.jobs {
		statuses = append(statuses, r.statusLocked(reg))
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].ID < statuses[j].ID })
	return statuses
}

// Get reports one job's status.
func (r *Registry) Get(id string) (Status, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reg, exists := r.jobs[id]
	if !exists {
		return Status{}, fmt.Errorf("scheduler job %s not found", id)
	}
	return r.statusLocked(reg), nil
}

// Update applies new settings to a job. Nil fields are left unchanged. The
// interval is clamped to the job's declared minimum. The change takes
// effect on the next tick.
func (r *Registry) Update(id string, enabled *bool, intervalMs *int64) (Status, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg, exists := r.jobs[id]
	if !exists {
		return Status{}, fmt.Errorf("scheduler job %s not found", id)
	}

	if enabled != nil {
		reg.enabled = *enabled
	}
	if intervalMs != nil {
		interval := time.Duration(*intervalMs) * time.Millisecond
		if interval < reg.meta.MinInterval {
			interval = reg.meta.MinInterval
		}
		reg.interval = interval
	}
	return r.statusLocked(reg), nil
}

// statusLocked builds a Status snapshot. Caller must hold r.mu.
func (r *Registry) statusLocked(reg *registration) Status {
	return Status{
		ID:          reg.id,
		Name:        reg.meta.Name,
		Description: reg.meta.Description,
		Enabled:     reg.enabled,
		IntervalMs:  reg.interval.Milliseconds(),
		MinMs:       reg.meta.MinInterval.Milliseconds(),
	}
}
