package cron

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Job is one unit of scheduled work run by the cron worker.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Periodic jobs run at most once per Every. Jobs without it run every cycle.
type Periodic interface {
	Every() time.Duration
}

type entry struct {
	job     Job
	every   time.Duration
	lastRun time.Time
}

// Registry holds the jobs in registration order together with when each
// last ran, and decides which are due.
type Registry struct {
	mu      sync.Mutex
	entries []*entry
}

// NewRegistry registers jobs in order. Nil jobs are skipped; a repeated name
// is an error.
func NewRegistry(jobs ...Job) (*Registry, error) {
	r := &Registry{}
	for _, job := range jobs {
		if job == nil {
			continue
		}
		if err := r.Add(job); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Registry) Add(job Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.job.Name() == job.Name() {
			return fmt.Errorf("cron job %q registered twice", job.Name())
		}
	}
	e := &entry{job: job}
	if p, ok := job.(Periodic); ok {
		e.every = p.Every()
	}
	r.entries = append(r.entries, e)
	return nil
}

// Due returns the jobs that should run at now.
func (r *Registry) Due(now time.Time) []Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	var due []Job
	for _, e := range r.entries {
		if e.every <= 0 || e.lastRun.IsZero() || now.Sub(e.lastRun) >= e.every {
			due = append(due, e.job)
		}
	}
	return due
}

// MarkRan records that the named job started at.
func (r *Registry) MarkRan(name string, at time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.job.Name() == name {
			e.lastRun = at
			return
		}
	}
}

func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, len(r.entries))
	for i, e := range r.entries {
		names[i] = e.job.Name()
	}
	return names
}
