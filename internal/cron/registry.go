package cron

import "context"

// Job is one unit of sweep work, run under the shared lock each cycle. The
// stale-payment reconcile is the only job today; the registry exists so
// future sweeps (expiring idempotency markers, ledger audits) slot in
// without touching the scheduler.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry holds the sweep jobs in execution order.
type Registry struct {
	jobs []Job
}

// NewRegistry builds a registry preloaded with the provided jobs; nil
// entries are skipped.
func NewRegistry(jobs ...Job) *Registry {
	registry := &Registry{}
	for _, job := range jobs {
		if job == nil {
			continue
		}
		registry.jobs = append(registry.jobs, job)
	}
	return registry
}

// Register appends a job to the cycle.
func (r *Registry) Register(job Job) {
	if job == nil {
		return
	}
	r.jobs = append(r.jobs, job)
}

// Jobs returns the jobs in the order each cycle runs them.
func (r *Registry) Jobs() []Job {
	jobs := make([]Job, len(r.jobs))
	copy(jobs, r.jobs)
	return jobs
}
