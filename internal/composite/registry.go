package composite

import (
	"context"
	"sync"
	"time"

	"studio/internal/domain"
	"studio/internal/infra"
)

// Registry owns every composite job and enforces one active job per editing
// surface.
type Registry struct {
	deps      Deps
	logger    infra.Logger
	retention time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	jobs     map[string]*Job
	surfaces map[string]string
}

// NewRegistry creates a registry whose jobs live until Shutdown. Finished
// jobs are purged by the janitor after retention.
func NewRegistry(deps Deps, retention time.Duration) *Registry {
	ctx, cancel := context.WithCancel(context.Background())
	return &Registry{
		deps:      deps,
		logger:    infra.Component(deps.Logger, "composite_registry"),
		retention: retention,
		ctx:       ctx,
		cancel:    cancel,
		jobs:      make(map[string]*Job),
		surfaces:  make(map[string]string),
	}
}

// CreateMerge registers a merge in its review stage on surface.
func (r *Registry) CreateMerge(surface string, clips []domain.Clip, prompt string) (*Job, error) {
	job, err := NewMerge(r.deps, surface, clips, prompt)
	if err != nil {
		return nil, err
	}
	if err := r.claim(job); err != nil {
		return nil, err
	}
	return job, nil
}

// StartCaption registers a caption job and starts it immediately.
func (r *Registry) StartCaption(surface string, clip domain.Clip, caption domain.Caption, prompt string, index int) (*Job, error) {
	job, err := NewCaption(r.deps, surface, clip, caption, prompt, index)
	if err != nil {
		return nil, err
	}
	if err := r.claim(job); err != nil {
		return nil, err
	}
	if err := job.Start(r.ctx); err != nil {
		return nil, err
	}
	return job, nil
}

// claim binds job to its surface. An active job blocks the surface; an
// unstarted or finished one is replaced, and a replaced review-stage job is
// cancelled.
func (r *Registry) claim(job *Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prevID, ok := r.surfaces[job.Surface()]; ok {
		if prev, ok := r.jobs[prevID]; ok {
			if prev.Busy() {
				return domain.ErrJobActive
			}
			prev.Cancel()
		}
	}
	r.jobs[job.ID()] = job
	r.surfaces[job.Surface()] = job.ID()
	return nil
}

// Get looks a job up by id.
func (r *Registry) Get(id string) (*Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return job, nil
}

// Start begins processing a review-stage job.
func (r *Registry) Start(id string) (*Job, error) {
	job, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	if err := job.Start(r.ctx); err != nil {
		return nil, err
	}
	return job, nil
}

// Cancel interrupts a job. Finished jobs are left as they are.
func (r *Registry) Cancel(id string) (*Job, error) {
	job, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	job.Cancel()
	return job, nil
}

// Remove cancels a job, waits for it to stop, and deletes its artifact.
func (r *Registry) Remove(ctx context.Context, id string) error {
	job, err := r.Get(id)
	if err != nil {
		return err
	}
	job.Cancel()
	if err := job.Wait(ctx); err != nil {
		return err
	}
	r.forget(job)
	return nil
}

func (r *Registry) forget(job *Job) {
	r.mu.Lock()
	delete(r.jobs, job.ID())
	if r.surfaces[job.Surface()] == job.ID() {
		delete(r.surfaces, job.Surface())
	}
	r.mu.Unlock()

	if art := job.Snapshot().Artifact; art != nil {
		if err := r.deps.Store.Delete(art.StorageKey); err != nil {
			r.logger.Warn().Err(err).Str("job_id", job.ID()).Msg("delete artifact failed")
		}
	}
}

// Purge forgets terminal jobs last updated before now minus retention and
// deletes their artifacts. It returns the number of jobs purged.
func (r *Registry) Purge(now time.Time) int {
	cutoff := now.Add(-r.retention)

	r.mu.Lock()
	var stale []*Job
	for _, job := range r.jobs {
		snap := job.Snapshot()
		if snap.State.Terminal() && snap.UpdatedAt.Before(cutoff) {
			stale = append(stale, job)
		}
	}
	r.mu.Unlock()

	for _, job := range stale {
		r.forget(job)
	}
	return len(stale)
}

// RunJanitor purges on every tick until ctx ends.
func (r *Registry) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 || r.retention <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := r.Purge(now); n > 0 {
				r.logger.Info().Int("purged", n).Msg("janitor cleanup finished")
			}
		}
	}
}

// Shutdown cancels every job and waits for them to release their
// resources.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.cancel()

	r.mu.Lock()
	jobs := make([]*Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		jobs = append(jobs, job)
	}
	r.mu.Unlock()

	for _, job := range jobs {
		job.Cancel()
		if err := job.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}
