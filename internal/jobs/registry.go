// Package jobs accepts generation requests, runs them on a bounded worker
// pool and records every job's progress in a JobRegistry.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"postgen/internal/domain"
)

// MemoryRegistry is a process-local JobRegistry. Records survive only as long
// as the process; use the Postgres registry when jobs must outlive restarts.
type MemoryRegistry struct {
	mu   sync.RWMutex
	jobs map[string]*domain.Job
	now  func() time.Time
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		jobs: make(map[string]*domain.Job),
		now:  time.Now,
	}
}

func (r *MemoryRegistry) Create(ctx context.Context, userID string, mode domain.GenerationMode) (*domain.Job, error) {
	now := r.now().UTC()
	job := &domain.Job{
		ID:        uuid.NewString(),
		UserID:    userID,
		Mode:      mode,
		Status:    domain.JobStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	r.mu.Lock()
	r.jobs[job.ID] = job
	r.mu.Unlock()

	return job.Clone(), nil
}

func (r *MemoryRegistry) Get(ctx context.Context, jobID string) (*domain.Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return job.Clone(), nil
}

func (r *MemoryRegistry) Transition(ctx context.Context, jobID string, next domain.JobStatus, outcome domain.Outcome) error {
	if next == domain.JobStatusCompleted && outcome.Result == nil {
		return fmt.Errorf("%w: job %s completed without a result", domain.ErrInternalConsistency, jobID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[jobID]
	if !ok {
		return domain.ErrNotFound
	}
	if !job.Status.CanTransition(next) {
		return fmt.Errorf("%w: job %s cannot move from %s to %s", domain.ErrInternalConsistency, jobID, job.Status, next)
	}

	job.Status = next
	job.UpdatedAt = r.now().UTC()
	if outcome.Result != nil {
		res := *outcome.Result
		job.Result = &res
	}
	if outcome.Error != "" {
		job.Error = outcome.Error
		job.ErrorCode = outcome.ErrorCode
	}
	return nil
}

// EvictTerminal drops completed and failed jobs last updated before the cutoff.
func (r *MemoryRegistry) EvictTerminal(ctx context.Context, before time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for id, job := range r.jobs {
		if job.Status.Terminal() && job.UpdatedAt.Before(before) {
			delete(r.jobs, id)
			n++
		}
	}
	return n, nil
}

// Len reports how many jobs are resident.
func (r *MemoryRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}

var (
	_ domain.JobRegistry = (*MemoryRegistry)(nil)
	_ domain.JobEvicter  = (*MemoryRegistry)(nil)
)
