package jobs

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postgen/internal/domain"
)

func TestMemoryRegistryCreateIsPending(t *testing.T) {
	r := NewMemoryRegistry()
	job, err := r.Create(context.Background(), "u1", domain.ModeTopic)
	require.NoError(t, err)

	got, err := r.Get(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusPending, got.Status)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, domain.ModeTopic, got.Mode)
}

func TestMemoryRegistryGetUnknown(t *testing.T) {
	_, err := NewMemoryRegistry().Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMemoryRegistryTransitions(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRegistry()
	job, _ := r.Create(ctx, "u1", domain.ModeProfile)

	require.NoError(t, r.Transition(ctx, job.ID, domain.JobStatusRunning, domain.Outcome{}))
	require.NoError(t, r.Transition(ctx, job.ID, domain.JobStatusCompleted, domain.Outcome{
		Result: &domain.JobResult{PostID: "p1", Content: "hello"},
	}))

	err := r.Transition(ctx, job.ID, domain.JobStatusFailed, domain.Outcome{Error: "late"})
	assert.ErrorIs(t, err, domain.ErrInternalConsistency)

	err = r.Transition(ctx, job.ID, domain.JobStatusCompleted, domain.Outcome{Result: &domain.JobResult{}})
	assert.ErrorIs(t, err, domain.ErrInternalConsistency)

	got, _ := r.Get(ctx, job.ID)
	assert.Equal(t, domain.JobStatusCompleted, got.Status)
	assert.Equal(t, "hello", got.Result.Content)
	assert.Empty(t, got.Error)
}

func TestMemoryRegistryCompletedNeedsResult(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRegistry()
	job, _ := r.Create(ctx, "u1", domain.ModeProfile)

	err := r.Transition(ctx, job.ID, domain.JobStatusCompleted, domain.Outcome{})
	assert.ErrorIs(t, err, domain.ErrInternalConsistency)

	got, _ := r.Get(ctx, job.ID)
	assert.Equal(t, domain.JobStatusPending, got.Status)
}

func TestMemoryRegistryTransitionUnknown(t *testing.T) {
	err := NewMemoryRegistry().Transition(context.Background(), "nope", domain.JobStatusFailed, domain.Outcome{Error: "x"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMemoryRegistrySnapshotsAreCopies(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRegistry()
	job, _ := r.Create(ctx, "u1", domain.ModeProfile)
	job.Status = domain.JobStatusFailed

	got, _ := r.Get(ctx, job.ID)
	assert.Equal(t, domain.JobStatusPending, got.Status)
}

func TestMemoryRegistryConcurrentTerminalWrites(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRegistry()
	job, _ := r.Create(ctx, "u1", domain.ModeProfile)

	const writers = 32
	var wg sync.WaitGroup
	errs := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- r.Transition(ctx, job.ID, domain.JobStatusFailed, domain.Outcome{Error: "boom"})
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, domain.ErrInternalConsistency)
		}
	}
	assert.Equal(t, 1, succeeded, "exactly one terminal write")
}

func TestMemoryRegistryEvictTerminal(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryRegistry()
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return clock }

	done, _ := r.Create(ctx, "u", domain.ModeProfile)
	require.NoError(t, r.Transition(ctx, done.ID, domain.JobStatusFailed, domain.Outcome{Error: "x"}))
	pending, _ := r.Create(ctx, "u", domain.ModeProfile)

	n, err := r.EvictTerminal(ctx, clock.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = r.Get(ctx, done.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = r.Get(ctx, pending.ID)
	assert.NoError(t, err, "non-terminal jobs are never evicted")
}
