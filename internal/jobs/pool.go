package jobs

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"postgen/internal/domain"
)

var (
	ErrPoolClosed     = errors.New("job pool is closed")
	ErrPoolNotStarted = errors.New("job pool not started")
)

// Task is one unit of background work. ctx is the pool's base context.
type Task func(ctx context.Context)

// Pool runs tasks on a fixed set of workers fed by a bounded queue. Submit
// never blocks: a full queue is reported as domain.ErrPoolSaturated.
type Pool struct {
	tasks   chan Task
	wg      sync.WaitGroup
	mu      sync.Mutex
	started bool
	stopped bool
	workers int
	logger  zerolog.Logger
}

func NewPool(queueSize int, logger zerolog.Logger) *Pool {
	if queueSize <= 0 {
		queueSize = 1
	}
	return &Pool{
		tasks:  make(chan Task, queueSize),
		logger: logger.With().Str("component", "pool").Logger(),
	}
}

// Start launches workerCount workers that run tasks with ctx.
func (p *Pool) Start(ctx context.Context, workerCount int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return errors.New("pool already started")
	}
	if workerCount <= 0 {
		return errors.New("pool needs at least one worker")
	}

	for i := 0; i < workerCount; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			for task := range p.tasks {
				task(ctx)
			}
			p.logger.Debug().Int("worker", id).Msg("worker stopped")
		}(i)
	}

	p.workers = workerCount
	p.started = true
	return nil
}

// Submit enqueues task. The send happens under the lock so Stop can never
// close the queue underneath it.
func (p *Pool) Submit(task Task) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return ErrPoolNotStarted
	}
	if p.stopped {
		return ErrPoolClosed
	}

	select {
	case p.tasks <- task:
		return nil
	default:
		return domain.ErrPoolSaturated
	}
}

// Stop refuses new tasks, lets the workers drain what is already queued and
// waits for them to exit.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.started || p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.tasks)
	p.mu.Unlock()

	p.wg.Wait()
}

// QueueDepth reports how many tasks are waiting for a worker.
func (p *Pool) QueueDepth() int {
	return len(p.tasks)
}

func (p *Pool) WorkerCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.workers
}
