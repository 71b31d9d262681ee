package jobs

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"
)

// ErrPoolStopped is recorded on jobs that never started before Stop.
var ErrPoolStopped = errors.New("worker pool stopped before the job started")

// Pool runs jobs in the background with at most size of them executing at
// once. Submissions never block; a job waits in queued status for a slot.
type Pool struct {
	manager *Manager
	logger  *slog.Logger
	sem     *semaphore.Weighted
	size    int

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	stopped bool
}

func NewPool(manager *Manager, size int, logger *slog.Logger) *Pool {
	if size <= 0 {
		size = 4
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		manager: manager,
		logger:  logger,
		sem:     semaphore.NewWeighted(int64(size)),
		size:    size,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Go schedules work for job id and returns immediately. After Stop the job
// is failed without running.
func (p *Pool) Go(id string, work Work) {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		p.abandon(id)
		return
	}
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()

		if err := p.sem.Acquire(p.ctx, 1); err != nil {
			p.abandon(id)
			return
		}
		defer p.sem.Release(1)

		if p.ctx.Err() != nil {
			p.abandon(id)
			return
		}
		p.manager.Run(p.ctx, id, work)
	}()
}

func (p *Pool) abandon(id string) {
	p.logger.Info("pool stopping, job not started", "job_id", id)
	p.manager.SetStatus(id, StatusError,
		WithError(ErrorKindException, ErrPoolStopped.Error()),
		WithCompletedAt(p.manager.now()))
}

// Size is the maximum number of concurrently executing jobs.
func (p *Pool) Size() int { return p.size }

// Stop cancels outstanding work and waits for every goroutine to return.
func (p *Pool) Stop() {
	p.mu.Lock()
	p.stopped = true
	p.mu.Unlock()

	p.cancel()
	p.wg.Wait()
}
