package report

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Job is one unit of work run by the pool
type Job func(ctx context.Context)

// WorkerPool runs jobs on a fixed number of goroutines
type WorkerPool struct {
	workers int
	jobs    chan Job
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
	mu      sync.Mutex
	logger  *slog.Logger
}

// NewWorkerPool creates a new worker pool. With one worker, jobs run in
// submission order.
func NewWorkerPool(workers int, logger *slog.Logger) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkerPool{
		workers: workers,
		jobs:    make(chan Job, workers*2),
		logger:  logger,
	}
}

// Start starts the worker pool
func (p *WorkerPool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		return
	}

	p.ctx, p.cancel = context.WithCancel(ctx)
	p.started = true

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()

	for {
		select {
		case <-p.ctx.Done():
			return
		case job, ok := <-p.jobs:
			if !ok {
				return
			}
			p.run(id, job)
		}
	}
}

// run executes one job. A panicking job is logged and the worker keeps going.
func (p *WorkerPool) run(id int, job Job) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("worker panic recovered",
				slog.Int("worker_id", id),
				slog.String("panic", fmt.Sprint(r)),
			)
		}
	}()
	job(p.ctx)
}

// Submit queues a job. It returns false when the pool's context is done.
func (p *WorkerPool) Submit(job Job) bool {
	select {
	case <-p.ctx.Done():
		return false
	case p.jobs <- job:
		return true
	}
}

// Stop closes the queue and waits for queued jobs to finish
func (p *WorkerPool) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	close(p.jobs)
	p.wg.Wait()

	if p.cancel != nil {
		p.cancel()
	}

	p.mu.Lock()
	p.started = false
	p.mu.Unlock()
}
