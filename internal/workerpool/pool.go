package workerpool

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

var (
	ErrPoolFull   = errors.New("job queue is full")
	ErrPoolClosed = errors.New("job queue is closed")
)

// Job is a unit of background work.
type Job struct {
	Name string
	Run  func(ctx context.Context) error
}

// Pool runs jobs in enqueue order on a single worker. Enqueue never blocks.
type Pool struct {
	mu     sync.RWMutex
	closed bool
	queue  chan Job

	onError func(job Job, err error)
	logger  *slog.Logger
}

func New(size int, onError func(job Job, err error), logger *slog.Logger) *Pool {
	if size <= 0 {
		size = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{
		queue:   make(chan Job, size),
		onError: onError,
		logger:  logger,
	}
}

func (p *Pool) Enqueue(job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPoolClosed
	}

	select {
	case p.queue <- job:
		return nil
	default:
		return ErrPoolFull
	}
}

// Run consumes jobs until the pool is closed and drained, or ctx is done.
func (p *Pool) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-p.queue:
			if !ok {
				return
			}
			p.run(ctx, job)
		}
	}
}

// Close stops accepting jobs. Queued jobs are still processed by Run.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return
	}
	p.closed = true
	close(p.queue)
}

func (p *Pool) Pending() int {
	return len(p.queue)
}

func (p *Pool) run(ctx context.Context, job Job) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err, ok := recovered.(error)
			if !ok {
				err = errors.New("job panicked")
			}
			p.logger.ErrorContext(ctx, "recovered panic while running job", slog.String("job", job.Name), slog.Any("panic", recovered))
			p.fail(job, err)
		}
	}()

	if err := job.Run(ctx); err != nil {
		p.fail(job, err)
	}
}

func (p *Pool) fail(job Job, err error) {
	if p.onError != nil {
		p.onError(job, err)
		return
	}
	p.logger.Error("job failed", slog.String("job", job.Name), slog.Any("error", err))
}
