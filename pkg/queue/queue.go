package queue

import (
	"context"
	"sync"
)

// Config contains the configuration for the worker pool.
type Config struct {
	Workers   int // number of workers
	QueueSize int // size of the task buffer
}

// Pool is a bounded worker pool for independent tasks. Submission blocks
// while the buffer is full, which keeps a large key set from ballooning
// memory.
type Pool struct {
	cfg      Config
	tasks    chan func()
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewPool creates a pool and starts its workers.
func NewPool(cfg Config) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 8
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}

	p := &Pool{
		cfg:   cfg,
		tasks: make(chan func(), cfg.QueueSize),
		done:  make(chan struct{}),
	}

	p.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go p.worker()
	}
	return p
}

// Workers returns the configured pool width.
func (p *Pool) Workers() int { return p.cfg.Workers }

func (p *Pool) worker() {
	defer p.wg.Done()
	for {
		select {
		case task := <-p.tasks:
			task()
		case <-p.done:
			// Drain buffered tasks before exiting.
			for {
				select {
				case task := <-p.tasks:
					task()
				default:
					return
				}
			}
		}
	}
}

// Submit enqueues a task, blocking while the buffer is full. It returns
// false if the pool is stopped or ctx ends before the task is accepted;
// the task has not been scheduled in that case.
func (p *Pool) Submit(ctx context.Context, task func()) bool {
	select {
	case <-p.done:
		return false
	default:
	}

	select {
	case p.tasks <- task:
		return true
	case <-p.done:
		return false
	case <-ctx.Done():
		return false
	}
}

// Stop signals the workers and joins them. Buffered tasks are drained.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		close(p.done)
	})
	p.wg.Wait()
}
