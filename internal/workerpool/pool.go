package workerpool

import (
	"log/slog"
	"sync"
)

// Task is one unit of work executed by the pool.
type Task func()

// Pool runs tasks on a fixed number of workers with a bounded queue, so a
// burst of eligible rules never grows into unbounded concurrent external
// calls. Submission is non-blocking: when the queue is full the task is
// rejected and the caller decides what to do with it.
type Pool struct {
	logger *slog.Logger
	tasks  chan Task
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// New creates a pool and starts its workers.
func New(workers, queueSize int, logger *slog.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}

	p := &Pool{
		logger: logger,
		tasks:  make(chan Task, queueSize),
	}

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	return p
}

// TrySubmit enqueues a task without blocking. Returns false when the pool is
// stopped or the queue is full.
func (p *Pool) TrySubmit(task Task) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return false
	}

	select {
	case p.tasks <- task:
		return true
	default:
		return false
	}
}

// QueueDepth reports the number of tasks waiting for a worker.
func (p *Pool) QueueDepth() int {
	return len(p.tasks)
}

// Stop rejects further submissions and waits for queued tasks to drain.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()

	p.wg.Wait()
}

func (p *Pool) worker(id int) {
	defer p.wg.Done()

	for task := range p.tasks {
		p.run(id, task)
	}
}

// run executes one task, converting a panic into a logged failure so a
// misbehaving invocation cannot take the worker down.
func (p *Pool) run(id int, task Task) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("worker task panicked", "worker", id, "panic", r)
		}
	}()

	task()
}
