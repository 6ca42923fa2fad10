package statebox

import (
	"errors"
	"sync"

	"go.uber.org/zap"
)

type (
	// runner executes deferred work. With no workers every job gets its own
	// goroutine; otherwise jobs are queued to a fixed pool
	runner struct {
		logger *zap.Logger
		queue  chan func()
		wg     sync.WaitGroup
		mu     sync.RWMutex
		closed bool
	}
)

// ErrStoreClosed is returned for deferred work submitted after Close
var ErrStoreClosed = errors.New("store closed")

func newRunner(cfg Config, logger *zap.Logger) *runner {
	r := &runner{logger: logger}
	if cfg.Workers <= 0 {
		return r
	}

	size := cfg.QueueSize
	if size < 0 {
		size = 0
	}
	r.queue = make(chan func(), size)

	for i := 0; i < cfg.Workers; i++ {
		r.wg.Add(1)
		go r.worker(i)
	}
	return r
}

func (r *runner) worker(id int) {
	defer r.wg.Done()

	r.logger.Debug("Deferred worker started", zap.Int("worker_id", id))
	for job := range r.queue {
		job()
	}
	r.logger.Debug("Deferred worker stopped", zap.Int("worker_id", id))
}

// submit hands job to the pool. When the queue is full the job overflows
// onto its own goroutine, so deferred updates are never dropped and a job
// that dispatches more deferred work cannot wedge the pool
func (r *runner) submit(job func()) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return ErrStoreClosed
	}

	if r.queue != nil {
		select {
		case r.queue <- job:
			return nil
		default:
			r.logger.Debug("Deferred queue full, overflowing",
				zap.Int("queue_size", len(r.queue)),
			)
		}
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		job()
	}()
	return nil
}

// stop rejects new jobs, then waits for queued and running jobs to finish
func (r *runner) stop() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	if r.queue != nil {
		close(r.queue)
	}
	r.mu.Unlock()

	r.wg.Wait()
}
