package roomview

import "sync"

// queue is an unbounded FIFO of jobs drained by a single worker. Pushing
// never blocks, so a slow view cannot stall the shared subscriber.
type queue struct {
	mu     sync.Mutex
	jobs   []func()
	closed bool
	wake   chan struct{}
	done   chan struct{}
}

func newQueue() *queue {
	return &queue{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

func (q *queue) push(job func()) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	q.jobs = append(q.jobs, job)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return true
}

// run drains jobs in order until the queue is closed.
func (q *queue) run() {
	defer close(q.done)
	for {
		q.mu.Lock()
		jobs := q.jobs
		q.jobs = nil
		closed := q.closed
		q.mu.Unlock()

		for _, job := range jobs {
			job()
		}
		if closed {
			return
		}
		if len(jobs) == 0 {
			<-q.wake
		}
	}
}

// close discards pending jobs and stops the worker after the current job.
func (q *queue) close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.jobs = nil
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
}
