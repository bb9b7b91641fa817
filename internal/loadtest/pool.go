package loadtest

import (
	"math"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

type job struct {
	index        int
	dispatchedAt time.Time
}

// workerPool is owned by a single run. submit never blocks: jobs wait in a
// queue that holds only the current backlog until a worker is free.
type workerPool struct {
	size int
	run  func(job) (Outcome, bool)

	mu       sync.Mutex
	ready    *sync.Cond
	queue    []job
	closed   bool
	outcomes []Outcome

	group errgroup.Group
}

// startPool launches size workers. run reports false for a job it skipped,
// which then contributes no outcome.
func startPool(size int, run func(job) (Outcome, bool)) *workerPool {
	p := &workerPool{size: size, run: run}
	p.ready = sync.NewCond(&p.mu)
	for range size {
		p.group.Go(func() error {
			for {
				j, ok := p.next()
				if !ok {
					return nil
				}
				if o, keep := p.run(j); keep {
					p.mu.Lock()
					p.outcomes = append(p.outcomes, o)
					p.mu.Unlock()
				}
			}
		})
	}
	return p
}

func (p *workerPool) submit(j job) {
	p.mu.Lock()
	p.queue = append(p.queue, j)
	p.mu.Unlock()
	p.ready.Signal()
}

// next blocks until a job is queued or the pool is closed and drained.
func (p *workerPool) next() (job, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for len(p.queue) == 0 && !p.closed {
		p.ready.Wait()
	}
	if len(p.queue) == 0 {
		return job{}, false
	}
	j := p.queue[0]
	p.queue[0] = job{}
	p.queue = p.queue[1:]
	if len(p.queue) == 0 {
		p.queue = nil
	}
	return j, true
}

// backlog is the number of submitted jobs no worker has picked up yet.
func (p *workerPool) backlog() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.queue)
}

// wait closes the queue, joins every worker and returns the outcomes in
// completion order. The pool cannot be reused afterwards.
func (p *workerPool) wait() []Outcome {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.ready.Broadcast()

	_ = p.group.Wait()
	return p.outcomes
}

// PoolSize is min(ceil(2*rate), cap), never below one.
func PoolSize(rate float64, concurrencyCap int) int {
	size := int(math.Ceil(2 * rate))
	if size > concurrencyCap {
		size = concurrencyCap
	}
	if size < 1 {
		size = 1
	}
	return size
}
