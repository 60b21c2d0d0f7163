package body

import "sync"

// Pool is a bounded set of workers for blocking I/O. Bodies submit small
// read jobs here instead of blocking their caller; each job writes its
// result to a buffered channel, so an abandoned job never wedges a worker.
type Pool struct {
	work chan func()
	wg   sync.WaitGroup
	once sync.Once
}

// NewPool starts workers goroutines servicing a queue of 2*workers jobs.
// Submit blocks once every worker is busy and the queue is full, which
// bounds the number of outstanding blocking operations.
func NewPool(workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	p := &Pool{work: make(chan func(), 2*workers)}
	p.wg.Add(workers)
	for range workers {
		go func() {
			defer p.wg.Done()
			for f := range p.work {
				f()
			}
		}()
	}
	return p
}

// Submit enqueues f for execution on a worker.
func (p *Pool) Submit(f func()) {
	p.work <- f
}

// Close stops accepting work and waits for in-flight jobs to finish.
func (p *Pool) Close() {
	p.once.Do(func() { close(p.work) })
	p.wg.Wait()
}
