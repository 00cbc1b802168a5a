// Package work provides the two executor classes the pipeline is built
// on: an IO pool (oversubscribed, tasks block on the network) and a CPU
// pool (sized to cores, tasks are independent and side-effect-free).
// Stages receive a pool instead of constructing their own concurrency.
package work

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/infblueocean/newsriver/internal/logging"
)

// Pool is a bounded concurrency limiter with run statistics.
type Pool struct {
	name string
	size int

	totalRun    int64
	totalPanics int64
}

// NewPool creates a pool with the specified concurrency.
// If size <= 0, uses runtime.NumCPU().
func NewPool(name string, size int) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	return &Pool{name: name, size: size}
}

// NewIO creates the network-bound pool. Oversubscription past the core
// count is intended: tasks spend their time blocked on sockets.
func NewIO(size int) *Pool {
	if size <= 0 {
		size = runtime.NumCPU() * 5
	}
	return NewPool("io", size)
}

// NewCPU creates the compute-bound pool, sized to available cores.
func NewCPU(size int) *Pool {
	return NewPool("cpu", size)
}

// Size returns the pool's concurrency bound.
func (p *Pool) Size() int {
	return p.size
}

// Stats returns run counters for reporting.
func (p *Pool) Stats() (run, panics int64) {
	return atomic.LoadInt64(&p.totalRun), atomic.LoadInt64(&p.totalPanics)
}

// run executes fn with panic recovery. A panicking task is outwardly
// indistinguishable from one that produced nothing: its result slot
// keeps the zero value and FilterMap drops it.
func (p *Pool) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			atomic.AddInt64(&p.totalPanics, 1)
			logging.Error("Work task panicked", "pool", p.name, "panic", r)
		}
	}()
	atomic.AddInt64(&p.totalRun, 1)
	fn()
}

// Map fans items out across the pool and writes each result into the
// slot matching its input index, so output order always equals input
// order regardless of completion order. Downstream order-sensitive
// passes (dedup, variety scoring) depend on this. A panicking task
// leaves the zero value in its slot.
func Map[T, R any](p *Pool, items []T, fn func(T) R) []R {
	if len(items) == 0 {
		return nil
	}

	sem := make(chan struct{}, p.size)
	out := make([]R, len(items))
	var wg sync.WaitGroup

	for i, item := range items {
		wg.Add(1)
		go func(i int, it T) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			p.run(func() {
				out[i] = fn(it)
			})
		}(i, item)
	}

	wg.Wait()
	return out
}

// FilterMap is Map for stages whose tasks can discard their item: nil
// results (including the slots of panicked tasks) are dropped during
// fan-in, with the survivors keeping their relative input order.
func FilterMap[T, R any](p *Pool, items []T, fn func(T) *R) []*R {
	collected := Map(p, items, fn)
	out := make([]*R, 0, len(collected))
	for _, r := range collected {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}
