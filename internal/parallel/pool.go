// Package parallel provides the bounded-concurrency fetch infrastructure
// for the render scheduler.
//
// A WorkerPool runs page and tile fetches against the content provider
// without ever blocking the engine's scheduling path. A PageSet tracks
// pages with in-flight work using an atomic bitmap so the surface sweeper
// can protect pending pages without taking the pool's locks.
//
// Thread safety: both types are safe for concurrent use.
package parallel

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// WorkerPool is a pool of goroutines for concurrent content fetches.
//
// The pool distributes work items across multiple workers, each with their
// own queue. Workers steal from other workers when their own queue is
// empty, so one slow page fetch never convoys the rest of the queue.
//
// Thread safety: WorkerPool is safe for concurrent use.
type WorkerPool struct {
	// workers is the number of worker goroutines.
	workers int

	// workQueues holds per-worker work queues.
	workQueues []chan func()

	// done signals workers to stop.
	done chan struct{}

	// wg waits for all workers to finish.
	wg sync.WaitGroup

	// running indicates whether the pool is accepting work.
	running atomic.Bool
}

// NewWorkerPool creates a new worker pool with the specified number of
// workers. If workers is 0 or negative, GOMAXPROCS capped at 6 is used
// (fetches are I/O bound; a handful of slots keeps the provider busy
// without flooding it). The pool starts immediately.
func NewWorkerPool(workers int) *WorkerPool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
		if workers > 6 {
			workers = 6
		}
	}

	queueSize := workers * 4
	if queueSize < 8 {
		queueSize = 8
	}

	p := &WorkerPool{
		workers:    workers,
		workQueues: make([]chan func(), workers),
		done:       make(chan struct{}),
	}
	for i := range workers {
		p.workQueues[i] = make(chan func(), queueSize)
	}

	p.running.Store(true)
	p.wg.Add(workers)
	for i := range workers {
		go p.worker(i)
	}
	return p
}

// worker is the main loop for each worker goroutine.
func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()

	myQueue := p.workQueues[id]
	for {
		select {
		case <-p.done:
			p.drainQueue(myQueue)
			return

		case work := <-myQueue:
			if work != nil {
				work()
			}

		default:
			if stolen := p.steal(id); stolen != nil {
				stolen()
			} else {
				// No work available anywhere, block on own queue.
				select {
				case <-p.done:
					p.drainQueue(myQueue)
					return
				case work := <-myQueue:
					if work != nil {
						work()
					}
				}
			}
		}
	}
}

// drainQueue executes all remaining work in a queue.
func (p *WorkerPool) drainQueue(queue chan func()) {
	for {
		select {
		case work := <-queue:
			if work != nil {
				work()
			}
		default:
			return
		}
	}
}

// steal attempts to take work from another worker's queue.
// Returns nil if no work is available.
func (p *WorkerPool) steal(myID int) func() {
	for i := range p.workers {
		if i == myID {
			continue
		}
		select {
		case work := <-p.workQueues[i]:
			return work
		default:
		}
	}
	return nil
}

// Submit sends a single work item to the worker with the shortest queue.
// If the pool is closed, this is a no-op.
func (p *WorkerPool) Submit(fn func()) {
	if fn == nil || !p.running.Load() {
		return
	}

	minLen := len(p.workQueues[0])
	minIdx := 0
	for i := 1; i < p.workers; i++ {
		if qLen := len(p.workQueues[i]); qLen < minLen {
			minLen = qLen
			minIdx = i
		}
	}

	select {
	case p.workQueues[minIdx] <- fn:
	case <-p.done:
	}
}

// TrySubmit is Submit that drops the work item instead of blocking when
// every queue is full. Prefetch uses it: warming the cache is best-effort
// and must never stall interactive rendering.
// Returns false if the work was dropped.
func (p *WorkerPool) TrySubmit(fn func()) bool {
	if fn == nil || !p.running.Load() {
		return false
	}
	for i := range p.workers {
		select {
		case p.workQueues[i] <- fn:
			return true
		default:
		}
	}
	return false
}

// Close gracefully shuts down the pool. It stops accepting new work, waits
// for all queued work to complete, and then stops all workers.
// Close is safe to call multiple times.
func (p *WorkerPool) Close() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	close(p.done)
	p.wg.Wait()
}

// Workers returns the number of workers in the pool.
func (p *WorkerPool) Workers() int {
	return p.workers
}

// IsRunning returns true if the pool is still accepting work.
func (p *WorkerPool) IsRunning() bool {
	return p.running.Load()
}

// QueuedWork returns the total number of work items currently queued.
// This is an approximation as queues can change while iterating.
func (p *WorkerPool) QueuedWork() int {
	total := 0
	for _, q := range p.workQueues {
		total += len(q)
	}
	return total
}
