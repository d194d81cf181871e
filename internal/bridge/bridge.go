// Package bridge provides a single long-lived worker goroutine that
// synchronous callers submit work to and block on. The knowledge engine is
// not safe for concurrent use and its storage layers assume every operation
// runs on the same execution timeline, so all engine calls — construction,
// insert, query, finalize — are funneled through one Runner. Submitting
// through the Runner also gives callers mutual exclusion for free: two
// submissions never overlap, regardless of which goroutines they came from.
package bridge

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

// ErrTimeout is returned by SubmitAndWait when the wait deadline elapses
// before the submitted task completes. The task itself keeps running on the
// worker — no cancellation is requested.
var ErrTimeout = errors.New("bridge: wait deadline elapsed before task completed")

// ErrStopped is returned to waiters whose task was abandoned because the
// Runner was stopped before the task ran.
var ErrStopped = errors.New("bridge: runner stopped before task completed")

// Task is one unit of work executed on the Runner's worker goroutine.
type Task func(ctx context.Context) (any, error)

// outcome carries a completed task's result back to the waiting caller.
type outcome struct {
	value any
	err   error
}

// pending pairs a task with the channel its result is delivered on.
type pending struct {
	task Task
	done chan outcome
}

// Runner owns one worker goroutine and the queue feeding it. The zero value
// is ready to use; the worker is created lazily on first submission.
// Start, Stop, and SubmitAndWait are safe to call from multiple goroutines.
type Runner struct {
	mu      sync.Mutex
	tasks   chan *pending
	quit    chan struct{}
	running bool

	// generation counts worker creations over the Runner's lifetime.
	generation atomic.Uint64
}

// NewRunner constructs a Runner. The worker goroutine is not started until
// Start or the first SubmitAndWait.
func NewRunner() *Runner {
	return &Runner{}
}

// Start ensures the worker goroutine is running. Calling Start on an
// already-running Runner is a no-op, so concurrent callers racing the
// initial start still end up with exactly one worker.
func (r *Runner) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return
	}
	r.tasks = make(chan *pending, 16)
	r.quit = make(chan struct{})
	r.running = true
	r.generation.Add(1)
	go r.work(r.tasks, r.quit)
}

// Stop requests the worker to halt after its current task and drops the
// Runner's references to it. Tasks still queued are failed with ErrStopped.
// A subsequent Start (or SubmitAndWait) creates a brand-new worker.
func (r *Runner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return
	}
	close(r.quit)
	r.tasks = nil
	r.quit = nil
	r.running = false
}

// Generation returns how many times a worker has been created. Immediately
// after a set of concurrent Start calls on a fresh Runner this is exactly 1.
func (r *Runner) Generation() uint64 {
	return r.generation.Load()
}

// SubmitAndWait schedules task on the worker and blocks until it completes,
// the timeout elapses, or the Runner is stopped. A zero timeout means wait
// indefinitely. Errors returned by the task are handed back verbatim;
// a missed deadline yields ErrTimeout and the task continues to completion
// on the worker. The Runner is started if it is not already running.
func (r *Runner) SubmitAndWait(ctx context.Context, task Task, timeout time.Duration) (any, error) {
	r.Start()

	r.mu.Lock()
	tasks, quit := r.tasks, r.quit
	r.mu.Unlock()
	if tasks == nil {
		// A concurrent Stop won the race with our Start.
		return nil, ErrStopped
	}

	p := &pending{task: task, done: make(chan outcome, 1)}

	select {
	case tasks <- p:
	case <-quit:
		return nil, ErrStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var deadline <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		deadline = t.C
	}

	select {
	case out := <-p.done:
		return out.value, out.err
	case <-deadline:
		return nil, ErrTimeout
	case <-quit:
		// The worker may still deliver if it was mid-task; prefer the
		// result when it is already available.
		select {
		case out := <-p.done:
			return out.value, out.err
		default:
			return nil, ErrStopped
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// work is the worker loop. It runs tasks strictly one at a time until quit
// is closed, then fails any tasks left in the queue with ErrStopped.
func (r *Runner) work(tasks chan *pending, quit chan struct{}) {
	for {
		select {
		case p := <-tasks:
			v, err := p.task(context.Background())
			p.done <- outcome{value: v, err: err}
		case <-quit:
			for {
				select {
				case p := <-tasks:
					p.done <- outcome{err: ErrStopped}
				default:
					return
				}
			}
		}
	}
}
