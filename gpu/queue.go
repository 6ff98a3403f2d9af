package gpu

import (
	"context"
	"sync"
)

// Queue executes submitted commands against a device strictly in
// submission order on its own goroutine, so the submitting thread never
// waits for device work.
type Queue struct {
	dev  GPUCompute
	cmds chan func()

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewQueue starts a command queue in front of dev.
func NewQueue(dev GPUCompute, depth int) *Queue {
	if depth <= 0 {
		depth = 16
	}
	q := &Queue{dev: dev, cmds: make(chan func(), depth)}
	q.wg.Add(1)
	go q.run()
	return q
}

func (q *Queue) run() {
	defer q.wg.Done()
	for cmd := range q.cmds {
		cmd()
	}
}

// Close stops accepting commands and waits for queued ones to finish.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.cmds)
	q.mu.Unlock()
	q.wg.Wait()
}

func (q *Queue) enqueue(cmd func()) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return false
	}
	q.cmds <- cmd
	return true
}

// Submit enqueues fn and returns a future for its result.
func Submit[T any](q *Queue, fn func(dev GPUCompute) (T, error)) *Future[T] {
	f := newFuture[T]()
	ok := q.enqueue(func() {
		v, err := fn(q.dev)
		f.resolve(v, err)
	})
	if !ok {
		var zero T
		f.resolve(zero, ErrDeviceLost)
	}
	return f
}

// Then enqueues fn as a continuation of prev. If prev failed, fn is skipped
// and the error propagates.
func Then[T, U any](q *Queue, prev *Future[T], fn func(dev GPUCompute, v T) (U, error)) *Future[U] {
	return Submit(q, func(dev GPUCompute) (U, error) {
		v, err := prev.Wait(context.Background())
		if err != nil {
			var zero U
			return zero, err
		}
		return fn(dev, v)
	})
}
