package gpu

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
)

// DefaultGroupSize is the number of work items handed to a worker at once.
const DefaultGroupSize = 64

// CPUCompute implements GPUCompute with a fixed pool of worker goroutines
// pulling work groups off a channel.
type CPUCompute struct {
	numWorkers int
	groupSize  int
	lost       atomic.Bool
}

// NewCPUCompute creates a worker-pool backend. Non-positive arguments pick
// runtime.NumCPU() workers and DefaultGroupSize.
func NewCPUCompute(workers, groupSize int) *CPUCompute {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if groupSize <= 0 {
		groupSize = DefaultGroupSize
	}
	return &CPUCompute{numWorkers: workers, groupSize: groupSize}
}

func (c *CPUCompute) Name() string {
	return fmt.Sprintf("CPU (%d workers)", c.numWorkers)
}

// Dispatch splits [0,n) into groups and runs them on the worker pool.
func (c *CPUCompute) Dispatch(n int, kernel Kernel) error {
	if c.lost.Load() {
		return ErrDeviceLost
	}
	if n <= 0 {
		return nil
	}

	groups := (n + c.groupSize - 1) / c.groupSize
	work := make(chan int, groups)
	for g := 0; g < groups; g++ {
		work <- g
	}
	close(work)

	workers := min(c.numWorkers, groups)
	var failed atomic.Bool
	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for g := range work {
				start := g * c.groupSize
				end := min(start+c.groupSize, n)
				if !runGroup(kernel, start, end) {
					failed.Store(true)
				}
			}
		}()
	}
	wg.Wait()

	if failed.Load() {
		return ErrKernelPanic
	}
	return nil
}

// Cleanup marks the device lost; later dispatches fail.
func (c *CPUCompute) Cleanup() {
	c.lost.Store(true)
}

// runGroup executes kernel over [start,end) and reports false if it panicked.
func runGroup(kernel Kernel, start, end int) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ok = false
		}
	}()
	for id := start; id < end; id++ {
		kernel(id)
	}
	return true
}
