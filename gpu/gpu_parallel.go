package gpu

import (
	"sync/atomic"

	"github.com/dgravesa/go-parallel/parallel"
)

// ParallelCompute implements GPUCompute on top of go-parallel's For loop,
// one loop iteration per work group.
type ParallelCompute struct {
	groupSize int
	lost      atomic.Bool
}

func NewParallelCompute(groupSize int) *ParallelCompute {
	if groupSize <= 0 {
		groupSize = DefaultGroupSize
	}
	return &ParallelCompute{groupSize: groupSize}
}

func (p *ParallelCompute) Name() string { return "go-parallel" }

func (p *ParallelCompute) Dispatch(n int, kernel Kernel) error {
	if p.lost.Load() {
		return ErrDeviceLost
	}
	if n <= 0 {
		return nil
	}

	groups := (n + p.groupSize - 1) / p.groupSize
	var failed atomic.Bool
	parallel.For(groups, func(g, _ int) {
		start := g * p.groupSize
		end := min(start+p.groupSize, n)
		if !runGroup(kernel, start, end) {
			failed.Store(true)
		}
	})

	if failed.Load() {
		return ErrKernelPanic
	}
	return nil
}

func (p *ParallelCompute) Cleanup() {
	p.lost.Store(true)
}
