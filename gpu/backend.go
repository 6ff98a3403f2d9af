package gpu

import (
	"fmt"
	"runtime"
)

// NewBackend picks a compute backend by name. "auto" chooses go-parallel on
// multi-core machines and the worker pool otherwise.
func NewBackend(name string, workers, groupSize int) (GPUCompute, error) {
	switch name {
	case "cpu":
		return NewCPUCompute(workers, groupSize), nil
	case "parallel":
		return NewParallelCompute(groupSize), nil
	case "", "auto":
		if runtime.NumCPU() > 1 {
			return NewParallelCompute(groupSize), nil
		}
		return NewCPUCompute(1, groupSize), nil
	default:
		return nil, fmt.Errorf("unknown compute backend %q", name)
	}
}
