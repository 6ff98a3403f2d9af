package gpu

import "errors"

var (
	// ErrDeviceLost is returned once a backend has been cleaned up.
	ErrDeviceLost = errors.New("gpu: device lost")
	// ErrKernelPanic is returned when a kernel invocation panicked.
	ErrKernelPanic = errors.New("gpu: kernel panic")
	// ErrNotReady is returned by Future.Result before the work completed.
	ErrNotReady = errors.New("gpu: result not ready")
)

// Kernel is invoked once per work item of a dispatch.
type Kernel func(id int)

// GPUCompute is a data-parallel compute device. A dispatch runs its kernel
// for every id in [0,n) with no ordering between invocations and returns
// once all of them finished. Dispatches issued one after another are
// therefore fully ordered.
type GPUCompute interface {
	Dispatch(n int, kernel Kernel) error
	Name() string
	Cleanup()
}
