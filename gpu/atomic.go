package gpu

import (
	"math"
	"sync/atomic"
	"unsafe"
)

// AtomicAddFloat32 adds delta to *addr with a compare-and-swap loop and
// returns the new value. Concurrent adds to the same address sum.
func AtomicAddFloat32(addr *float32, delta float32) float32 {
	p := (*uint32)(unsafe.Pointer(addr))
	for {
		old := atomic.LoadUint32(p)
		next := math.Float32frombits(old) + delta
		if atomic.CompareAndSwapUint32(p, old, math.Float32bits(next)) {
			return next
		}
	}
}

// AtomicLoadFloat32 reads *addr without tearing against AtomicAddFloat32.
func AtomicLoadFloat32(addr *float32) float32 {
	return math.Float32frombits(atomic.LoadUint32((*uint32)(unsafe.Pointer(addr))))
}

// AtomicSubClampFloat32 subtracts up to want from *addr without taking it
// below zero and returns the amount actually removed. The check and the
// store happen in one compare-and-swap, so racing callers never overdraw.
func AtomicSubClampFloat32(addr *float32, want float32) float32 {
	if want <= 0 {
		return 0
	}
	p := (*uint32)(unsafe.Pointer(addr))
	for {
		old := atomic.LoadUint32(p)
		cur := math.Float32frombits(old)
		d := min(want, max(cur, 0))
		if d <= 0 {
			return 0
		}
		if atomic.CompareAndSwapUint32(p, old, math.Float32bits(cur-d)) {
			return d
		}
	}
}
