package heightmap

import (
	"fmt"

	"terrainforge/gpu"
)

// HeightBuffers is the read/write pair used by multi-pass stages.
type HeightBuffers = gpu.DoubleBuffer[*gpu.Buffer[float32]]

// Smooth applies passes of a 3x3 box blur. Neighbours outside the grid are
// left out of the average rather than wrapped or zero padded. Each pass reads
// bufs.Read and writes bufs.Write, then the handles are swapped, so on
// return bufs.Read holds the result. passes == 0 touches nothing.
func Smooth(dev gpu.GPUCompute, bufs *HeightBuffers, res, passes int) error {
	if passes <= 0 {
		return nil
	}
	width := res + 1
	if bufs.Read.Len() != width*width || bufs.Write.Len() != width*width {
		return fmt.Errorf("heightmap: smoothing buffers hold %d/%d samples, want %d",
			bufs.Read.Len(), bufs.Write.Len(), width*width)
	}

	for ; passes > 0; passes-- {
		src, dst := bufs.Read.Data, bufs.Write.Data
		err := dev.Dispatch(len(dst), func(id int) {
			x, z := id%width, id/width
			var sum float32
			var count int
			for dz := -1; dz <= 1; dz++ {
				nz := z + dz
				if nz < 0 || nz >= width {
					continue
				}
				row := nz * width
				for dx := -1; dx <= 1; dx++ {
					nx := x + dx
					if nx < 0 || nx >= width {
						continue
					}
					sum += src[row+nx]
					count++
				}
			}
			dst[id] = sum / float32(count)
		})
		if err != nil {
			return err
		}
		bufs.Swap()
	}
	return nil
}

// Copy duplicates src into dst on the device.
func Copy(dev gpu.GPUCompute, dst, src []float32) error {
	if len(dst) != len(src) {
		return fmt.Errorf("heightmap: copy of %d samples into %d", len(src), len(dst))
	}
	return dev.Dispatch(len(dst), func(id int) {
		dst[id] = src[id]
	})
}
