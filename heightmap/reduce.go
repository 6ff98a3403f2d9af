package heightmap

import (
	"terrainforge/core"
	"terrainforge/gpu"
)

// GroupSize is the number of samples each first-phase reduction group
// covers.
const GroupSize = 256

// Reduce returns the minimum and maximum of field in two phases: every
// group of GroupSize samples is reduced independently, then a single group
// folds the per-group results. The second phase only starts once the first
// dispatch has returned. Reducing an empty field returns the zero Range.
func Reduce(dev gpu.GPUCompute, field []float32) (core.Range, error) {
	n := len(field)
	if n == 0 {
		return core.Range{}, nil
	}

	groups := (n + GroupSize - 1) / GroupSize
	partial := make([]core.Range, groups)
	err := dev.Dispatch(groups, func(g int) {
		start := g * GroupSize
		end := min(start+GroupSize, n)
		r := core.Range{Min: field[start], Max: field[start]}
		for _, v := range field[start+1 : end] {
			r.Min = min(r.Min, v)
			r.Max = max(r.Max, v)
		}
		partial[g] = r
	})
	if err != nil {
		return core.Range{}, err
	}

	var out core.Range
	err = dev.Dispatch(1, func(int) {
		r := partial[0]
		for _, p := range partial[1:] {
			r.Min = min(r.Min, p.Min)
			r.Max = max(r.Max, p.Max)
		}
		out = r
	})
	return out, err
}
