package heightmap

import (
	"github.com/chewxy/math32"

	"terrainforge/core"
	"terrainforge/gpu"
)

// SampleCurve looks up a baked response curve at t in [0,1], linearly
// interpolating between the two nearest samples. Sample i holds the curve
// at i/(len-1), the same spacing core.Curve.Bake uses.
func SampleCurve(samples []float32, t float32) float32 {
	n := len(samples)
	if n == 0 {
		return t
	}
	if n == 1 {
		return samples[0]
	}
	t = math32.Min(math32.Max(t, 0), 1)
	pos := t * float32(n-1)
	i := int(pos)
	if i >= n-1 {
		return samples[n-1]
	}
	f := pos - float32(i)
	return samples[i] + (samples[i+1]-samples[i])*f
}

// Normalize rescales field into [0,1] using r, reshapes it through the
// baked curve and multiplies by heightMultiplier, in place.
//
// A flat field (r.Max == r.Min) maps every sample to
// SampleCurve(curve, 0) * heightMultiplier.
func Normalize(dev gpu.GPUCompute, field []float32, r core.Range, curve []float32, heightMultiplier float32) error {
	span := r.Span()
	if span <= 0 {
		flat := SampleCurve(curve, 0) * heightMultiplier
		return dev.Dispatch(len(field), func(id int) {
			field[id] = flat
		})
	}

	inv := 1 / span
	return dev.Dispatch(len(field), func(id int) {
		t := math32.Min(math32.Max((field[id]-r.Min)*inv, 0), 1)
		field[id] = SampleCurve(curve, t) * heightMultiplier
	})
}
