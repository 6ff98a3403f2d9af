package noise

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl64"

	"terrainforge/core"
	"terrainforge/gpu"
)

// Warp displacement is sampled from the same kernel at fixed offsets so the
// x and y displacements are decorrelated from each other and from the
// height octaves.
var (
	warpShiftX = mgl64.Vec2{31.7, 47.3}
	warpShiftY = mgl64.Vec2{-19.1, 11.9}
)

// Synthesize writes raw (unnormalized) fractal noise for every sample of a
// field with p.Resolution quads per side into dst. The output range is
// data dependent. Resolution and octave count must be at least 1.
func Synthesize(dev gpu.GPUCompute, dst []float32, p core.TerrainParams) error {
	width := p.Resolution + 1
	if len(dst) != width*width {
		return fmt.Errorf("noise: destination holds %d samples, want %d", len(dst), width*width)
	}

	rng := NewRNG(p.Seed, 0)
	octs := Octaves(rng, p.Octaves, float64(p.Persistence), float64(p.Lacunarity),
		mgl64.Vec2{float64(p.Offset[0]), float64(p.Offset[1])})
	sampler := NewSampler(p.NoiseType, p.Seed)

	// The scale is relative to the map width so shapes do not change with
	// resolution.
	scale := float64(p.Scale) * float64(width)
	mid := float64(width) / 2
	warpStrength := float64(p.WarpStrength)
	warpFreq := float64(p.WarpFrequency)
	warp := warpStrength != 0 && warpFreq != 0

	return dev.Dispatch(len(dst), func(id int) {
		x, z := id%width, id/width
		pos := mgl64.Vec2{(float64(x) - mid) / scale, (float64(z) - mid) / scale}

		var sum float64
		for _, o := range octs {
			s := pos.Mul(o.Frequency).Add(o.Offset)
			if warp {
				w := s.Mul(warpFreq)
				s = s.Add(mgl64.Vec2{
					sampler.Eval(w.Add(warpShiftX).Elem()),
					sampler.Eval(w.Add(warpShiftY).Elem()),
				}.Mul(warpStrength))
			}
			sum += o.Amplitude * sampler.Eval(s[0], s[1])
		}
		dst[id] = float32(sum)
	})
}
