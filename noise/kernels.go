package noise

import (
	"math"

	"github.com/aquilax/go-perlin"
	"github.com/ojrac/opensimplex-go"

	"terrainforge/core"
)

// Sampler evaluates one octave of a coherent noise function, roughly in
// [-1,1]. Implementations must be safe for concurrent use.
type Sampler interface {
	Eval(x, y float64) float64
}

// NewSampler builds the kernel selected by t. Exactly one kernel is active
// per synthesis pass.
func NewSampler(t core.NoiseType, seed int64) Sampler {
	switch t {
	case core.Perlin:
		// One octave per call: the fractal sum happens in Synthesize.
		return perlinSampler{p: perlin.NewPerlin(2, 2, 1, seed)}
	case core.Simplex:
		return simplexSampler{n: opensimplex.New(seed)}
	default:
		return worleySampler{seed: uint64(seed)}
	}
}

type perlinSampler struct {
	p *perlin.Perlin
}

// perlinPeriod is the lattice period of go-perlin's permutation table. The
// library truncates toward zero, so coordinates below -4096 break its
// interpolation; wrapping into [0,perlinPeriod) samples the same function.
const perlinPeriod = 256

func (s perlinSampler) Eval(x, y float64) float64 {
	return s.p.Noise2D(wrapPeriod(x), wrapPeriod(y))
}

func wrapPeriod(v float64) float64 {
	v = math.Mod(v, perlinPeriod)
	if v < 0 {
		v += perlinPeriod
	}
	return v
}

type simplexSampler struct {
	n opensimplex.Noise
}

func (s simplexSampler) Eval(x, y float64) float64 {
	return s.n.Eval2(x, y)
}

// worleySampler is cellular noise: one jittered feature point per unit
// cell, value derived from the distance to the nearest one.
type worleySampler struct {
	seed uint64
}

func (s worleySampler) Eval(x, y float64) float64 {
	cx, cy := math.Floor(x), math.Floor(y)
	best := math.MaxFloat64
	for dy := -1.0; dy <= 1; dy++ {
		for dx := -1.0; dx <= 1; dx++ {
			gx, gy := cx+dx, cy+dy
			h := hashCell(int64(gx), int64(gy), s.seed)
			px := gx + unitFloat(h)
			py := gy + unitFloat(h>>32|h<<32)
			ddx, ddy := px-x, py-y
			if d := ddx*ddx + ddy*ddy; d < best {
				best = d
			}
		}
	}
	// Nearest distance is at most sqrt(2); map [0,1] onto [1,-1].
	return 1 - 2*math.Min(math.Sqrt(best), 1)
}

func hashCell(x, y int64, seed uint64) uint64 {
	h := seed ^ 0x9e3779b97f4a7c15
	h ^= uint64(x) * 0xbf58476d1ce4e5b9
	h = (h ^ h>>31) * 0x94d049bb133111eb
	h ^= uint64(y) * 0xd6e8feb86659fd93
	h = (h ^ h>>29) * 0xbf58476d1ce4e5b9
	return h ^ h>>32
}

func unitFloat(h uint64) float64 {
	return float64(h&0xffffffff) / float64(1<<32)
}
