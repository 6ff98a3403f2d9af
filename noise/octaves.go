package noise

import (
	"math"
	"math/rand/v2"

	"github.com/go-gl/mathgl/mgl64"
)

// octaveOffsetRange bounds the random per-octave offset. Large offsets let
// every octave sample an unrelated region of the same noise function.
const octaveOffsetRange = 100000

// OctaveParams are the precomputed inputs of one noise octave.
type OctaveParams struct {
	Offset    mgl64.Vec2
	Frequency float64
	Amplitude float64
}

// NewRNG returns the deterministic random stream for a seed. Different
// streams of the same seed are independent.
func NewRNG(seed int64, stream uint64) *rand.Rand {
	return rand.New(rand.NewPCG(uint64(seed), stream))
}

// Octaves derives count octaves from the random stream: frequency is
// lacunarity^i, amplitude persistence^i, offset base plus a uniform draw in
// ±octaveOffsetRange on each axis.
func Octaves(rng *rand.Rand, count int, persistence, lacunarity float64, base mgl64.Vec2) []OctaveParams {
	octs := make([]OctaveParams, count)
	for i := range octs {
		ox := (rng.Float64()*2 - 1) * octaveOffsetRange
		oy := (rng.Float64()*2 - 1) * octaveOffsetRange
		octs[i] = OctaveParams{
			Offset:    base.Add(mgl64.Vec2{ox, oy}),
			Frequency: math.Pow(lacunarity, float64(i)),
			Amplitude: math.Pow(persistence, float64(i)),
		}
	}
	return octs
}
