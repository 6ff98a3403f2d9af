package core

import (
	"fmt"
	"strings"

	"github.com/go-gl/mathgl/mgl32"
)

// NoiseType selects the coherent noise kernel used for synthesis.
type NoiseType int

const (
	Perlin NoiseType = iota
	Simplex
	Worley
)

func (t NoiseType) String() string {
	switch t {
	case Perlin:
		return "perlin"
	case Simplex:
		return "simplex"
	case Worley:
		return "worley"
	default:
		return fmt.Sprintf("NoiseType(%d)", int(t))
	}
}

// ParseNoiseType accepts the lower-case kernel names produced by String.
func ParseNoiseType(s string) (NoiseType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "perlin":
		return Perlin, nil
	case "simplex":
		return Simplex, nil
	case "worley", "cellular":
		return Worley, nil
	}
	return 0, fmt.Errorf("unknown noise type %q", s)
}

// HeightField is a row-major grid of elevations with Resolution quads per
// side, so (Resolution+1)² samples.
type HeightField struct {
	Resolution int
	Heights    []float32
}

// VertexCount returns the number of samples of a field with res quads per side.
func VertexCount(res int) int {
	return (res + 1) * (res + 1)
}

// IndexCount returns the number of triangle indices for res quads per side.
func IndexCount(res int) int {
	return res * res * 6
}

func NewHeightField(res int) *HeightField {
	return &HeightField{Resolution: res, Heights: make([]float32, VertexCount(res))}
}

// Width is the number of samples along one edge.
func (h *HeightField) Width() int { return h.Resolution + 1 }

func (h *HeightField) Index(x, z int) int { return z*(h.Resolution+1) + x }

// At returns the elevation of sample (x,z).
func (h *HeightField) At(x, z int) float32 { return h.Heights[h.Index(x, z)] }

// Range is the discovered elevation bounds of a field.
type Range struct {
	Min float32 `json:"min"`
	Max float32 `json:"max"`
}

// Span returns Max-Min.
func (r Range) Span() float32 { return r.Max - r.Min }

// TerrainParams are the noise-affecting parameters. Changing any of them
// invalidates the saved pre-erosion heightfield.
type TerrainParams struct {
	Resolution       int
	Seed             int64
	Scale            float32
	Octaves          int
	Persistence      float32
	Lacunarity       float32
	Offset           mgl32.Vec2
	NoiseType        NoiseType
	WarpStrength     float32
	WarpFrequency    float32
	SmoothingPasses  int
	HeightMultiplier float32
	Curve            Curve
	WorldSize        float32
}

// ErosionParams drive the particle erosion stage only.
type ErosionParams struct {
	Skip             bool
	Drops            int
	MaxSteps         int
	Radius           int
	Inertia          float32
	SedimentCapacity float32
	DepositionRate   float32
	EvaporationRate  float32
	Softness         float32
	Gravity          float32
	MinSlope         float32
}

// Active reports whether the erosion stage has any work to launch.
func (e ErosionParams) Active() bool {
	return !e.Skip && e.Drops > 0 && e.MaxSteps > 0
}

// Params is the full parameter set of one regeneration.
type Params struct {
	Terrain TerrainParams
	Erosion ErosionParams
}

// Vertex is one draw-ready mesh vertex.
type Vertex struct {
	Position mgl32.Vec3
	UV       mgl32.Vec2
	Normal   mgl32.Vec3
}

// MeshBuffers is the regular triangulated grid produced from a heightfield.
type MeshBuffers struct {
	Resolution int
	Vertices   []Vertex
	Indices    []uint32
}
