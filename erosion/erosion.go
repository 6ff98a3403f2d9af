package erosion

import (
	"fmt"
	"math/rand/v2"

	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"

	"terrainforge/core"
	"terrainforge/gpu"
)

const (
	startVelocity = 1
	startVolume   = 1
	// minVolume ends a particle whose water has evaporated.
	minVolume = 1e-4
	// stuckDirection ends a particle whose direction collapsed to zero.
	stuckDirection = 1e-6
	// maxCellErosion caps what one erosion event removes from a single cell.
	maxCellErosion = 0.25
)

// Stats summarises one erosion run. Sum(final - initial) over the field
// equals Deposited - Eroded up to float32 summation error; the sediment
// still carried by particles when they die, Lost, leaves the terrain.
type Stats struct {
	Particles int
	Steps     int64
	Eroded    float64
	Deposited float64
	Lost      float64
}

// Seed derives the erosion random seed from the terrain seed. It uses its
// own stream so erosion does not depend on how many noise draws preceded it.
func Seed(seed int64) uint32 {
	return rand.New(rand.NewPCG(uint64(seed), 1)).Uint32()
}

type particleResult struct {
	steps             int32
	eroded, deposited float32
	lost              float32
}

type simulation struct {
	heights []float32
	res     int
	width   int
	brush   *Brush
	p       core.ErosionParams
	seed    uint32
}

// Erode runs p.Drops independent particles over heights, a field with res
// quads per side, mutating it in place. Particles run concurrently and all
// height changes are atomic adds, so overlapping footprints sum. Skipped or
// empty runs return without dispatching.
func Erode(dev gpu.GPUCompute, heights []float32, res int, brush *Brush, p core.ErosionParams, seed uint32) (Stats, error) {
	width := res + 1
	if len(heights) != width*width {
		return Stats{}, fmt.Errorf("erosion: field holds %d samples, want %d", len(heights), width*width)
	}
	// Spawn cells exclude the border, leaving nothing to erode below res 3.
	if !p.Active() || res < 3 {
		return Stats{}, nil
	}

	s := &simulation{heights: heights, res: res, width: width, brush: brush, p: p, seed: seed}
	results := make([]particleResult, p.Drops)
	if err := dev.Dispatch(p.Drops, func(id int) {
		results[id] = s.particle(id)
	}); err != nil {
		return Stats{}, err
	}

	st := Stats{Particles: p.Drops}
	for _, r := range results {
		st.Steps += int64(r.steps)
		st.Eroded += float64(r.eroded)
		st.Deposited += float64(r.deposited)
		st.Lost += float64(r.lost)
	}
	return st, nil
}

func (s *simulation) particle(id int) particleResult {
	var out particleResult
	p := s.p

	h := hash(s.seed ^ hash(uint32(id)))
	span := uint32(s.res - 2)
	cx := 1 + int(h%span)
	cz := 1 + int(hash(h)%span)

	pos := mgl32.Vec2{float32(cx) + 0.5, float32(cz) + 0.5}
	var dir mgl32.Vec2
	velocity := float32(startVelocity)
	volume := float32(startVolume)
	var sediment float32

	for step := 0; step < p.MaxSteps; step++ {
		out.steps++
		nodeX, nodeZ := int(pos[0]), int(pos[1])
		fx, fz := pos[0]-float32(nodeX), pos[1]-float32(nodeZ)

		height, gx, gz := s.sample(nodeX, nodeZ, fx, fz)

		dir = mgl32.Vec2{
			dir[0]*p.Inertia - gx*(1-p.Inertia),
			dir[1]*p.Inertia - gz*(1-p.Inertia),
		}
		l := dir.Len()
		if l < stuckDirection {
			break
		}
		dir = dir.Mul(1 / l)

		next := pos.Add(dir)
		if next[0] < 0 || next[1] < 0 || next[0] >= float32(s.res) || next[1] >= float32(s.res) {
			break
		}

		nx, nz := int(next[0]), int(next[1])
		newHeight, _, _ := s.sample(nx, nz, next[0]-float32(nx), next[1]-float32(nz))
		delta := newHeight - height

		capacity := math32.Max(-delta, p.MinSlope) * velocity * volume * p.SedimentCapacity

		if delta > 0 || sediment > capacity {
			var amount float32
			if delta > 0 {
				amount = math32.Min(sediment, delta)
			} else {
				amount = (sediment - capacity) * p.DepositionRate
			}
			sediment -= amount
			s.deposit(nodeX, nodeZ, fx, fz, amount)
			out.deposited += amount
		} else {
			amount := math32.Min((capacity-sediment)*p.Softness, -delta)
			removed := s.erode(nodeX, nodeZ, amount)
			sediment += removed
			out.eroded += removed
		}

		velocity = math32.Sqrt(math32.Max(0, velocity*velocity-delta*p.Gravity))
		volume *= 1 - p.EvaporationRate
		pos = next

		if volume < minVolume {
			break
		}
	}

	out.lost = sediment
	return out
}

func (s *simulation) at(x, z int) float32 {
	return gpu.AtomicLoadFloat32(&s.heights[z*s.width+x])
}

// sample bilinearly interpolates height and gradient inside the face whose
// north-west corner is (x,z).
func (s *simulation) sample(x, z int, fx, fz float32) (height, gx, gz float32) {
	nw := s.at(x, z)
	ne := s.at(x+1, z)
	sw := s.at(x, z+1)
	se := s.at(x+1, z+1)

	gx = (ne-nw)*(1-fz) + (se-sw)*fz
	gz = (sw-nw)*(1-fx) + (se-ne)*fx
	height = nw*(1-fx)*(1-fz) + ne*fx*(1-fz) + sw*(1-fx)*fz + se*fx*fz
	return height, gx, gz
}

// deposit spreads amount over the four corners of the face with bilinear
// weights.
func (s *simulation) deposit(x, z int, fx, fz, amount float32) {
	if amount == 0 {
		return
	}
	i := z*s.width + x
	gpu.AtomicAddFloat32(&s.heights[i], amount*(1-fx)*(1-fz))
	gpu.AtomicAddFloat32(&s.heights[i+1], amount*fx*(1-fz))
	gpu.AtomicAddFloat32(&s.heights[i+s.width], amount*(1-fx)*fz)
	gpu.AtomicAddFloat32(&s.heights[i+s.width+1], amount*fx*fz)
}

// erode removes amount from the brush disc centred on (x,z), weighting each
// in-bounds cell by its linear falloff normalised over the in-bounds cells.
// No cell loses more than maxCellErosion or its current height. It returns
// what was actually removed.
func (s *simulation) erode(x, z int, amount float32) float32 {
	if amount <= 0 {
		return 0
	}

	var total float32
	for i, o := range s.brush.Offsets {
		if s.inBounds(x+o[0], z+o[1]) {
			total += s.brush.Weights[i]
		}
	}
	if total <= 0 {
		return s.take(z*s.width+x, amount)
	}

	var removed float32
	for i, o := range s.brush.Offsets {
		cx, cz := x+o[0], z+o[1]
		if !s.inBounds(cx, cz) || s.brush.Weights[i] == 0 {
			continue
		}
		removed += s.take(cz*s.width+cx, amount*s.brush.Weights[i]/total)
	}
	return removed
}

func (s *simulation) take(idx int, want float32) float32 {
	return gpu.AtomicSubClampFloat32(&s.heights[idx], math32.Min(want, maxCellErosion))
}

func (s *simulation) inBounds(x, z int) bool {
	return x >= 0 && z >= 0 && x < s.width && z < s.width
}

// hash is a PCG output permutation used to place particles.
func hash(v uint32) uint32 {
	state := v*747796405 + 2891336453
	word := ((state >> ((state >> 28) + 4)) ^ state) * 277803737
	return (word >> 22) ^ word
}
