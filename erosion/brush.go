package erosion

import "github.com/chewxy/math32"

// Brush is the disc of cell offsets touched by one erosion event, with the
// linear falloff weight of each offset.
type Brush struct {
	Radius  int
	Offsets [][2]int
	Weights []float32
}

// NewBrush builds the stencil of every (dx,dz) with dx²+dz² <= radius². A
// new brush is built whenever the radius changes.
func NewBrush(radius int) *Brush {
	b := &Brush{Radius: radius}
	r2 := radius * radius
	for dz := -radius; dz <= radius; dz++ {
		for dx := -radius; dx <= radius; dx++ {
			d2 := dx*dx + dz*dz
			if d2 > r2 {
				continue
			}
			b.Offsets = append(b.Offsets, [2]int{dx, dz})
			b.Weights = append(b.Weights, float32(radius)-math32.Sqrt(float32(d2)))
		}
	}
	return b
}

// Len is the number of cells in the stencil.
func (b *Brush) Len() int { return len(b.Offsets) }
