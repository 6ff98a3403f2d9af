package mesh

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"terrainforge/core"
	"terrainforge/gpu"
)

var up = mgl32.Vec3{0, 1, 0}

// BuildIndices writes the triangle list of a res x res quad grid. Quad
// (x,z) becomes (x,z),(x,z+1),(x+1,z+1) and (x+1,z+1),(x+1,z),(x,z), both
// wound so their normals face +Y.
func BuildIndices(dev gpu.GPUCompute, indices []uint32, res int) error {
	if len(indices) != core.IndexCount(res) {
		return fmt.Errorf("mesh: index buffer holds %d entries, want %d", len(indices), core.IndexCount(res))
	}
	width := uint32(res + 1)
	return dev.Dispatch(res*res, func(q int) {
		x, z := uint32(q%res), uint32(q/res)
		a := z*width + x   // (x,z)
		b := a + width     // (x,z+1)
		c := b + 1         // (x+1,z+1)
		d := a + 1         // (x+1,z)
		i := q * 6
		indices[i], indices[i+1], indices[i+2] = a, b, c
		indices[i+3], indices[i+4], indices[i+5] = c, d, a
	})
}

// BuildVertices writes position and uv for every heightfield sample. The
// heights are used as-is; they already carry the height multiplier.
// Positions span worldSize units along x and z. Normals are left for
// RecalculateNormals.
func BuildVertices(dev gpu.GPUCompute, vertices []core.Vertex, heights []float32, res int, worldSize float32) error {
	width := res + 1
	if len(vertices) != width*width || len(heights) != width*width {
		return fmt.Errorf("mesh: %d vertices for %d heights, want %d", len(vertices), len(heights), width*width)
	}
	inv := 1 / float32(res)
	return dev.Dispatch(len(vertices), func(id int) {
		x, z := id%width, id/width
		u, v := float32(x)*inv, float32(z)*inv
		vertices[id].Position = mgl32.Vec3{u * worldSize, heights[id], v * worldSize}
		vertices[id].UV = mgl32.Vec2{u, v}
	})
}

// RecalculateNormals sets every vertex normal to the normalized sum of the
// face normals of the triangles around it, each taken as the cross product
// of two edges of the triangle as currently positioned. It has to run after
// every change to the positions.
func RecalculateNormals(dev gpu.GPUCompute, vertices []core.Vertex, res int) error {
	width := res + 1
	if len(vertices) != width*width {
		return fmt.Errorf("mesh: %d vertices, want %d", len(vertices), width*width)
	}
	pos := func(x, z int) mgl32.Vec3 { return vertices[z*width+x].Position }
	face := func(a, b, c mgl32.Vec3) mgl32.Vec3 { return b.Sub(a).Cross(c.Sub(a)) }

	// Positions are only read here, normals only written, so the per-vertex
	// gather needs no synchronisation.
	return dev.Dispatch(len(vertices), func(id int) {
		x, z := id%width, id/width
		var sum mgl32.Vec3
		for qz := z - 1; qz <= z; qz++ {
			for qx := x - 1; qx <= x; qx++ {
				if qx < 0 || qz < 0 || qx >= res || qz >= res {
					continue
				}
				p00, p01 := pos(qx, qz), pos(qx, qz+1)
				p11, p10 := pos(qx+1, qz+1), pos(qx+1, qz)
				// First triangle (x,z),(x,z+1),(x+1,z+1) misses corner (x+1,z).
				if !(x == qx+1 && z == qz) {
					sum = sum.Add(face(p00, p01, p11))
				}
				// Second triangle (x+1,z+1),(x+1,z),(x,z) misses corner (x,z+1).
				if !(x == qx && z == qz+1) {
					sum = sum.Add(face(p11, p10, p00))
				}
			}
		}
		if sum.Len() == 0 {
			vertices[id].Normal = up
			return
		}
		vertices[id].Normal = sum.Normalize()
	})
}

// Build allocates and fills a complete mesh for heights.
func Build(dev gpu.GPUCompute, heights []float32, res int, worldSize float32) (*core.MeshBuffers, error) {
	m := &core.MeshBuffers{
		Resolution: res,
		Vertices:   make([]core.Vertex, core.VertexCount(res)),
		Indices:    make([]uint32, core.IndexCount(res)),
	}
	if err := BuildIndices(dev, m.Indices, res); err != nil {
		return nil, err
	}
	if err := BuildVertices(dev, m.Vertices, heights, res, worldSize); err != nil {
		return nil, err
	}
	if err := RecalculateNormals(dev, m.Vertices, res); err != nil {
		return nil, err
	}
	return m, nil
}
